package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/logger"
	"github.com/Layr-Labs/pruvi-go/pkg/persistence"
	"github.com/Layr-Labs/pruvi-go/pkg/testutil"
)

func TestBadgerPersistence(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	testutil.RunProofStoreTests(t, func(t *testing.T) persistence.IProofStore {
		bp, err := NewBadgerPersistence(t.TempDir(), testLogger)
		require.NoError(t, err)
		return bp
	})
}

func TestBadgerPersistence_Persistence_AcrossRestarts(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	tt := testutil.CreateTestTree(t, 7)

	// First session: save data
	bp1, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)
	require.NoError(t, bp1.SaveTree(tt.Document))
	require.NoError(t, bp1.SaveProofs(tt.Document.TreeID, tt.Proofs))
	require.NoError(t, bp1.Close())

	// Second session: data survives and the tree rebuilds to the same root
	bp2, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = bp2.Close() }()

	loaded, err := bp2.LoadTree(tt.Document.TreeID)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	tree, err := codec.RebuildTree(loaded)
	require.NoError(t, err)
	root, err := tree.Root()
	require.NoError(t, err)
	assert.Equal(t, tt.Document.RootHash, root.Hex())

	proof, err := bp2.LoadProof(tt.Document.TreeID, 6)
	require.NoError(t, err)
	require.NotNil(t, proof)
	valid, err := proof.Verify(root)
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestBadgerPersistence_ProofsListedInLeafOrder(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	bp, err := NewBadgerPersistence(t.TempDir(), testLogger)
	require.NoError(t, err)
	defer func() { _ = bp.Close() }()

	tt := testutil.CreateTestTree(t, 12)
	require.NoError(t, bp.SaveTree(tt.Document))
	require.NoError(t, bp.SaveProofs(tt.Document.TreeID, tt.Proofs))

	keys, err := bp.proofKeys(tt.Document.TreeID)
	require.NoError(t, err)
	require.Len(t, keys, 12)
	for i, key := range keys {
		assert.Equal(t, persistence.ProofKey(tt.Document.TreeID, i), string(key))
	}
}
