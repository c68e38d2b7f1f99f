package commitment

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/persistence/memory"
	"github.com/Layr-Labs/pruvi-go/pkg/segments"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
	"github.com/Layr-Labs/pruvi-go/pkg/verifier"
)

func newTestCommitter(t *testing.T, c codec.Codec) *Committer {
	t.Helper()
	committer, err := NewCommitter(&Config{
		Hashing: hashing.DefaultConfig(),
		Workers: 4,
		Codec:   c,
	}, zap.NewNop())
	require.NoError(t, err)
	return committer
}

func TestCommit(t *testing.T) {
	committer := newTestCommitter(t, nil)

	cm, err := committer.Commit(context.Background(), segments.Strings("a", "b", "c", "d", "e"))
	require.NoError(t, err)

	assert.NotEmpty(t, cm.TreeID)
	assert.Equal(t, 5, cm.Tree.Size())
	require.Len(t, cm.Proofs, 5)

	root, err := cm.Tree.Root()
	require.NoError(t, err)
	assert.Equal(t, root, cm.Root)
	assert.Equal(t, root.Hex(), cm.Document.RootHash)

	for i, p := range cm.Proofs {
		assert.Equal(t, i, p.LeafIndex)
		valid, err := p.Verify(cm.Root)
		require.NoError(t, err)
		assert.True(t, valid)
	}
}

func TestCommit_EmptySource(t *testing.T) {
	committer := newTestCommitter(t, nil)

	_, err := committer.Commit(context.Background(), segments.Slice{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrEmptyTree))
}

func TestNewCommitter_UnsupportedAlgorithm(t *testing.T) {
	_, err := NewCommitter(&Config{Hashing: hashing.Config{Algorithm: "md4"}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnsupportedAlgorithm))

	_, err = NewCommitter(nil, nil)
	assert.Error(t, err)
}

// TestExportAndValidate splits a file, exports it and validates every part
// from the files on disk alone.
func TestExportAndValidate(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON, codec.CBOR} {
		t.Run(c.Format().String(), func(t *testing.T) {
			dir := t.TempDir()
			input := filepath.Join(dir, "document.bin")
			content := bytes.Repeat([]byte("pruvi-"), 100)
			require.NoError(t, os.WriteFile(input, content, 0o644))

			source, err := segments.NewFile(input, 64)
			require.NoError(t, err)

			cm, err := newTestCommitter(t, c).Commit(context.Background(), source)
			require.NoError(t, err)

			out := filepath.Join(dir, "export")
			require.NoError(t, cm.Export(out, source.Extension()))

			treeData, err := os.ReadFile(filepath.Join(out, TreeFileName+c.Extension()))
			require.NoError(t, err)
			doc, err := codec.DecodeTree(c, treeData)
			require.NoError(t, err)
			rebuilt, err := codec.RebuildTree(doc)
			require.NoError(t, err)
			assert.Equal(t, cm.Tree.Size(), rebuilt.Size())

			proofsData, err := os.ReadFile(filepath.Join(out, ProofsFileName+c.Extension()))
			require.NoError(t, err)
			root, proofs, err := codec.DecodeProofSet(c, proofsData)
			require.NoError(t, err)
			assert.Equal(t, cm.Root, root)
			require.Len(t, proofs, len(cm.Segments))

			partsDir := filepath.Join(out, PartsFolderName)
			var reassembled []byte
			for i := range cm.Segments {
				partPath := filepath.Join(partsDir, PartFileName(i, ".bin"))
				part, err := os.ReadFile(partPath)
				require.NoError(t, err)
				reassembled = append(reassembled, part...)

				proofData, err := os.ReadFile(filepath.Join(partsDir, ProofFileName(i, c)))
				require.NoError(t, err)
				proof, err := codec.DecodeProof(c, proofData)
				require.NoError(t, err)

				result, err := verifier.VerifyFile(partPath, proof, root)
				require.NoError(t, err)
				assert.True(t, result.Valid, "part %d: %s", i+1, result.Reason)
			}
			assert.Equal(t, content, reassembled)
		})
	}
}

func TestExportNaming(t *testing.T) {
	assert.Equal(t, "part-1.pdf", PartFileName(0, ".pdf"))
	assert.Equal(t, "part-12", PartFileName(11, ""))
	assert.Equal(t, "part-3-proof.json", ProofFileName(2, codec.JSON))
	assert.Equal(t, "part-3-proof.cbor", ProofFileName(2, codec.CBOR))
}

func TestPersist(t *testing.T) {
	store := memory.NewMemoryPersistence()
	defer func() { _ = store.Close() }()

	cm, err := newTestCommitter(t, nil).Commit(context.Background(), segments.Strings("x", "y", "z"))
	require.NoError(t, err)
	require.NoError(t, cm.Persist(store))

	doc, err := store.LoadTree(cm.TreeID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, cm.Root.Hex(), doc.RootHash)

	proof, err := store.LoadProof(cm.TreeID, 1)
	require.NoError(t, err)
	require.NotNil(t, proof)

	result, err := verifier.VerifyBytes([]byte("y"), proof, cm.Root)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
