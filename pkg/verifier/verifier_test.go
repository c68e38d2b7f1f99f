package verifier

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

func setupTree(t *testing.T, n int) ([][]byte, *merkle.Tree, types.Hash) {
	t.Helper()
	segments := make([][]byte, n)
	for i := range segments {
		segments[i] = []byte(fmt.Sprintf("chunk %d of the document", i))
	}
	tree, err := merkle.NewTree(hashing.NewDefaultHasher(), segments)
	require.NoError(t, err)
	root, err := tree.Root()
	require.NoError(t, err)
	return segments, tree, root
}

func TestVerifyFile(t *testing.T) {
	segments, tree, root := setupTree(t, 6)
	dir := t.TempDir()
	v := New(zap.NewNop())

	for i, segment := range segments {
		path := filepath.Join(dir, fmt.Sprintf("part-%d.bin", i+1))
		require.NoError(t, os.WriteFile(path, segment, 0o644))

		proof, err := tree.AuditProof(i)
		require.NoError(t, err)

		result, err := v.VerifyFile(path, proof, root)
		require.NoError(t, err)
		assert.True(t, result.Valid, "part %d should verify", i+1)
		assert.NoError(t, result.Err())
		assert.Equal(t, root, result.ComputedRoot)
	}
}

// TestTamperedPart checks a modified part changes the root, leaves the
// original proof valid for the original root and fails the content-hash step
func TestTamperedPart(t *testing.T) {
	segments, tree, root := setupTree(t, 4)
	path := filepath.Join(t.TempDir(), "part-3.bin")

	tampered := append([]byte{}, segments[2]...)
	tampered[0] ^= 0x01
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	hasher := hashing.NewDefaultHasher()
	modified := append([][]byte{}, segments...)
	modified[2] = tampered
	modifiedTree, err := merkle.NewTree(hasher, modified)
	require.NoError(t, err)
	modifiedRoot, err := modifiedTree.Root()
	require.NoError(t, err)
	assert.False(t, root.Equal(modifiedRoot))

	proof, err := tree.AuditProof(2)
	require.NoError(t, err)

	valid, err := merkle.VerifyProof(hasher, hasher.LeafHash(segments[2]), proof, root)
	require.NoError(t, err)
	assert.True(t, valid)

	result, err := VerifyFile(path, proof, root)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, types.StepContentHash, result.FailedStep)
	assert.Nil(t, result.ComputedRoot)

	err = result.Err()
	var failed *types.VerificationFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, types.StepContentHash, failed.Step)
	assert.True(t, errors.Is(err, types.ErrVerificationFailed))
	assert.False(t, errors.Is(err, types.ErrProofFormat))
}

func TestVerifyBytesPathRootFailures(t *testing.T) {
	segments, tree, root := setupTree(t, 4)

	t.Run("Wrong root", func(t *testing.T) {
		proof, err := tree.AuditProof(1)
		require.NoError(t, err)

		otherRoot := root.Clone()
		otherRoot[len(otherRoot)-1] ^= 0xFF
		result, err := VerifyBytes(segments[1], proof, otherRoot)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, types.StepPathRoot, result.FailedStep)
		assert.Equal(t, root, result.ComputedRoot)
	})

	t.Run("Tampered sibling", func(t *testing.T) {
		proof, err := tree.AuditProof(1)
		require.NoError(t, err)
		proof.Path[1].Hash[0] ^= 0x80

		result, err := VerifyBytes(segments[1], proof, root)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, types.StepPathRoot, result.FailedStep)
	})

	t.Run("Index relabelled", func(t *testing.T) {
		proof, err := tree.AuditProof(0)
		require.NoError(t, err)
		proof.LeafIndex = 3

		result, err := VerifyBytes(segments[0], proof, root)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, types.StepPathRoot, result.FailedStep)
	})

	t.Run("Proof from a smaller tree", func(t *testing.T) {
		extended, err := merkle.NewTree(hashing.NewDefaultHasher(), append(segments, []byte("appended")))
		require.NoError(t, err)
		extendedRoot, err := extended.Root()
		require.NoError(t, err)

		proof, err := tree.AuditProof(2)
		require.NoError(t, err)
		result, err := VerifyBytes(segments[2], proof, extendedRoot)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, types.StepPathRoot, result.FailedStep)
	})
}

func TestVerifyErrors(t *testing.T) {
	segments, tree, root := setupTree(t, 2)

	t.Run("Missing file", func(t *testing.T) {
		proof, err := tree.AuditProof(0)
		require.NoError(t, err)

		_, err = VerifyFile(filepath.Join(t.TempDir(), "missing.bin"), proof, root)
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("Malformed proof", func(t *testing.T) {
		proof, err := tree.AuditProof(0)
		require.NoError(t, err)
		proof.Path[0].Direction = "SIDEWAYS"

		_, err = VerifyBytes(segments[0], proof, root)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrProofFormat))
		assert.False(t, errors.Is(err, types.ErrVerificationFailed))
	})

	t.Run("Unsupported algorithm", func(t *testing.T) {
		proof, err := tree.AuditProof(0)
		require.NoError(t, err)
		proof.Hashing.Algorithm = "whirlpool"

		_, err = VerifyBytes(segments[0], proof, root)
		assert.True(t, errors.Is(err, types.ErrUnsupportedAlgorithm))
	})

	t.Run("Nil proof", func(t *testing.T) {
		_, err := VerifyBytes(segments[0], nil, root)
		assert.True(t, errors.Is(err, types.ErrProofFormat))
	})
}

func TestVerifyTextMode(t *testing.T) {
	cfg := hashing.Config{Algorithm: hashing.AlgorithmSHA3_256, Security: true, RawBytes: false}
	hasher, err := hashing.NewHasher(cfg)
	require.NoError(t, err)

	composed := []byte("caf\u00e9")
	decomposed := []byte("cafe\u0301")
	tree, err := merkle.NewTree(hasher, [][]byte{composed, []byte("second")})
	require.NoError(t, err)
	root, err := tree.Root()
	require.NoError(t, err)

	proof, err := tree.AuditProof(0)
	require.NoError(t, err)

	// text mode normalizes, so the decomposed form verifies too
	result, err := VerifyBytes(decomposed, proof, root)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
