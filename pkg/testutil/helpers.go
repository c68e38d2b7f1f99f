package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
)

// TestTree bundles a tree with its export and every proof
type TestTree struct {
	Segments [][]byte
	Tree     *merkle.Tree
	Document *codec.TreeDocument
	Proofs   []*merkle.Proof
}

// CreateTestSegments creates n distinct segments tagged with label
func CreateTestSegments(label string, n int) [][]byte {
	segments := make([][]byte, n)
	for i := 0; i < n; i++ {
		segments[i] = []byte(fmt.Sprintf("%s segment %d", label, i))
	}
	return segments
}

// CreateTestTree builds an n leaf tree with the default hasher, exports it
// under a fresh ID and generates all proofs.
func CreateTestTree(t *testing.T, n int) *TestTree {
	t.Helper()
	return CreateTestTreeWithConfig(t, n, hashing.DefaultConfig())
}

// CreateTestTreeWithConfig is CreateTestTree for an explicit hasher configuration
func CreateTestTreeWithConfig(t *testing.T, n int, cfg hashing.Config) *TestTree {
	t.Helper()

	hasher, err := hashing.NewHasher(cfg)
	require.NoError(t, err)

	segments := CreateTestSegments(t.Name(), n)
	tree, err := merkle.NewTree(hasher, segments)
	require.NoError(t, err)

	doc, err := codec.NewTreeDocument(tree)
	require.NoError(t, err)

	proofs, err := tree.AuditProofs(context.Background(), 0)
	require.NoError(t, err)

	return &TestTree{
		Segments: segments,
		Tree:     tree,
		Document: doc,
		Proofs:   proofs,
	}
}
