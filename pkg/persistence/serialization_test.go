package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
)

func buildTree(t *testing.T, n int) (*codec.TreeDocument, []*merkle.Proof) {
	t.Helper()
	segments := make([][]byte, n)
	for i := range segments {
		segments[i] = []byte{byte(i), byte(i >> 8)}
	}
	tree, err := merkle.NewTree(hashing.NewDefaultHasher(), segments)
	require.NoError(t, err)
	doc, err := codec.NewTreeDocument(tree)
	require.NoError(t, err)
	proofs, err := tree.AuditProofs(context.Background(), 2)
	require.NoError(t, err)
	return doc, proofs
}

// TestMarshalUnmarshalTree_RoundTrip tests tree record serialization
func TestMarshalUnmarshalTree_RoundTrip(t *testing.T) {
	doc, _ := buildTree(t, 5)

	data, err := MarshalTree(doc)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := UnmarshalTree(data)
	require.NoError(t, err)
	require.NotNil(t, restored)

	assert.Equal(t, doc.TreeID, restored.TreeID)
	assert.Equal(t, doc.HashingConfig(), restored.HashingConfig())
	assert.Equal(t, doc.RootHash, restored.RootHash)
	assert.Equal(t, doc.Leaves, restored.Leaves)
	assert.True(t, doc.CreatedAt.Equal(restored.CreatedAt))
}

// TestMarshalUnmarshalProof_RoundTrip tests proof record serialization
func TestMarshalUnmarshalProof_RoundTrip(t *testing.T) {
	_, proofs := buildTree(t, 5)

	for _, p := range proofs {
		data, err := MarshalProof(p)
		require.NoError(t, err)

		restored, err := UnmarshalProof(data)
		require.NoError(t, err)
		assert.Equal(t, p, restored)
	}
}

func TestMarshal_NilInput(t *testing.T) {
	_, err := MarshalTree(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil TreeDocument")

	_, err = MarshalProof(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil Proof")
}

func TestUnmarshal_InvalidData(t *testing.T) {
	_, err := UnmarshalTree(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty data")

	_, err = UnmarshalTree([]byte{0xff, 0x00})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")

	_, err = UnmarshalProof([]byte{0xa1})
	require.Error(t, err)
}

func TestValidateProofs(t *testing.T) {
	doc, proofs := buildTree(t, 4)
	_, otherProofs := buildTree(t, 3)

	assert.NoError(t, ValidateProofs(doc, proofs))
	assert.Error(t, ValidateProofs(nil, proofs))
	assert.Error(t, ValidateProofs(doc, otherProofs))
	assert.Error(t, ValidateProofs(doc, []*merkle.Proof{nil}))

	mismatched := *proofs[0]
	mismatched.Hashing.Security = false
	assert.Error(t, ValidateProofs(doc, []*merkle.Proof{&mismatched}))
}

func TestProofKeyOrdering(t *testing.T) {
	assert.Equal(t, "tree:abc", TreeKey("abc"))
	assert.Equal(t, "proof:abc:0000000002", ProofKey("abc", 2))
	assert.Less(t, ProofKey("abc", 9), ProofKey("abc", 10))
}

func TestValidateTreeID(t *testing.T) {
	testCases := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"uuid", "5f0c6c1e-8a51-4a4e-9d3a-2f7f5f1d8b11", false},
		{"plain", "tree-1", false},
		{"empty", "", true},
		{"separator", "abc:def", true},
		{"trailing separator", "abc:", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTreeID(tc.id)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTreeID))
		})
	}

	// valid IDs never share a proof key prefix
	assert.NotContains(t, ProofKey("abcd", 0), ProofKeyPrefix("abc"))
}
