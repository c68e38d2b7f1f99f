package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

func buildTestTree(t *testing.T, n int) *merkle.Tree {
	t.Helper()
	segments := make([][]byte, n)
	for i := range segments {
		segments[i] = []byte(fmt.Sprintf("part-%d", i))
	}
	tree, err := merkle.NewTree(hashing.NewDefaultHasher(), segments)
	require.NoError(t, err)
	return tree
}

// proofFields encodes a proof as JSON and returns it as a generic map for mutation
func proofFields(t *testing.T, p *merkle.Proof) map[string]interface{} {
	t.Helper()
	data, err := EncodeProof(JSON, p)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	return fields
}

func TestProofRoundTrip(t *testing.T) {
	tree := buildTestTree(t, 7)
	root, err := tree.Root()
	require.NoError(t, err)

	for _, c := range []Codec{JSON, CBOR} {
		t.Run(c.Format().String(), func(t *testing.T) {
			for i := 0; i < tree.Size(); i++ {
				proof, err := tree.AuditProof(i)
				require.NoError(t, err)

				data, err := EncodeProof(c, proof)
				require.NoError(t, err)

				decoded, err := DecodeProof(c, data)
				require.NoError(t, err)
				assert.Equal(t, proof, decoded)

				valid, err := decoded.Verify(root)
				require.NoError(t, err)
				assert.True(t, valid)
			}
		})
	}
}

func TestSingleLeafProofKeepsEmptyPath(t *testing.T) {
	tree := buildTestTree(t, 1)
	proof, err := tree.AuditProof(0)
	require.NoError(t, err)

	for _, c := range []Codec{JSON, CBOR} {
		t.Run(c.Format().String(), func(t *testing.T) {
			data, err := EncodeProof(c, proof)
			require.NoError(t, err)

			decoded, err := DecodeProof(c, data)
			require.NoError(t, err)
			assert.NotNil(t, decoded.Path)
			assert.Empty(t, decoded.Path)
		})
	}
}

func TestProofDocumentLayout(t *testing.T) {
	tree := buildTestTree(t, 4)
	proof, err := tree.AuditProof(2)
	require.NoError(t, err)

	fields := proofFields(t, proof)
	assert.Equal(t, hashing.AlgorithmSHA3_512, fields["algorithm"])
	assert.Equal(t, true, fields["security"])
	assert.Equal(t, true, fields["raw_bytes"])
	assert.Equal(t, float64(4), fields["tree_size"])
	assert.Equal(t, float64(2), fields["proof_index"])
	assert.Equal(t, proof.LeafHash.Hex(), fields["leaf_hash"])

	path, ok := fields["proof_path"].([]interface{})
	require.True(t, ok)
	require.Len(t, path, 2)
	assert.Equal(t, []interface{}{"RIGHT", proof.Path[0].Hash.Hex()}, path[0])
	assert.Equal(t, []interface{}{"LEFT", proof.Path[1].Hash.Hex()}, path[1])
}

func TestDecodeProofFormatErrors(t *testing.T) {
	tree := buildTestTree(t, 4)
	proof, err := tree.AuditProof(1)
	require.NoError(t, err)

	testCases := []struct {
		name   string
		mutate func(fields map[string]interface{})
		field  string
	}{
		{"missing proof_index", func(f map[string]interface{}) { delete(f, "proof_index") }, "proof_index"},
		{"missing proof_path", func(f map[string]interface{}) { delete(f, "proof_path") }, "proof_path"},
		{"missing algorithm", func(f map[string]interface{}) { delete(f, "algorithm") }, "algorithm"},
		{"missing security", func(f map[string]interface{}) { delete(f, "security") }, "security"},
		{"missing raw_bytes", func(f map[string]interface{}) { delete(f, "raw_bytes") }, "raw_bytes"},
		{"index equals size", func(f map[string]interface{}) { f["proof_index"] = 4 }, "proof_index"},
		{"zero tree size", func(f map[string]interface{}) { f["tree_size"] = 0 }, "tree_size"},
		{"bad leaf hex", func(f map[string]interface{}) { f["leaf_hash"] = "zz" }, "leaf_hash"},
		{"short leaf hash", func(f map[string]interface{}) { f["leaf_hash"] = "abcd" }, "leaf_hash"},
		{"unknown direction", func(f map[string]interface{}) {
			path := f["proof_path"].([]interface{})
			path[0].([]interface{})[0] = "UP"
		}, "proof_path"},
		{"lowercase direction", func(f map[string]interface{}) {
			path := f["proof_path"].([]interface{})
			path[0].([]interface{})[0] = "left"
		}, "proof_path"},
		{"step without hash", func(f map[string]interface{}) {
			path := f["proof_path"].([]interface{})
			path[0] = []interface{}{"LEFT"}
		}, "proof_path"},
		{"short sibling hash", func(f map[string]interface{}) {
			path := f["proof_path"].([]interface{})
			path[1].([]interface{})[1] = "00ff"
		}, "proof_path[1]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fields := proofFields(t, proof)
			tc.mutate(fields)
			data, err := json.Marshal(fields)
			require.NoError(t, err)

			_, err = DecodeProof(JSON, data)
			require.Error(t, err)

			var formatErr *types.ProofFormatError
			require.True(t, errors.As(err, &formatErr), "expected ProofFormatError, got %v", err)
			assert.Equal(t, tc.field, formatErr.Field)
			assert.True(t, errors.Is(err, types.ErrProofFormat))
		})
	}

	t.Run("not json", func(t *testing.T) {
		_, err := DecodeProof(JSON, []byte("{not json"))
		assert.True(t, errors.Is(err, types.ErrProofFormat))
	})

	t.Run("empty data", func(t *testing.T) {
		_, err := DecodeProof(CBOR, nil)
		assert.True(t, errors.Is(err, types.ErrProofFormat))
	})
}

func TestDecodeProofUnsupportedAlgorithm(t *testing.T) {
	tree := buildTestTree(t, 2)
	proof, err := tree.AuditProof(0)
	require.NoError(t, err)

	fields := proofFields(t, proof)
	fields["algorithm"] = "md5"
	data, err := json.Marshal(fields)
	require.NoError(t, err)

	_, err = DecodeProof(JSON, data)
	require.Error(t, err)

	var unsupported *types.UnsupportedAlgorithmError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "md5", unsupported.Algorithm)
	assert.False(t, errors.Is(err, types.ErrProofFormat))
}

func TestTreeExportRoundTrip(t *testing.T) {
	tree := buildTestTree(t, 9)
	root, err := tree.Root()
	require.NoError(t, err)

	for _, c := range []Codec{JSON, CBOR} {
		t.Run(c.Format().String(), func(t *testing.T) {
			doc, err := NewTreeDocument(tree)
			require.NoError(t, err)
			assert.NotEmpty(t, doc.TreeID)
			assert.Equal(t, 9, doc.LeafCount)
			assert.Equal(t, root.Hex(), doc.RootHash)

			data, err := EncodeTree(c, doc)
			require.NoError(t, err)

			decoded, err := DecodeTree(c, data)
			require.NoError(t, err)
			assert.Equal(t, doc.TreeID, decoded.TreeID)
			assert.Equal(t, doc.Leaves, decoded.Leaves)
			assert.True(t, doc.CreatedAt.Equal(decoded.CreatedAt))

			rebuilt, err := RebuildTree(decoded)
			require.NoError(t, err)
			rebuiltRoot, err := rebuilt.Root()
			require.NoError(t, err)
			assert.Equal(t, root, rebuiltRoot)

			// proofs regenerated from the rebuilt tree verify against the original root
			for i := 0; i < rebuilt.Size(); i++ {
				proof, err := rebuilt.AuditProof(i)
				require.NoError(t, err)
				valid, err := proof.Verify(root)
				require.NoError(t, err)
				assert.True(t, valid)
			}
		})
	}
}

func TestRebuildTreeErrors(t *testing.T) {
	tree := buildTestTree(t, 3)

	t.Run("root mismatch", func(t *testing.T) {
		doc, err := NewTreeDocumentWithID(tree, "tree-1")
		require.NoError(t, err)
		doc.Leaves[0], doc.Leaves[1] = doc.Leaves[1], doc.Leaves[0]

		_, err = RebuildTree(doc)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRootMismatch))
	})

	t.Run("leaf count mismatch", func(t *testing.T) {
		doc, err := NewTreeDocumentWithID(tree, "tree-2")
		require.NoError(t, err)
		doc.LeafCount = 4

		_, err = RebuildTree(doc)
		require.Error(t, err)
	})

	t.Run("no leaves", func(t *testing.T) {
		doc, err := NewTreeDocumentWithID(tree, "tree-3")
		require.NoError(t, err)
		doc.Leaves = nil
		doc.LeafCount = 0

		_, err = RebuildTree(doc)
		assert.True(t, errors.Is(err, types.ErrEmptyTree))
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		doc, err := NewTreeDocumentWithID(tree, "tree-4")
		require.NoError(t, err)
		doc.Algorithm = "crc32"

		_, err = RebuildTree(doc)
		assert.True(t, errors.Is(err, types.ErrUnsupportedAlgorithm))
	})
}

func TestDecodeTreeErrors(t *testing.T) {
	tree := buildTestTree(t, 3)
	doc, err := NewTreeDocumentWithID(tree, "tree-1")
	require.NoError(t, err)
	valid, err := EncodeTree(JSON, doc)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(valid, &fields))

	mutated := func(mutate func(map[string]interface{})) []byte {
		copied := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		mutate(copied)
		data, err := json.Marshal(copied)
		require.NoError(t, err)
		return data
	}

	testCases := []struct {
		name        string
		data        []byte
		field       string
		unsupported bool
	}{
		{"empty data", nil, "", false},
		{"bad json", []byte(`{"tree_id":`), "", false},
		{"wrong type", mutated(func(f map[string]interface{}) { f["leaves"] = "abc" }), "", false},
		{"missing algorithm", mutated(func(f map[string]interface{}) { delete(f, "algorithm") }), "algorithm", false},
		{"leaf count mismatch", mutated(func(f map[string]interface{}) { f["leaf_count"] = 4 }), "leaf_count", false},
		{"unknown algorithm", mutated(func(f map[string]interface{}) { f["algorithm"] = "md5" }), "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeTree(JSON, tc.data)
			require.Error(t, err)

			if tc.unsupported {
				var unsupported *types.UnsupportedAlgorithmError
				require.True(t, errors.As(err, &unsupported), "expected UnsupportedAlgorithmError, got %v", err)
				assert.Equal(t, "md5", unsupported.Algorithm)
				assert.False(t, errors.Is(err, types.ErrProofFormat))
				return
			}

			var formatErr *types.ProofFormatError
			require.True(t, errors.As(err, &formatErr), "expected ProofFormatError, got %v", err)
			assert.Equal(t, tc.field, formatErr.Field)
		})
	}

	t.Run("valid", func(t *testing.T) {
		decoded, err := DecodeTree(JSON, valid)
		require.NoError(t, err)
		assert.Equal(t, doc.Leaves, decoded.Leaves)
	})
}

// largeTreeSize exceeds the default element limit of the CBOR decoder
const largeTreeSize = 131073

func TestCBORLargeTree(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a tree with more than 2^17 leaves")
	}

	hasher, err := hashing.NewHasher(hashing.Config{Algorithm: hashing.AlgorithmSHA256, Security: true, RawBytes: true})
	require.NoError(t, err)
	segments := make([][]byte, largeTreeSize)
	for i := range segments {
		segments[i] = []byte(fmt.Sprintf("%d", i))
	}
	tree, err := merkle.NewTree(hasher, segments)
	require.NoError(t, err)
	root, err := tree.Root()
	require.NoError(t, err)

	t.Run("tree export", func(t *testing.T) {
		doc, err := NewTreeDocument(tree)
		require.NoError(t, err)
		data, err := EncodeTree(CBOR, doc)
		require.NoError(t, err)

		decoded, err := DecodeTree(CBOR, data)
		require.NoError(t, err)
		assert.Equal(t, largeTreeSize, decoded.LeafCount)

		rebuilt, err := RebuildTree(decoded)
		require.NoError(t, err)
		rebuiltRoot, err := rebuilt.Root()
		require.NoError(t, err)
		assert.Equal(t, root, rebuiltRoot)
	})

	t.Run("proof set", func(t *testing.T) {
		proof, err := tree.AuditProof(largeTreeSize - 1)
		require.NoError(t, err)
		proofs := make([]*merkle.Proof, largeTreeSize)
		for i := range proofs {
			proofs[i] = proof
		}

		data, err := EncodeProofSet(CBOR, root, proofs)
		require.NoError(t, err)
		decodedRoot, decoded, err := DecodeProofSet(CBOR, data)
		require.NoError(t, err)
		assert.Equal(t, root, decodedRoot)
		require.Len(t, decoded, largeTreeSize)
		assert.Equal(t, proof, decoded[largeTreeSize-1])
	})
}

func TestProofSetRoundTrip(t *testing.T) {
	tree := buildTestTree(t, 5)
	root, err := tree.Root()
	require.NoError(t, err)

	var proofs []*merkle.Proof
	for i := 0; i < tree.Size(); i++ {
		p, err := tree.AuditProof(i)
		require.NoError(t, err)
		proofs = append(proofs, p)
	}

	for _, c := range []Codec{JSON, CBOR} {
		t.Run(c.Format().String(), func(t *testing.T) {
			data, err := EncodeProofSet(c, root, proofs)
			require.NoError(t, err)

			decodedRoot, decoded, err := DecodeProofSet(c, data)
			require.NoError(t, err)
			assert.Equal(t, root, decodedRoot)
			assert.Equal(t, proofs, decoded)
		})
	}
}

func TestForFormatAndPath(t *testing.T) {
	c, err := ForFormat("CBOR")
	require.NoError(t, err)
	assert.Equal(t, FormatCBOR, c.Format())

	c, err = ForFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, c.Format())

	_, err = ForFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, CBOR, ForPath("out/all_proofs.cbor"))
	assert.Equal(t, JSON, ForPath("out/all_proofs.json"))
	assert.Equal(t, JSON, ForPath("proof"))
}
