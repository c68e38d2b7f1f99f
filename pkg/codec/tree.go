package codec

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// ErrRootMismatch is returned when a rebuilt tree does not reproduce the
// root recorded in its export.
var ErrRootMismatch = errors.New("rebuilt root does not match recorded root")

// TreeDocument is the export of a whole tree: its configuration, root and
// every leaf hash in index order, enough to rebuild it and regenerate any
// proof.
type TreeDocument struct {
	TreeID    string    `json:"tree_id" cbor:"tree_id"`
	Algorithm string    `json:"algorithm" cbor:"algorithm"`
	Security  bool      `json:"security" cbor:"security"`
	RawBytes  bool      `json:"raw_bytes" cbor:"raw_bytes"`
	LeafCount int       `json:"leaf_count" cbor:"leaf_count"`
	RootHash  string    `json:"root_hash" cbor:"root_hash"`
	Leaves    []string  `json:"leaves" cbor:"leaves"`
	CreatedAt time.Time `json:"created_at" cbor:"created_at"`
}

// NewTreeDocument exports tree under a fresh random tree ID
func NewTreeDocument(tree *merkle.Tree) (*TreeDocument, error) {
	return NewTreeDocumentWithID(tree, uuid.New().String())
}

// NewTreeDocumentWithID exports tree under the given ID
func NewTreeDocumentWithID(tree *merkle.Tree, treeID string) (*TreeDocument, error) {
	if tree == nil {
		return nil, fmt.Errorf("cannot export nil tree")
	}

	snapshot, err := tree.Snapshot()
	if err != nil {
		return nil, err
	}

	leaves := tree.Leaves()[:snapshot.Size()]
	encoded := make([]string, len(leaves))
	for i, leaf := range leaves {
		encoded[i] = leaf.Hex()
	}

	cfg := tree.Hasher().Config()
	return &TreeDocument{
		TreeID:    treeID,
		Algorithm: cfg.Algorithm,
		Security:  cfg.Security,
		RawBytes:  cfg.RawBytes,
		LeafCount: snapshot.Size(),
		RootHash:  snapshot.Root().Hex(),
		Leaves:    encoded,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// HashingConfig returns the hasher configuration recorded in the export
func (d *TreeDocument) HashingConfig() hashing.Config {
	return hashing.Config{Algorithm: d.Algorithm, Security: d.Security, RawBytes: d.RawBytes}
}

// Root decodes the recorded root hash
func (d *TreeDocument) Root() (types.Hash, error) {
	return types.HashFromHex(d.RootHash)
}

// RebuildTree reconstructs the tree from its leaves and checks that it
// reproduces the recorded root.
func RebuildTree(d *TreeDocument) (*merkle.Tree, error) {
	if d == nil {
		return nil, fmt.Errorf("cannot rebuild tree from nil document")
	}

	hasher, err := hashing.NewHasher(d.HashingConfig())
	if err != nil {
		return nil, err
	}
	if len(d.Leaves) == 0 {
		return nil, &types.EmptyTreeError{}
	}
	if len(d.Leaves) != d.LeafCount {
		return nil, fmt.Errorf("tree %s: leaf_count is %d but %d leaves are listed", d.TreeID, d.LeafCount, len(d.Leaves))
	}

	leaves := make([]types.Hash, len(d.Leaves))
	for i, s := range d.Leaves {
		leaf, err := decodeHash(fmt.Sprintf("leaves[%d]", i), s, hasher.Size())
		if err != nil {
			return nil, err
		}
		leaves[i] = leaf
	}

	tree, err := merkle.NewTreeFromLeaves(hasher, leaves)
	if err != nil {
		return nil, err
	}

	recorded, err := d.Root()
	if err != nil {
		return nil, fmt.Errorf("tree %s: invalid root_hash: %w", d.TreeID, err)
	}
	rebuilt, err := tree.Root()
	if err != nil {
		return nil, err
	}
	if !rebuilt.Equal(recorded) {
		return nil, fmt.Errorf("%w: tree %s recorded %s, rebuilt %s", ErrRootMismatch, d.TreeID, recorded.Hex(), rebuilt.Hex())
	}
	return tree, nil
}

// EncodeTree serializes a tree export
func EncodeTree(c Codec, d *TreeDocument) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("cannot marshal nil TreeDocument")
	}
	data, err := c.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tree to %s: %w", c.Format(), err)
	}
	return data, nil
}

// DecodeTree parses a tree export and checks its structure. It does not
// rebuild the tree.
func DecodeTree(c Codec, data []byte) (*TreeDocument, error) {
	if len(data) == 0 {
		return nil, types.NewProofFormatError("", "cannot unmarshal empty data")
	}

	var d TreeDocument
	if err := c.Unmarshal(data, &d); err != nil {
		return nil, types.NewProofFormatError("", "invalid %s tree document: %v", c.Format(), err)
	}
	if d.Algorithm == "" {
		return nil, types.NewProofFormatError("algorithm", "missing")
	}
	if _, err := hashing.LookupAlgorithm(d.Algorithm); err != nil {
		return nil, err
	}
	if d.LeafCount != len(d.Leaves) {
		return nil, types.NewProofFormatError("leaf_count", "is %d but %d leaves are listed", d.LeafCount, len(d.Leaves))
	}
	return &d, nil
}
