package merkle

import (
	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// Proof is an audit proof that the leaf at LeafIndex was included in the
// tree when it had exactly TreeSize leaves. It is only valid against the
// root of that size.
type Proof struct {
	// LeafIndex is the 0-based position of the proven leaf
	LeafIndex int

	// LeafHash is the hash of the proven segment
	LeafHash types.Hash

	// Path holds the sibling hashes ordered leaf-to-root
	Path []types.ProofStep

	// TreeSize is the leaf count at generation time
	TreeSize int

	// Hashing is the hasher configuration the tree was built with
	Hashing hashing.Config
}

// Verify folds the proof against root using the hasher recorded in the proof
func (p *Proof) Verify(root types.Hash) (bool, error) {
	if p == nil {
		return false, types.NewProofFormatError("", "proof is nil")
	}
	hasher, err := hashing.NewHasher(p.Hashing)
	if err != nil {
		return false, err
	}
	return VerifyProof(hasher, p.LeafHash, p, root)
}

// subtree is one entry of the append stack: the root of a perfect subtree
// covering Size leaves.
type subtree struct {
	size int
	hash types.Hash
}

// rangeKey addresses MTH over leaves[start : start+length]
type rangeKey struct {
	start  int
	length int
}
