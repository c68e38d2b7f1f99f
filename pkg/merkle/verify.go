package merkle

import (
	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// VerifyProof folds proof.Path starting from targetLeafHash and reports
// whether the result equals claimedRoot byte for byte.
//
// A structurally invalid proof fails with *types.ProofFormatError before any
// hashing. A well-formed proof that does not fold to the root returns
// (false, nil).
func VerifyProof(hasher *hashing.Hasher, targetLeafHash types.Hash, proof *Proof, claimedRoot types.Hash) (bool, error) {
	if err := ValidateProof(hasher, proof); err != nil {
		return false, err
	}
	if len(targetLeafHash) != hasher.Size() {
		return false, types.NewProofFormatError("leaf_hash", "expected %d bytes, got %d", hasher.Size(), len(targetLeafHash))
	}

	computed := RootFromPath(hasher, targetLeafHash, proof.Path)
	return computed.Equal(claimedRoot), nil
}

// RootFromPath folds path over leaf. An empty path yields the leaf itself.
// Directions are assumed valid; callers validate first.
func RootFromPath(hasher *hashing.Hasher, leaf types.Hash, path []types.ProofStep) types.Hash {
	running := leaf
	for _, step := range path {
		if step.Direction == types.DirectionLeft {
			running = hasher.NodeHash(step.Hash, running)
		} else {
			running = hasher.NodeHash(running, step.Hash)
		}
	}
	return running.Clone()
}

// ValidateProof checks the structure of a proof against the hasher that will
// fold it.
func ValidateProof(hasher *hashing.Hasher, proof *Proof) error {
	if proof == nil {
		return types.NewProofFormatError("", "proof is nil")
	}
	if proof.Path == nil {
		return types.NewProofFormatError("proof_path", "missing")
	}
	if proof.TreeSize < 1 {
		return types.NewProofFormatError("tree_size", "must be at least 1, got %d", proof.TreeSize)
	}
	if proof.LeafIndex < 0 || proof.LeafIndex >= proof.TreeSize {
		return types.NewProofFormatError("proof_index", "%d out of range for tree size %d", proof.LeafIndex, proof.TreeSize)
	}

	// a proof made under one configuration is never folded under another
	if proof.Hashing.Algorithm != "" {
		if proof.Hashing.Algorithm != hasher.Algorithm() {
			return types.NewProofFormatError("algorithm", "proof uses %s, verifier uses %s", proof.Hashing.Algorithm, hasher.Algorithm())
		}
		if proof.Hashing.Security != hasher.Config().Security {
			return types.NewProofFormatError("security", "proof has security=%t, verifier has security=%t", proof.Hashing.Security, hasher.Config().Security)
		}
	}

	for i, step := range proof.Path {
		if !step.Direction.Valid() {
			return types.NewProofFormatError("proof_path", "step %d: unknown direction %q", i, step.Direction)
		}
		if len(step.Hash) != hasher.Size() {
			return types.NewProofFormatError("proof_path", "step %d: expected %d byte hash, got %d", i, hasher.Size(), len(step.Hash))
		}
	}
	return nil
}

// MatchesShape reports whether the proof's directions are exactly those an
// honest proof for (LeafIndex, TreeSize) would carry.
func (p *Proof) MatchesShape() bool {
	shape, err := ExpectedPathShape(p.LeafIndex, p.TreeSize)
	if err != nil || len(shape) != len(p.Path) {
		return false
	}
	for i, d := range shape {
		if p.Path[i].Direction != d {
			return false
		}
	}
	return true
}
