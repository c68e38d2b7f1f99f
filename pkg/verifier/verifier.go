// Package verifier checks that a piece of content and its audit proof are
// consistent with a claimed root.
package verifier

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// VerificationResult is the outcome of a content verification
type VerificationResult struct {
	// Valid is true only if every step passed
	Valid bool

	// FailedStep names the first failing step when Valid is false
	FailedStep types.VerificationStep

	// Reason describes the failure
	Reason string

	// ContentHash is the leaf hash recomputed from the live content
	ContentHash types.Hash

	// ExpectedLeafHash is the leaf hash recorded in the proof
	ExpectedLeafHash types.Hash

	// ComputedRoot is the result of folding the proof path
	ComputedRoot types.Hash

	// ClaimedRoot is the root the caller asked to verify against
	ClaimedRoot types.Hash
}

// Err returns nil for a valid result and a *types.VerificationFailedError
// naming the failed step otherwise.
func (r *VerificationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &types.VerificationFailedError{Step: r.FailedStep, Reason: r.Reason}
}

// Verifier runs the content-hash and path-root steps
type Verifier struct {
	logger *zap.Logger
}

// New creates a verifier. A nil logger disables logging.
func New(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{logger: logger}
}

// VerifyFile reads the file at path and verifies it against proof and
// claimedRoot. I/O failures and malformed proofs are returned as errors; a
// well-formed proof that does not check out is reported in the result.
func (v *Verifier) VerifyFile(path string, proof *merkle.Proof, claimedRoot types.Hash) (*VerificationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	v.logger.Sugar().Debugw("Read content for verification", "path", path, "bytes", len(data))
	return v.VerifyBytes(data, proof, claimedRoot)
}

// VerifyBytes verifies content already held in memory
func (v *Verifier) VerifyBytes(data []byte, proof *merkle.Proof, claimedRoot types.Hash) (*VerificationResult, error) {
	if proof == nil {
		return nil, types.NewProofFormatError("", "proof is nil")
	}
	if len(claimedRoot) == 0 {
		return nil, fmt.Errorf("claimed root is empty")
	}

	hasher, err := hashing.NewHasher(proof.Hashing)
	if err != nil {
		return nil, err
	}
	if err := merkle.ValidateProof(hasher, proof); err != nil {
		return nil, err
	}

	sugar := v.logger.Sugar()
	result := &VerificationResult{
		ExpectedLeafHash: proof.LeafHash.Clone(),
		ClaimedRoot:      claimedRoot.Clone(),
	}

	// step 1: the live bytes must hash to the proven leaf
	result.ContentHash = hasher.LeafHash(data)
	if !result.ContentHash.Equal(proof.LeafHash) {
		result.FailedStep = types.StepContentHash
		result.Reason = fmt.Sprintf("content hashes to %s, proof carries %s", result.ContentHash.Hex(), proof.LeafHash.Hex())
		sugar.Infow("Content hash mismatch",
			"proofIndex", proof.LeafIndex,
			"contentHash", result.ContentHash.Hex(),
			"leafHash", proof.LeafHash.Hex(),
		)
		return result, nil
	}
	sugar.Debugw("Content hash matches proof", "proofIndex", proof.LeafIndex)

	// step 2: the path must have the shape implied by (index, size) and fold to the root
	if !proof.MatchesShape() {
		result.FailedStep = types.StepPathRoot
		result.Reason = fmt.Sprintf("path does not match the shape of leaf %d in a tree of %d", proof.LeafIndex, proof.TreeSize)
		sugar.Infow("Proof path shape mismatch", "proofIndex", proof.LeafIndex, "treeSize", proof.TreeSize)
		return result, nil
	}

	result.ComputedRoot = merkle.RootFromPath(hasher, proof.LeafHash, proof.Path)
	if !result.ComputedRoot.Equal(claimedRoot) {
		result.FailedStep = types.StepPathRoot
		result.Reason = fmt.Sprintf("path folds to %s, claimed root is %s", result.ComputedRoot.Hex(), claimedRoot.Hex())
		sugar.Infow("Proof does not fold to claimed root",
			"proofIndex", proof.LeafIndex,
			"computedRoot", result.ComputedRoot.Hex(),
			"claimedRoot", claimedRoot.Hex(),
		)
		return result, nil
	}

	result.Valid = true
	sugar.Infow("Proof verified", "proofIndex", proof.LeafIndex, "treeSize", proof.TreeSize, "root", claimedRoot.Hex())
	return result, nil
}

// VerifyFile is a convenience wrapper using a verifier without logging
func VerifyFile(path string, proof *merkle.Proof, claimedRoot types.Hash) (*VerificationResult, error) {
	return New(nil).VerifyFile(path, proof, claimedRoot)
}

// VerifyBytes is a convenience wrapper using a verifier without logging
func VerifyBytes(data []byte, proof *merkle.Proof, claimedRoot types.Hash) (*VerificationResult, error) {
	return New(nil).VerifyBytes(data, proof, claimedRoot)
}
