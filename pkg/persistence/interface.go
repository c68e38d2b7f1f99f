package persistence

import (
	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
)

// IProofStore persists tree exports and the audit proofs generated for them.
// All implementations must be thread-safe.
//
// The interface supports:
// - Tree export management (save, load, list, delete)
// - Proof storage keyed by (tree ID, leaf index)
// - Lifecycle management (close, health check)
//
// Segments themselves are never stored, only their hashes and proofs.
type IProofStore interface {
	// Tree Management

	// SaveTree persists a tree export under its TreeID.
	// Overwrites an existing export with the same ID.
	SaveTree(doc *codec.TreeDocument) error

	// LoadTree retrieves a tree export by ID.
	// Returns nil if the tree doesn't exist, error only on storage failure.
	LoadTree(treeID string) (*codec.TreeDocument, error)

	// ListTrees returns all stored tree exports sorted by creation time (ascending).
	// Returns empty slice if no trees exist, error only on storage failure.
	ListTrees() ([]*codec.TreeDocument, error)

	// DeleteTree removes a tree export and every proof stored for it.
	// Idempotent - returns nil if the tree doesn't exist.
	DeleteTree(treeID string) error

	// Proof Management

	// SaveProofs stores proofs for a tree that was saved first.
	// Every proof must be scoped to the tree's leaf count; see ValidateProofs.
	// Existing proofs at the same indices are overwritten.
	SaveProofs(treeID string, proofs []*merkle.Proof) error

	// LoadProof retrieves the proof for one leaf.
	// Returns nil if no proof is stored, error only on storage failure.
	LoadProof(treeID string, index int) (*merkle.Proof, error)

	// CountProofs returns how many proofs are stored for a tree
	CountProofs(treeID string) (int, error)

	// Lifecycle Management

	// Close cleanly shuts down the store.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return ErrClosed.
	Close() error

	// HealthCheck verifies the store is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
