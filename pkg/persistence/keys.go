package persistence

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
)

// ErrClosed is returned by every operation on a closed store
var ErrClosed = errors.New("persistence layer is closed")

// ErrInvalidTreeID is returned when a tree ID cannot be used in a store key
var ErrInvalidTreeID = errors.New("invalid tree id")

// Key layout shared by the key-value backends
const (
	KeyPrefixTree        = "tree:"
	KeyPrefixProof       = "proof:"
	KeySchemaVersion     = "metadata:schema_version"
	CurrentSchemaVersion = "v1"
)

// ValidateTreeID rejects IDs that are empty or contain the key separator.
// A ':' in an ID would let ProofKeyPrefix of one tree match the proofs of
// another.
func ValidateTreeID(treeID string) error {
	if treeID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTreeID)
	}
	if strings.Contains(treeID, ":") {
		return fmt.Errorf("%w: %q contains ':'", ErrInvalidTreeID, treeID)
	}
	return nil
}

// TreeKey returns the key holding a tree export
func TreeKey(treeID string) string {
	return KeyPrefixTree + treeID
}

// ProofKeyPrefix returns the prefix shared by all proofs of a tree
func ProofKeyPrefix(treeID string) string {
	return fmt.Sprintf("%s%s:", KeyPrefixProof, treeID)
}

// ProofKey returns the key of one proof. Indices are zero padded so that
// lexicographic key order is leaf order.
func ProofKey(treeID string, index int) string {
	return fmt.Sprintf("%s%010d", ProofKeyPrefix(treeID), index)
}

// ValidateProofs checks that proofs belong to the tree described by doc
func ValidateProofs(doc *codec.TreeDocument, proofs []*merkle.Proof) error {
	if doc == nil {
		return fmt.Errorf("tree not found")
	}
	for i, p := range proofs {
		if p == nil {
			return fmt.Errorf("proof %d is nil", i)
		}
		if p.TreeSize != doc.LeafCount {
			return fmt.Errorf("proof %d is scoped to tree size %d, tree %s has %d leaves",
				i, p.TreeSize, doc.TreeID, doc.LeafCount)
		}
		if p.LeafIndex < 0 || p.LeafIndex >= doc.LeafCount {
			return fmt.Errorf("proof %d has leaf index %d out of range", i, p.LeafIndex)
		}
		if p.Hashing != doc.HashingConfig() {
			return fmt.Errorf("proof %d was made with %+v, tree %s uses %+v",
				i, p.Hashing, doc.TreeID, doc.HashingConfig())
		}
	}
	return nil
}

// SortTrees orders trees by creation time, then ID
func SortTrees(trees []*codec.TreeDocument) {
	sort.Slice(trees, func(i, j int) bool {
		if !trees[i].CreatedAt.Equal(trees[j].CreatedAt) {
			return trees[i].CreatedAt.Before(trees[j].CreatedAt)
		}
		return trees[i].TreeID < trees[j].TreeID
	})
}
