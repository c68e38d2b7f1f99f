package merkle

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// Tree is an append-only Merkle tree over an ordered sequence of leaf hashes.
//
// The root follows the split-at-largest-power-of-two rule:
//
//	MTH([h])      = h
//	MTH(h[0..n])  = node(MTH(h[0..k]), MTH(h[k..n]))   k = largest power of two < n
//
// Appends maintain a stack of perfect subtree roots tagged by size, so the
// current root is available in O(log n) without rehashing. Reads are safe
// for concurrent use; appends are serialized against readers.
type Tree struct {
	mu     sync.RWMutex
	hasher *hashing.Hasher
	leaves []types.Hash
	stack  []subtree
	cache  *rangeCache
}

// New returns an empty append-only tree. Root fails until a leaf is appended.
func New(hasher *hashing.Hasher) *Tree {
	return &Tree{
		hasher: hasher,
		leaves: make([]types.Hash, 0),
		stack:  make([]subtree, 0),
		cache:  newRangeCache(),
	}
}

// NewTree hashes each segment into a leaf and builds the tree.
// Zero segments fail with *types.EmptyTreeError.
func NewTree(hasher *hashing.Hasher, segments [][]byte) (*Tree, error) {
	if len(segments) == 0 {
		return nil, &types.EmptyTreeError{}
	}

	t := New(hasher)
	for _, segment := range segments {
		t.appendLocked(hasher.LeafHash(segment))
	}
	return t, nil
}

// NewTreeFromLeaves builds a tree over precomputed leaf hashes
func NewTreeFromLeaves(hasher *hashing.Hasher, leaves []types.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, &types.EmptyTreeError{}
	}

	t := New(hasher)
	for i, leaf := range leaves {
		if len(leaf) != hasher.Size() {
			return nil, fmt.Errorf("leaf %d has %d bytes, %s digests are %d bytes",
				i, len(leaf), hasher.Algorithm(), hasher.Size())
		}
		t.appendLocked(leaf.Clone())
	}
	return t, nil
}

// Hasher returns the hasher the tree was built with
func (t *Tree) Hasher() *hashing.Hasher {
	return t.hasher
}

// Append hashes segment and appends it as the next leaf.
// It returns the new leaf's index.
func (t *Tree) Append(segment []byte) int {
	leaf := t.hasher.LeafHash(segment)

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(leaf)
}

// AppendLeafHash appends a precomputed leaf hash
func (t *Tree) AppendLeafHash(leaf types.Hash) (int, error) {
	if len(leaf) != t.hasher.Size() {
		return 0, fmt.Errorf("leaf has %d bytes, %s digests are %d bytes",
			len(leaf), t.hasher.Algorithm(), t.hasher.Size())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(leaf.Clone()), nil
}

// appendLocked pushes a singleton and merges the top two stack entries
// while their sizes are equal. Caller holds t.mu or owns t exclusively.
func (t *Tree) appendLocked(leaf types.Hash) int {
	index := len(t.leaves)
	t.leaves = append(t.leaves, leaf)
	t.stack = append(t.stack, subtree{size: 1, hash: leaf})

	for len(t.stack) >= 2 {
		top := t.stack[len(t.stack)-1]
		below := t.stack[len(t.stack)-2]
		if top.size != below.size {
			break
		}
		merged := subtree{size: top.size * 2, hash: t.hasher.NodeHash(below.hash, top.hash)}
		t.stack = t.stack[:len(t.stack)-2]
		t.stack = append(t.stack, merged)

		// the merged subtree is perfect and starts where it ends minus its size
		t.cache.put(rangeKey{start: len(t.leaves) - merged.size, length: merged.size}, merged.hash)
	}
	return index
}

// Size returns the current number of leaves
func (t *Tree) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leaves)
}

// Leaf returns the leaf hash at index
func (t *Tree) Leaf(index int) (types.Hash, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.leaves) {
		return nil, fmt.Errorf("%w: index %d, tree has %d leaves", types.ErrIndexOutOfRange, index, len(t.leaves))
	}
	return t.leaves[index].Clone(), nil
}

// Leaves returns a copy of the leaf hash sequence
func (t *Tree) Leaves() []types.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Hash, len(t.leaves))
	for i, leaf := range t.leaves {
		out[i] = leaf.Clone()
	}
	return out
}

// Root returns the root over all current leaves, folding the subtree stack
// from the right.
func (t *Tree) Root() (types.Hash, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.stack) == 0 {
		return nil, &types.EmptyTreeError{}
	}
	acc := t.stack[len(t.stack)-1].hash
	for i := len(t.stack) - 2; i >= 0; i-- {
		acc = t.hasher.NodeHash(t.stack[i].hash, acc)
	}
	return acc.Clone(), nil
}

// RootAt returns the root the tree had when it held exactly size leaves
func (t *Tree) RootAt(size int) (types.Hash, error) {
	s, err := t.SnapshotAt(size)
	if err != nil {
		return nil, err
	}
	return s.Root(), nil
}

// Snapshot returns a fixed-size read-only view over the current leaves
func (t *Tree) Snapshot() (*Snapshot, error) {
	t.mu.RLock()
	size := len(t.leaves)
	t.mu.RUnlock()
	return t.SnapshotAt(size)
}

// SnapshotAt returns a read-only view over the first size leaves. Later
// appends never affect the view.
func (t *Tree) SnapshotAt(size int) (*Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if size == 0 && len(t.leaves) == 0 {
		return nil, &types.EmptyTreeError{}
	}
	if size < 1 || size > len(t.leaves) {
		return nil, fmt.Errorf("%w: requested size %d, tree has %d leaves", types.ErrInvalidSize, size, len(t.leaves))
	}

	return &Snapshot{
		hasher: t.hasher,
		// existing elements are never mutated, so the slice header is a stable view
		leaves: t.leaves[:size:size],
		cache:  t.cache,
	}, nil
}

// AuditProof returns the proof for index against the current size
func (t *Tree) AuditProof(index int) (*Proof, error) {
	s, err := t.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.AuditProof(index)
}

// AuditProofAt returns the proof for index against a historical size
func (t *Tree) AuditProofAt(index int, size int) (*Proof, error) {
	s, err := t.SnapshotAt(size)
	if err != nil {
		return nil, err
	}
	return s.AuditProof(index)
}

// Snapshot is an immutable view of a tree at a fixed size
type Snapshot struct {
	hasher *hashing.Hasher
	leaves []types.Hash
	cache  *rangeCache
}

// Size returns the number of leaves in the view
func (s *Snapshot) Size() int {
	return len(s.leaves)
}

// Hasher returns the hasher of the underlying tree
func (s *Snapshot) Hasher() *hashing.Hasher {
	return s.hasher
}

// Root returns MTH over the snapshot's leaves
func (s *Snapshot) Root() types.Hash {
	return s.mth(0, len(s.leaves)).Clone()
}

// mth computes MTH(leaves[start : start+length]) with memoization.
// length must be >= 1.
func (s *Snapshot) mth(start, length int) types.Hash {
	if length == 1 {
		return s.leaves[start]
	}

	key := rangeKey{start: start, length: length}
	if h, ok := s.cache.get(key); ok {
		return h
	}

	k := largestPowerOfTwoLessThan(length)
	h := s.hasher.NodeHash(s.mth(start, k), s.mth(start+k, length-k))
	s.cache.put(key, h)
	return h
}

// largestPowerOfTwoLessThan returns the largest power of two strictly below n (n > 1)
func largestPowerOfTwoLessThan(n int) int {
	k := 1
	for k<<1 < n {
		k <<= 1
	}
	return k
}
