package merkle

import (
	"fmt"

	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// ConsistencyProof proves that the tree of fromSize leaves is a prefix of
// the tree of toSize leaves (RFC 6962 section 2.1.2). An auditor holding a
// size-scoped audit proof and its historical root can use it to tie that
// root to a later one.
func (t *Tree) ConsistencyProof(fromSize int, toSize int) ([]types.Hash, error) {
	if fromSize < 1 || fromSize > toSize {
		return nil, fmt.Errorf("%w: from %d to %d", types.ErrInvalidSize, fromSize, toSize)
	}
	s, err := t.SnapshotAt(toSize)
	if err != nil {
		return nil, err
	}
	if fromSize == toSize {
		return make([]types.Hash, 0), nil
	}
	return s.subproof(fromSize, 0, toSize, true), nil
}

// subproof computes SUBPROOF(m, leaves[start : start+n], b)
func (s *Snapshot) subproof(m, start, n int, complete bool) []types.Hash {
	if m == n {
		if complete {
			return make([]types.Hash, 0)
		}
		return []types.Hash{s.mth(start, n).Clone()}
	}

	k := largestPowerOfTwoLessThan(n)
	if m <= k {
		return append(s.subproof(m, start, k, complete), s.mth(start+k, n-k).Clone())
	}
	return append(s.subproof(m-k, start+k, n-k, false), s.mth(start, k).Clone())
}

// VerifyConsistency checks a consistency proof between oldRoot (fromSize
// leaves) and newRoot (toSize leaves).
func VerifyConsistency(hasher *hashing.Hasher, oldRoot, newRoot types.Hash, fromSize, toSize int, path []types.Hash) (bool, error) {
	if fromSize < 1 || fromSize > toSize {
		return false, fmt.Errorf("%w: from %d to %d", types.ErrInvalidSize, fromSize, toSize)
	}
	if fromSize == toSize {
		return len(path) == 0 && oldRoot.Equal(newRoot), nil
	}
	if len(path) == 0 {
		return false, nil
	}
	for i, h := range path {
		if len(h) != hasher.Size() {
			return false, types.NewProofFormatError("consistency_path", "step %d: expected %d byte hash, got %d", i, hasher.Size(), len(h))
		}
	}

	v := consistencyVerifier{hasher: hasher, path: path, oldRoot: oldRoot}
	oldCandidate, newCandidate, ok := v.walk(fromSize, toSize, true)
	if !ok || v.used != len(path) {
		return false, nil
	}
	return oldCandidate.Equal(oldRoot) && newCandidate.Equal(newRoot), nil
}

type consistencyVerifier struct {
	hasher  *hashing.Hasher
	path    []types.Hash
	oldRoot types.Hash
	used    int
}

// walk mirrors subproof and rebuilds both roots from the consumed path.
// ok is false when the path is too short.
func (v *consistencyVerifier) walk(m, n int, complete bool) (types.Hash, types.Hash, bool) {
	if m == n {
		if complete {
			return v.oldRoot, v.oldRoot, true
		}
		h, ok := v.next()
		return h, h, ok
	}

	k := largestPowerOfTwoLessThan(n)
	if m <= k {
		oldLeft, newLeft, ok := v.walk(m, k, complete)
		if !ok {
			return nil, nil, false
		}
		right, ok := v.next()
		if !ok {
			return nil, nil, false
		}
		return oldLeft, v.hasher.NodeHash(newLeft, right), true
	}

	oldRight, newRight, ok := v.walk(m-k, n-k, false)
	if !ok {
		return nil, nil, false
	}
	left, ok := v.next()
	if !ok {
		return nil, nil, false
	}
	return v.hasher.NodeHash(left, oldRight), v.hasher.NodeHash(left, newRight), true
}

func (v *consistencyVerifier) next() (types.Hash, bool) {
	if v.used >= len(v.path) {
		return nil, false
	}
	h := v.path[v.used]
	v.used++
	return h, true
}
