package merkle

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// AuditProof creates the audit proof for the leaf at index.
// The path is ordered leaf-to-root and is empty for a single-leaf tree.
func (s *Snapshot) AuditProof(index int) (*Proof, error) {
	if index < 0 || index >= len(s.leaves) {
		return nil, fmt.Errorf("%w: index %d, tree has %d leaves", types.ErrIndexOutOfRange, index, len(s.leaves))
	}

	return &Proof{
		LeafIndex: index,
		LeafHash:  s.leaves[index].Clone(),
		Path:      s.path(index, 0, len(s.leaves)),
		TreeSize:  len(s.leaves),
		Hashing:   s.hasher.Config(),
	}, nil
}

// path computes PATH(m, leaves[start : start+n])
func (s *Snapshot) path(m, start, n int) []types.ProofStep {
	if n == 1 {
		return make([]types.ProofStep, 0)
	}

	k := largestPowerOfTwoLessThan(n)
	if m < k {
		return append(s.path(m, start, k), types.ProofStep{
			Direction: types.DirectionRight,
			Hash:      s.mth(start+k, n-k).Clone(),
		})
	}
	return append(s.path(m-k, start+k, n-k), types.ProofStep{
		Direction: types.DirectionLeft,
		Hash:      s.mth(start, k).Clone(),
	})
}

// AuditProofs generates one proof per leaf, in leaf order. Subtree roots are
// shared through the range cache, and the work is spread over at most
// workers goroutines (GOMAXPROCS when workers <= 0).
func (s *Snapshot) AuditProofs(ctx context.Context, workers int) ([]*Proof, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	proofs := make([]*Proof, len(s.leaves))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range s.leaves {
		index := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			proof, err := s.AuditProof(index)
			if err != nil {
				return err
			}
			proofs[index] = proof
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to generate audit proofs: %w", err)
	}
	return proofs, nil
}

// AuditProofs generates a proof for every current leaf
func (t *Tree) AuditProofs(ctx context.Context, workers int) ([]*Proof, error) {
	s, err := t.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.AuditProofs(ctx, workers)
}

// ExpectedPathShape returns the direction sequence an audit path for index
// must have in a tree of size leaves. It binds a proof's recorded index to
// the shape of its path.
func ExpectedPathShape(index int, size int) ([]types.Direction, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidSize, size)
	}
	if index < 0 || index >= size {
		return nil, fmt.Errorf("%w: index %d, tree has %d leaves", types.ErrIndexOutOfRange, index, size)
	}

	// walk root-to-leaf, then reverse into leaf-to-root order
	shape := make([]types.Direction, 0)
	m, n := index, size
	for n > 1 {
		k := largestPowerOfTwoLessThan(n)
		if m < k {
			shape = append(shape, types.DirectionRight)
			n = k
		} else {
			shape = append(shape, types.DirectionLeft)
			m -= k
			n -= k
		}
	}
	for i, j := 0, len(shape)-1; i < j; i, j = i+1, j-1 {
		shape[i], shape[j] = shape[j], shape[i]
	}
	return shape, nil
}
