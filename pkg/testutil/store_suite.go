package testutil

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/pruvi-go/pkg/persistence"
)

// RunProofStoreTests exercises the IProofStore contract against a backend.
// newStore must return a fresh, empty store; the suite closes it.
func RunProofStoreTests(t *testing.T, newStore func(t *testing.T) persistence.IProofStore) {
	t.Run("SaveAndLoadTree", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		tt := CreateTestTree(t, 5)
		require.NoError(t, store.SaveTree(tt.Document))

		loaded, err := store.LoadTree(tt.Document.TreeID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, tt.Document.RootHash, loaded.RootHash)
		assert.Equal(t, tt.Document.Leaves, loaded.Leaves)
		assert.True(t, tt.Document.CreatedAt.Equal(loaded.CreatedAt))
	})

	t.Run("LoadTree_NotFound", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadTree("does-not-exist")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveTree_Nil", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		err := store.SaveTree(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil")
	})

	t.Run("SaveTree_InvalidID", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		parent := CreateTestTree(t, 2)
		parent.Document.TreeID = "a"
		require.NoError(t, store.SaveTree(parent.Document))
		require.NoError(t, store.SaveProofs("a", parent.Proofs))

		// "a:x" would share the proof key prefix of tree "a"
		for _, id := range []string{"a:x", ":", ""} {
			child := CreateTestTree(t, 3)
			child.Document.TreeID = id
			err := store.SaveTree(child.Document)
			require.Error(t, err, "tree id %q", id)
			assert.True(t, errors.Is(err, persistence.ErrInvalidTreeID))
		}

		loaded, err := store.LoadTree("a:x")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		count, err := store.CountProofs("a")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("ListTrees", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		first := CreateTestTree(t, 2)
		second := CreateTestTree(t, 3)
		second.Document.CreatedAt = first.Document.CreatedAt.Add(1)

		// save out of order; listing sorts by creation time
		require.NoError(t, store.SaveTree(second.Document))
		require.NoError(t, store.SaveTree(first.Document))

		trees, err := store.ListTrees()
		require.NoError(t, err)

		ids := make([]string, 0)
		for _, tree := range trees {
			if tree.TreeID == first.Document.TreeID || tree.TreeID == second.Document.TreeID {
				ids = append(ids, tree.TreeID)
			}
		}
		assert.Equal(t, []string{first.Document.TreeID, second.Document.TreeID}, ids)
	})

	t.Run("SaveAndLoadProofs", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		tt := CreateTestTree(t, 6)
		require.NoError(t, store.SaveTree(tt.Document))
		require.NoError(t, store.SaveProofs(tt.Document.TreeID, tt.Proofs))

		count, err := store.CountProofs(tt.Document.TreeID)
		require.NoError(t, err)
		assert.Equal(t, 6, count)

		root, err := tt.Document.Root()
		require.NoError(t, err)
		for i := range tt.Proofs {
			loaded, err := store.LoadProof(tt.Document.TreeID, i)
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, tt.Proofs[i], loaded)

			valid, err := loaded.Verify(root)
			require.NoError(t, err)
			assert.True(t, valid)
		}

		missing, err := store.LoadProof(tt.Document.TreeID, 6)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("SaveProofs_UnknownTree", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		tt := CreateTestTree(t, 2)
		err := store.SaveProofs(tt.Document.TreeID, tt.Proofs)
		require.Error(t, err)
	})

	t.Run("SaveProofs_WrongTreeSize", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		small := CreateTestTree(t, 2)
		large := CreateTestTree(t, 4)
		require.NoError(t, store.SaveTree(small.Document))

		err := store.SaveProofs(small.Document.TreeID, large.Proofs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tree size")
	})

	t.Run("DeleteTree", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		tt := CreateTestTree(t, 3)
		require.NoError(t, store.SaveTree(tt.Document))
		require.NoError(t, store.SaveProofs(tt.Document.TreeID, tt.Proofs))

		require.NoError(t, store.DeleteTree(tt.Document.TreeID))

		loaded, err := store.LoadTree(tt.Document.TreeID)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		proof, err := store.LoadProof(tt.Document.TreeID, 0)
		require.NoError(t, err)
		assert.Nil(t, proof)

		count, err := store.CountProofs(tt.Document.TreeID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		// idempotent
		require.NoError(t, store.DeleteTree(tt.Document.TreeID))
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		trees := make([]*TestTree, 5)
		for i := range trees {
			trees[i] = CreateTestTree(t, i+1)
		}

		var wg sync.WaitGroup
		for _, tt := range trees {
			wg.Add(1)
			go func(tt *TestTree) {
				defer wg.Done()
				assert.NoError(t, store.SaveTree(tt.Document))
				assert.NoError(t, store.SaveProofs(tt.Document.TreeID, tt.Proofs))
				_, err := store.LoadProof(tt.Document.TreeID, 0)
				assert.NoError(t, err)
			}(tt)
		}
		wg.Wait()

		for _, tt := range trees {
			count, err := store.CountProofs(tt.Document.TreeID)
			require.NoError(t, err)
			assert.Equal(t, len(tt.Proofs), count)
		}
	})

	t.Run("HealthCheck", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		assert.NoError(t, store.HealthCheck())
	})

	t.Run("OperationsAfterClose", func(t *testing.T) {
		store := newStore(t)
		tt := CreateTestTree(t, 1)

		require.NoError(t, store.Close())
		// idempotent
		require.NoError(t, store.Close())

		assert.True(t, errors.Is(store.SaveTree(tt.Document), persistence.ErrClosed))
		_, err := store.LoadTree(tt.Document.TreeID)
		assert.True(t, errors.Is(err, persistence.ErrClosed))
		_, err = store.ListTrees()
		assert.True(t, errors.Is(err, persistence.ErrClosed))
		assert.True(t, errors.Is(store.SaveProofs(tt.Document.TreeID, tt.Proofs), persistence.ErrClosed))
		_, err = store.LoadProof(tt.Document.TreeID, 0)
		assert.True(t, errors.Is(err, persistence.ErrClosed))
		assert.True(t, errors.Is(store.DeleteTree(tt.Document.TreeID), persistence.ErrClosed))
		assert.True(t, errors.Is(store.HealthCheck(), persistence.ErrClosed))
	})
}
