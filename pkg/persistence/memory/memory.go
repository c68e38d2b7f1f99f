package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
	"github.com/Layr-Labs/pruvi-go/pkg/persistence"
)

// MemoryPersistence is an in-memory implementation of IProofStore.
//
// All data is stored in memory and will be lost when the process exits.
// Records are kept in their serialized form, so callers never share state
// with the store.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Tree exports: treeID -> serialized TreeDocument
	trees map[string][]byte

	// Proofs: treeID -> leaf index -> serialized Proof
	proofs map[string]map[int][]byte

	closed bool
}

var _ persistence.IProofStore = (*MemoryPersistence)(nil)

// NewMemoryPersistence creates a new in-memory store
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		trees:  make(map[string][]byte),
		proofs: make(map[string]map[int][]byte),
	}
}

// SaveTree persists a tree export
func (m *MemoryPersistence) SaveTree(doc *codec.TreeDocument) error {
	if doc == nil {
		return fmt.Errorf("cannot save nil TreeDocument")
	}
	if err := persistence.ValidateTreeID(doc.TreeID); err != nil {
		return err
	}

	data, err := persistence.MarshalTree(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.trees[doc.TreeID] = data
	return nil
}

// LoadTree retrieves a tree export by ID
func (m *MemoryPersistence) LoadTree(treeID string) (*codec.TreeDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}
	return m.loadTreeLocked(treeID)
}

func (m *MemoryPersistence) loadTreeLocked(treeID string) (*codec.TreeDocument, error) {
	data, exists := m.trees[treeID]
	if !exists {
		return nil, nil
	}
	return persistence.UnmarshalTree(data)
}

// ListTrees returns all tree exports sorted by creation time
func (m *MemoryPersistence) ListTrees() ([]*codec.TreeDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	trees := make([]*codec.TreeDocument, 0, len(m.trees))
	for treeID, data := range m.trees {
		doc, err := persistence.UnmarshalTree(data)
		if err != nil {
			return nil, fmt.Errorf("tree %s: %w", treeID, err)
		}
		trees = append(trees, doc)
	}

	persistence.SortTrees(trees)
	return trees, nil
}

// DeleteTree removes a tree export and its proofs
func (m *MemoryPersistence) DeleteTree(treeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	delete(m.trees, treeID)
	delete(m.proofs, treeID)
	return nil
}

// SaveProofs stores proofs for a saved tree
func (m *MemoryPersistence) SaveProofs(treeID string, proofs []*merkle.Proof) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	doc, err := m.loadTreeLocked(treeID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("cannot save proofs: tree %s not found", treeID)
	}
	if err := persistence.ValidateProofs(doc, proofs); err != nil {
		return err
	}

	encoded := make(map[int][]byte, len(proofs))
	for _, p := range proofs {
		data, err := persistence.MarshalProof(p)
		if err != nil {
			return err
		}
		encoded[p.LeafIndex] = data
	}

	stored, exists := m.proofs[treeID]
	if !exists {
		stored = make(map[int][]byte, len(proofs))
		m.proofs[treeID] = stored
	}
	for index, data := range encoded {
		stored[index] = data
	}
	return nil
}

// LoadProof retrieves the proof for one leaf
func (m *MemoryPersistence) LoadProof(treeID string, index int) (*merkle.Proof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	data, exists := m.proofs[treeID][index]
	if !exists {
		return nil, nil
	}
	return persistence.UnmarshalProof(data)
}

// CountProofs returns the number of stored proofs for a tree
func (m *MemoryPersistence) CountProofs(treeID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, persistence.ErrClosed
	}
	return len(m.proofs[treeID]), nil
}

// Close marks the store closed and drops all data
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.trees = nil
	m.proofs = nil
	return nil
}

// HealthCheck verifies the store is open
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}
