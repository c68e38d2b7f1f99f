package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
	"github.com/Layr-Labs/pruvi-go/pkg/persistence"
)

// BadgerPersistence is a durable, disk-based IProofStore backed by Badger.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.IProofStore = (*BadgerPersistence)(nil)

// NewBadgerPersistence opens (or creates) a Badger database at dataPath.
// Writes are synced to disk and a background goroutine runs value log GC.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve absolute path")
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open badger database at %s", absPath)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger proof store initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(persistence.KeySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(persistence.KeySchemaVersion), []byte(persistence.CurrentSchemaVersion))
		}
		if err != nil {
			return errors.Wrap(err, "failed to read schema version")
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return errors.Wrap(err, "failed to read schema version value")
		}

		if existingVersion != persistence.CurrentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, persistence.CurrentSchemaVersion)
		}
		return nil
	})
}

// runGC runs periodic value log garbage collection
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// get copies the value stored at key, or returns nil if absent
func get(txn *badgerdb.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if err == badgerdb.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// SaveTree persists a tree export
func (b *BadgerPersistence) SaveTree(doc *codec.TreeDocument) error {
	if doc == nil {
		return fmt.Errorf("cannot save nil TreeDocument")
	}
	if err := persistence.ValidateTreeID(doc.TreeID); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalTree(doc)
	if err != nil {
		return err
	}

	err = b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(persistence.TreeKey(doc.TreeID)), data)
	})
	if err != nil {
		return errors.Wrapf(err, "failed to save tree %s", doc.TreeID)
	}
	return nil
}

// LoadTree retrieves a tree export
func (b *BadgerPersistence) LoadTree(treeID string) (*codec.TreeDocument, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		data, err = get(txn, persistence.TreeKey(treeID))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tree %s", treeID)
	}
	if data == nil {
		return nil, nil
	}

	return persistence.UnmarshalTree(data)
}

// ListTrees returns all tree exports sorted by creation time
func (b *BadgerPersistence) ListTrees() ([]*codec.TreeDocument, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	trees := make([]*codec.TreeDocument, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(persistence.KeyPrefixTree)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			data, err := item.ValueCopy(nil)
			if err != nil {
				return errors.Wrap(err, "failed to read value")
			}

			doc, err := persistence.UnmarshalTree(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal TreeDocument, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}
			trees = append(trees, doc)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list trees")
	}

	persistence.SortTrees(trees)
	return trees, nil
}

// DeleteTree removes a tree export and its proofs in one transaction
func (b *BadgerPersistence) DeleteTree(treeID string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	keys, err := b.proofKeys(treeID)
	if err != nil {
		return err
	}
	keys = append(keys, []byte(persistence.TreeKey(treeID)))

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return errors.Wrapf(err, "failed to delete tree %s", treeID)
		}
	}
	if err := wb.Flush(); err != nil {
		return errors.Wrapf(err, "failed to delete tree %s", treeID)
	}
	return nil
}

// proofKeys lists the keys of every proof stored for treeID
func (b *BadgerPersistence) proofKeys(treeID string) ([][]byte, error) {
	keys := make([][]byte, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(persistence.ProofKeyPrefix(treeID))
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list proofs of tree %s", treeID)
	}
	return keys, nil
}

// SaveProofs stores proofs for a saved tree. Large batches are written with
// a WriteBatch so they are not bounded by the transaction size limit.
func (b *BadgerPersistence) SaveProofs(treeID string, proofs []*merkle.Proof) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	var treeData []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		treeData, err = get(txn, persistence.TreeKey(treeID))
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "failed to load tree %s", treeID)
	}
	if treeData == nil {
		return fmt.Errorf("cannot save proofs: tree %s not found", treeID)
	}
	doc, err := persistence.UnmarshalTree(treeData)
	if err != nil {
		return err
	}
	if err := persistence.ValidateProofs(doc, proofs); err != nil {
		return err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, p := range proofs {
		data, err := persistence.MarshalProof(p)
		if err != nil {
			return err
		}
		if err := wb.Set([]byte(persistence.ProofKey(treeID, p.LeafIndex)), data); err != nil {
			return errors.Wrapf(err, "failed to stage proof %d of tree %s", p.LeafIndex, treeID)
		}
	}
	if err := wb.Flush(); err != nil {
		return errors.Wrapf(err, "failed to save proofs of tree %s", treeID)
	}

	b.logger.Sugar().Debugw("Saved proofs", "treeId", treeID, "count", len(proofs))
	return nil
}

// LoadProof retrieves the proof for one leaf
func (b *BadgerPersistence) LoadProof(treeID string, index int) (*merkle.Proof, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		data, err = get(txn, persistence.ProofKey(treeID, index))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load proof %d of tree %s", index, treeID)
	}
	if data == nil {
		return nil, nil
	}

	return persistence.UnmarshalProof(data)
}

// CountProofs returns the number of stored proofs for a tree
func (b *BadgerPersistence) CountProofs(treeID string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, persistence.ErrClosed
	}

	keys, err := b.proofKeys(treeID)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Close shuts down the store
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close badger database")
	}

	b.logger.Sugar().Info("Badger proof store closed")
	return nil
}

// HealthCheck verifies the database is readable and initialized
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(persistence.KeySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
