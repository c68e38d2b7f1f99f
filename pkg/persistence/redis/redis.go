package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
	"github.com/Layr-Labs/pruvi-go/pkg/persistence"
)

const (
	// namespace is prepended to every key after the optional custom prefix
	namespace = "pruvi:"

	// keyPrefixProofs holds one hash per tree: field = leaf index, value = proof
	keyPrefixProofs = "proofs:"

	// keySetTrees indexes tree IDs (Redis doesn't support prefix iteration natively)
	keySetTrees = "trees:index"

	// proofBatchSize bounds the fields written per HSET
	proofBatchSize = 1000
)

// RedisPersistence is an IProofStore backed by Redis, suitable for sharing
// proofs between processes.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.IProofStore = (*RedisPersistence)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys, e.g. "tenant-a:"
	// gives keys like "tenant-a:pruvi:tree:<id>".
	KeyPrefix string
}

// NewRedisPersistence connects to Redis and validates the schema version
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to connect to Redis at %s", cfg.Address)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}

	logger.Sugar().Infow("Redis proof store initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

// key applies the custom prefix and namespace
func (r *RedisPersistence) key(key string) string {
	return r.keyPrefix + namespace + key
}

func (r *RedisPersistence) proofsKey(treeID string) string {
	return r.key(keyPrefixProofs + treeID)
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.key(persistence.KeySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, persistence.CurrentSchemaVersion, 0).Err()
	}
	if err != nil {
		return errors.Wrap(err, "failed to read schema version")
	}

	if existingVersion != persistence.CurrentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, persistence.CurrentSchemaVersion)
	}
	return nil
}

// SaveTree persists a tree export and indexes its ID
func (r *RedisPersistence) SaveTree(doc *codec.TreeDocument) error {
	if doc == nil {
		return fmt.Errorf("cannot save nil TreeDocument")
	}
	if err := persistence.ValidateTreeID(doc.TreeID); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalTree(doc)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(persistence.TreeKey(doc.TreeID)), data, 0)
	pipe.SAdd(ctx, r.key(keySetTrees), doc.TreeID)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "failed to save tree %s", doc.TreeID)
	}
	return nil
}

// LoadTree retrieves a tree export
func (r *RedisPersistence) LoadTree(treeID string) (*codec.TreeDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}
	return r.loadTree(context.Background(), treeID)
}

func (r *RedisPersistence) loadTree(ctx context.Context, treeID string) (*codec.TreeDocument, error) {
	data, err := r.client.Get(ctx, r.key(persistence.TreeKey(treeID))).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tree %s", treeID)
	}
	return persistence.UnmarshalTree(data)
}

// ListTrees returns all indexed tree exports sorted by creation time
func (r *RedisPersistence) ListTrees() ([]*codec.TreeDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx := context.Background()
	indexKey := r.key(keySetTrees)

	treeIDs, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tree IDs")
	}

	if len(treeIDs) == 0 {
		return []*codec.TreeDocument{}, nil
	}

	keys := make([]string, len(treeIDs))
	for i, id := range treeIDs {
		keys[i] = r.key(persistence.TreeKey(id))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch trees")
	}

	trees := make([]*codec.TreeDocument, 0, len(values))
	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, treeIDs[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for TreeDocument", "key", keys[i])
			continue
		}

		doc, err := persistence.UnmarshalTree([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal TreeDocument, skipping",
				"key", keys[i], "error", err)
			continue
		}
		trees = append(trees, doc)
	}

	persistence.SortTrees(trees)
	return trees, nil
}

// DeleteTree removes a tree export, its proofs and its index entry
func (r *RedisPersistence) DeleteTree(treeID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(persistence.TreeKey(treeID)), r.proofsKey(treeID))
	pipe.SRem(ctx, r.key(keySetTrees), treeID)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "failed to delete tree %s", treeID)
	}
	return nil
}

// SaveProofs stores proofs in the tree's proof hash
func (r *RedisPersistence) SaveProofs(treeID string, proofs []*merkle.Proof) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx := context.Background()
	doc, err := r.loadTree(ctx, treeID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("cannot save proofs: tree %s not found", treeID)
	}
	if err := persistence.ValidateProofs(doc, proofs); err != nil {
		return err
	}

	proofsKey := r.proofsKey(treeID)
	pipe := r.client.Pipeline()
	fields := make([]interface{}, 0, 2*proofBatchSize)
	for _, p := range proofs {
		data, err := persistence.MarshalProof(p)
		if err != nil {
			return err
		}
		fields = append(fields, strconv.Itoa(p.LeafIndex), data)
		if len(fields) == 2*proofBatchSize {
			pipe.HSet(ctx, proofsKey, fields...)
			fields = make([]interface{}, 0, 2*proofBatchSize)
		}
	}
	if len(fields) > 0 {
		pipe.HSet(ctx, proofsKey, fields...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "failed to save proofs of tree %s", treeID)
	}

	r.logger.Sugar().Debugw("Saved proofs", "treeId", treeID, "count", len(proofs))
	return nil
}

// LoadProof retrieves the proof for one leaf
func (r *RedisPersistence) LoadProof(treeID string, index int) (*merkle.Proof, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx := context.Background()
	data, err := r.client.HGet(ctx, r.proofsKey(treeID), strconv.Itoa(index)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load proof %d of tree %s", index, treeID)
	}

	return persistence.UnmarshalProof(data)
}

// CountProofs returns the number of stored proofs for a tree
func (r *RedisPersistence) CountProofs(treeID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, persistence.ErrClosed
	}

	n, err := r.client.HLen(context.Background(), r.proofsKey(treeID)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count proofs of tree %s", treeID)
	}
	return int(n), nil
}

// Close shuts down the store
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return errors.Wrap(err, "failed to close Redis client")
	}

	r.logger.Sugar().Info("Redis proof store closed")
	return nil
}

// HealthCheck pings Redis and verifies the schema version exists
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis health check failed")
	}

	_, err := r.client.Get(ctx, r.key(persistence.KeySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return errors.Wrap(err, "failed to verify schema version")
	}
	return nil
}
