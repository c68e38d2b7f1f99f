package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/config"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
	"github.com/Layr-Labs/pruvi-go/pkg/persistence"
	"github.com/Layr-Labs/pruvi-go/pkg/persistence/badger"
	"github.com/Layr-Labs/pruvi-go/pkg/persistence/memory"
	"github.com/Layr-Labs/pruvi-go/pkg/persistence/redis"
)

// openStore creates the configured proof store. It returns nil when
// persistence is disabled.
func openStore(cfg *config.PruviConfig, l *zap.Logger) (persistence.IProofStore, error) {
	var (
		store persistence.IProofStore
		err   error
	)

	switch cfg.Persistence.Type {
	case config.PersistenceTypeNone:
		return nil, nil
	case config.PersistenceTypeMemory:
		store = memory.NewMemoryPersistence()
	case config.PersistenceTypeBadger:
		store, err = badger.NewBadgerPersistence(cfg.Persistence.DataPath, l)
	case config.PersistenceTypeRedis:
		store, err = redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.Persistence.Redis.Address,
			Password:  cfg.Persistence.Redis.Password,
			DB:        cfg.Persistence.Redis.DB,
			KeyPrefix: cfg.Persistence.Redis.KeyPrefix,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Persistence.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s proof store: %w", cfg.Persistence.Type, err)
	}

	if err := store.HealthCheck(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s proof store is unhealthy: %w", cfg.Persistence.Type, err)
	}
	return store, nil
}

func storeCommand() *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Read trees and proofs from the configured proof store",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored trees",
				Action: func(c *cli.Context) error {
					return withStore(c, runStoreList)
				},
			},
			{
				Name:  "get",
				Usage: "Fetch the stored proof of one part",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "tree-id",
						Usage:    "Tree ID printed by split",
						Required: true,
					},
					&cli.IntFlag{
						Name:     "index",
						Aliases:  []string{"i"},
						Usage:    "0-based leaf index",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "Write the proof here instead of stdout",
					},
				},
				Action: func(c *cli.Context) error {
					return withStore(c, runStoreGet)
				},
			},
		},
	}
}

func withStore(c *cli.Context, fn func(*cli.Context, *config.PruviConfig, persistence.IProofStore) error) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}
	if cfg.Persistence.Type == config.PersistenceTypeNone {
		return fmt.Errorf("no proof store configured, set --persistence or %s", config.EnvPruviPersistenceType)
	}

	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	store, err := openStore(cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return fn(c, cfg, store)
}

func runStoreList(c *cli.Context, _ *config.PruviConfig, store persistence.IProofStore) error {
	trees, err := store.ListTrees()
	if err != nil {
		return err
	}

	w := c.App.Writer
	if len(trees) == 0 {
		fmt.Fprintln(w, "No trees stored")
		return nil
	}

	_, _ = infoColor.Fprintf(w, "📦 %d stored trees\n", len(trees))
	for _, doc := range trees {
		count, err := store.CountProofs(doc.TreeID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "   %s  %s  leaves=%d proofs=%d root=%s\n",
			doc.CreatedAt.Format("2006-01-02 15:04:05"), doc.TreeID, doc.LeafCount, count, doc.RootHash)
	}
	return nil
}

func runStoreGet(c *cli.Context, cfg *config.PruviConfig, store persistence.IProofStore) error {
	treeID := c.String("tree-id")
	index := c.Int("index")

	proof, err := store.LoadProof(treeID, index)
	if err != nil {
		return err
	}
	if proof == nil {
		return fmt.Errorf("no proof stored for part %d of tree %s", index, treeID)
	}
	return writeProof(c, outputCodec(cfg), proof, c.String("out"))
}

// writeProof encodes proof to path, or to the app writer when path is empty
func writeProof(c *cli.Context, cd codec.Codec, proof *merkle.Proof, path string) error {
	data, err := codec.EncodeProof(cd, proof)
	if err != nil {
		return err
	}

	if path == "" {
		_, err := c.App.Writer.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	_, _ = okColor.Fprintf(c.App.Writer, "✅ Wrote proof of part %d to %s\n", proof.LeafIndex+1, path)
	return nil
}
