package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/config"
	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
)

func main() {
	// flag values are read from the environment during parsing, so env files
	// have to be loaded before the app runs
	var envFiles []string
	if f := os.Getenv(config.EnvPruviEnvFile); f != "" {
		envFiles = strings.Split(f, ",")
	}
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		log.Fatalf("Application error: %v", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pruvi",
		Usage: "Commit documents to a Merkle root and prove their parts",
		Description: `Splits a document into ordered segments, commits them to a single Merkle root
and emits one audit proof per segment. Any part can later be validated against
the root from the part, its proof and the root alone.

Environment variables (PRUVI_*) and an optional .env file (or the files named
in PRUVI_ENV_FILE) provide defaults for every flag.`,
		Version: "1.0.0",
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			splitCommand(),
			validateCommand(),
			inspectCommand(),
			storeCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	defaults := config.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "algorithm",
			Aliases: []string{"a"},
			Usage:   fmt.Sprintf("Digest algorithm: %s", strings.Join(hashing.SupportedAlgorithms(), ", ")),
			Value:   defaults.Hashing.Algorithm,
			EnvVars: []string{config.EnvPruviAlgorithm},
		},
		&cli.BoolFlag{
			Name:    "security",
			Usage:   "Domain-separate leaf and node hashes",
			Value:   defaults.Hashing.Security,
			EnvVars: []string{config.EnvPruviSecurity},
		},
		&cli.BoolFlag{
			Name:    "raw-bytes",
			Usage:   "Hash segments as raw bytes (false hashes NFC-normalized text)",
			Value:   defaults.Hashing.RawBytes,
			EnvVars: []string{config.EnvPruviRawBytes},
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "Parallel proof generation workers (0 uses every CPU)",
			Value:   defaults.Workers,
			EnvVars: []string{config.EnvPruviWorkers},
		},
		&cli.StringFlag{
			Name:    "format",
			Usage:   "Export encoding: json or cbor",
			Value:   defaults.Format,
			EnvVars: []string{config.EnvPruviFormat},
		},
		&cli.StringFlag{
			Name:    "persistence",
			Usage:   fmt.Sprintf("Proof store: %s", strings.Join(config.SupportedPersistenceTypes(), ", ")),
			Value:   defaults.Persistence.Type.String(),
			EnvVars: []string{config.EnvPruviPersistenceType},
		},
		&cli.StringFlag{
			Name:    "data-path",
			Usage:   "Badger database directory",
			Value:   defaults.Persistence.DataPath,
			EnvVars: []string{config.EnvPruviDataPath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "Redis server address (host:port)",
			EnvVars: []string{config.EnvPruviRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{config.EnvPruviRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis database number (0-15)",
			EnvVars: []string{config.EnvPruviRedisDB},
		},
		&cli.StringFlag{
			Name:    "redis-key-prefix",
			Usage:   "Custom prefix for every Redis key",
			EnvVars: []string{config.EnvPruviRedisKeyPrefix},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "Enable debug logging",
			EnvVars: []string{config.EnvPruviDebug},
		},
	}
}

// parseConfig builds and validates the run configuration from flags and
// environment.
func parseConfig(c *cli.Context) (*config.PruviConfig, error) {
	persistenceType, err := config.ParsePersistenceType(c.String("persistence"))
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Hashing = hashing.Config{
		Algorithm: strings.ToLower(strings.TrimSpace(c.String("algorithm"))),
		Security:  c.Bool("security"),
		RawBytes:  c.Bool("raw-bytes"),
	}
	cfg.Workers = c.Int("workers")
	cfg.Format = c.String("format")
	cfg.Debug = c.Bool("debug")
	cfg.Persistence = config.PersistenceConfig{
		Type:     persistenceType,
		DataPath: c.String("data-path"),
		Redis: config.RedisConfig{
			Address:   c.String("redis-address"),
			Password:  c.String("redis-password"),
			DB:        c.Int("redis-db"),
			KeyPrefix: c.String("redis-key-prefix"),
		},
	}
	if hasFlag(c, "chunk-size") {
		cfg.ChunkSize = c.Int("chunk-size")
	}
	if hasFlag(c, "output") {
		cfg.OutputFolder = c.String("output")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// hasFlag reports whether the running command declares the named flag
func hasFlag(c *cli.Context, name string) bool {
	if c.Command == nil {
		return false
	}
	for _, f := range c.Command.Flags {
		for _, n := range f.Names() {
			if n == name {
				return true
			}
		}
	}
	return false
}

func outputCodec(cfg *config.PruviConfig) codec.Codec {
	// Validate has already rejected unknown formats
	c, err := codec.ForFormat(cfg.Format)
	if err != nil {
		return codec.JSON
	}
	return c
}
