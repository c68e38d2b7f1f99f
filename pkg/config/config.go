package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/segments"
)

// Environment variable names for pruvi configuration
const (
	EnvPruviAlgorithm       = "PRUVI_ALGORITHM"
	EnvPruviSecurity        = "PRUVI_SECURITY"
	EnvPruviRawBytes        = "PRUVI_RAW_BYTES"
	EnvPruviWorkers         = "PRUVI_WORKERS"
	EnvPruviChunkSize       = "PRUVI_CHUNK_SIZE"
	EnvPruviOutputFolder    = "PRUVI_OUTPUT_FOLDER"
	EnvPruviFormat          = "PRUVI_FORMAT"
	EnvPruviPersistenceType = "PRUVI_PERSISTENCE_TYPE"
	EnvPruviDataPath        = "PRUVI_DATA_PATH"
	EnvPruviRedisAddress    = "PRUVI_REDIS_ADDRESS"
	EnvPruviRedisPassword   = "PRUVI_REDIS_PASSWORD"
	EnvPruviRedisDB         = "PRUVI_REDIS_DB"
	EnvPruviRedisKeyPrefix  = "PRUVI_REDIS_KEY_PREFIX"
	EnvPruviDebug           = "PRUVI_DEBUG"
	EnvPruviEnvFile         = "PRUVI_ENV_FILE"
)

// DefaultEnvFile is loaded when present and no env file is named
const DefaultEnvFile = ".env"

// DefaultOutputFolder is where split exports are written by default
const DefaultOutputFolder = "pruvi-output"

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	// PersistenceTypeNone writes export files only
	PersistenceTypeNone   PersistenceType = "none"
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// SupportedPersistenceTypes lists the accepted persistence types
func SupportedPersistenceTypes() []string {
	return []string{
		PersistenceTypeNone.String(),
		PersistenceTypeMemory.String(),
		PersistenceTypeBadger.String(),
		PersistenceTypeRedis.String(),
	}
}

// RedisConfig holds the Redis connection settings
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

// PersistenceConfig selects and configures the proof store
type PersistenceConfig struct {
	Type PersistenceType `json:"type"`

	// DataPath is the badger database directory
	DataPath string `json:"data_path"`

	Redis RedisConfig `json:"redis"`
}

// PruviConfig represents the complete configuration of a pruvi run
type PruviConfig struct {
	// Hashing selects the digest algorithm and the security / raw bytes switches
	Hashing hashing.Config `json:"hashing"`

	// Workers bounds parallel proof generation; 0 uses GOMAXPROCS
	Workers int `json:"workers"`

	// ChunkSize is the byte size of each segment when splitting files
	ChunkSize int `json:"chunk_size"`

	// OutputFolder receives tree, proofs and parts
	OutputFolder string `json:"output_folder"`

	// Format is the document encoding of exports (json or cbor)
	Format string `json:"format"`

	Persistence PersistenceConfig `json:"persistence"`

	Debug bool `json:"debug"`
}

// DefaultConfig returns a configuration that passes Validate
func DefaultConfig() *PruviConfig {
	return &PruviConfig{
		Hashing:      hashing.DefaultConfig(),
		Workers:      0,
		ChunkSize:    segments.DefaultChunkSize,
		OutputFolder: DefaultOutputFolder,
		Format:       codec.FormatJSON.String(),
		Persistence: PersistenceConfig{
			Type:     PersistenceTypeNone,
			DataPath: "./pruvi-data",
		},
	}
}

// Validate validates the configuration, reporting every problem at once
func (c *PruviConfig) Validate() error {
	var allErrors field.ErrorList

	if !hashing.IsSupported(c.Hashing.Algorithm) {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("hashing", "algorithm"), c.Hashing.Algorithm, hashing.SupportedAlgorithms()))
	}
	if c.Workers < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("workers"), c.Workers, "must be zero or positive"))
	}
	if c.ChunkSize <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("chunkSize"), c.ChunkSize, "must be positive"))
	}
	if c.OutputFolder == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("outputFolder"), "outputFolder is required"))
	}
	if _, err := codec.ForFormat(c.Format); err != nil {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("format"), c.Format, []string{codec.FormatJSON.String(), codec.FormatCBOR.String()}))
	}

	allErrors = append(allErrors, c.Persistence.validate(field.NewPath("persistence"))...)

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func (p *PersistenceConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList

	switch p.Type {
	case PersistenceTypeNone, PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if p.DataPath == "" {
			allErrors = append(allErrors, field.Required(path.Child("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceTypeRedis:
		if p.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(path.Child("redis", "address"), "address is required for redis persistence"))
		}
		if p.Redis.DB < 0 || p.Redis.DB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redis", "db"), p.Redis.DB, "must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), p.Type, SupportedPersistenceTypes()))
	}
	return allErrors
}

// ParsePersistenceType parses a persistence type name
func ParsePersistenceType(s string) (PersistenceType, error) {
	p := PersistenceType(strings.ToLower(strings.TrimSpace(s)))
	for _, supported := range SupportedPersistenceTypes() {
		if p.String() == supported {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported persistence type: %s (supported: %s)", s, strings.Join(SupportedPersistenceTypes(), ", "))
}

// LoadEnvFiles loads KEY=VALUE files into the process environment without
// overriding variables that are already set. With no paths, DefaultEnvFile
// is loaded if it exists.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return nil
		}
		paths = []string{DefaultEnvFile}
	}

	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("failed to load env files %s: %w", strings.Join(paths, ", "), err)
	}
	return nil
}
