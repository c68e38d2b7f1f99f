package hashing

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// Algorithm names accepted by the registry. The names match the identifiers
// written into tree exports and proof documents.
const (
	AlgorithmSHA3_224   = "sha3_224"
	AlgorithmSHA3_256   = "sha3_256"
	AlgorithmSHA3_384   = "sha3_384"
	AlgorithmSHA3_512   = "sha3_512"
	AlgorithmBLAKE2b256 = "blake2b_256"
	AlgorithmBLAKE2b512 = "blake2b_512"
	AlgorithmSHA256     = "sha256"
	AlgorithmSHA384     = "sha384"
	AlgorithmSHA512     = "sha512"
	AlgorithmBLAKE3     = "blake3"
	AlgorithmKeccak256  = "keccak256"

	// DefaultAlgorithm is a 512-bit secure hash
	DefaultAlgorithm = AlgorithmSHA3_512
)

// DigestProvider constructs a fresh hash.Hash for one digest computation
type DigestProvider func() hash.Hash

var (
	registryMu sync.RWMutex
	registry   = map[string]DigestProvider{
		AlgorithmSHA3_224: sha3.New224,
		AlgorithmSHA3_256: sha3.New256,
		AlgorithmSHA3_384: sha3.New384,
		AlgorithmSHA3_512: sha3.New512,
		AlgorithmBLAKE2b256: func() hash.Hash {
			h, _ := blake2b.New256(nil) // only fails for oversized keys
			return h
		},
		AlgorithmBLAKE2b512: func() hash.Hash {
			h, _ := blake2b.New512(nil)
			return h
		},
		AlgorithmSHA256: sha256.New,
		AlgorithmSHA384: sha512.New384,
		AlgorithmSHA512: sha512.New,
		AlgorithmBLAKE3: func() hash.Hash {
			return blake3.New()
		},
		AlgorithmKeccak256: func() hash.Hash {
			return crypto.NewKeccakState()
		},
	}
)

// LookupAlgorithm returns the provider registered under name.
// Unknown names fail with *types.UnsupportedAlgorithmError; there is no fallback.
func LookupAlgorithm(name string) (DigestProvider, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	provider, ok := registry[name]
	if !ok {
		return nil, &types.UnsupportedAlgorithmError{Algorithm: name}
	}
	return provider, nil
}

// RegisterAlgorithm adds or replaces a digest provider
func RegisterAlgorithm(name string, provider DigestProvider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = provider
}

// SupportedAlgorithms returns the registered names sorted alphabetically
func SupportedAlgorithms() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupported reports whether name has a registered provider
func IsSupported(name string) bool {
	_, err := LookupAlgorithm(name)
	return err == nil
}
