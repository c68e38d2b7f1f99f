package hashing

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// Domain separation prefixes applied when Config.Security is enabled.
const (
	LeafPrefix byte = 0x00
	NodePrefix byte = 0x01
)

// Config selects the digest algorithm and the two input switches of a Hasher.
// Both switches are recorded alongside every exported tree and proof.
type Config struct {
	// Algorithm is a registry name, e.g. "sha3_512"
	Algorithm string `json:"algorithm"`

	// Security enables leaf/node domain separation
	Security bool `json:"security"`

	// RawBytes hashes segments as opaque bytes. When false, segments are
	// treated as text and normalized (valid UTF-8, NFC) before hashing.
	RawBytes bool `json:"raw_bytes"`
}

// DefaultConfig returns sha3_512 with domain separation and raw byte hashing
func DefaultConfig() Config {
	return Config{
		Algorithm: DefaultAlgorithm,
		Security:  true,
		RawBytes:  true,
	}
}

// Hasher computes leaf and interior node hashes. It holds no mutable state
// and is safe for concurrent use.
type Hasher struct {
	config   Config
	provider DigestProvider
	size     int
}

// NewHasher resolves the configured algorithm and returns a Hasher
func NewHasher(cfg Config) (*Hasher, error) {
	provider, err := LookupAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return &Hasher{
		config:   cfg,
		provider: provider,
		size:     provider().Size(),
	}, nil
}

// NewDefaultHasher returns a Hasher for DefaultConfig
func NewDefaultHasher() *Hasher {
	h, err := NewHasher(DefaultConfig())
	if err != nil {
		// the default algorithm is always registered
		panic(err)
	}
	return h
}

// Config returns the configuration the hasher was built from
func (h *Hasher) Config() Config { return h.config }

// Algorithm returns the registered digest algorithm name
func (h *Hasher) Algorithm() string { return h.config.Algorithm }

// Size returns the digest length in bytes
func (h *Hasher) Size() int { return h.size }

// Digest hashes the concatenation of parts with the bare algorithm
func (h *Hasher) Digest(parts ...[]byte) types.Hash {
	d := h.provider()
	for _, p := range parts {
		d.Write(p)
	}
	return types.Hash(d.Sum(nil))
}

// EmptyHash is the digest of the empty string, the root of an empty tree
func (h *Hasher) EmptyHash() types.Hash {
	return h.Digest()
}

// LeafHash hashes one segment into a leaf hash
func (h *Hasher) LeafHash(segment []byte) types.Hash {
	data := h.encodeSegment(segment)
	if h.config.Security {
		return h.Digest([]byte{LeafPrefix}, data)
	}
	return h.Digest(data)
}

// NodeHash hashes two children into their parent
func (h *Hasher) NodeHash(left, right types.Hash) types.Hash {
	if h.config.Security {
		return h.Digest([]byte{NodePrefix}, left, right)
	}
	return h.Digest(left, right)
}

func (h *Hasher) encodeSegment(segment []byte) []byte {
	if h.config.RawBytes {
		return segment
	}
	return norm.NFC.Bytes([]byte(strings.ToValidUTF8(string(segment), "\uFFFD")))
}
