package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash is a digest produced by a hashing.Hasher. Its length depends on the
// configured algorithm.
type Hash []byte

// Hex returns the lowercase hex encoding of the hash
func (h Hash) Hex() string {
	return hex.EncodeToString(h)
}

// String implements fmt.Stringer
func (h Hash) String() string {
	return h.Hex()
}

// Equal reports whether two hashes are byte-for-byte identical
func (h Hash) Equal(other Hash) bool {
	return bytes.Equal(h, other)
}

// Clone returns a copy that does not alias the receiver
func (h Hash) Clone() Hash {
	if h == nil {
		return nil
	}
	out := make(Hash, len(h))
	copy(out, h)
	return out
}

// HashFromHex decodes a hex string into a Hash.
// An optional 0x prefix is accepted.
func HashFromHex(s string) (Hash, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, fmt.Errorf("empty hex string")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex string: %w", err)
	}
	return Hash(b), nil
}

// Direction says which side a sibling hash occupies when folding a proof step
type Direction string

func (d Direction) String() string {
	return string(d)
}

// Valid reports whether d is LEFT or RIGHT
func (d Direction) Valid() bool {
	return d == DirectionLeft || d == DirectionRight
}

const (
	// DirectionLeft means the sibling is the left child: node(sibling, running)
	DirectionLeft Direction = "LEFT"
	// DirectionRight means the sibling is the right child: node(running, sibling)
	DirectionRight Direction = "RIGHT"
)

// ParseDirection parses the textual direction used in proof documents
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown direction %q (expected %s or %s)", s, DirectionLeft, DirectionRight)
	}
	return d, nil
}

// ProofStep is one (direction, sibling) pair of an audit path
type ProofStep struct {
	Direction Direction
	Hash      Hash
}
