package codec

import (
	"fmt"

	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// ProofDocument is the portable form of a single audit proof.
//
//	{
//	  "algorithm": "sha3_512",
//	  "security": true,
//	  "raw_bytes": true,
//	  "tree_size": 4,
//	  "leaf_hash": "<hex>",
//	  "proof_index": 2,
//	  "proof_path": [["RIGHT", "<hex>"], ["LEFT", "<hex>"]]
//	}
//
// Optional-looking fields are pointers so that a missing field can be told
// apart from a zero value when decoding.
type ProofDocument struct {
	Algorithm  string     `json:"algorithm" cbor:"algorithm"`
	Security   *bool      `json:"security" cbor:"security"`
	RawBytes   *bool      `json:"raw_bytes" cbor:"raw_bytes"`
	TreeSize   int        `json:"tree_size" cbor:"tree_size"`
	LeafHash   string     `json:"leaf_hash" cbor:"leaf_hash"`
	ProofIndex *int       `json:"proof_index" cbor:"proof_index"`
	ProofPath  [][]string `json:"proof_path" cbor:"proof_path"`
}

// NewProofDocument converts a proof into its document form
func NewProofDocument(p *merkle.Proof) (*ProofDocument, error) {
	if p == nil {
		return nil, fmt.Errorf("cannot encode nil proof")
	}

	security := p.Hashing.Security
	rawBytes := p.Hashing.RawBytes
	index := p.LeafIndex

	path := make([][]string, len(p.Path))
	for i, step := range p.Path {
		path[i] = []string{step.Direction.String(), step.Hash.Hex()}
	}

	return &ProofDocument{
		Algorithm:  p.Hashing.Algorithm,
		Security:   &security,
		RawBytes:   &rawBytes,
		TreeSize:   p.TreeSize,
		LeafHash:   p.LeafHash.Hex(),
		ProofIndex: &index,
		ProofPath:  path,
	}, nil
}

// Proof validates the document and converts it back into a proof.
// Structural problems yield *types.ProofFormatError; an unknown algorithm
// yields *types.UnsupportedAlgorithmError.
func (d *ProofDocument) Proof() (*merkle.Proof, error) {
	if d == nil {
		return nil, types.NewProofFormatError("", "document is empty")
	}
	if d.Algorithm == "" {
		return nil, types.NewProofFormatError("algorithm", "missing")
	}
	if d.Security == nil {
		return nil, types.NewProofFormatError("security", "missing")
	}
	if d.RawBytes == nil {
		return nil, types.NewProofFormatError("raw_bytes", "missing")
	}

	cfg := hashing.Config{Algorithm: d.Algorithm, Security: *d.Security, RawBytes: *d.RawBytes}
	hasher, err := hashing.NewHasher(cfg)
	if err != nil {
		return nil, err
	}

	if d.TreeSize < 1 {
		return nil, types.NewProofFormatError("tree_size", "must be at least 1, got %d", d.TreeSize)
	}
	if d.ProofIndex == nil {
		return nil, types.NewProofFormatError("proof_index", "missing")
	}
	if *d.ProofIndex < 0 || *d.ProofIndex >= d.TreeSize {
		return nil, types.NewProofFormatError("proof_index", "%d out of range for tree size %d", *d.ProofIndex, d.TreeSize)
	}
	if d.ProofPath == nil {
		return nil, types.NewProofFormatError("proof_path", "missing")
	}

	leafHash, err := decodeHash("leaf_hash", d.LeafHash, hasher.Size())
	if err != nil {
		return nil, err
	}

	path := make([]types.ProofStep, len(d.ProofPath))
	for i, entry := range d.ProofPath {
		if len(entry) != 2 {
			return nil, types.NewProofFormatError("proof_path", "step %d: expected [direction, hash], got %d elements", i, len(entry))
		}
		direction, err := types.ParseDirection(entry[0])
		if err != nil {
			return nil, types.NewProofFormatError("proof_path", "step %d: %v", i, err)
		}
		sibling, err := decodeHash(fmt.Sprintf("proof_path[%d]", i), entry[1], hasher.Size())
		if err != nil {
			return nil, err
		}
		path[i] = types.ProofStep{Direction: direction, Hash: sibling}
	}

	return &merkle.Proof{
		LeafIndex: *d.ProofIndex,
		LeafHash:  leafHash,
		Path:      path,
		TreeSize:  d.TreeSize,
		Hashing:   cfg,
	}, nil
}

// EncodeProof serializes a proof with the given codec
func EncodeProof(c Codec, p *merkle.Proof) ([]byte, error) {
	doc, err := NewProofDocument(p)
	if err != nil {
		return nil, err
	}

	data, err := c.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proof to %s: %w", c.Format(), err)
	}
	return data, nil
}

// DecodeProof parses and validates a proof document
func DecodeProof(c Codec, data []byte) (*merkle.Proof, error) {
	if len(data) == 0 {
		return nil, types.NewProofFormatError("", "cannot unmarshal empty data")
	}

	var doc ProofDocument
	if err := c.Unmarshal(data, &doc); err != nil {
		return nil, types.NewProofFormatError("", "invalid %s document: %v", c.Format(), err)
	}
	return doc.Proof()
}

// decodeHash decodes hex and checks the digest length of the algorithm
func decodeHash(field, s string, size int) (types.Hash, error) {
	if s == "" {
		return nil, types.NewProofFormatError(field, "missing")
	}
	h, err := types.HashFromHex(s)
	if err != nil {
		return nil, types.NewProofFormatError(field, "%v", err)
	}
	if len(h) != size {
		return nil, types.NewProofFormatError(field, "expected %d byte hash, got %d", size, len(h))
	}
	return h, nil
}
