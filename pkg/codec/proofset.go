package codec

import (
	"fmt"

	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// ProofSetDocument bundles a root with one proof per leaf
type ProofSetDocument struct {
	MerkleRoot string           `json:"merkle_root" cbor:"merkle_root"`
	Proofs     []*ProofDocument `json:"proofs" cbor:"proofs"`
}

// EncodeProofSet serializes root and proofs, keeping proof order
func EncodeProofSet(c Codec, root types.Hash, proofs []*merkle.Proof) ([]byte, error) {
	if len(root) == 0 {
		return nil, fmt.Errorf("cannot encode proof set without a root")
	}

	doc := &ProofSetDocument{
		MerkleRoot: root.Hex(),
		Proofs:     make([]*ProofDocument, len(proofs)),
	}
	for i, p := range proofs {
		pd, err := NewProofDocument(p)
		if err != nil {
			return nil, fmt.Errorf("proof %d: %w", i, err)
		}
		doc.Proofs[i] = pd
	}

	data, err := c.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proof set to %s: %w", c.Format(), err)
	}
	return data, nil
}

// DecodeProofSet parses a proof set and validates every proof in it
func DecodeProofSet(c Codec, data []byte) (types.Hash, []*merkle.Proof, error) {
	if len(data) == 0 {
		return nil, nil, types.NewProofFormatError("", "cannot unmarshal empty data")
	}

	var doc ProofSetDocument
	if err := c.Unmarshal(data, &doc); err != nil {
		return nil, nil, types.NewProofFormatError("", "invalid %s document: %v", c.Format(), err)
	}

	root, err := types.HashFromHex(doc.MerkleRoot)
	if err != nil {
		return nil, nil, types.NewProofFormatError("merkle_root", "%v", err)
	}

	proofs := make([]*merkle.Proof, len(doc.Proofs))
	for i, pd := range doc.Proofs {
		p, err := pd.Proof()
		if err != nil {
			return nil, nil, fmt.Errorf("proof %d: %w", i, err)
		}
		proofs[i] = p
	}
	return root, proofs, nil
}
