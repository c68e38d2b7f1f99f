package persistence

import (
	"fmt"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
)

// Stored records use the compact CBOR encoding of the codec documents.

// MarshalTree serializes a tree export for storage.
func MarshalTree(doc *codec.TreeDocument) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("cannot marshal nil TreeDocument")
	}

	data, err := codec.EncodeTree(codec.CBOR, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TreeDocument: %w", err)
	}

	return data, nil
}

// UnmarshalTree deserializes a stored tree export.
func UnmarshalTree(data []byte) (*codec.TreeDocument, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	doc, err := codec.DecodeTree(codec.CBOR, data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal TreeDocument: %w", err)
	}

	return doc, nil
}

// MarshalProof serializes a proof for storage.
func MarshalProof(p *merkle.Proof) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("cannot marshal nil Proof")
	}

	return codec.EncodeProof(codec.CBOR, p)
}

// UnmarshalProof deserializes and validates a stored proof.
func UnmarshalProof(data []byte) (*merkle.Proof, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	p, err := codec.DecodeProof(codec.CBOR, data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal Proof: %w", err)
	}

	return p, nil
}
