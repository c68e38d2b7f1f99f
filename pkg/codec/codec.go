// Package codec encodes proofs, tree exports and proof sets as portable
// documents. JSON is the canonical encoding; CBOR is a compact binary
// alternative carrying the same document shapes.
package codec

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Format names a document encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

func (f Format) String() string {
	return string(f)
}

// Codec marshals the document types of this package
type Codec interface {
	// Format returns the encoding name
	Format() Format

	// Extension returns the file extension used for documents of this format
	Extension() string

	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

// JSON is the canonical, human readable codec. Output is indented.
var JSON Codec = jsonCodec{}

// CBOR is the compact binary codec using core deterministic encoding
var CBOR Codec = mustCBORCodec()

type jsonCodec struct{}

func (jsonCodec) Format() Format    { return FormatJSON }
func (jsonCodec) Extension() string { return ".json" }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// maxCBORElements is the largest array or map the CBOR decoder accepts
const maxCBORElements = 2147483647

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func mustCBORCodec() Codec {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	enc, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("invalid cbor encoding options: %v", err))
	}
	// trees and proof sets may hold more elements than the library default
	dec, err := cbor.DecOptions{
		MaxArrayElements: maxCBORElements,
		MaxMapPairs:      maxCBORElements,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("invalid cbor decoding options: %v", err))
	}
	return &cborCodec{enc: enc, dec: dec}
}

func (c *cborCodec) Format() Format    { return FormatCBOR }
func (c *cborCodec) Extension() string { return ".cbor" }

func (c *cborCodec) Marshal(v interface{}) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c *cborCodec) Unmarshal(data []byte, v interface{}) error {
	return c.dec.Unmarshal(data, v)
}

// ForFormat returns the codec registered for a format name
func ForFormat(name string) (Codec, error) {
	switch Format(strings.ToLower(name)) {
	case FormatJSON, "":
		return JSON, nil
	case FormatCBOR:
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown document format: %s (expected %s or %s)", name, FormatJSON, FormatCBOR)
	}
}

// ForPath picks a codec from a file extension, defaulting to JSON
func ForPath(path string) Codec {
	if strings.EqualFold(filepath.Ext(path), CBOR.Extension()) {
		return CBOR
	}
	return JSON
}
