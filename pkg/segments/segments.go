// Package segments yields the ordered byte segments a tree is built over.
package segments

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultChunkSize is the chunk size used when none is configured
const DefaultChunkSize = 1 << 20

// Source produces an ordered list of segments. Segment i becomes leaf i.
type Source interface {
	Segments() ([][]byte, error)
}

// Slice is an in-memory source
type Slice [][]byte

// Segments returns the slice itself
func (s Slice) Segments() ([][]byte, error) {
	return s, nil
}

// Strings builds an in-memory source from text segments
func Strings(parts ...string) Slice {
	out := make(Slice, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

// Chunker splits a reader into fixed-size chunks. The last chunk may be
// shorter; an empty reader yields no segments.
type Chunker struct {
	reader io.Reader
	size   int
}

// NewChunker creates a chunker reading size bytes per segment
func NewChunker(r io.Reader, size int) (*Chunker, error) {
	if r == nil {
		return nil, fmt.Errorf("reader is nil")
	}
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	return &Chunker{reader: r, size: size}, nil
}

// Segments reads the reader to EOF
func (c *Chunker) Segments() ([][]byte, error) {
	parts := make([][]byte, 0)
	for {
		buf := make([]byte, c.size)
		n, err := io.ReadFull(c.reader, buf)
		if n > 0 {
			parts = append(parts, buf[:n])
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return parts, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read chunk %d: %w", len(parts), err)
		}
	}
}

// File chunks the file at Path into ChunkSize byte segments
type File struct {
	Path      string
	ChunkSize int
}

// NewFile returns a file source. A chunkSize of zero selects DefaultChunkSize.
func NewFile(path string, chunkSize int) (*File, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkSize < 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	return &File{Path: path, ChunkSize: chunkSize}, nil
}

// Segments opens the file and chunks it
func (f *File) Segments() ([][]byte, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Path, err)
	}
	defer func() {
		_ = fh.Close()
	}()

	chunker, err := NewChunker(fh, f.ChunkSize)
	if err != nil {
		return nil, err
	}
	return chunker.Segments()
}

// Extension returns the file's extension including the dot, used to name
// exported parts.
func (f *File) Extension() string {
	return filepath.Ext(f.Path)
}
