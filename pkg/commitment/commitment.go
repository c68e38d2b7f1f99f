// Package commitment turns an ordered segment source into a committed tree:
// root, one proof per segment, and the exported artifacts.
package commitment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/hashing"
	"github.com/Layr-Labs/pruvi-go/pkg/merkle"
	"github.com/Layr-Labs/pruvi-go/pkg/persistence"
	"github.com/Layr-Labs/pruvi-go/pkg/segments"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
)

// Export layout
const (
	TreeFileName      = "tree"
	ProofsFileName    = "all_proofs"
	PartsFolderName   = "parts"
	partFilePattern   = "part-%d%s"
	proofFilePattern  = "part-%d-proof%s"
	exportPermissions = 0o755
)

// Config holds Committer settings
type Config struct {
	// Hashing selects the digest algorithm and input switches
	Hashing hashing.Config

	// Workers bounds batch proof generation; <= 0 uses GOMAXPROCS
	Workers int

	// Codec encodes exported documents; nil selects JSON
	Codec codec.Codec
}

// Committer builds trees and proofs from segment sources
type Committer struct {
	hasher  *hashing.Hasher
	workers int
	codec   codec.Codec
	logger  *zap.Logger
}

// NewCommitter validates cfg and returns a Committer
func NewCommitter(cfg *Config, logger *zap.Logger) (*Committer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hasher, err := hashing.NewHasher(cfg.Hashing)
	if err != nil {
		return nil, err
	}

	c := cfg.Codec
	if c == nil {
		c = codec.JSON
	}

	return &Committer{
		hasher:  hasher,
		workers: cfg.Workers,
		codec:   c,
		logger:  logger,
	}, nil
}

// Commitment is a finalized tree over a set of segments with every proof
type Commitment struct {
	TreeID   string
	Root     types.Hash
	Tree     *merkle.Tree
	Document *codec.TreeDocument
	Proofs   []*merkle.Proof
	Segments [][]byte

	codec  codec.Codec
	logger *zap.Logger
}

// Commit reads all segments from source, builds the tree and generates one
// proof per segment.
func (c *Committer) Commit(ctx context.Context, source segments.Source) (*Commitment, error) {
	sugar := c.logger.Sugar()
	start := time.Now()

	parts, err := source.Segments()
	if err != nil {
		return nil, fmt.Errorf("failed to read segments: %w", err)
	}
	sugar.Infow("Read segments", "count", len(parts))

	tree, err := merkle.NewTree(c.hasher, parts)
	if err != nil {
		return nil, err
	}

	doc, err := codec.NewTreeDocument(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to export tree: %w", err)
	}
	root, err := doc.Root()
	if err != nil {
		return nil, err
	}

	proofs, err := tree.AuditProofs(ctx, c.workers)
	if err != nil {
		return nil, err
	}

	sugar.Infow("Committed segments",
		"treeId", doc.TreeID,
		"leaves", tree.Size(),
		"algorithm", c.hasher.Algorithm(),
		"root", root.Hex(),
		"duration", time.Since(start),
	)

	return &Commitment{
		TreeID:   doc.TreeID,
		Root:     root,
		Tree:     tree,
		Document: doc,
		Proofs:   proofs,
		Segments: parts,
		codec:    c.codec,
		logger:   c.logger,
	}, nil
}

// Export writes the tree export, the proof set and, for every segment, the
// raw part and its proof into dir. Parts are numbered from 1 and named with
// ext (e.g. ".pdf").
func (cm *Commitment) Export(dir string, ext string) error {
	sugar := cm.logger.Sugar()

	if err := os.MkdirAll(dir, exportPermissions); err != nil {
		return fmt.Errorf("failed to create export folder %s: %w", dir, err)
	}

	treeData, err := codec.EncodeTree(cm.codec, cm.Document)
	if err != nil {
		return err
	}
	treeFile := filepath.Join(dir, TreeFileName+cm.codec.Extension())
	if err := writeFile(treeFile, treeData); err != nil {
		return err
	}
	sugar.Infow("Wrote tree file", "path", treeFile)

	proofsData, err := codec.EncodeProofSet(cm.codec, cm.Root, cm.Proofs)
	if err != nil {
		return err
	}
	proofsFile := filepath.Join(dir, ProofsFileName+cm.codec.Extension())
	if err := writeFile(proofsFile, proofsData); err != nil {
		return err
	}
	sugar.Infow("Wrote proofs file", "path", proofsFile)

	partsDir := filepath.Join(dir, PartsFolderName)
	if err := os.MkdirAll(partsDir, exportPermissions); err != nil {
		return fmt.Errorf("failed to create parts folder %s: %w", partsDir, err)
	}

	for i, part := range cm.Segments {
		partFile := filepath.Join(partsDir, PartFileName(i, ext))
		if err := writeFile(partFile, part); err != nil {
			return err
		}

		proofData, err := codec.EncodeProof(cm.codec, cm.Proofs[i])
		if err != nil {
			return fmt.Errorf("part %d: %w", i+1, err)
		}
		if err := writeFile(filepath.Join(partsDir, ProofFileName(i, cm.codec)), proofData); err != nil {
			return err
		}
		sugar.Debugw("Wrote part", "part", i+1, "path", partFile)
	}

	sugar.Infow("Export complete", "folder", dir, "parts", len(cm.Segments))
	return nil
}

// Persist saves the tree export and every proof into store
func (cm *Commitment) Persist(store persistence.IProofStore) error {
	if err := store.SaveTree(cm.Document); err != nil {
		return fmt.Errorf("failed to persist tree %s: %w", cm.TreeID, err)
	}
	if err := store.SaveProofs(cm.TreeID, cm.Proofs); err != nil {
		return fmt.Errorf("failed to persist proofs of tree %s: %w", cm.TreeID, err)
	}

	cm.logger.Sugar().Infow("Persisted commitment", "treeId", cm.TreeID, "proofs", len(cm.Proofs))
	return nil
}

// PartFileName names the exported part for 0-based index
func PartFileName(index int, ext string) string {
	return fmt.Sprintf(partFilePattern, index+1, ext)
}

// ProofFileName names the exported proof for 0-based index
func ProofFileName(index int, c codec.Codec) string {
	return fmt.Sprintf(proofFilePattern, index+1, c.Extension())
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
