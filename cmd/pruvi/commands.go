package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/pruvi-go/pkg/codec"
	"github.com/Layr-Labs/pruvi-go/pkg/commitment"
	"github.com/Layr-Labs/pruvi-go/pkg/config"
	"github.com/Layr-Labs/pruvi-go/pkg/logger"
	"github.com/Layr-Labs/pruvi-go/pkg/segments"
	"github.com/Layr-Labs/pruvi-go/pkg/types"
	"github.com/Layr-Labs/pruvi-go/pkg/verifier"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	infoColor = color.New(color.FgCyan)
)

func splitCommand() *cli.Command {
	return &cli.Command{
		Name:  "split",
		Usage: "Split a file into chunks, commit them and export the root, proofs and parts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "File to split",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output folder",
				Value:   config.DefaultOutputFolder,
				EnvVars: []string{config.EnvPruviOutputFolder},
			},
			&cli.IntFlag{
				Name:    "chunk-size",
				Aliases: []string{"n"},
				Usage:   "Bytes per segment",
				Value:   segments.DefaultChunkSize,
				EnvVars: []string{config.EnvPruviChunkSize},
			},
		},
		Action: runSplit,
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate a part against its proof and a Merkle root",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "proof",
				Aliases:  []string{"p"},
				Usage:    "Proof file (.json or .cbor)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Part file to validate",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "root",
				Aliases:  []string{"m"},
				Usage:    "Merkle root as hex, or a tree / all_proofs export to read it from",
				Required: true,
			},
		},
		Action: runValidate,
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Rebuild a tree export, check its root and optionally regenerate a proof",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "tree",
				Aliases:  []string{"t"},
				Usage:    "Tree export file (.json or .cbor)",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "index",
				Aliases: []string{"i"},
				Usage:   "Regenerate the proof of this 0-based leaf index",
				Value:   -1,
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Write the regenerated proof here instead of stdout",
			},
		},
		Action: runInspect,
	}
}

func newLogger(cfg *config.PruviConfig) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}

func runSplit(c *cli.Context) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	source, err := segments.NewFile(c.String("file"), cfg.ChunkSize)
	if err != nil {
		return err
	}

	committer, err := commitment.NewCommitter(&commitment.Config{
		Hashing: cfg.Hashing,
		Workers: cfg.Workers,
		Codec:   outputCodec(cfg),
	}, l)
	if err != nil {
		return err
	}

	cm, err := committer.Commit(c.Context, source)
	if err != nil {
		return fmt.Errorf("failed to commit %s: %w", source.Path, err)
	}
	if err := cm.Export(cfg.OutputFolder, source.Extension()); err != nil {
		return err
	}

	store, err := openStore(cfg, l)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
		if err := cm.Persist(store); err != nil {
			return err
		}
	}

	w := c.App.Writer
	_, _ = okColor.Fprintf(w, "🌳 Committed %d parts of %s\n", len(cm.Segments), source.Path)
	fmt.Fprintf(w, "   Tree ID:   %s\n", cm.TreeID)
	fmt.Fprintf(w, "   Algorithm: %s (security=%t, raw_bytes=%t)\n", cfg.Hashing.Algorithm, cfg.Hashing.Security, cfg.Hashing.RawBytes)
	fmt.Fprintf(w, "   Root:      %s\n", cm.Root.Hex())
	fmt.Fprintf(w, "   Output:    %s\n", cfg.OutputFolder)
	if store != nil {
		fmt.Fprintf(w, "   Stored in: %s\n", cfg.Persistence.Type)
	}
	return nil
}

func runValidate(c *cli.Context) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	proofPath := c.String("proof")
	proofData, err := os.ReadFile(proofPath)
	if err != nil {
		return fmt.Errorf("failed to read proof %s: %w", proofPath, err)
	}
	proof, err := codec.DecodeProof(codec.ForPath(proofPath), proofData)
	if err != nil {
		return fmt.Errorf("invalid proof %s: %w", proofPath, err)
	}

	root, err := resolveRoot(c.String("root"))
	if err != nil {
		return err
	}

	result, err := verifier.New(l).VerifyFile(c.String("data"), proof, root)
	if err != nil {
		return err
	}

	w := c.App.Writer
	_, _ = infoColor.Fprintf(w, "🔍 Validating %s (part %d of %d)\n", c.String("data"), proof.LeafIndex+1, proof.TreeSize)
	printStep(c, types.StepContentHash, result.Valid || result.FailedStep == types.StepPathRoot)
	if result.FailedStep != types.StepContentHash {
		printStep(c, types.StepPathRoot, result.Valid)
	}

	if !result.Valid {
		_, _ = failColor.Fprintf(w, "❌ Validation failed: %s\n", result.Reason)
		return result.Err()
	}
	_, _ = okColor.Fprintf(w, "✅ %s belongs to root %s\n", c.String("data"), root.Hex())
	return nil
}

func printStep(c *cli.Context, step types.VerificationStep, ok bool) {
	if ok {
		_, _ = okColor.Fprintf(c.App.Writer, "   ✔ %s\n", step)
		return
	}
	_, _ = failColor.Fprintf(c.App.Writer, "   ✕ %s\n", step)
}

// resolveRoot accepts a hex root or the path of a tree or proof set export
func resolveRoot(value string) (types.Hash, error) {
	data, err := os.ReadFile(value)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", value, err)
		}
		root, err := types.HashFromHex(value)
		if err != nil {
			return nil, fmt.Errorf("root is neither an export file nor a hex digest: %w", err)
		}
		return root, nil
	}

	c := codec.ForPath(value)
	if doc, err := codec.DecodeTree(c, data); err == nil {
		return doc.Root()
	}
	root, _, err := codec.DecodeProofSet(c, data)
	if err != nil {
		return nil, fmt.Errorf("%s is neither a tree nor a proof set export: %w", value, err)
	}
	return root, nil
}

func runInspect(c *cli.Context) error {
	cfg, err := parseConfig(c)
	if err != nil {
		return err
	}
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	treePath := c.String("tree")
	data, err := os.ReadFile(treePath)
	if err != nil {
		return fmt.Errorf("failed to read tree %s: %w", treePath, err)
	}
	doc, err := codec.DecodeTree(codec.ForPath(treePath), data)
	if err != nil {
		return err
	}

	w := c.App.Writer
	tree, err := codec.RebuildTree(doc)
	if err != nil {
		_, _ = failColor.Fprintf(w, "❌ %s: %v\n", treePath, err)
		return err
	}
	l.Sugar().Debugw("Rebuilt tree", "treeId", doc.TreeID, "leaves", tree.Size())

	_, _ = okColor.Fprintf(w, "✅ Tree %s rebuilds to its recorded root\n", doc.TreeID)
	fmt.Fprintf(w, "   Algorithm: %s (security=%t, raw_bytes=%t)\n", doc.Algorithm, doc.Security, doc.RawBytes)
	fmt.Fprintf(w, "   Leaves:    %d\n", doc.LeafCount)
	fmt.Fprintf(w, "   Root:      %s\n", doc.RootHash)
	fmt.Fprintf(w, "   Created:   %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05 MST"))

	index := c.Int("index")
	if index < 0 {
		return nil
	}
	proof, err := tree.AuditProof(index)
	if err != nil {
		return err
	}
	return writeProof(c, outputCodec(cfg), proof, c.String("out"))
}
