package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/beatsync/beatsync/internal/app"
	"github.com/beatsync/beatsync/internal/config"
	"github.com/beatsync/beatsync/internal/log"
)

// chunkTargetChars is the approximate chunk size for indexing. Small
// enough to embed comfortably, large enough to keep a thought together.
const chunkTargetChars = 1000

var indexableExtensions = map[string]bool{
	".md":  true,
	".txt": true,
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index documents into the knowledge base",
	Long: `Index walks the given file or directory, splits Markdown and text
files into chunks, embeds them, and stores them in the knowledge base
used to ground answers.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(ctx context.Context, root string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	indexed := 0
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !indexableExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		title := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		for _, chunk := range splitChunks(string(content)) {
			if err := a.Knowledge.Index(ctx, chunk, path, title); err != nil {
				return fmt.Errorf("indexing %s: %w", path, err)
			}
			indexed++
		}
		logger.Info("indexed document", "path", path)
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walking %s: %w", root, walkErr)
	}

	logger.Info("indexing completed", "chunks", indexed)
	return nil
}

// splitChunks groups paragraphs into chunks of roughly chunkTargetChars.
func splitChunks(content string) []string {
	paragraphs := strings.Split(content, "\n\n")

	var chunks []string
	var current strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(p) > chunkTargetChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
