package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hireloop/portalchat/internal/contentstore"
	"github.com/hireloop/portalchat/internal/indexer"
	"github.com/hireloop/portalchat/internal/progress"
)

var indexCmd = &cobra.Command{
	Use:   "index [subjectID...]",
	Short: "Build vector indexes from CV content files",
	Long: `Reads structured CV content from the content directory, chunks and
embeds it, and writes per-subject vector indexes. With no arguments,
every subject in the content directory is indexed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		embedder, err := createEmbedder(cfg)
		if err != nil {
			return err
		}

		ctx := context.Background()
		store := openVectorStore(ctx, cfg)

		subjects := args
		if len(subjects) == 0 {
			if subjects, err = listSubjects(cfg.ContentDir); err != nil {
				return err
			}
		}
		if len(subjects) == 0 {
			return fmt.Errorf("no content files found in %s", cfg.ContentDir)
		}

		idx := indexer.New(embedder, store, contentstore.NewFileStore(cfg.ContentDir))
		reporter := progress.NewReporter()
		reporter.Start(len(subjects))

		var failed int
		for i, subjectID := range subjects {
			reporter.Update(i, subjectID)
			result, err := idx.Reindex(ctx, subjectID)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "Error indexing %s: %v\n", subjectID, err)
				continue
			}
			if verbose {
				fmt.Fprintf(os.Stderr, "%s: %d chunks (%d skipped)\n",
					subjectID, result.ChunkCount, len(result.Skipped))
			}
		}
		reporter.Update(len(subjects), "done")
		reporter.Finish()

		if err := os.MkdirAll(vectorDir(cfg), 0o755); err != nil {
			return fmt.Errorf("creating vector dir: %w", err)
		}
		if err := store.Persist(ctx, vectorDir(cfg)); err != nil {
			return fmt.Errorf("persisting vector store: %w", err)
		}

		fmt.Printf("Indexed %d subjects (%d failed)\n", len(subjects)-failed, failed)
		if failed > 0 {
			return fmt.Errorf("%d subjects failed to index", failed)
		}
		return nil
	},
}

// listSubjects finds every <subjectID>.json in the content directory.
func listSubjects(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading content dir: %w", err)
	}
	var subjects []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		subjects = append(subjects, strings.TrimSuffix(e.Name(), ".json"))
	}
	return subjects, nil
}

func init() {
	rootCmd.AddCommand(indexCmd)
}
