package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hireloop/portalchat/internal/config"
	"github.com/hireloop/portalchat/internal/db"
	"github.com/hireloop/portalchat/internal/embeddings"
	"github.com/hireloop/portalchat/internal/session"
	"github.com/hireloop/portalchat/internal/vectordb"
)

// loadConfig reads and validates the config file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// vectorDir is where the chromem store persists between runs.
func vectorDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "vectordb")
}

// openVectorStore creates the chromem-backed store and restores any
// persisted indexes. A missing snapshot is not an error; the store just
// starts empty.
func openVectorStore(ctx context.Context, cfg *config.Config) *vectordb.ChromemStore {
	store := vectordb.NewChromemStore()
	dir := vectorDir(cfg)
	if err := store.Load(ctx, dir); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: could not load vector store from %s: %v\n", dir, err)
		}
	}
	return store
}

// createEmbedder builds the configured embedder with retry wrapping.
func createEmbedder(cfg *config.Config) (embeddings.Embedder, error) {
	embedder, err := embeddings.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return embedder, nil
}

// openDatabase opens the SQLite database under the data directory.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	return db.Open(filepath.Join(cfg.DataDir, "portalchat.db"))
}

// newSessionStore picks the configured session backend.
func newSessionStore(cfg *config.Config, database *db.DB) session.Store {
	if cfg.Session.Backend == "sqlite" {
		return session.NewSQLiteStore(database)
	}
	return session.NewMemoryStore()
}
