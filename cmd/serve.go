package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hireloop/portalchat/internal/chat"
	"github.com/hireloop/portalchat/internal/contentstore"
	"github.com/hireloop/portalchat/internal/events"
	"github.com/hireloop/portalchat/internal/indexer"
	"github.com/hireloop/portalchat/internal/llm"
	"github.com/hireloop/portalchat/internal/retrieval"
	"github.com/hireloop/portalchat/internal/safety"
	"github.com/hireloop/portalchat/internal/server"
	"github.com/hireloop/portalchat/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat API server",
	Long:  `Starts the HTTP server exposing the chat API, session management, and index administration endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		embedder, err := createEmbedder(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := openVectorStore(ctx, cfg)

		database, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		retriever, err := retrieval.NewEngine(embedder, store, retrieval.Options{
			TopK:                cfg.Retrieval.TopK,
			SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
			MaxContextChars:     cfg.Retrieval.MaxContextChars,
		})
		if err != nil {
			return fmt.Errorf("creating retrieval engine: %w", err)
		}

		provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}
		guarded := llm.NewGuardedProvider(provider, cfg.Generation.Timeout)

		sessions := session.NewManager(newSessionStore(cfg, database), cfg.Session.TTL, cfg.Session.MaxPerVisitor)
		if cfg.Session.SweepInterval > 0 {
			sessions.StartSweeper(ctx, cfg.Session.SweepInterval)
		}

		dispatcher := events.NewDispatcher(events.NewStore(database), cfg.Events.WebhookURL)
		defer dispatcher.Close()

		engine := chat.NewEngine(sessions, retriever, guarded,
			safety.NewSanitizer(cfg.Safety.MaxMessageChars),
			safety.NewLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour),
			dispatcher,
			chat.Options{
				HistoryTurns: cfg.Retrieval.HistoryTurns,
				MaxTokens:    cfg.Generation.MaxTokens,
				Temperature:  cfg.Generation.Temperature,
			})

		idx := indexer.New(embedder, store, contentstore.NewFileStore(cfg.ContentDir))

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAll,
		}, database, engine, idx, dispatcher)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}

		// Persist the vector store so indexes survive restarts.
		if err := os.MkdirAll(vectorDir(cfg), 0o755); err == nil {
			if err := store.Persist(shutdownCtx, vectorDir(cfg)); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: persisting vector store: %v\n", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
