// Package server assembles the HTTP surface: middleware, CORS, health
// checks, chat routes, and index administration.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hireloop/portalchat/internal/apperr"
	"github.com/hireloop/portalchat/internal/chat"
	"github.com/hireloop/portalchat/internal/db"
	"github.com/hireloop/portalchat/internal/events"
	"github.com/hireloop/portalchat/internal/indexer"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server is the portalchat HTTP server.
type Server struct {
	cfg        Config
	db         *db.DB
	engine     *chat.Engine
	indexer    *indexer.Indexer
	sink       events.Sink
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all dependencies wired. sink may be nil.
func New(cfg Config, database *db.DB, engine *chat.Engine, idx *indexer.Indexer, sink events.Sink) *Server {
	if sink == nil {
		sink = events.NopSink{}
	}
	s := &Server{
		cfg:     cfg,
		db:      database,
		engine:  engine,
		indexer: idx,
		sink:    sink,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	chat.RegisterRoutes(r, s.engine)
	s.registerIndexRoutes(r)

	return r
}

// registerIndexRoutes mounts index administration endpoints. These are
// for the ingestion side, not visitors; the outer deployment is
// expected to gate them.
func (s *Server) registerIndexRoutes(r chi.Router) {
	r.Route("/api/subjects/{id}/index", func(r chi.Router) {
		r.Post("/", s.handleBuildIndex)
		r.Delete("/", s.handleDeleteIndex)
	})
}

func (s *Server) handleBuildIndex(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "id")

	result, err := s.indexer.Reindex(r.Context(), subjectID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperr.ErrInvalidContent):
			status = http.StatusBadRequest
		case errors.Is(err, apperr.ErrEmbeddingProvider):
			status = http.StatusBadGateway
		}
		http.Error(w, err.Error(), status)
		return
	}

	s.sink.Record(r.Context(), events.Event{
		Type:      events.TypeIndexBuilt,
		SubjectID: subjectID,
		Detail:    fmt.Sprintf("%d chunks", result.ChunkCount),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "id")

	if err := s.indexer.Delete(r.Context(), subjectID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.sink.Record(r.Context(), events.Event{Type: events.TypeIndexDeleted, SubjectID: subjectID})
	w.WriteHeader(http.StatusNoContent)
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("portalchat server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
