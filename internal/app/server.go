package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vectra-io/vectra/internal/api/handlers"
	appMiddleware "github.com/vectra-io/vectra/internal/api/middlewares"
	"github.com/vectra-io/vectra/internal/config"
	"github.com/vectra-io/vectra/internal/core"
	"github.com/vectra-io/vectra/internal/logger"
	"github.com/vectra-io/vectra/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, cols *services.CollectionService, docs *services.DocumentService, ing *services.IngestService, llm core.LLMProvider) *Server {
	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret)
	adminHandler := handlers.NewAdminHandler(db)
	collectionHandler := handlers.NewCollectionHandler(cols)
	documentHandler := handlers.NewDocumentHandler(docs, ing, cols)
	chatHandler := handlers.NewChatHandler(docs, cols, llm)

	auth := appMiddleware.NewJWTMiddleware(cfg.JWTSecret, cfg.Testing)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	if len(cfg.AllowOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	r.Get("/health", handlers.Health)
	r.Post("/admin/initialize-database", adminHandler.InitializeDatabase)

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(auth)

			protected.Route("/collections", func(c chi.Router) {
				c.Get("/", collectionHandler.List)
				c.Post("/", collectionHandler.Create)
				c.Get("/{id_or_name}", collectionHandler.Get)
				c.Patch("/{id_or_name}", collectionHandler.Update)
				c.Delete("/{id_or_name}", collectionHandler.Delete)

				c.Post("/{id_or_name}/documents", documentHandler.Upload)
				c.Get("/{id_or_name}/documents", documentHandler.List)
				c.Delete("/{id_or_name}/documents/{file_id}", documentHandler.DeleteByFile)
				c.Post("/{id_or_name}/documents/search", documentHandler.Search)
			})

			protected.Get("/chunks/{chunk_id}", documentHandler.GetChunk)
			protected.Post("/chat/query", chatHandler.Query)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
