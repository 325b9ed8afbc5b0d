package app

import (
	"context"
	"time"

	"github.com/vectra-io/vectra/internal/config"
	"github.com/vectra-io/vectra/internal/core"
	db "github.com/vectra-io/vectra/internal/core/database"
	"github.com/vectra-io/vectra/internal/core/ingest"
	"github.com/vectra-io/vectra/internal/core/llm"
	objectclient "github.com/vectra-io/vectra/internal/core/object-client"
	"github.com/vectra-io/vectra/internal/logger"
	"github.com/vectra-io/vectra/internal/services"
)

type App struct {
	DBClient core.DbClient
	Server   *Server

	closers []func() error
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{}

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBClient = dbClient
	a.closers = append(a.closers, dbClient.Close)
	logger.Info("database initialized and ready")

	var embedder core.EmbeddingProvider
	if cfg.Testing {
		embedder = llm.NewFakeEmbedder(cfg.EmbedDim)
		logger.Warn("testing mode: using deterministic fake embeddings")
	} else {
		geminiEmbedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, geminiEmbedder.Close)
		embedder = geminiEmbedder
	}

	var llmProvider core.LLMProvider
	if cfg.AIAPIKey != "" && !cfg.Testing {
		geminiLLM, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, geminiLLM.Close)
		llmProvider = geminiLLM
	}

	// Raw-file archival is optional; skip it when S3 is not configured.
	var objClient core.ObjectClient
	if cfg.AwsAccessKey != "" && cfg.BucketName != "" {
		objClient, err = objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		logger.Info("object storage not configured, raw-file archival disabled")
	}

	cols := services.NewCollectionService(dbClient)
	docs := services.NewDocumentService(dbClient, embedder, cfg.EmbedDim)
	ingestSvc := services.NewIngestService(
		docs,
		ingest.NewDocconvExtractor(false),
		objClient,
		cfg.BucketName,
		services.IngestConfig{TargetTokens: 100, OverlapTokens: 5, MaxConcurrency: 4},
	)

	a.Server = NewServer(cfg, dbClient, cols, docs, ingestSvc, llmProvider)
	return a, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}
