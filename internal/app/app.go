package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/markdave123-py/contexta-ingest/internal/config"
	"github.com/markdave123-py/contexta-ingest/internal/core"
	db "github.com/markdave123-py/contexta-ingest/internal/core/database"
	"github.com/markdave123-py/contexta-ingest/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta-ingest/internal/core/llm"
	objectclient "github.com/markdave123-py/contexta-ingest/internal/core/object-client"
	"github.com/markdave123-py/contexta-ingest/internal/services"
)

// Pipeline is everything needed to ingest and query documents, shared by the server and the CLI.
type Pipeline struct {
	DB       *db.DatabaseClient
	Ingestor *ingestion_engine.DocumentIngestor
	Queue    *ingestion_engine.Queue
	Archive  *objectclient.Archiver // nil without object storage

	embedder *llm.GeminiEmbedder
	vision   *llm.GeminiVision
}

// NewPipeline connects the providers and stores described by cfg.
// Archiving is skipped when no AWS credentials are configured.
func NewPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	embedder, err := llm.NewGeminiEmbedder(initCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	vision, err := llm.NewGeminiVision(initCtx, cfg.AIAPIKey, cfg.VisionModel)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("couldn't initialize the vision model, %w", err)
	}

	dbClient, err := db.NewDatabaseClient(initCtx, cfg, embedder, logger)
	if err != nil {
		_ = embedder.Close()
		_ = vision.Close()
		return nil, err
	}
	logger.Info("database initialized and ready")

	var (
		archive  *objectclient.Archiver
		archiver core.Archiver
	)
	if cfg.AwsAccessKey != "" && cfg.AwsSecretKey != "" {
		objClient, err := objectclient.NewS3Client(initCtx, cfg)
		if err != nil {
			_ = dbClient.Close()
			_ = embedder.Close()
			_ = vision.Close()
			return nil, err
		}
		archive = objectclient.NewArchiver(objClient, cfg.BucketName, cfg.ArchivePrefix, logger)
		archiver = archive
		logger.Info("object storage initialized and ready", "bucket", cfg.BucketName)
	} else {
		logger.Warn("AWS credentials not set; originals will not be archived")
	}

	policy := ingestion_engine.RetryPolicy{
		MaxRetries: cfg.AnalyzeMaxRetries,
		BaseDelay:  cfg.AnalyzeBaseDelay,
		MaxDelay:   cfg.AnalyzeMaxDelay,
	}
	analyzer := ingestion_engine.NewPageAnalyzer(vision, policy, cfg.TargetLanguage, cfg.MaxOutputTokens, logger)

	converters := ingestion_engine.NewToolConverters(ingestion_engine.ToolConfig{
		PdftoppmBin:    cfg.PdftoppmBin,
		RasterDPI:      cfg.RasterDPI,
		MaxPages:       cfg.MaxPages,
		SofficeBin:     cfg.SofficeBin,
		OfficeProbeCmd: cfg.OfficeProbeCmd,
		Timeout:        cfg.ConvertTimeout,
	}, logger)

	ingCfg := ingestion_engine.IngestConfig{
		ChunkSize:          cfg.ChunkSize,
		ChunkOverlap:       cfg.ChunkOverlap,
		PageConcurrency:    cfg.PageConcurrency,
		ReplaceExisting:    true,
		OfficeTextFallback: cfg.OfficeTextFallback,
	}
	ingestor, err := ingestion_engine.NewDocumentIngestor(dbClient, archiver, analyzer, converters, ingCfg, logger)
	if err != nil {
		_ = dbClient.Close()
		_ = embedder.Close()
		_ = vision.Close()
		return nil, err
	}

	return &Pipeline{
		DB:       dbClient,
		Ingestor: ingestor,
		Queue:    ingestion_engine.NewQueue(ingestor, dbClient, cfg.IngestQueue, cfg.IngestTimeout, logger),
		Archive:  archive,
		embedder: embedder,
		vision:   vision,
	}, nil
}

func (p *Pipeline) Close() {
	if p.DB != nil {
		_ = p.DB.Close()
	}
	if p.embedder != nil {
		_ = p.embedder.Close()
	}
	if p.vision != nil {
		_ = p.vision.Close()
	}
}

type App struct {
	Pipeline *Pipeline
	Service  *services.DocumentService
	Server   *Server
	logger   *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pipeline, err := NewPipeline(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	svc := services.NewDocumentService(pipeline.DB, pipeline.DB, pipeline.Queue, logger)
	server := NewServer(cfg, svc, pipeline.DB, logger)

	return &App{Pipeline: pipeline, Service: svc, Server: server, logger: logger}, nil
}

// Run starts the ingestion workers and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context, workers int) error {
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	a.Pipeline.Queue.Start(workerCtx, workers)
	a.logger.Info("ingestion workers started", "workers", workers)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Server.Start() }()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", "error", err)
	}

	stopWorkers()
	a.Pipeline.Queue.Wait()
	a.logger.Info("ingestion workers stopped")
	return runErr
}

func (a *App) Close() {
	a.Pipeline.Close()
}
