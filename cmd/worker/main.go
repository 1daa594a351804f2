package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/veeky/veeky-backend/internal/capability"
	"github.com/veeky/veeky-backend/internal/clients/ollama"
	"github.com/veeky/veeky-backend/internal/config"
	"github.com/veeky/veeky-backend/internal/db"
	"github.com/veeky/veeky-backend/internal/indexing"
	"github.com/veeky/veeky-backend/internal/media"
	"github.com/veeky/veeky-backend/internal/observability"
	"github.com/veeky/veeky-backend/internal/platform/logger"
	"github.com/veeky/veeky-backend/internal/platform/opensearch"
	"github.com/veeky/veeky-backend/internal/repos"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.Load()
	ctx := context.Background()

	// Tracing
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "veeky-worker",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	if otelShutdown != nil {
		defer func() { _ = otelShutdown(context.Background()) }()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	videoRepo := repos.NewVideoRepo(thePG, log)
	promptRepo := repos.NewPromptRepo(thePG, log)

	// Clients
	gateway, err := ollama.NewClient(log, ollama.ConfigFromEnv())
	if err != nil {
		log.Error("Could not init model gateway client", "error", err)
		os.Exit(1)
	}
	indexCfg := opensearch.ConfigFromEnv()
	index, err := opensearch.NewClient(ctx, log, indexCfg)
	if err != nil {
		log.Error("Could not init search index client", "error", err)
		os.Exit(1)
	}

	// Pipeline
	caps := capability.NewRegistry(log)
	tools := media.NewTools(log, caps)
	prompts := indexing.NewPromptResolver(log, promptRepo)
	keyframes := indexing.NewKeyframeExtractor(log, tools, cfg.Pipeline.KeyframeInterval, cfg.Pipeline.SSIMThreshold)
	segmenter := indexing.NewSegmenter(log, cfg.Pipeline.MinSegment, cfg.Pipeline.MaxSegment)
	transcriber := indexing.NewTranscriber(log, tools, caps, gateway, prompts, cfg.Pipeline.ChunkMaxChars)
	documents := indexing.NewDocumentBuilder(log, gateway, prompts, indexCfg.TextVectorDim, indexCfg.ImageVectorDim)
	orchestrator := indexing.NewOrchestrator(
		log,
		cfg.Pipeline,
		videoRepo,
		tools,
		keyframes,
		segmenter,
		transcriber,
		documents,
		index,
	)

	// Worker
	worker := indexing.NewWorker(log, orchestrator)
	mux := asynq.NewServeMux()
	worker.Register(mux)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
		},
	)

	log.Info("Worker starting", "concurrency", cfg.Queue.Concurrency)
	if err := srv.Run(mux); err != nil {
		log.Error("Worker failed", "error", err)
		os.Exit(1)
	}
}
