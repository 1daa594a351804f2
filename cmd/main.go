package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/veeky/veeky-backend/internal/clients/ollama"
	"github.com/veeky/veeky-backend/internal/config"
	"github.com/veeky/veeky-backend/internal/db"
	"github.com/veeky/veeky-backend/internal/handlers"
	"github.com/veeky/veeky-backend/internal/indexing"
	"github.com/veeky/veeky-backend/internal/observability"
	"github.com/veeky/veeky-backend/internal/platform/logger"
	"github.com/veeky/veeky-backend/internal/platform/opensearch"
	"github.com/veeky/veeky-backend/internal/repos"
	"github.com/veeky/veeky-backend/internal/search"
	"github.com/veeky/veeky-backend/internal/server"
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
		ServiceName: "veeky-api",
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
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	videoRepo := repos.NewVideoRepo(thePG, log)

	// Clients
	log.Info("Setting up clients from main...")
	gateway, err := ollama.NewClient(log, ollama.ConfigFromEnv())
	if err != nil {
		log.Error("Could not init model gateway client", "error", err)
		os.Exit(1)
	}
	index, err := opensearch.NewClient(ctx, log, opensearch.ConfigFromEnv())
	if err != nil {
		log.Error("Could not init search index client", "error", err)
		os.Exit(1)
	}

	// Queue
	queue := indexing.NewQueue(log, asynq.RedisClientOpt{
		Addr:     cfg.Queue.RedisAddr,
		Password: cfg.Queue.RedisPassword,
		DB:       cfg.Queue.RedisDB,
	})
	defer queue.Close()

	// Services
	log.Info("Setting up services from main...")
	ranker := search.NewRanker(log, videoRepo, cfg.Search.MaxTotalResults, cfg.Search.MaxSegmentsPerVideo)
	searchService := search.NewService(log, cfg.Search, gateway, index, ranker)

	// Handlers
	log.Info("Setting up handlers from main...")
	searchHandler := handlers.NewSearchHandler(log, searchService)
	videoHandler := handlers.NewVideoHandler(log, videoRepo, queue)
	taskHandler := handlers.NewTaskHandler(log, queue)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		SearchHandler: searchHandler,
		VideoHandler:  videoHandler,
		TaskHandler:   taskHandler,
	})

	fmt.Printf("Server listening on %s\n", cfg.HTTPAddr)
	if err := router.Run(cfg.HTTPAddr); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
