package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"adBuilder/internal/config"
	"adBuilder/internal/database"
	"adBuilder/internal/metrics"
	"adBuilder/internal/notify"
	"adBuilder/internal/storage"
	"adBuilder/internal/tasks"
	"adBuilder/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready for worker")
	repo := database.NewRepository(db)

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	handlerCfg := worker.HandlerConfig{
		InternalSecret:     cfg.API.InternalSecret,
		InternalAPIBaseURL: cfg.Worker.InternalAPIURL,
		FrontendBaseURL:    cfg.Worker.FrontendURL,
		ReadyTimeout:       cfg.Worker.RenderReadyTimeout,
	}
	pdfHandler := worker.NewPDFTaskHandler(repo, storageClient, notify.NewPublisher(redisClient), logger, handlerCfg)
	previewHandler := worker.NewTemplatePreviewHandler(repo, storageClient, logger, handlerCfg)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypePDFGenerate, pdfHandler)
	mux.Handle(tasks.TypeTemplatePreview, previewHandler)

	logger.Info("worker service started",
		slog.String("redis_addr", redisAddr),
		slog.Int("concurrency", cfg.Worker.Concurrency),
	)
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
