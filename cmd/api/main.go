package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"adBuilder/internal/api"
	"adBuilder/internal/config"
	"adBuilder/internal/database"
	"adBuilder/internal/notify"
	"adBuilder/internal/session"
	"adBuilder/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	logger.Info("api bootstrapped",
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
		slog.String("sslmode", cfg.Database.SSLMode),
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	logger.Info("database migrated")
	repo := database.NewRepository(db)

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}

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

	queue := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer queue.Close()

	publisher := notify.NewPublisher(redisClient)

	sessions := session.NewManager(repo, session.Options{
		AutosaveInterval: cfg.Editor.AutosaveInterval,
		HistoryLimit:     cfg.Editor.HistoryLimit,
		PriceFlashDelay:  cfg.Editor.PriceFlashDelay,
		DefaultRegion:    cfg.Editor.DefaultRegion,
		Logger:           logger,
		OnPriceUpdate: func(adID, upc string) {
			msg := notify.PriceUpdatedMessage{Type: notify.TypePriceUpdated, AdID: adID, UPC: upc}
			if err := publisher.Publish(context.Background(), adID, msg); err != nil {
				logger.Warn("publish price update failed", slog.String("ad_id", adID), slog.Any("error", err))
			}
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sessions.Run(ctx)

	router := api.NewRouter(cfg, api.Dependencies{
		Repo:     repo,
		Sessions: sessions,
		Queue:    queue,
		Redis:    redisClient,
		Storage:  storageClient,
		Notifier: publisher,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to start api server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	// 退出前落盘所有未保存的会话
	sessions.SaveAll(shutdownCtx)
	logger.Info("api stopped")
}
