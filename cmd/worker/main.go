package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rfp-studio/engine/pkg/config"
	"github.com/rfp-studio/engine/pkg/database"
	"github.com/rfp-studio/engine/pkg/logger"

	"github.com/rfp-studio/engine/internal/notify"
	"github.com/rfp-studio/engine/internal/queue/tasks"
	"github.com/rfp-studio/engine/internal/repository"
	"github.com/rfp-studio/engine/internal/services"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if !cfg.QueueEnabled() {
		log.Fatal("REDIS_ADDR is required to run the worker")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}
	_ = rdb.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		},
		asynq.Config{
			Concurrency: cfg.AsynqConcurrency,
		},
	)

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, cfg.AppEnv)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close(db)

	channel, err := notify.NewChannel(ctx, cfg, &http.Client{Timeout: 15 * time.Second})
	if err != nil {
		log.Fatal("failed to configure delivery channel", zap.Error(err))
	}
	renderer, err := notify.NewRenderer()
	if err != nil {
		log.Fatal("failed to load email templates", zap.Error(err))
	}

	// The worker delivers inline, so it has no queue of its own.
	notifSvc := services.NewNotificationService(
		repository.NewNotificationRepository(db),
		repository.NewUserRepository(db),
		channel, renderer, cfg.EmailSender, nil,
	)

	mux := asynq.NewServeMux()
	handler := tasks.NewNotificationTaskHandler(notifSvc)
	mux.HandleFunc(services.TypeNotificationSend, handler.HandleSend)

	errCh := make(chan error, 1)
	go func() {
		log.Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("worker stopped with error", zap.Error(err))
	}

	srv.Shutdown()
}
