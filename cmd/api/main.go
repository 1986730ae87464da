package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rfp-studio/engine/internal/api"
	"github.com/rfp-studio/engine/internal/api/handlers"
	"github.com/rfp-studio/engine/internal/notify"
	"github.com/rfp-studio/engine/internal/repository"
	"github.com/rfp-studio/engine/internal/services"
	"github.com/rfp-studio/engine/internal/storage"
	"github.com/rfp-studio/engine/pkg/config"
	"github.com/rfp-studio/engine/pkg/database"
	"github.com/rfp-studio/engine/pkg/logger"

	_ "github.com/rfp-studio/engine/docs"
)

// @title           RFP Studio API
// @version         1.0
// @description     Request-for-proposal management for buyers and suppliers.

// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg := config.MustLoad()

	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	log.Info("starting rfp api",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
	)

	ctx := context.Background()
	db, err := database.OpenPostgres(ctx, cfg.DatabaseURL, cfg.AppEnv)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("database close error", zap.Error(err))
		}
	}()
	log.Info("database connected")

	userRepo := repository.NewUserRepository(db)
	rfpRepo := repository.NewRFPRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	notifRepo := repository.NewNotificationRepository(db)

	store, err := storage.NewFileStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		log.Fatal("failed to prepare upload dir", zap.Error(err))
	}

	channel, err := notify.NewChannel(ctx, cfg, &http.Client{Timeout: 15 * time.Second})
	if err != nil {
		log.Fatal("failed to configure delivery channel", zap.Error(err))
	}
	renderer, err := notify.NewRenderer()
	if err != nil {
		log.Fatal("failed to load email templates", zap.Error(err))
	}

	// Without redis, notifications are delivered inline.
	var queue services.TaskEnqueuer
	var rdb *redis.Client
	if cfg.QueueEnabled() {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		queue = client
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		log.Info("notification queue enabled", zap.String("redis", cfg.RedisAddr))
	}

	tokens := services.NewTokenService([]byte(cfg.JWTSecret), cfg.AccessTokenTTL)
	resolver := services.NewUserResolver(userRepo, cfg.UserCacheSize, cfg.UserCacheTTL)
	authSvc := services.NewAuthService(userRepo, tokens, resolver)
	notifSvc := services.NewNotificationService(notifRepo, userRepo, channel, renderer, cfg.EmailSender, queue)
	rfpSvc := services.NewRFPService(rfpRepo, notifSvc)
	docSvc := services.NewDocumentService(docRepo, rfpRepo, store)

	ping := func(ctx context.Context) error {
		if err := database.Ping(ctx, db); err != nil {
			return err
		}
		if rdb != nil {
			return rdb.Ping(ctx).Err()
		}
		return nil
	}

	router := api.NewRouter(api.Dependencies{
		Tokens:               tokens,
		Users:                resolver,
		CORSOrigins:          cfg.CORSOrigins,
		RateLimitRPS:         cfg.RateLimitRPS,
		RateLimitBurst:       cfg.RateLimitBurst,
		HealthHandler:        handlers.NewHealthHandler(ping),
		AuthHandler:          handlers.NewAuthHandler(authSvc),
		RFPsHandler:          handlers.NewRFPsHandler(rfpSvc),
		DocumentsHandler:     handlers.NewDocumentsHandler(docSvc, cfg.MaxUploadBytes),
		NotificationsHandler: handlers.NewNotificationsHandler(notifSvc),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
