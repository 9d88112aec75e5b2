package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supportdesk/backend/internal/api/handler"
	"supportdesk/backend/internal/availability"
	"supportdesk/backend/internal/chat"
	"supportdesk/backend/internal/chathub"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/feed"
	"supportdesk/backend/internal/limiter"
	"supportdesk/backend/internal/localization"
	"supportdesk/backend/internal/notify"
	"supportdesk/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newLogger(cfg *config.Config) *zap.Logger {
	build := zap.NewProduction
	if cfg.Log.Development {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	return logger
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) *storage.Service {
	db, err := gorm.Open(postgres.Open(cfg.Database.ConnString()), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}

	s := storage.NewStorageService(db)
	if err := s.Migrate(ctx); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}
	logger.Info("database ready, migrations complete")
	return s
}

// setupLimiter returns nil when redis is unreachable; requests then go unthrottled.
func setupLimiter(ctx context.Context, cfg *config.Config, logger *zap.Logger) *limiter.Limiter {
	rdb, err := storage.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		return nil
	}
	return limiter.New(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window, logger)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg, err := config.Load(os.Getenv("SUPPORTDESK_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg)
	defer logger.Sync()
	if !cfg.IsProduction() && cfg.Chat.AvailabilityOverride != config.OverrideNone {
		logger.Warn("availability override active", zap.String("override", cfg.Chat.AvailabilityOverride))
	}
	if cfg.Reaper.Secret == "" && cfg.Reaper.AllowUnauthenticated {
		logger.Warn("reaper endpoint accepts unauthenticated calls")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := setupStorage(ctx, cfg, logger)

	loc, err := localization.Embedded()
	if err != nil {
		logger.Fatal("load locales", zap.Error(err))
	}

	hub := chathub.NewManagerService(logger, config.RefreshDebounce)
	go hub.Run(ctx)

	listener := feed.NewListener(cfg.Database.ConnString(), hub, logger)
	go func() {
		if err := listener.Run(ctx); err != nil {
			// Clients still have the pull fallback.
			logger.Error("change feed stopped", zap.Error(err))
		}
	}()

	opts := []chat.Option{
		chat.WithLogger(logger),
		chat.WithUserTimeout(cfg.Chat.UserTimeout),
	}
	if cfg.Telegram.Token != "" {
		notifier, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.AdminChatID, loc, logger)
		if err != nil {
			logger.Error("telegram notifier disabled", zap.Error(err))
		} else {
			go notifier.Run(ctx)
			opts = append(opts, chat.WithNotifier(notifier))
		}
	}

	policy := availability.NewPolicy(cfg.EffectiveOverride())
	svc := chat.NewService(store, policy, opts...)

	h := handler.NewHandler(svc, hub, handler.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AnonTokenTTL), loc, logger)
	h.Limiter = setupLimiter(ctx, cfg, logger)
	h.Reaper = cfg.Reaper
	h.Ping = store.Ping

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	h.Routes(r)

	server := &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
}
