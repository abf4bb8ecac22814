package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/auth"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/blob"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/chat"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/config"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/crypto"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/gateway"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/httpapi"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/ledger"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/metrics"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/ratelimit"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/settings"
	"github.com/amandatavaresfurtado-hash/dialogueflow-ai/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(cfg.Log.Level)
	log.Info().
		Str("addr", cfg.Server.ListenAddr).
		Str("db_driver", cfg.DB.Driver).
		Msg("starting dialogueflow")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, cfg.DB.AutoMigrate, "migrations")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer rdb.Close()

	cryptoManager, err := crypto.NewManager(cfg.Crypto.CurrentKeyID, cfg.Crypto.Keys)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize crypto manager")
	}

	blobs, err := blob.New(cfg.Blob.Dir, cfg.Server.PublicBaseURL+cfg.Blob.PublicPath, cfg.Blob.MaxBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize blob store")
	}

	m := metrics.Global()
	settingsSvc := settings.NewService(store, rdb, cfg.Redis.SettingsTTL)
	ledgerSvc := ledger.New(store, m)
	gw := gateway.New(gateway.Config{
		Settings:   settingsSvc,
		Crypto:     cryptoManager,
		HTTPClient: &http.Client{Timeout: cfg.HTTP.ClientTimeout},
		Logger:     log.Logger,
		Metrics:    m,
	})
	orchestrator := chat.New(chat.Config{
		Store:    store,
		Ledger:   ledgerSvc,
		Gateway:  gw,
		Settings: settingsSvc,
		Logger:   log.Logger,
		Metrics:  m,
	})

	api := httpapi.New(httpapi.Config{
		Store:          store,
		Ledger:         ledgerSvc,
		Orchestrator:   orchestrator,
		Gateway:        gw,
		Settings:       settingsSvc,
		Blobs:          blobs,
		Auth:           auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Limiter:        ratelimit.New(rdb, cfg.Rate.MessagesPerHour),
		Crypto:         cryptoManager,
		Logger:         log.Logger,
		BlobPublicPath: cfg.Blob.PublicPath,
		HealthPath:     cfg.Server.HealthPath,
		MetricsPath:    cfg.Server.MetricsPath,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.ListenAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("runtime error")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
	}

	log.Info().Msg("stopped")
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLogLevel(level))
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
