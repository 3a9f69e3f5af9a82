package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"seekite/internal/auth"
	"seekite/internal/config"
	"seekite/internal/db"
	"seekite/internal/handlers"
	"seekite/internal/logging"
	"seekite/internal/service"
	"seekite/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default seekite.yaml)")
	flag.Parse()

	// Load .env file if present (does not override existing env vars).
	config.LoadDotenv(".env")

	// Refuses to start with a missing or default JWT secret.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "FATAL:", err)
		os.Exit(1)
	}
	logger := logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer store.Close()

	var revoker session.Revoker = session.NewMemoryRevoker()
	if cfg.RedisURL != "" {
		rr, err := session.NewRedisRevoker(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("init token revocation: %w", err)
		}
		defer rr.Close()
		revoker = rr
	}

	authSvc := auth.New(cfg.JWTSecret, cfg.TokenTTL, revoker)
	svc := service.New(store, authSvc, service.Options{
		LeaderOnlyTopics: cfg.LeaderOnlyTopics,
		Logger:           logger,
	})
	h := handlers.New(svc, authSvc, logger, cfg.SecureCookies)

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: h.Router(handlers.RouterConfig{
			Logger:        logger,
			Store:         store,
			AuthPerMinute: cfg.AuthRatePerMinute,
			AuthBurst:     cfg.AuthBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("seekite listening",
			"addr", cfg.Addr,
			"driver", cfg.DatabaseDriver,
			"redis", cfg.RedisURL != "",
			"leader_only_topics", cfg.LeaderOnlyTopics)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
