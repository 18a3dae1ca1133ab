package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/QTest-hq/pyflowchart/internal/api"
	"github.com/QTest-hq/pyflowchart/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 70 * time.Second // above the router's 60s request timeout
	idleTimeout  = 60 * time.Second
	drainTimeout = 30 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("flowchart API stopped")
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	zerolog.SetGlobalLevel(cfg.Level())

	srv, err := api.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Int("port", cfg.Port).
			Int("cache_size", cfg.CacheSize).
			Str("env", cfg.Env).
			Msg("serving flowchart translations")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on port %d: %w", cfg.Port, err)
		}
		return nil
	case <-ctx.Done():
	}

	// cached results live in memory and are dropped on exit
	log.Info().Msg("draining in-flight translations...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not drain requests: %w", err)
	}

	log.Info().Msg("flowchart API stopped")
	return nil
}
