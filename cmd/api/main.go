package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/perla/internal/api"
	"github.com/dvloznov/perla/internal/app"
	"github.com/dvloznov/perla/internal/config"
	"github.com/dvloznov/perla/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "perla.yml", "Path to the configuration file")
		port       = flag.String("port", "", "HTTP server port (overrides server.port)")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	log = logger.NewFromConfig(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}

	log.Info().Msg("Starting sync workers")
	if err := a.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start sync workers")
	}

	deps := api.Deps{
		Assistant:      a.Gateway,
		Sessions:       a.Sessions,
		Jobs:           a.Jobs,
		DefaultOwner:   cfg.OwnerID,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	}
	if a.Transcriber != nil {
		deps.Transcriber = a.Transcriber
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Session.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("store", string(cfg.Store.Driver)).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Pending ledger writes are flushed before the workers stop.
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
	cancel()

	log.Info().Msg("Server exited")
}
