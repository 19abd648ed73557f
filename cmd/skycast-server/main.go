// Command skycast-server serves the conversation API over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/app"
	"github.com/skycast/skycast/internal/config"
	"github.com/skycast/skycast/internal/server"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	app.SetupLogging(cfg.LogLevel, !cfg.IsProduction())

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}

	srv := server.New(cfg, rt)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return rt.Watch(gctx, app.DefaultCheckInterval)
	})

	err = g.Wait()
	if closeErr := rt.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("error closing stores")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}
