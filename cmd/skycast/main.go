// Command skycast is the interactive weather console.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/app"
	"github.com/skycast/skycast/internal/config"
	"github.com/skycast/skycast/internal/console"
)

func main() {
	provider := flag.String("provider", "", "override SKYCAST_LLM_PROVIDER (anthropic, azure, openai, rules)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *provider != "" {
		cfg.LLMProvider = *provider
	}
	// warnings only, so the prompt stays readable
	level := cfg.LogLevel
	if level == config.DefaultLogLevel {
		level = "warn"
	}
	app.SetupLogging(level, true)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	defer rt.Close()

	c := console.New(rt.Runner, os.Stdin, os.Stdout, cfg.TurnTimeout.Duration)
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("console stopped")
	}
}
