// Command skycast-transcribe prints the Whisper transcript of an audio file.
// With -route the transcript is also sent to a new conversation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/skycast/skycast/internal/app"
	"github.com/skycast/skycast/internal/config"
	"github.com/skycast/skycast/internal/console"
)

func main() {
	route := flag.Bool("route", false, "send the transcript to the weather agents")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-route] <audio-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	app.SetupLogging(cfg.LogLevel, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transcriber := app.NewTranscriber(cfg)
	if transcriber == nil {
		log.Fatal().Msg("transcription needs AZURE_OPENAI_WHISPER_DEPLOYMENT or OPENAI_API_KEY")
	}

	text, err := transcriber.TranscribeFile(ctx, path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("transcription failed")
	}
	fmt.Println(text)

	if !*route {
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	rt, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	defer rt.Close()

	c := console.New(rt.Runner, nil, os.Stdout, cfg.TurnTimeout.Duration)
	if _, err := c.Say(ctx, text); err != nil {
		log.Error().Err(err).Msg("turn failed")
	}
}
