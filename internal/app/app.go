// Package app assembles the runtime shared by the console, the HTTP server and
// the transcription command: the model, the team, the stores and the observers.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/skycast/skycast/internal/agent"
	"github.com/skycast/skycast/internal/config"
	"github.com/skycast/skycast/internal/llm"
	"github.com/skycast/skycast/internal/security"
	"github.com/skycast/skycast/internal/service"
	"github.com/skycast/skycast/internal/store"
)

// App holds the wired runtime. Optional parts are nil when disabled.
type App struct {
	Config      *config.Config
	Weather     *service.OpenWeatherService
	Runner      *agent.Runner
	Sessions    store.SessionStore
	Archive     *service.TurnArchive
	Transcriber *service.Transcriber

	closers []func() error
}

// New builds the runtime described by cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	model, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}

	a.Weather = service.NewOpenWeatherService(service.OpenWeatherConfig{
		APIKey:      cfg.OpenWeatherAPIKey,
		GeoBaseURL:  cfg.OpenWeatherGeoBaseURL,
		DataBaseURL: cfg.OpenWeatherBaseURL,
		Timeout:     cfg.ProviderTimeout.Duration,
		MaxRetries:  cfg.ProviderMaxRetries,
		RatePerSec:  cfg.ProviderRatePerSec,
	})

	cache, closeCache, err := store.OpenGeoCache(ctx, cfg.GeoCache, cfg.GeoCacheDSN)
	if err != nil {
		return nil, fmt.Errorf("geocode cache: %w", err)
	}
	a.closers = append(a.closers, closeCache)
	geocoder := store.NewCachedGeocoder(a.Weather, cache)

	switch cfg.SessionStore {
	case "redis":
		rs, err := store.NewRedisSessionStore(ctx, cfg.RedisURL, cfg.SessionTTL.Duration)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		a.Sessions = rs
	default:
		a.Sessions = store.NewMemorySessionStore()
	}

	opts := []agent.Option{agent.WithMaxSteps(cfg.MaxTurnSteps)}
	if cfg.EnablePromptValidation {
		opts = append(opts, agent.WithValidator(security.NewPromptValidator()))
	}
	opts = append(opts, agent.WithObserver(
		security.NewAuditLogger(cfg.EnableAuditLogging, security.NewPIIDetector(cfg.PIIKeywords)),
	))

	if cfg.ElasticsearchEnabled {
		archive, err := service.NewTurnArchive(service.ArchiveConfig{
			URL:         cfg.ElasticsearchURL,
			User:        cfg.ElasticsearchUser,
			Password:    cfg.ElasticsearchPassword,
			VerifyCerts: cfg.ElasticsearchVerifyCerts,
			MaxRetries:  cfg.ElasticsearchMaxRetries,
			Index:       cfg.ArchiveIndex,
		})
		if err != nil {
			log.Warn().Err(err).Msg("turn archive unavailable")
		} else {
			a.Archive = archive
			var masker agent.Masker
			if cfg.EnableDataMasking {
				masker = security.NewDataMasker()
			}
			opts = append(opts, agent.WithObserver(agent.NewArchiveObserver(archive, masker)))
		}
	}

	a.Runner = agent.NewRunner(model, agent.NewTeam(geocoder, a.Weather), opts...)
	a.Transcriber = NewTranscriber(cfg)

	log.Info().
		Str("model", a.Runner.ModelName()).
		Str("session_store", cfg.SessionStore).
		Str("geocache", cfg.GeoCache).
		Bool("archive_enabled", a.Archive != nil).
		Bool("transcription_enabled", a.Transcriber != nil).
		Bool("prompt_validation", cfg.EnablePromptValidation).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Msg("runtime configured")
	return a, nil
}

// Close releases stores in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewModel selects the chat backend named by cfg.LLMProvider
func NewModel(cfg *config.Config) (llm.Model, error) {
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		return llm.NewAnthropicModel(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL), nil
	case config.ProviderAzure:
		client := llm.NewAzureClient(llm.AzureConfig{
			Endpoint:   cfg.AzureEndpoint,
			Deployment: cfg.AzureDeployment,
			APIVersion: cfg.AzureAPIVersion,
			APIKey:     cfg.AzureAPIKey,
		})
		model := cfg.AzureModel
		if model == "" {
			model = cfg.AzureDeployment
		}
		return llm.NewOpenAIModel(client, model), nil
	case config.ProviderOpenAI:
		return llm.NewOpenAIModel(llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), cfg.OpenAIModel), nil
	case config.ProviderRules:
		return agent.NewRulesModel(), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
}

// NewTranscriber returns a Whisper client, or nil when no speech backend is configured.
// Azure needs a dedicated whisper deployment; otherwise an OpenAI key is used.
func NewTranscriber(cfg *config.Config) *service.Transcriber {
	switch {
	case cfg.AzureWhisperDeployment != "" && cfg.AzureEndpoint != "" && cfg.AzureAPIKey != "":
		client := llm.NewAzureClient(llm.AzureConfig{
			Endpoint:   cfg.AzureEndpoint,
			Deployment: cfg.AzureWhisperDeployment,
			APIVersion: cfg.AzureAPIVersion,
			APIKey:     cfg.AzureAPIKey,
		})
		return service.NewTranscriber(client, openai.Whisper1)
	case cfg.OpenAIAPIKey != "":
		return service.NewTranscriber(llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), openai.Whisper1)
	}
	return nil
}
