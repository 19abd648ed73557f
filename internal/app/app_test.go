package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skycast/skycast/internal/app"
	"github.com/skycast/skycast/internal/config"
	"github.com/skycast/skycast/internal/store"
)

func baseConfig() *config.Config {
	return &config.Config{
		LLMProvider:       config.ProviderRules,
		OpenWeatherAPIKey: "owm",
		SessionStore:      "memory",
		GeoCache:          "memory",
		MaxTurnSteps:      config.DefaultMaxTurnSteps,
	}
}

func TestNewModel(t *testing.T) {
	cases := []struct {
		provider string
		prefix   string
	}{
		{config.ProviderRules, "rules"},
		{config.ProviderAnthropic, "anthropic:"},
		{config.ProviderOpenAI, "openai:"},
		{config.ProviderAzure, "openai:"},
	}
	for _, tc := range cases {
		cfg := baseConfig()
		cfg.LLMProvider = tc.provider
		cfg.AnthropicAPIKey = "a"
		cfg.OpenAIAPIKey = "o"
		cfg.AzureEndpoint = "https://example.openai.azure.com"
		cfg.AzureAPIKey = "z"
		cfg.AzureDeployment = "gpt-4o"

		m, err := app.NewModel(cfg)
		if err != nil {
			t.Fatalf("%s: %v", tc.provider, err)
		}
		if got := m.Name(); len(got) < len(tc.prefix) || got[:len(tc.prefix)] != tc.prefix {
			t.Errorf("%s: model name %q", tc.provider, got)
		}
	}

	cfg := baseConfig()
	cfg.LLMProvider = "bogus"
	if _, err := app.NewModel(cfg); err == nil {
		t.Error("expected an error for an unknown provider")
	}
}

func TestNewTranscriber(t *testing.T) {
	cfg := baseConfig()
	if app.NewTranscriber(cfg) != nil {
		t.Error("no speech backend configured, expected nil")
	}
	cfg.OpenAIAPIKey = "o"
	if app.NewTranscriber(cfg) == nil {
		t.Error("expected an OpenAI transcriber")
	}
	cfg = baseConfig()
	cfg.AzureEndpoint = "https://example.openai.azure.com"
	cfg.AzureAPIKey = "z"
	cfg.AzureWhisperDeployment = "whisper"
	if app.NewTranscriber(cfg) == nil {
		t.Error("expected an Azure transcriber")
	}
}

func TestNewRuntime(t *testing.T) {
	cfg := baseConfig()
	cfg.GeoCache = "sqlite"
	cfg.GeoCacheDSN = ":memory:"

	rt, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Close()

	if rt.Runner == nil || rt.Sessions == nil || rt.Weather == nil {
		t.Fatalf("incomplete runtime %+v", rt)
	}
	if rt.Archive != nil || rt.Transcriber != nil {
		t.Error("optional parts should be disabled")
	}
	if rt.Runner.ModelName() != "rules" {
		t.Errorf("model = %s", rt.Runner.ModelName())
	}
	if err := rt.Sessions.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}

type downStore struct {
	store.SessionStore
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestCheckDependencies(t *testing.T) {
	healthy := &app.App{Sessions: store.NewMemorySessionStore()}
	if n := healthy.CheckDependencies(context.Background()); n != 0 {
		t.Errorf("healthy check: %d failures", n)
	}

	down := &app.App{Sessions: downStore{store.NewMemorySessionStore()}}
	if n := down.CheckDependencies(context.Background()); n != 1 {
		t.Errorf("down check: %d failures, want 1", n)
	}
}

func TestWatchStopsWithContext(t *testing.T) {
	a := &app.App{Sessions: store.NewMemorySessionStore()}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}
