package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Duration accepts "15s" style strings in JSON config files
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"15s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	APIPrefix   string `json:"api_prefix"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header"`
	APIKeys      []string `json:"api_keys"`
	EnableAuth   bool     `json:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	// Security
	EnablePromptValidation bool     `json:"enable_prompt_validation"`
	EnableAuditLogging     bool     `json:"enable_audit_logging"`
	EnableDataMasking      bool     `json:"enable_data_masking"`
	PIIKeywords            []string `json:"pii_keywords"`

	// LLM
	LLMProvider            string `json:"llm_provider"`
	AzureEndpoint          string `json:"azure_openai_endpoint"`
	AzureDeployment        string `json:"azure_openai_deployment_name"`
	AzureAPIVersion        string `json:"azure_openai_api_version"`
	AzureAPIKey            string `json:"azure_openai_api_key"`
	AzureModel             string `json:"azure_openai_model"`
	AzureWhisperDeployment string `json:"azure_openai_whisper_deployment"`
	OpenAIAPIKey           string `json:"openai_api_key"`
	OpenAIBaseURL          string `json:"openai_base_url"`
	OpenAIModel            string `json:"openai_model"`
	AnthropicAPIKey        string `json:"anthropic_api_key"`
	AnthropicBaseURL       string `json:"anthropic_base_url"` // override for a custom proxy
	AnthropicModel         string `json:"anthropic_model"`
	MaxTurnSteps           int    `json:"max_turn_steps"`

	// Weather provider
	OpenWeatherAPIKey     string   `json:"openweather_api_key"`
	OpenWeatherGeoBaseURL string   `json:"openweather_geo_base_url"`
	OpenWeatherBaseURL    string   `json:"openweather_base_url"`
	ProviderTimeout       Duration `json:"provider_timeout"`
	ProviderMaxRetries    int      `json:"provider_max_retries"`
	ProviderRatePerSec    float64  `json:"provider_rate_per_sec"`
	TurnTimeout           Duration `json:"turn_timeout"`

	// Storage
	SessionStore string   `json:"session_store"`
	SessionTTL   Duration `json:"session_ttl"`
	RedisURL     string   `json:"redis_url"`
	GeoCache     string   `json:"geocache"`
	GeoCacheDSN  string   `json:"geocache_dsn"`

	// Elasticsearch turn archive
	ElasticsearchEnabled     bool   `json:"elasticsearch_enabled"`
	ElasticsearchURL         string `json:"elasticsearch_url"`
	ElasticsearchUser        string `json:"elasticsearch_user"`
	ElasticsearchPassword    string `json:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool   `json:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int    `json:"elasticsearch_max_retries"`
	ArchiveIndex             string `json:"archive_index"`

	// Transcription
	MaxAudioBytes int64 `json:"max_audio_bytes"`
}

// Load reads defaults, then .env, then the JSON file named by SKYCAST_CONFIG,
// then environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		APIPrefix:                DefaultAPIPrefix,
		LogLevel:                 DefaultLogLevel,
		CORSOrigins:              DefaultCORSOrigins,
		APIKeyHeader:             "X-API-Key",
		EnableAuth:               true,
		RateLimitPerMinute:       DefaultRateLimitPerMinute,
		EnablePromptValidation:   true,
		EnableAuditLogging:       true,
		EnableDataMasking:        true,
		PIIKeywords:              DefaultPIIKeywords,
		LLMProvider:              DefaultLLMProvider,
		AzureAPIVersion:          DefaultAzureAPIVersion,
		MaxTurnSteps:             DefaultMaxTurnSteps,
		ProviderTimeout:          Duration{DefaultProviderTimeout},
		ProviderMaxRetries:       DefaultProviderMaxRetries,
		ProviderRatePerSec:       DefaultProviderRatePerSec,
		TurnTimeout:              Duration{DefaultTurnTimeout},
		SessionStore:             DefaultSessionStore,
		SessionTTL:               Duration{DefaultSessionTTL},
		GeoCache:                 DefaultGeoCache,
		ElasticsearchURL:         DefaultElasticsearchURL,
		ElasticsearchVerifyCerts: true,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		ArchiveIndex:             DefaultArchiveIndex,
		MaxAudioBytes:            DefaultMaxAudioBytes,
	}

	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if path := getEnv("SKYCAST_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("SKYCAST_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("SKYCAST_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("SKYCAST_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("SKYCAST_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("SKYCAST_API_KEYS", ""); v != "" {
		cfg.APIKeys = splitList(v)
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = parseBool(v)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}

	if v := getEnv("SKYCAST_LLM_PROVIDER", ""); v != "" {
		cfg.LLMProvider = strings.ToLower(v)
	}
	if v := getEnv("AZURE_OPENAI_ENDPOINT", ""); v != "" {
		cfg.AzureEndpoint = v
	}
	if v := getEnv("AZURE_OPENAI_DEPLOYMENT_NAME", ""); v != "" {
		cfg.AzureDeployment = v
	}
	if v := getEnv("AZURE_OPENAI_API_VERSION", ""); v != "" {
		cfg.AzureAPIVersion = v
	}
	if v := getEnv("AZURE_OPENAI_API_KEY", ""); v != "" {
		cfg.AzureAPIKey = v
	}
	if v := getEnv("AZURE_OPENAI_MODEL", ""); v != "" {
		cfg.AzureModel = v
	}
	if v := getEnv("AZURE_OPENAI_WHISPER_DEPLOYMENT", ""); v != "" {
		cfg.AzureWhisperDeployment = v
	}
	if v := getEnv("OPENAI_API_KEY", ""); v != "" {
		cfg.OpenAIAPIKey = v
	}
	if v := getEnv("OPENAI_BASE_URL", ""); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := getEnv("OPENAI_MODEL", ""); v != "" {
		cfg.OpenAIModel = v
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("ANTHROPIC_MODEL", ""); v != "" {
		cfg.AnthropicModel = v
	}
	if v := getEnv("SKYCAST_MAX_TURN_STEPS", ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxTurnSteps = n
		}
	}

	if v := getEnv("OPENWEATHER_API_KEY", ""); v != "" {
		cfg.OpenWeatherAPIKey = v
	}
	if v := getEnv("SKYCAST_PROVIDER_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ProviderTimeout = Duration{d}
		}
	}
	if v := getEnv("SKYCAST_TURN_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.TurnTimeout = Duration{d}
		}
	}

	if v := getEnv("SKYCAST_SESSION_STORE", ""); v != "" {
		cfg.SessionStore = strings.ToLower(v)
	}
	if v := getEnv("REDIS_URL", ""); v != "" {
		cfg.RedisURL = v
	}
	if v := getEnv("SKYCAST_GEOCACHE", ""); v != "" {
		cfg.GeoCache = strings.ToLower(v)
	}
	if v := getEnv("SKYCAST_GEOCACHE_DSN", ""); v != "" {
		cfg.GeoCacheDSN = v
	}

	if v := getEnv("ELASTICSEARCH_ENABLED", ""); v != "" {
		cfg.ElasticsearchEnabled = parseBool(v)
	}
	if v := getEnv("ELASTICSEARCH_URL", ""); v != "" {
		cfg.ElasticsearchURL = v
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}
}

// Validate checks that the selected providers have what they need
func (c *Config) Validate() error {
	var errs []error
	switch c.LLMProvider {
	case ProviderAzure:
		if c.AzureEndpoint == "" || c.AzureAPIKey == "" || c.AzureDeployment == "" {
			errs = append(errs, errors.New("azure provider needs AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_API_KEY and AZURE_OPENAI_DEPLOYMENT_NAME"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("openai provider needs OPENAI_API_KEY"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("anthropic provider needs ANTHROPIC_API_KEY"))
		}
	case ProviderRules:
	default:
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLMProvider))
	}

	if c.OpenWeatherAPIKey == "" {
		errs = append(errs, errors.New("OPENWEATHER_API_KEY is required"))
	}

	switch c.SessionStore {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis session store needs REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q", c.SessionStore))
	}

	switch c.GeoCache {
	case "memory":
	case "sqlite", "postgres":
		if c.GeoCacheDSN == "" {
			errs = append(errs, fmt.Errorf("%s geocode cache needs SKYCAST_GEOCACHE_DSN", c.GeoCache))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown geocode cache %q", c.GeoCache))
	}

	if c.MaxTurnSteps <= 0 {
		errs = append(errs, errors.New("max_turn_steps must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the server runs with production defaults
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
