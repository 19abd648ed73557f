package config

import "time"

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultLLMProvider     = "azure"
	DefaultAzureAPIVersion = "2024-10-21"
	DefaultMaxTurnSteps    = 10

	DefaultProviderTimeout    = 15 * time.Second
	DefaultTurnTimeout        = 120 * time.Second
	DefaultProviderMaxRetries = 3
	DefaultProviderRatePerSec = 10

	DefaultSessionStore = "memory"
	DefaultSessionTTL   = 24 * time.Hour
	DefaultGeoCache     = "memory"

	DefaultElasticsearchURL        = "http://localhost:9200"
	DefaultElasticsearchMaxRetries = 3
	DefaultArchiveIndex            = "skycast-turns"

	DefaultMaxAudioBytes = 25 << 20
)

// Providers accepted by SKYCAST_LLM_PROVIDER
const (
	ProviderAnthropic = "anthropic"
	ProviderAzure     = "azure"
	ProviderOpenAI    = "openai"
	ProviderRules     = "rules"
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

var DefaultPIIKeywords = []string{
	"password", "ssn", "social security", "credit card",
	"bank account", "passport", "api key", "private key",
}
