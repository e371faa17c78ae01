package config

import "time"

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level portalchat configuration, corresponding to .portalchat.yml.
type Config struct {
	Provider          ProviderType     `yaml:"provider" koanf:"provider"`
	Model             string           `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType     `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string           `yaml:"embedding_model" koanf:"embedding_model"`
	DataDir           string           `yaml:"data_dir" koanf:"data_dir"`
	ContentDir        string           `yaml:"content_dir" koanf:"content_dir"`
	Server            ServerConfig     `yaml:"server" koanf:"server"`
	Retrieval         RetrievalConfig  `yaml:"retrieval" koanf:"retrieval"`
	Session           SessionConfig    `yaml:"session" koanf:"session"`
	RateLimit         RateLimitConfig  `yaml:"rate_limit" koanf:"rate_limit"`
	Safety            SafetyConfig     `yaml:"safety" koanf:"safety"`
	Generation        GenerationConfig `yaml:"generation" koanf:"generation"`
	Events            EventsConfig     `yaml:"events" koanf:"events"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// RetrievalConfig controls how retrieved context is selected and assembled.
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k" koanf:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" koanf:"similarity_threshold"`
	MaxContextChars     int     `yaml:"max_context_chars" koanf:"max_context_chars"`
	HistoryTurns        int     `yaml:"history_turns" koanf:"history_turns"`
}

// SessionConfig controls chat session lifecycle.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl" koanf:"ttl"`
	MaxPerVisitor int           `yaml:"max_per_visitor" koanf:"max_per_visitor"`
	SweepInterval time.Duration `yaml:"sweep_interval" koanf:"sweep_interval"`
	Backend       string        `yaml:"backend" koanf:"backend"` // "memory" or "sqlite"
}

// RateLimitConfig holds sliding-window message limits per session.
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute" koanf:"per_minute"`
	PerHour   int `yaml:"per_hour" koanf:"per_hour"`
}

// SafetyConfig controls input sanitization.
type SafetyConfig struct {
	MaxMessageChars int `yaml:"max_message_chars" koanf:"max_message_chars"`
}

// GenerationConfig controls the language model call.
type GenerationConfig struct {
	MaxTokens   int           `yaml:"max_tokens" koanf:"max_tokens"`
	Temperature float64       `yaml:"temperature" koanf:"temperature"`
	Timeout     time.Duration `yaml:"timeout" koanf:"timeout"`
}

// EventsConfig controls the analytics/observability sink.
type EventsConfig struct {
	WebhookURL string `yaml:"webhook_url" koanf:"webhook_url"`
}
