package config

import "time"

// DefaultConfig returns a Config with sensible defaults. The tuning values
// (similarity threshold, TTL, rate limits) are starting points, expected to
// be adjusted per deployment.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		DataDir:           ".portalchat",
		ContentDir:        "content",
		Server: ServerConfig{
			Port: 8791,
		},
		Retrieval: RetrievalConfig{
			TopK:                5,
			SimilarityThreshold: 0.7,
			MaxContextChars:     4000,
			HistoryTurns:        6,
		},
		Session: SessionConfig{
			TTL:           30 * time.Minute,
			MaxPerVisitor: 5,
			SweepInterval: 5 * time.Minute,
			Backend:       "memory",
		},
		RateLimit: RateLimitConfig{
			PerMinute: 10,
			PerHour:   100,
		},
		Safety: SafetyConfig{
			MaxMessageChars: 1000,
		},
		Generation: GenerationConfig{
			MaxTokens:   1024,
			Temperature: 0.3,
			Timeout:     30 * time.Second,
		},
	}
}
