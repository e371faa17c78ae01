package embeddings

import (
	"fmt"
	"os"

	"github.com/hireloop/portalchat/internal/config"
)

// ollamaDimensions maps known Ollama embedding models to their output size.
var ollamaDimensions = map[string]int{
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// NewFromConfig creates an embedder from configuration, wrapped with the
// default retry policy.
func NewFromConfig(cfg *config.Config) (Embedder, error) {
	var inner Embedder

	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		inner = NewOpenAIEmbedder(apiKey, OpenAIModel(cfg.EmbeddingModel))

	case config.ProviderOllama:
		host := os.Getenv("OLLAMA_HOST")
		dims, ok := ollamaDimensions[cfg.EmbeddingModel]
		if !ok {
			return nil, fmt.Errorf("unknown ollama embedding model %q: known models are nomic-embed-text, mxbai-embed-large, all-minilm", cfg.EmbeddingModel)
		}
		inner = NewOllamaEmbedder(cfg.EmbeddingModel, dims, host)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbeddingProvider)
	}

	return WithRetry(inner, DefaultRetryPolicy()), nil
}
