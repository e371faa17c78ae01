package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .portalchat.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to portalchat! Let's configure your chat service.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. LLM provider.
	providerPrompt := promptui.Select{
		Label: "Select LLM provider",
		Items: []string{"openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Provider = ProviderType(providerStr)
	cfg.EmbeddingProvider = cfg.Provider
	if cfg.Provider == ProviderOllama {
		cfg.Model = "llama3"
		cfg.EmbeddingModel = "nomic-embed-text"
	}

	// 2. Model override.
	modelPrompt := promptui.Prompt{
		Label:   "Chat model",
		Default: cfg.Model,
	}
	if cfg.Model, err = modelPrompt.Run(); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	// 3. Content directory holding CV JSON files.
	contentPrompt := promptui.Prompt{
		Label:   "Directory with subject content files",
		Default: cfg.ContentDir,
	}
	if cfg.ContentDir, err = contentPrompt.Run(); err != nil {
		return nil, fmt.Errorf("content dir: %w", err)
	}

	// 4. Server port.
	portPrompt := promptui.Prompt{
		Label:   "HTTP port",
		Default: strconv.Itoa(cfg.Server.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > 65535 {
				return fmt.Errorf("invalid port")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	// 5. Session backend.
	backendPrompt := promptui.Select{
		Label: "Session store backend",
		Items: []string{"memory", "sqlite"},
	}
	if _, cfg.Session.Backend, err = backendPrompt.Run(); err != nil {
		return nil, fmt.Errorf("backend selection: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.Save(".portalchat.yml"); err != nil {
		return nil, err
	}
	fmt.Println("\nSaved configuration to .portalchat.yml")
	if envVar := APIKeyEnvVar(cfg.Provider); envVar != "" {
		fmt.Printf("Remember to set %s before starting the server.\n", envVar)
	}

	return cfg, nil
}
