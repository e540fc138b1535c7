package config

import (
	"fmt"
	"os"

	"github.com/aegish/aegish/pkg/llm/openai"
)

// BuildProvider resolves provider settings with precedence
// CLI flags > environment > config file, and builds the provider.
// Environment keys: AEGISH_API_KEY, then OPENAI_API_KEY and
// OPENAI_BASE_URL.
func BuildProvider(cliModel, cliBaseURL, cliAPIKey string) (*openai.Provider, error) {
	model := cliModel
	baseURL := cliBaseURL
	apiKey := cliAPIKey

	if apiKey == "" {
		apiKey = os.Getenv("AEGISH_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}

	if llm := GetLLM(); llm != nil {
		if model == "" {
			model = llm.GetModel()
		}
		if baseURL == "" {
			baseURL = llm.GetBaseURL()
		}
		if apiKey == "" {
			apiKey = llm.GetAPIKey()
		}
	}

	if apiKey == "" {
		return nil, fmt.Errorf("API key is required: set AEGISH_API_KEY, use -api-key, or configure ~/.aegish/config.json")
	}

	opts := []openai.ProviderOption{}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	provider, err := openai.NewProvider(apiKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	return provider, nil
}
