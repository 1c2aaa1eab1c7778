package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/paperboy/types"
)

// NewProvider is a factory function that returns an instance of an
// llm.Provider based on the provided LLM configuration.
func NewProvider(config *types.LLMConfig) (Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("LLM configuration cannot be nil")
	}

	apiKey := config.APIKey
	provider := strings.ToLower(strings.TrimSpace(config.Provider))

	switch provider {
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI provider selected but API key is missing")
		}
		timeout := 60 * time.Second
		if config.RequestTimeoutSeconds > 0 {
			timeout = time.Duration(config.RequestTimeoutSeconds) * time.Second
		}
		return NewOpenAIProvider(apiKey, timeout, config.Debug), nil
	case "": // No provider specified
		return nil, fmt.Errorf("no LLM provider specified in configuration")
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}
