// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"fmt"

	openaiembed "github.com/MEMAtest/fos-decisions-pipeline/internal/adapters/driven/embedding/openai"
	openrouterembed "github.com/MEMAtest/fos-decisions-pipeline/internal/adapters/driven/embedding/openrouter"
	openaillm "github.com/MEMAtest/fos-decisions-pipeline/internal/adapters/driven/llm/openai"
	openrouterllm "github.com/MEMAtest/fos-decisions-pipeline/internal/adapters/driven/llm/openrouter"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/domain"
	"github.com/MEMAtest/fos-decisions-pipeline/internal/core/ports/driven"
)

// Provider names accepted by the factory.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

// Settings selects and configures a provider.
type Settings struct {
	// Provider is "openai" or "openrouter".
	Provider string

	// APIKey is the provider's API key (required).
	APIKey string

	// Model is the model name; the OpenRouter adapter namespaces
	// unqualified chat model names with the "openai/" prefix.
	Model string

	// Referer is the attribution header sent to OpenRouter.
	Referer string
}

// CreateLLMService creates the chat-completion service for the selected
// provider.
func CreateLLMService(settings Settings) (driven.LLMService, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("%w: provider %s", domain.ErrAPIKeyMissing, settings.Provider)
	}

	switch settings.Provider {
	case ProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey: settings.APIKey,
			Model:  settings.Model,
		})

	case ProviderOpenRouter:
		return openrouterllm.NewLLMService(openrouterllm.LLMConfig{
			APIKey:  settings.APIKey,
			Model:   settings.Model,
			Referer: settings.Referer,
		})

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, settings.Provider)
	}
}

// CreateEmbeddingService creates the embedding service for the selected
// provider.
func CreateEmbeddingService(settings Settings) (driven.EmbeddingService, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("%w: provider %s", domain.ErrAPIKeyMissing, settings.Provider)
	}

	switch settings.Provider {
	case ProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey: settings.APIKey,
			Model:  settings.Model,
		})

	case ProviderOpenRouter:
		return openrouterembed.NewEmbeddingService(openrouterembed.Config{
			APIKey:  settings.APIKey,
			Model:   settings.Model,
			Referer: settings.Referer,
		})

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, settings.Provider)
	}
}
