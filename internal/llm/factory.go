package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/questforge/internal/logging"
	"github.com/abhisek/questforge/internal/store"
)

// New builds the configured provider wrapped with retry and recording.
// events may be nil.
func New(ctx context.Context, cfg Config, events store.EventRepo, logger *logging.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderOpenRouter:
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderMock:
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.Provider, err)
	}
	return WithRecording(WithTimeout(WithRetry(base, cfg.Retry), cfg.Timeout), cfg.Provider, events, logger), nil
}
