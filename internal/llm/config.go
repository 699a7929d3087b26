package llm

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider names.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// envPrefix namespaces provider settings, e.g. QUESTFORGE_OPENAI_MODEL.
const envPrefix = "QUESTFORGE_"

// Credentials configures one provider.
type Credentials struct {
	APIKey  string
	Model   string
	BaseURL string // OpenAI-compatible endpoints only
}

// RetryConfig configures backoff for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// Config selects and configures a provider.
type Config struct {
	Provider   string
	Anthropic  Credentials
	OpenAI     Credentials
	Gemini     Credentials
	OpenRouter Credentials
	Retry      RetryConfig

	// Timeout bounds one Generate call including retries.
	Timeout time.Duration
}

// DefaultConfig returns the built-in models and retry policy.
func DefaultConfig() Config {
	return Config{
		Provider:   ProviderAnthropic,
		Anthropic:  Credentials{Model: "claude-haiku"},
		OpenAI:     Credentials{Model: "gpt-4o-mini"},
		Gemini:     Credentials{Model: "gemini-flash"},
		OpenRouter: Credentials{Model: "google/gemini-2.0-flash-exp", BaseURL: defaultOpenRouterBaseURL},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2,
		},
		Timeout: 60 * time.Second,
	}
}

// credentials returns a pointer to the named provider's settings.
func (c *Config) credentials(provider string) *Credentials {
	switch provider {
	case ProviderAnthropic:
		return &c.Anthropic
	case ProviderOpenAI:
		return &c.OpenAI
	case ProviderGemini:
		return &c.Gemini
	case ProviderOpenRouter:
		return &c.OpenRouter
	}
	return nil
}

var providers = []string{ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderOpenRouter}

// ConfigFromEnv reads QUESTFORGE_LLM_PROVIDER and the per-provider
// QUESTFORGE_<PROVIDER>_{API_KEY,MODEL,BASE_URL} variables over the defaults.
func ConfigFromEnv() Config {
	return configFromLookup(os.Getenv)
}

func configFromLookup(getenv func(string) string) Config {
	cfg := DefaultConfig()
	if p := getenv(envPrefix + "LLM_PROVIDER"); p != "" {
		cfg.Provider = strings.ToLower(p)
	}
	for _, name := range providers {
		cr := cfg.credentials(name)
		key := envPrefix + strings.ToUpper(name) + "_"
		if v := getenv(key + "API_KEY"); v != "" {
			cr.APIKey = v
		}
		if v := getenv(key + "MODEL"); v != "" {
			cr.Model = v
		}
		if v := getenv(key + "BASE_URL"); v != "" {
			cr.BaseURL = v
		}
	}
	return cfg
}

// discoveryOrder is the priority of vendor-standard key variables.
var discoveryOrder = []struct{ env, provider string }{
	{"GEMINI_API_KEY", ProviderGemini},
	{"OPENAI_API_KEY", ProviderOpenAI},
	{"ANTHROPIC_API_KEY", ProviderAnthropic},
	{"OPENROUTER_API_KEY", ProviderOpenRouter},
}

// DiscoverConfig falls back to vendor-standard variables such as
// OPENAI_API_KEY and picks the first provider with a key.
func DiscoverConfig() (Config, bool) {
	return discoverFromLookup(os.Getenv)
}

func discoverFromLookup(getenv func(string) string) (Config, bool) {
	cfg := DefaultConfig()
	for _, d := range discoveryOrder {
		if k := getenv(d.env); k != "" {
			cfg.Provider = d.provider
			cfg.credentials(d.provider).APIKey = k
			return cfg, true
		}
	}
	return Config{}, false
}

// Validate checks that the selected provider has an API key.
func (c Config) Validate() error {
	if c.Provider == ProviderMock {
		return nil
	}
	cr := c.credentials(c.Provider)
	if cr == nil {
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if cr.APIKey == "" {
		return fmt.Errorf("%s%s_API_KEY is required for the %s provider", envPrefix, strings.ToUpper(c.Provider), c.Provider)
	}
	return nil
}

// resolveModel maps a friendly alias to a provider model id. Unknown names
// pass through so full model ids work too.
func resolveModel(name string, aliases map[string]string) string {
	if id, ok := aliases[name]; ok {
		return id
	}
	return name
}
