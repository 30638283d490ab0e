package llm

import (
	"errors"
	"fmt"
	"strings"
)

// Provider names accepted by NewClient.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ErrUnknownProvider is returned for provider names NewClient does not know.
var ErrUnknownProvider = errors.New("llm: unknown provider")

// NormalizeProvider lower-cases a provider name; empty means anthropic.
func NormalizeProvider(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProviderAnthropic
	}
	return name
}

// NewClient builds the client for the named provider.
func NewClient(provider string, cfg ProviderConfig) (Client, error) {
	switch NormalizeProvider(provider) {
	case ProviderAnthropic:
		return NewAnthropicClient(cfg)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}
