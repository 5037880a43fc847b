// Package providers holds the LLM backends used to draft replies.
package providers

import (
	"fmt"

	"github.com/ibeckermayer/reply4me/internal/replier"
)

// New returns the provider called name.
func New(name string, s Settings) (replier.Provider, error) {
	switch name {
	case ProviderAnthropic:
		return NewAnthropicProvider(s), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(s), nil
	}
	return nil, fmt.Errorf("unknown LLM provider: %s", name)
}
