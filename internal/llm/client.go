// Package llm wraps the upstream LLM provider behind a small request/response interface.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/avnova/sqyros/internal/routing"
)

// ErrUpstream wraps every failure returned by the provider.
var ErrUpstream = errors.New("llm: upstream error")

// Role constants for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation turn sent upstream.
type Message struct {
	Role    string
	Content string
}

// Request is one completion call.
type Request struct {
	Model     string
	System    string
	MaxTokens int64
	Messages  []Message
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is a completed call.
type Response struct {
	Model string
	Text  string
	Usage Usage
}

// Client performs completion calls.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ModelSet maps tiers to provider model IDs.
type ModelSet struct {
	Fast     string `yaml:"fast"`
	Advanced string `yaml:"advanced"`
}

// Default provider model IDs per tier.
const (
	DefaultFastModel     = "claude-sonnet-4-5-20250929"
	DefaultAdvancedModel = "claude-opus-4-5-20250101"
)

// DefaultModels returns the built-in tier mapping.
func DefaultModels() ModelSet {
	return ModelSet{Fast: DefaultFastModel, Advanced: DefaultAdvancedModel}
}

// WithDefaults fills empty entries from DefaultModels.
func (m ModelSet) WithDefaults() ModelSet {
	if strings.TrimSpace(m.Fast) == "" {
		m.Fast = DefaultFastModel
	}
	if strings.TrimSpace(m.Advanced) == "" {
		m.Advanced = DefaultAdvancedModel
	}
	return m
}

// For returns the model ID for tier.
func (m ModelSet) For(tier routing.Tier) string {
	m = m.WithDefaults()
	if tier == routing.TierAdvanced {
		return m.Advanced
	}
	return m.Fast
}

// TierFor resolves a tier name or one of the configured model IDs into a tier.
func (m ModelSet) TierFor(raw string) (routing.Tier, bool) {
	if tier, ok := routing.ParseTier(raw); ok {
		return tier, true
	}
	m = m.WithDefaults()
	switch strings.TrimSpace(raw) {
	case m.Fast:
		return routing.TierFast, true
	case m.Advanced:
		return routing.TierAdvanced, true
	}
	return "", false
}

// MessagesFromTurns converts conversation history into provider messages, keeping the last limit turns.
// Turns with an unknown role or empty content are skipped. limit <= 0 keeps everything.
func MessagesFromTurns(turns []routing.Turn, limit int) []Message {
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Message, 0, len(turns)+1)
	for _, turn := range turns {
		role := strings.ToLower(strings.TrimSpace(turn.Role))
		if role != RoleUser && role != RoleAssistant {
			continue
		}
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		out = append(out, Message{Role: role, Content: turn.Content})
	}
	return out
}
