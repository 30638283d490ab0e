// Package routing decides which model tier serves a request and with what
// output-token budget.
//
// Classification is a pure function of the request text and its structured
// context: keyword tables are package-level values built once, matching is a
// case-insensitive substring test, and the first rule that fires wins.
package routing

import (
	"errors"
	"strings"
)

// ErrEmptyText is returned when a request carries no text to classify.
var ErrEmptyText = errors.New("routing: text is required")

// Tier identifies one of the two model tiers.
type Tier string

// Tier constants.
const (
	// TierFast is the cheap, low-latency tier.
	TierFast Tier = "FAST"
	// TierAdvanced is the expensive tier used for long structured output.
	TierAdvanced Tier = "ADVANCED"
)

// DefaultTier is used only when decoding an unknown tier identifier at a
// storage or transport boundary.
const DefaultTier = TierFast

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierFast, TierAdvanced:
		return true
	default:
		return false
	}
}

// String returns the tier name.
func (t Tier) String() string { return string(t) }

// ParseTier decodes a tier name case-insensitively.
func ParseTier(raw string) (Tier, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(TierFast):
		return TierFast, true
	case string(TierAdvanced):
		return TierAdvanced, true
	default:
		return "", false
	}
}

// TierOrDefault decodes a tier name and falls back to DefaultTier.
func TierOrDefault(raw string) Tier {
	if tier, ok := ParseTier(raw); ok {
		return tier
	}
	return DefaultTier
}

// TaskType tags the kind of work a decision was made for.
type TaskType string

// TaskType constants.
const (
	TaskSimpleQA           TaskType = "simple_qa"
	TaskTroubleshooting    TaskType = "troubleshooting"
	TaskIntegrationGuide   TaskType = "integration_guide"
	TaskIntegrationSetup   TaskType = "integration_setup"
	TaskCompatibilityCheck TaskType = "compatibility_check"
	TaskComplexRequest     TaskType = "complex_request"
	TaskComplexQuery       TaskType = "complex_query"
	TaskForced             TaskType = "forced"
)

// Turn is a single prior conversation message.
type Turn struct {
	Role    string `json:"role"`    // "user" or "assistant".
	Content string `json:"content"` // Message text.
}

// Context carries optional structured hints for classification.
type Context struct {
	SelectedSystem      string `json:"selectedSystem,omitempty"`
	SelectedDevice      string `json:"selectedDevice,omitempty"`
	SelectedConnection  string `json:"selectedConnection,omitempty"`
	ConversationHistory []Turn `json:"conversationHistory,omitempty"` // Oldest first; never inspected by the classifier.
}

// hasFullSelection reports whether system, device and connection are all set.
func (c Context) hasFullSelection() bool {
	return strings.TrimSpace(c.SelectedSystem) != "" &&
		strings.TrimSpace(c.SelectedDevice) != "" &&
		strings.TrimSpace(c.SelectedConnection) != ""
}

// Request is the input to classification.
type Request struct {
	Text        string
	Context     Context
	ForcedModel *Tier // Set only by trusted callers; bypasses every rule.
}

// Decision is the outcome of classification.
type Decision struct {
	TaskType        TaskType `json:"taskType"`
	ModelTier       Tier     `json:"modelTier"`
	MaxOutputTokens int64    `json:"maxOutputTokens"`
	Reasoning       string   `json:"reasoning"`
}
