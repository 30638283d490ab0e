package routing

import "strings"

// Budgets for decisions that do not come from a keyword table.
const (
	forcedMaxOutputTokens      = 4000
	fullContextMaxOutputTokens = 4000
	guideMaxOutputTokens       = 4096
)

// Classify returns the routing decision for a guide or router request.
//
// Precedence: forced model, full device selection, then the guide table in
// order (compatibility, complexity, integration, troubleshooting), then the
// simple_qa fallback.
func Classify(req Request) (Decision, error) {
	if strings.TrimSpace(req.Text) == "" {
		return Decision{}, ErrEmptyText
	}

	if req.ForcedModel != nil {
		tier := *req.ForcedModel
		if !tier.Valid() {
			tier = DefaultTier
		}
		return Decision{
			TaskType:        TaskForced,
			ModelTier:       tier,
			MaxOutputTokens: forcedMaxOutputTokens,
			Reasoning:       "caller override",
		}, nil
	}

	if req.Context.hasFullSelection() {
		return Decision{
			TaskType:        TaskIntegrationGuide,
			ModelTier:       TierAdvanced,
			MaxOutputTokens: fullContextMaxOutputTokens,
			Reasoning:       "multi-device integration requires advanced reasoning",
		}, nil
	}

	return guideTable.evaluate(strings.ToLower(req.Text)), nil
}

// ClassifyChat returns the routing decision for maintenance chat traffic.
func ClassifyChat(text string) (Decision, error) {
	if strings.TrimSpace(text) == "" {
		return Decision{}, ErrEmptyText
	}
	return chatTable.evaluate(strings.ToLower(text)), nil
}

// GuideDecision is the fixed decision for the guide generation endpoint,
// which always needs the advanced tier.
func GuideDecision() Decision {
	return Decision{
		TaskType:        TaskIntegrationGuide,
		ModelTier:       TierAdvanced,
		MaxOutputTokens: guideMaxOutputTokens,
		Reasoning:       "integration guide generation uses the advanced tier",
	}
}
