package routing

import "strings"

// Rule maps a keyword set to a fixed decision.
type Rule struct {
	TaskType        TaskType
	Tier            Tier
	MaxOutputTokens int64
	Reasoning       string
	Keywords        []string
}

// matches reports whether any keyword is a substring of lower.
// lower must already be lower-cased.
func (r Rule) matches(lower string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// decision returns the decision carried by the rule.
func (r Rule) decision() Decision {
	return Decision{
		TaskType:        r.TaskType,
		ModelTier:       r.Tier,
		MaxOutputTokens: r.MaxOutputTokens,
		Reasoning:       r.Reasoning,
	}
}

// RuleTable is an ordered rule list with a fallback.
type RuleTable struct {
	Name     string
	Rules    []Rule // Evaluated in order; first match wins.
	Fallback Rule
}

// evaluate returns the first matching rule's decision, or the fallback.
func (t RuleTable) evaluate(lower string) Decision {
	for _, rule := range t.Rules {
		if rule.matches(lower) {
			return rule.decision()
		}
	}
	return t.Fallback.decision()
}

// Keyword lists for the guide/router classifier.
var (
	compatibilityKeywords = []string{
		"compatible", "work with", "support", "can i use", "will it work",
		"supported", "requirements",
	}
	complexityKeywords = []string{
		"custom", "unusual", "special", "advanced", "complex", "multiple",
		"chain", "daisy", "redundant", "failover", "multi-zone", "enterprise",
	}
	integrationKeywords = []string{
		"connect", "integrate", "setup", "configure", "route", "dante",
		"aes67", "integration", "step by step", "installation",
	}
	troubleshootingKeywords = []string{
		"not working", "error", "problem", "issue", "fix", "troubleshoot",
		"help", "broken", "failed", "won't", "can't", "unable", "noise",
		"static", "dropout", "latency",
	}
)

// chatEscalationKeywords is the chat classifier's own list. It overlaps the
// complexity list but is kept separate; the two call sites are billed
// differently.
var chatEscalationKeywords = []string{
	"custom", "unusual", "special", "advanced", "complex", "multiple",
	"chain", "daisy", "redundant", "failover", "multi-zone", "enterprise",
	"integrate", "connect", "setup", "configure", "compatible",
}

// guideTable drives Classify after the forced and full-selection checks.
var guideTable = RuleTable{
	Name: "guide",
	Rules: []Rule{
		{
			TaskType:        TaskCompatibilityCheck,
			Tier:            TierAdvanced,
			MaxOutputTokens: 2000,
			Reasoning:       "compatibility analysis requires deep technical knowledge",
			Keywords:        compatibilityKeywords,
		},
		{
			TaskType:        TaskComplexRequest,
			Tier:            TierAdvanced,
			MaxOutputTokens: 3000,
			Reasoning:       "complex or unusual request benefits from advanced reasoning",
			Keywords:        complexityKeywords,
		},
		{
			TaskType:        TaskIntegrationSetup,
			Tier:            TierAdvanced,
			MaxOutputTokens: 3000,
			Reasoning:       "integration setup benefits from detailed reasoning",
			Keywords:        integrationKeywords,
		},
		{
			TaskType:        TaskTroubleshooting,
			Tier:            TierFast,
			MaxOutputTokens: 1500,
			Reasoning:       "troubleshooting matches common issue patterns",
			Keywords:        troubleshootingKeywords,
		},
	},
	Fallback: Rule{
		TaskType:        TaskSimpleQA,
		Tier:            TierFast,
		MaxOutputTokens: 1000,
		Reasoning:       "simple question, fast response preferred",
	},
}

// chatTable drives ClassifyChat.
var chatTable = RuleTable{
	Name: "chat",
	Rules: []Rule{
		{
			TaskType:        TaskComplexQuery,
			Tier:            TierAdvanced,
			MaxOutputTokens: 2000,
			Reasoning:       "complex query routed to advanced model",
			Keywords:        chatEscalationKeywords,
		},
	},
	Fallback: Rule{
		TaskType:        TaskSimpleQA,
		Tier:            TierFast,
		MaxOutputTokens: 1000,
		Reasoning:       "simple query, fast response",
	},
}
