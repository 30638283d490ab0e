package quota

import (
	"fmt"
	"strings"
	"time"

	"github.com/avnova/sqyros/internal/models"
	"github.com/avnova/sqyros/internal/settings"
)

// Free-tier allowances used when neither config nor settings override them.
const (
	DefaultFreeGuidesPerMonth  = 3
	DefaultFreeQuestionsPerDay = 5
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

// Policy holds the free-tier allowances. Paid tiers are never capped.
type Policy struct {
	FreeGuidesPerMonth  int `yaml:"free-guides-per-month"`
	FreeQuestionsPerDay int `yaml:"free-questions-per-day"`
}

// DefaultPolicy returns the built-in free-tier allowances.
func DefaultPolicy() Policy {
	return Policy{
		FreeGuidesPerMonth:  DefaultFreeGuidesPerMonth,
		FreeQuestionsPerDay: DefaultFreeQuestionsPerDay,
	}
}

// Effective applies DB-backed settings overrides on top of p.
func (p Policy) Effective() Policy {
	if p.FreeGuidesPerMonth <= 0 {
		p.FreeGuidesPerMonth = DefaultFreeGuidesPerMonth
	}
	if p.FreeQuestionsPerDay <= 0 {
		p.FreeQuestionsPerDay = DefaultFreeQuestionsPerDay
	}
	if v := settings.IntValue(settings.FreeGuidesPerMonthKey, 0); v > 0 {
		p.FreeGuidesPerMonth = v
	}
	if v := settings.IntValue(settings.FreeQuestionsPerDayKey, 0); v > 0 {
		p.FreeQuestionsPerDay = v
	}
	return p
}

// Limit returns the allowance for a tier and action. capped is false when no limit applies.
func (p Policy) Limit(tier string, action models.ActionType) (limit int, capped bool) {
	if !IsFreeTier(tier) {
		return 0, false
	}
	switch action {
	case models.ActionGuide:
		return p.FreeGuidesPerMonth, true
	case models.ActionQuestion:
		return p.FreeQuestionsPerDay, true
	default:
		return 0, false
	}
}

// IsFreeTier reports whether tier is the free subscription tier. Empty means free.
func IsFreeTier(tier string) bool {
	tier = strings.ToLower(strings.TrimSpace(tier))
	return tier == "" || tier == models.TierFree
}

// PeriodKey returns the counting period for an action at now: YYYY-MM for guides, YYYY-MM-DD otherwise.
func PeriodKey(action models.ActionType, now time.Time) string {
	if action == models.ActionGuide {
		return now.UTC().Format(monthLayout)
	}
	return now.UTC().Format(dayLayout)
}

// MonthKey returns the YYYY-MM key for now in UTC.
func MonthKey(now time.Time) string {
	return now.UTC().Format(monthLayout)
}

// periodBounds parses a period key into its UTC [start, end) range.
func periodBounds(periodKey string) (time.Time, time.Time, error) {
	if day, errParse := time.ParseInLocation(dayLayout, periodKey, time.UTC); errParse == nil {
		return day, day.AddDate(0, 0, 1), nil
	}
	if month, errParse := time.ParseInLocation(monthLayout, periodKey, time.UTC); errParse == nil {
		return month, month.AddDate(0, 1, 0), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("quota: invalid period key %q", periodKey)
}
