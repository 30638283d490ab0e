package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avnova/sqyros/internal/models"
	"gorm.io/gorm"
)

// ActionTotal aggregates usage_logs rows for one action and tier.
type ActionTotal struct {
	Action       models.ActionType `json:"action"`
	ModelTier    string            `json:"modelTier"`
	Requests     int64             `json:"requests"`
	InputTokens  int64             `json:"inputTokens"`
	OutputTokens int64             `json:"outputTokens"`
	CostCents    int64             `json:"costCents"`
}

// PeriodTotals covers every call booked in [Start, End).
type PeriodTotals struct {
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Users   int64         `json:"users"`
	Actions []ActionTotal `json:"actions"`
}

// Requests sums requests across all actions.
func (p PeriodTotals) Requests() int64 {
	var n int64
	for _, a := range p.Actions {
		n += a.Requests
	}
	return n
}

// CostCents sums cost across all actions.
func (p PeriodTotals) CostCents() int64 {
	var n int64
	for _, a := range p.Actions {
		n += a.CostCents
	}
	return n
}

// Totals aggregates usage_logs between start (inclusive) and end (exclusive).
func (l *Ledger) Totals(ctx context.Context, start, end time.Time) (PeriodTotals, error) {
	out := PeriodTotals{Start: start.UTC(), End: end.UTC()}
	if l == nil || l.db == nil {
		return out, errors.New("usage: nil db")
	}
	window := l.db.WithContext(ctx).Model(&models.UsageLog{}).
		Where("created_at >= ? AND created_at < ?", out.Start, out.End)

	if errScan := window.Session(&gorm.Session{}).
		Select("action_type AS action, model_tier, COUNT(*) AS requests, " +
			"COALESCE(SUM(input_tokens), 0) AS input_tokens, " +
			"COALESCE(SUM(output_tokens), 0) AS output_tokens, " +
			"COALESCE(SUM(cost_cents), 0) AS cost_cents").
		Group("action_type, model_tier").
		Order("action_type ASC, model_tier ASC").
		Scan(&out.Actions).Error; errScan != nil {
		return out, fmt.Errorf("usage: aggregate usage logs: %w", errScan)
	}
	if errCount := window.Session(&gorm.Session{}).
		Distinct("user_id").
		Count(&out.Users).Error; errCount != nil {
		return out, fmt.Errorf("usage: count users: %w", errCount)
	}
	return out, nil
}
