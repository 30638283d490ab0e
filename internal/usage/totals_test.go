package usage

import (
	"context"
	"testing"
	"time"

	"github.com/avnova/sqyros/internal/models"
	"github.com/avnova/sqyros/internal/routing"
)

func TestTotalsGroupsByActionAndTier(t *testing.T) {
	conn := openTestDB(t)
	ledger := NewLedger(conn)
	ctx := context.Background()
	day := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	entries := []Entry{
		guideEntry(day.Add(9 * time.Hour)),
		{UserID: "user_2", Action: models.ActionQuestion, Tier: routing.TierFast, Model: "claude-sonnet", InputTokens: 100, OutputTokens: 50, CostCents: 1, At: day.Add(10 * time.Hour)},
		{UserID: "user_2", Action: models.ActionQuestion, Tier: routing.TierFast, Model: "claude-sonnet", InputTokens: 200, OutputTokens: 80, CostCents: 1, At: day.Add(11 * time.Hour)},
		{UserID: "user_2", Action: models.ActionQuestion, Tier: routing.TierAdvanced, Model: "claude-opus", InputTokens: 300, OutputTokens: 900, CostCents: 8, At: day.Add(12 * time.Hour)},
		// Outside the window on both sides.
		{UserID: "user_3", Action: models.ActionRoute, Tier: routing.TierFast, Model: "claude-sonnet", InputTokens: 1, OutputTokens: 1, CostCents: 1, At: day.Add(-time.Second)},
		{UserID: "user_3", Action: models.ActionRoute, Tier: routing.TierFast, Model: "claude-sonnet", InputTokens: 1, OutputTokens: 1, CostCents: 1, At: day.Add(24 * time.Hour)},
	}
	for _, e := range entries {
		if errRecord := ledger.RecordUsage(ctx, e); errRecord != nil {
			t.Fatalf("record: %v", errRecord)
		}
	}

	totals, err := ledger.Totals(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Users != 2 {
		t.Fatalf("expected 2 users, got %d", totals.Users)
	}
	if len(totals.Actions) != 3 {
		t.Fatalf("expected 3 groups, got %+v", totals.Actions)
	}
	if totals.Requests() != 4 || totals.CostCents() != 35 {
		t.Fatalf("unexpected sums: requests=%d cost=%d", totals.Requests(), totals.CostCents())
	}
	first := totals.Actions[0]
	if first.Action != models.ActionGuide || first.ModelTier != "ADVANCED" || first.OutputTokens != 3000 {
		t.Fatalf("unexpected first group %+v", first)
	}
	fastQuestions := totals.Actions[2]
	if fastQuestions.Action != models.ActionQuestion || fastQuestions.ModelTier != "FAST" || fastQuestions.Requests != 2 || fastQuestions.InputTokens != 300 {
		t.Fatalf("unexpected fast question group %+v", fastQuestions)
	}
}

func TestTotalsEmptyWindow(t *testing.T) {
	ledger := NewLedger(openTestDB(t))
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	totals, err := ledger.Totals(context.Background(), start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Users != 0 || len(totals.Actions) != 0 || totals.Requests() != 0 {
		t.Fatalf("expected empty totals, got %+v", totals)
	}
}
