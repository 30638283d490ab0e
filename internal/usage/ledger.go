package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avnova/sqyros/internal/models"
	"github.com/avnova/sqyros/internal/routing"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidEntry is returned for entries missing a user or action.
var ErrInvalidEntry = errors.New("usage: invalid entry")

// Entry is one completed LLM call to book.
type Entry struct {
	RequestID    string
	UserID       string
	Action       models.ActionType
	Tier         routing.Tier
	Model        string
	TaskType     routing.TaskType
	InputTokens  int64
	OutputTokens int64
	CostCents    int64
	Metadata     map[string]any
	At           time.Time
}

// Validate checks the fields the ledger cannot default.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidEntry)
	}
	switch e.Action {
	case models.ActionGuide, models.ActionQuestion, models.ActionRoute:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEntry, e.Action)
	}
	if e.InputTokens < 0 || e.OutputTokens < 0 || e.CostCents < 0 {
		return fmt.Errorf("%w: negative usage", ErrInvalidEntry)
	}
	return nil
}

// Ledger books usage into usage_logs and the monthly_usage rollup.
type Ledger struct {
	db *gorm.DB
}

// NewLedger builds a ledger over db.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// RecordUsage appends one usage_logs row and folds it into the caller's monthly_usage row in one transaction.
func (l *Ledger) RecordUsage(ctx context.Context, entry Entry) error {
	if l == nil || l.db == nil {
		return errors.New("usage: nil db")
	}
	if errValidate := entry.Validate(); errValidate != nil {
		return errValidate
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	var metadata datatypes.JSON
	if len(entry.Metadata) > 0 {
		raw, errMarshal := json.Marshal(entry.Metadata)
		if errMarshal != nil {
			return fmt.Errorf("usage: encode metadata: %w", errMarshal)
		}
		metadata = datatypes.JSON(raw)
	}

	row := models.UsageLog{
		RequestID:    strings.TrimSpace(entry.RequestID),
		UserID:       entry.UserID,
		ActionType:   entry.Action,
		ModelTier:    entry.Tier.String(),
		ModelUsed:    entry.Model,
		TaskType:     string(entry.TaskType),
		InputTokens:  entry.InputTokens,
		OutputTokens: entry.OutputTokens,
		CostCents:    entry.CostCents,
		Metadata:     metadata,
		CreatedAt:    at,
	}

	totalTokens := entry.InputTokens + entry.OutputTokens
	counter := models.CounterColumn(entry.Action)
	rollup := models.MonthlyUsage{
		UserID:         entry.UserID,
		YearMonth:      at.Format("2006-01"),
		TotalTokens:    totalTokens,
		TotalCostCents: entry.CostCents,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	switch entry.Action {
	case models.ActionGuide:
		rollup.GuidesGenerated = 1
	case models.ActionQuestion:
		rollup.QuestionsAsked = 1
	default:
		rollup.RoutedRequests = 1
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("usage: insert log: %w", errCreate)
		}
		errUpsert := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "year_month"}},
			DoUpdates: clause.Assignments(map[string]any{
				counter:            gorm.Expr("monthly_usage."+counter+" + ?", 1),
				"total_tokens":     gorm.Expr("monthly_usage.total_tokens + ?", totalTokens),
				"total_cost_cents": gorm.Expr("monthly_usage.total_cost_cents + ?", entry.CostCents),
				"updated_at":       at,
			}),
		}).Create(&rollup).Error
		if errUpsert != nil {
			return fmt.Errorf("usage: upsert monthly usage: %w", errUpsert)
		}
		return nil
	})
}

// MonthlySummary is a caller's rollup for one month.
type MonthlySummary struct {
	YearMonth       string `json:"yearMonth"`
	GuidesGenerated int64  `json:"guidesGenerated"`
	QuestionsAsked  int64  `json:"questionsAsked"`
	RoutedRequests  int64  `json:"routedRequests"`
	TotalTokens     int64  `json:"totalTokens"`
	TotalCostCents  int64  `json:"totalCostCents"`
}

// MonthlySummary returns the rollup for userID in yearMonth, zeroed when nothing was booked.
func (l *Ledger) MonthlySummary(ctx context.Context, userID, yearMonth string) (MonthlySummary, error) {
	summary := MonthlySummary{YearMonth: yearMonth}
	if l == nil || l.db == nil {
		return summary, errors.New("usage: nil db")
	}
	var row models.MonthlyUsage
	errFind := l.db.WithContext(ctx).
		Where("user_id = ? AND year_month = ?", userID, yearMonth).
		Take(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return summary, nil
	}
	if errFind != nil {
		return summary, fmt.Errorf("usage: load monthly usage: %w", errFind)
	}
	summary.GuidesGenerated = row.GuidesGenerated
	summary.QuestionsAsked = row.QuestionsAsked
	summary.RoutedRequests = row.RoutedRequests
	summary.TotalTokens = row.TotalTokens
	summary.TotalCostCents = row.TotalCostCents
	return summary, nil
}
