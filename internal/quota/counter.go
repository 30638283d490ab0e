package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/avnova/sqyros/internal/models"
	"gorm.io/gorm"
)

// Counter reads and reserves quota slots for one user, action and period.
type Counter interface {
	// Reserve takes a slot when fewer than limit are used. used is the count after the call.
	Reserve(ctx context.Context, userID string, action models.ActionType, periodKey string, limit int) (used int64, ok bool, err error)
	// Release returns a slot taken by Reserve.
	Release(ctx context.Context, userID string, action models.ActionType, periodKey string) error
}

// GormCounter counts booked usage straight from the ledger tables.
// It is a soft cap: concurrent requests may both pass before either is booked.
type GormCounter struct {
	db *gorm.DB
}

// NewGormCounter builds a ledger-backed counter.
func NewGormCounter(db *gorm.DB) *GormCounter {
	return &GormCounter{db: db}
}

// Reserve reports whether the booked count is below limit. Nothing is held.
func (c *GormCounter) Reserve(ctx context.Context, userID string, action models.ActionType, periodKey string, limit int) (int64, bool, error) {
	used, errCount := c.Count(ctx, userID, action, periodKey)
	if errCount != nil {
		return 0, false, errCount
	}
	if used >= int64(limit) {
		return used, false, nil
	}
	return used + 1, true, nil
}

// Release is a no-op because Reserve holds nothing.
func (c *GormCounter) Release(context.Context, string, models.ActionType, string) error {
	return nil
}

// Count returns the booked count for the period.
// Monthly periods read the rollup; daily periods count usage_logs rows.
func (c *GormCounter) Count(ctx context.Context, userID string, action models.ActionType, periodKey string) (int64, error) {
	if c == nil || c.db == nil {
		return 0, errors.New("quota: nil db")
	}
	start, end, errBounds := periodBounds(periodKey)
	if errBounds != nil {
		return 0, errBounds
	}
	db := c.db.WithContext(ctx)

	if len(periodKey) == len(monthLayout) {
		var row models.MonthlyUsage
		errFind := db.Where("user_id = ? AND year_month = ?", userID, periodKey).Take(&row).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		if errFind != nil {
			return 0, fmt.Errorf("quota: load monthly usage: %w", errFind)
		}
		switch action {
		case models.ActionGuide:
			return row.GuidesGenerated, nil
		case models.ActionQuestion:
			return row.QuestionsAsked, nil
		default:
			return row.RoutedRequests, nil
		}
	}

	var count int64
	if errCount := db.Model(&models.UsageLog{}).
		Where("user_id = ? AND action_type = ? AND created_at >= ? AND created_at < ?", userID, action, start, end).
		Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("quota: count usage logs: %w", errCount)
	}
	return count, nil
}
