package models

import "time"

// MonthlyUsage is the per-user running total for one calendar month.
type MonthlyUsage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID    string `gorm:"type:varchar(255);not null;uniqueIndex:idx_monthly_usage_user_period"` // Identity-provider subject.
	YearMonth string `gorm:"type:varchar(7);not null;uniqueIndex:idx_monthly_usage_user_period"`   // Period key, YYYY-MM.

	GuidesGenerated int64 `gorm:"not null;default:0"` // Guide calls booked.
	QuestionsAsked  int64 `gorm:"not null;default:0"` // Chat calls booked.
	RoutedRequests  int64 `gorm:"not null;default:0"` // Router calls booked.

	TotalTokens    int64 `gorm:"not null;default:0"` // Input plus output tokens.
	TotalCostCents int64 `gorm:"not null;default:0"` // Sum of per-call cents.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (MonthlyUsage) TableName() string {
	return "monthly_usage"
}

// CounterColumn returns the monthly_usage column counting an action.
func CounterColumn(action ActionType) string {
	switch action {
	case ActionGuide:
		return "guides_generated"
	case ActionQuestion:
		return "questions_asked"
	default:
		return "routed_requests"
	}
}
