package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActionType identifies the endpoint a usage row was booked for.
type ActionType string

// ActionType constants.
const (
	// ActionGuide is a guide generation call.
	ActionGuide ActionType = "guide"
	// ActionQuestion is a maintenance chat question.
	ActionQuestion ActionType = "question"
	// ActionRoute is a general router call.
	ActionRoute ActionType = "route"
)

// UsageLog is one immutable row per completed LLM call.
type UsageLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RequestID  string     `gorm:"type:varchar(64);index"`           // Inbound request ID.
	UserID     string     `gorm:"type:varchar(255);not null;index"` // Identity-provider subject.
	ActionType ActionType `gorm:"type:varchar(32);not null;index"`  // guide, question or route.

	ModelTier string `gorm:"type:varchar(32);not null"`  // FAST or ADVANCED.
	ModelUsed string `gorm:"type:varchar(128);not null"` // Provider model ID.
	TaskType  string `gorm:"type:varchar(64)"`           // Routing task type.

	InputTokens  int64 `gorm:"not null;default:0"` // Input token count.
	OutputTokens int64 `gorm:"not null;default:0"` // Output token count.
	CostCents    int64 `gorm:"not null;default:0"` // Cost in whole cents, rounded up.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Endpoint-specific context.

	CreatedAt time.Time `gorm:"not null;index"` // Completion timestamp.
}

// TableName overrides the default table name.
func (UsageLog) TableName() string {
	return "usage_logs"
}
