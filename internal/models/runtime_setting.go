package models

import "time"

// RuntimeSetting is an operator-editable override read by the settings snapshot.
type RuntimeSetting struct {
	Key       string    `gorm:"type:varchar(128);primaryKey"`  // Setting name, e.g. FREE_GUIDES_PER_MONTH.
	Value     string    `gorm:"type:text"`                     // JSON text; numbers or numeric strings.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime;index"` // Last edit.
}

// TableName pins the table name.
func (RuntimeSetting) TableName() string { return "runtime_settings" }
