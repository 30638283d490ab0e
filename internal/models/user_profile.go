package models

import "time"

// Subscription tiers.
const (
	// TierFree is the default, quota-limited tier.
	TierFree = "free"
	// TierPro is the paid tier.
	TierPro = "pro"
)

// UserProfile stores the subscription tier for an identity-provider subject.
type UserProfile struct {
	ID   string `gorm:"type:varchar(255);primaryKey"`             // Identity-provider subject.
	Tier string `gorm:"type:varchar(32);not null;default:'free'"` // Subscription tier.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (UserProfile) TableName() string {
	return "user_profiles"
}
