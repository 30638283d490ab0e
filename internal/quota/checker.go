package quota

import (
	"context"
	"errors"
	"strings"

	"github.com/avnova/sqyros/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reservation describes the outcome of a quota check.
type Reservation struct {
	UserID    string
	Action    models.ActionType
	PeriodKey string
	Used      int64
	Limit     int
	Capped    bool

	held bool
}

// Checker gates paid calls on the caller's free-tier allowance.
type Checker struct {
	counter Counter
	policy  Policy
}

// NewChecker builds a checker. A nil counter disables enforcement.
func NewChecker(counter Counter, policy Policy) *Checker {
	return &Checker{counter: counter, policy: policy}
}

// Policy returns the allowances in force, including settings overrides.
func (c *Checker) Policy() Policy {
	return c.policy.Effective()
}

// CheckAndReserve reports whether the caller may make one more call of action in periodKey.
// Counter failures are logged and the call is allowed.
func (c *Checker) CheckAndReserve(ctx context.Context, userID, tier string, action models.ActionType, periodKey string) (Reservation, bool, error) {
	res := Reservation{UserID: userID, Action: action, PeriodKey: periodKey}
	limit, capped := c.Policy().Limit(tier, action)
	if !capped || c.counter == nil {
		return res, true, nil
	}
	res.Limit = limit
	res.Capped = true

	used, ok, errReserve := c.counter.Reserve(ctx, userID, action, periodKey, limit)
	if errReserve != nil {
		log.WithError(errReserve).WithFields(log.Fields{
			"user_id": userID,
			"action":  action,
			"period":  periodKey,
		}).Warn("quota check failed; allowing request")
		return res, true, nil
	}
	res.Used = used
	if !ok {
		return res, false, nil
	}
	res.held = true
	return res, true, nil
}

// Release returns the slot held by res, if any.
func (c *Checker) Release(ctx context.Context, res Reservation) {
	if c == nil || c.counter == nil || !res.held {
		return
	}
	if errRelease := c.counter.Release(ctx, res.UserID, res.Action, res.PeriodKey); errRelease != nil {
		log.WithError(errRelease).WithField("user_id", res.UserID).Warn("quota release failed")
	}
}

// Remaining returns the allowance left after used calls, or -1 when uncapped.
func (p Policy) Remaining(tier string, action models.ActionType, used int64) int64 {
	limit, capped := p.Limit(tier, action)
	if !capped {
		return -1
	}
	if left := int64(limit) - used; left > 0 {
		return left
	}
	return 0
}

// LookupTier returns the caller's subscription tier, defaulting to free when no profile exists.
func LookupTier(ctx context.Context, db *gorm.DB, userID string) (string, error) {
	if db == nil {
		return models.TierFree, errors.New("quota: nil db")
	}
	var profile models.UserProfile
	errFind := db.WithContext(ctx).Select("id", "tier").Where("id = ?", userID).Take(&profile).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.TierFree, nil
	}
	if errFind != nil {
		return models.TierFree, errFind
	}
	tier := strings.ToLower(strings.TrimSpace(profile.Tier))
	if tier == "" {
		return models.TierFree, nil
	}
	return tier, nil
}
