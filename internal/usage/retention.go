package usage

import (
	"context"
	"time"

	"github.com/avnova/sqyros/internal/settings"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// DefaultRetentionSchedule runs the cleaner every six hours.
	DefaultRetentionSchedule = "@every 6h"

	defaultDeleteBatchSize = 5000
	maxDeleteBatchesPerRun = 2000
)

// RetentionCleaner deletes usage_logs rows older than the retention window in batches.
// The monthly_usage rollup is never trimmed.
type RetentionCleaner struct {
	db        *gorm.DB
	days      int
	batchSize int
	now       func() time.Time
}

// NewRetentionCleaner builds a cleaner. days <= 0 keeps rows forever unless a setting overrides it.
func NewRetentionCleaner(db *gorm.DB, days int) *RetentionCleaner {
	if db == nil {
		return nil
	}
	return &RetentionCleaner{
		db:        db,
		days:      days,
		batchSize: defaultDeleteBatchSize,
		now:       time.Now,
	}
}

// Register adds the cleaner to scheduler under spec. An empty spec uses DefaultRetentionSchedule.
func (c *RetentionCleaner) Register(ctx context.Context, scheduler *cron.Cron, spec string) error {
	if c == nil || scheduler == nil {
		return nil
	}
	if spec == "" {
		spec = DefaultRetentionSchedule
	}
	if _, errAdd := scheduler.AddFunc(spec, func() { c.CleanupOnce(ctx) }); errAdd != nil {
		return errAdd
	}
	log.Infof("usage retention cleaner scheduled (spec=%s)", spec)
	return nil
}

// RetentionDays returns the window in force; the DB setting wins over config.
func (c *RetentionCleaner) RetentionDays() int {
	return settings.IntValue(settings.UsageLogsRetentionDaysKey, c.days)
}

// CleanupOnce deletes expired rows and returns how many were removed.
func (c *RetentionCleaner) CleanupOnce(ctx context.Context) int64 {
	if c == nil || c.db == nil {
		return 0
	}
	days := c.RetentionDays()
	if days <= 0 {
		return 0
	}
	cutoff := c.now().UTC().AddDate(0, 0, -days)

	var deletedTotal int64
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			break
		}
		n, err := c.deleteBatch(ctx, cutoff)
		if err != nil {
			log.WithError(err).Warn("usage retention cleaner: delete batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
	}

	if deletedTotal > 0 {
		log.Infof("usage retention cleaner: deleted %d rows (cutoff=%s retention_days=%d)", deletedTotal, cutoff.Format(time.RFC3339), days)
	}
	return deletedTotal
}

func (c *RetentionCleaner) deleteBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	limit := c.batchSize
	if limit <= 0 {
		limit = defaultDeleteBatchSize
	}
	res := c.db.WithContext(ctx).Exec(`
		DELETE FROM usage_logs
		WHERE id IN (
			SELECT id FROM usage_logs
			WHERE created_at < ?
			ORDER BY created_at ASC
			LIMIT ?
		)
	`, cutoff, limit)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
