package quota

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	dbpkg "github.com/avnova/sqyros/internal/db"
	"github.com/avnova/sqyros/internal/models"
	"github.com/avnova/sqyros/internal/settings"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := dbpkg.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedQuestions(t *testing.T, conn *gorm.DB, userID string, at time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		row := models.UsageLog{
			UserID:     userID,
			ActionType: models.ActionQuestion,
			ModelTier:  "FAST",
			ModelUsed:  "m",
			CreatedAt:  at.UTC(),
		}
		if errCreate := conn.Create(&row).Error; errCreate != nil {
			t.Fatalf("seed usage log: %v", errCreate)
		}
	}
}

func TestPeriodKey(t *testing.T) {
	at := time.Date(2026, 3, 31, 23, 30, 0, 0, time.FixedZone("x", -2*3600))
	if got := PeriodKey(models.ActionGuide, at); got != "2026-04" {
		t.Fatalf("guide period = %q, want 2026-04", got)
	}
	if got := PeriodKey(models.ActionQuestion, at); got != "2026-04-01" {
		t.Fatalf("question period = %q, want 2026-04-01", got)
	}
}

func TestPolicyLimit(t *testing.T) {
	p := DefaultPolicy()
	if limit, capped := p.Limit("free", models.ActionGuide); !capped || limit != 3 {
		t.Fatalf("free guide limit = (%d, %v)", limit, capped)
	}
	if limit, capped := p.Limit("", models.ActionQuestion); !capped || limit != 5 {
		t.Fatalf("empty tier question limit = (%d, %v)", limit, capped)
	}
	if _, capped := p.Limit("pro", models.ActionGuide); capped {
		t.Fatalf("pro tier must be uncapped")
	}
	if _, capped := p.Limit("enterprise", models.ActionQuestion); capped {
		t.Fatalf("non-free tier must be uncapped")
	}
	if _, capped := p.Limit("free", models.ActionRoute); capped {
		t.Fatalf("route action must be uncapped")
	}
}

func TestPolicyEffectiveUsesSettingsOverride(t *testing.T) {
	settings.Store(time.Now(), map[string]json.RawMessage{
		settings.FreeQuestionsPerDayKey: json.RawMessage(`7`),
	})
	defer settings.Reset()

	p := DefaultPolicy().Effective()
	if p.FreeQuestionsPerDay != 7 {
		t.Fatalf("expected override 7, got %d", p.FreeQuestionsPerDay)
	}
	if p.FreeGuidesPerMonth != DefaultFreeGuidesPerMonth {
		t.Fatalf("guides should keep default, got %d", p.FreeGuidesPerMonth)
	}
}

func TestPolicyRemaining(t *testing.T) {
	p := DefaultPolicy()
	if got := p.Remaining("free", models.ActionQuestion, 2); got != 3 {
		t.Fatalf("expected 3 remaining, got %d", got)
	}
	if got := p.Remaining("free", models.ActionQuestion, 9); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}
	if got := p.Remaining("pro", models.ActionQuestion, 9); got != -1 {
		t.Fatalf("expected -1 for uncapped, got %d", got)
	}
}

func TestGormCounterDailyQuestions(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()
	seedQuestions(t, conn, "u1", now, 4)
	seedQuestions(t, conn, "u1", now.AddDate(0, 0, -1), 3)
	seedQuestions(t, conn, "u2", now, 2)

	counter := NewGormCounter(conn)
	used, errCount := counter.Count(context.Background(), "u1", models.ActionQuestion, PeriodKey(models.ActionQuestion, now))
	if errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if used != 4 {
		t.Fatalf("expected 4 questions today, got %d", used)
	}
}

func TestGormCounterMonthlyGuides(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()
	row := models.MonthlyUsage{UserID: "u1", YearMonth: MonthKey(now), GuidesGenerated: 2}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		t.Fatalf("seed monthly usage: %v", errCreate)
	}
	counter := NewGormCounter(conn)
	used, errCount := counter.Count(context.Background(), "u1", models.ActionGuide, MonthKey(now))
	if errCount != nil {
		t.Fatalf("count: %v", errCount)
	}
	if used != 2 {
		t.Fatalf("expected 2 guides, got %d", used)
	}
	used, errCount = counter.Count(context.Background(), "nobody", models.ActionGuide, MonthKey(now))
	if errCount != nil || used != 0 {
		t.Fatalf("missing row should count 0, got (%d, %v)", used, errCount)
	}
}

func TestGormCounterInvalidPeriod(t *testing.T) {
	counter := NewGormCounter(openTestDB(t))
	if _, _, err := counter.Reserve(context.Background(), "u1", models.ActionGuide, "March", 3); err == nil {
		t.Fatalf("expected error for invalid period key")
	}
}

func TestCheckerRejectsFreeTierAtLimit(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()
	seedQuestions(t, conn, "u1", now, 5)

	checker := NewChecker(NewGormCounter(conn), DefaultPolicy())
	res, allowed, err := checker.CheckAndReserve(context.Background(), "u1", "free", models.ActionQuestion, PeriodKey(models.ActionQuestion, now))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if allowed {
		t.Fatalf("expected free tier at 5/5 to be rejected")
	}
	if res.Used != 5 || res.Limit != 5 {
		t.Fatalf("unexpected reservation %+v", res)
	}
}

func TestCheckerAllowsFreeTierBelowLimit(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()
	seedQuestions(t, conn, "u1", now, 4)

	checker := NewChecker(NewGormCounter(conn), DefaultPolicy())
	_, allowed, err := checker.CheckAndReserve(context.Background(), "u1", "free", models.ActionQuestion, PeriodKey(models.ActionQuestion, now))
	if err != nil || !allowed {
		t.Fatalf("expected 4/5 to be allowed, got (%v, %v)", allowed, err)
	}
}

func TestCheckerNeverCapsPaidTier(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()
	seedQuestions(t, conn, "u1", now, 50)

	checker := NewChecker(NewGormCounter(conn), DefaultPolicy())
	res, allowed, err := checker.CheckAndReserve(context.Background(), "u1", "pro", models.ActionQuestion, PeriodKey(models.ActionQuestion, now))
	if err != nil || !allowed {
		t.Fatalf("expected pro tier to be allowed, got (%v, %v)", allowed, err)
	}
	if res.Capped {
		t.Fatalf("pro reservation should not be capped")
	}
}

type failingCounter struct{}

func (failingCounter) Reserve(context.Context, string, models.ActionType, string, int) (int64, bool, error) {
	return 0, false, errors.New("boom")
}

func (failingCounter) Release(context.Context, string, models.ActionType, string) error {
	return errors.New("boom")
}

func TestCheckerFailsOpenOnCounterError(t *testing.T) {
	checker := NewChecker(failingCounter{}, DefaultPolicy())
	res, allowed, err := checker.CheckAndReserve(context.Background(), "u1", "free", models.ActionGuide, "2026-10")
	if err != nil || !allowed {
		t.Fatalf("expected fail-open, got (%v, %v)", allowed, err)
	}
	checker.Release(context.Background(), res)
}

func TestLookupTier(t *testing.T) {
	conn := openTestDB(t)
	if errCreate := conn.Create(&models.UserProfile{ID: "paid", Tier: "Pro"}).Error; errCreate != nil {
		t.Fatalf("seed profile: %v", errCreate)
	}
	tier, err := LookupTier(context.Background(), conn, "paid")
	if err != nil || tier != "pro" {
		t.Fatalf("expected pro, got (%q, %v)", tier, err)
	}
	tier, err = LookupTier(context.Background(), conn, "missing")
	if err != nil || tier != models.TierFree {
		t.Fatalf("expected free default, got (%q, %v)", tier, err)
	}
}

func newRedisCounter(t *testing.T, seed *GormCounter) (*RedisCounter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCounter(client, seed), mr
}

func TestRedisCounterStopsAtLimit(t *testing.T) {
	counter, _ := newRedisCounter(t, nil)
	ctx := context.Background()
	period := PeriodKey(models.ActionQuestion, time.Now())

	for i := 1; i <= 5; i++ {
		used, ok, err := counter.Reserve(ctx, "u1", models.ActionQuestion, period, 5)
		if err != nil || !ok || used != int64(i) {
			t.Fatalf("reserve %d: used=%d ok=%v err=%v", i, used, ok, err)
		}
	}
	used, ok, err := counter.Reserve(ctx, "u1", models.ActionQuestion, period, 5)
	if err != nil || ok || used != 5 {
		t.Fatalf("sixth reserve should be denied at 5, got used=%d ok=%v err=%v", used, ok, err)
	}
}

func TestRedisCounterSeedsFromLedger(t *testing.T) {
	conn := openTestDB(t)
	now := time.Now().UTC()
	seedQuestions(t, conn, "u1", now, 4)

	counter, _ := newRedisCounter(t, NewGormCounter(conn))
	period := PeriodKey(models.ActionQuestion, now)
	used, ok, err := counter.Reserve(context.Background(), "u1", models.ActionQuestion, period, 5)
	if err != nil || !ok || used != 5 {
		t.Fatalf("expected fifth slot granted, got used=%d ok=%v err=%v", used, ok, err)
	}
	if _, ok, _ := counter.Reserve(context.Background(), "u1", models.ActionQuestion, period, 5); ok {
		t.Fatalf("expected limit reached after seeding")
	}
}

func TestRedisCounterReleaseFreesSlot(t *testing.T) {
	counter, mr := newRedisCounter(t, nil)
	ctx := context.Background()
	period := "2026-10"

	for i := 0; i < 3; i++ {
		if _, ok, err := counter.Reserve(ctx, "u1", models.ActionGuide, period, 3); err != nil || !ok {
			t.Fatalf("reserve %d failed: ok=%v err=%v", i, ok, err)
		}
	}
	if errRelease := counter.Release(ctx, "u1", models.ActionGuide, period); errRelease != nil {
		t.Fatalf("release: %v", errRelease)
	}
	got, errGet := mr.Get(Key("u1", models.ActionGuide, period))
	if errGet != nil || got != "2" {
		t.Fatalf("expected counter 2 after release, got %q (%v)", got, errGet)
	}
	if _, ok, _ := counter.Reserve(ctx, "u1", models.ActionGuide, period, 3); !ok {
		t.Fatalf("expected released slot to be reusable")
	}
}

func TestRedisCounterReleaseNeverNegative(t *testing.T) {
	counter, mr := newRedisCounter(t, nil)
	if errRelease := counter.Release(context.Background(), "u1", models.ActionGuide, "2026-10"); errRelease != nil {
		t.Fatalf("release: %v", errRelease)
	}
	if mr.Exists(Key("u1", models.ActionGuide, "2026-10")) {
		t.Fatalf("release on missing key must not create it")
	}
}

func TestRedisCounterConcurrentReservesNeverExceedLimit(t *testing.T) {
	counter, _ := newRedisCounter(t, nil)
	period := PeriodKey(models.ActionQuestion, time.Now())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := counter.Reserve(context.Background(), "u1", models.ActionQuestion, period, 5)
			if err == nil && ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if granted != 5 {
		t.Fatalf("expected exactly 5 grants, got %d", granted)
	}
}

func TestCheckerReleaseUsesCounter(t *testing.T) {
	counter, mr := newRedisCounter(t, nil)
	checker := NewChecker(counter, DefaultPolicy())
	ctx := context.Background()

	res, allowed, err := checker.CheckAndReserve(ctx, "u1", "free", models.ActionGuide, "2026-10")
	if err != nil || !allowed {
		t.Fatalf("check: allowed=%v err=%v", allowed, err)
	}
	checker.Release(ctx, res)
	got, _ := mr.Get(Key("u1", models.ActionGuide, "2026-10"))
	if got != "0" {
		t.Fatalf("expected counter back to 0, got %q", got)
	}
}
