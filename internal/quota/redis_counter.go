package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/avnova/sqyros/internal/models"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "sqyros:quota"

// reserveScript seeds the counter from ARGV[2] when the key is missing,
// then increments only while the value stays below ARGV[1].
var reserveScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  redis.call('SET', KEYS[1], ARGV[2], 'EX', ARGV[3])
  cur = ARGV[2]
end
cur = tonumber(cur)
if cur >= tonumber(ARGV[1]) then
  return {0, cur}
end
local n = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[3])
return {1, n}
`)

// releaseScript decrements without going below zero.
var releaseScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
if cur <= 0 then
  return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisCounter enforces limits atomically in Redis, seeded from the ledger on first use of a period.
type RedisCounter struct {
	client *redis.Client
	seed   *GormCounter
	now    func() time.Time
}

// NewRedisCounter builds a Redis-backed counter. seed may be nil to start periods at zero.
func NewRedisCounter(client *redis.Client, seed *GormCounter) *RedisCounter {
	return &RedisCounter{client: client, seed: seed, now: time.Now}
}

// Key returns the Redis key for a user, action and period.
func Key(userID string, action models.ActionType, periodKey string) string {
	return fmt.Sprintf("%s:%s:%s:%s", redisKeyPrefix, action, periodKey, userID)
}

// Reserve atomically increments the counter when it is below limit.
func (c *RedisCounter) Reserve(ctx context.Context, userID string, action models.ActionType, periodKey string, limit int) (int64, bool, error) {
	_, end, errBounds := periodBounds(periodKey)
	if errBounds != nil {
		return 0, false, errBounds
	}
	key := Key(userID, action, periodKey)

	var seedValue int64
	exists, errExists := c.client.Exists(ctx, key).Result()
	if errExists != nil {
		return 0, false, fmt.Errorf("quota: redis exists: %w", errExists)
	}
	if exists == 0 && c.seed != nil {
		booked, errCount := c.seed.Count(ctx, userID, action, periodKey)
		if errCount != nil {
			return 0, false, errCount
		}
		seedValue = booked
	}

	ttl := end.Sub(c.now()) + time.Hour
	if ttl < time.Minute {
		ttl = time.Minute
	}
	res, errRun := reserveScript.Run(ctx, c.client, []string{key}, limit, seedValue, int64(ttl/time.Second)).Int64Slice()
	if errRun != nil {
		return 0, false, fmt.Errorf("quota: redis reserve: %w", errRun)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("quota: redis reserve: unexpected reply %v", res)
	}
	return res[1], res[0] == 1, nil
}

// Release gives back a slot taken by Reserve.
func (c *RedisCounter) Release(ctx context.Context, userID string, action models.ActionType, periodKey string) error {
	if errRun := releaseScript.Run(ctx, c.client, []string{Key(userID, action, periodKey)}).Err(); errRun != nil {
		return fmt.Errorf("quota: redis release: %w", errRun)
	}
	return nil
}
