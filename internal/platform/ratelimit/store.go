// Package ratelimit throttles the unauthenticated routes per client address
// with a sliding window, so acknowledgement codes cannot be enumerated.
package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Store counts requests per key over a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Memory is a single-process sliding window. Counts are lost on restart and
// not shared between instances.
type Memory struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{windows: make(map[string][]time.Time), now: time.Now}
}

func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-window)
	stamps := m.windows[key]
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	stamps = stamps[i:]

	res := Result{Limit: limit}
	if len(stamps) < limit {
		stamps = append(stamps, now)
		res.Allowed = true
	}
	res.Remaining = max(limit-len(stamps), 0)
	res.ResetAt = now.Add(window)
	if len(stamps) > 0 {
		res.ResetAt = stamps[0].Add(window)
	}
	if !res.Allowed {
		res.RetryAfter = res.ResetAt.Sub(now)
	}
	if len(stamps) == 0 {
		delete(m.windows, key)
	} else {
		m.windows[key] = stamps
	}
	return res, nil
}

const keyPrefix = "warish:ratelimit:"

// slidingWindowScript trims the sorted set to the window, then admits the
// request when there is room. Returns {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)
local allowed = 0
if count < limit then
	redis.call("ZADD", key, now, ARGV[4])
	count = count + 1
	allowed = 1
end
redis.call("PEXPIRE", key, window)
local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local oldestScore = now
if oldest[2] then
	oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

// Redis shares the window between instances using one sorted set per key.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	member, err := newMember()
	if err != nil {
		return Result{}, err
	}
	now := r.now()
	vals, err := slidingWindowScript.Run(ctx, r.client, []string{keyPrefix + key},
		now.UnixMilli(), window.Milliseconds(), limit, member).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate limit %s: unexpected script reply %v", key, vals)
	}
	res := Result{
		Allowed:   vals[0] == 1,
		Limit:     limit,
		Remaining: max(limit-int(vals[1]), 0),
		ResetAt:   time.UnixMilli(vals[2]).Add(window),
	}
	if !res.Allowed {
		res.RetryAfter = res.ResetAt.Sub(now)
	}
	return res, nil
}

func newMember() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate rate limit member: %w", err)
	}
	return hex.EncodeToString(b), nil
}
