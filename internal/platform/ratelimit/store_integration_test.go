//go:build integration

package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"warish/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *Redis
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestConcurrentCallersShareOneWindow() {
	ctx := context.Background()
	const (
		callers = 40
		limit   = 10
	)
	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.store.Allow(ctx, "ack:192.0.2.10", limit, time.Minute)
			s.Require().NoError(err)
			if res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(limit), allowed.Load())
}

func (s *RedisStoreSuite) TestWindowSlides() {
	ctx := context.Background()
	res, err := s.store.Allow(ctx, "submit:192.0.2.11", 1, 200*time.Millisecond)
	s.Require().NoError(err)
	s.True(res.Allowed)

	ttl, err := s.redis.TTL(ctx, keyPrefix+"submit:192.0.2.11")
	s.Require().NoError(err)
	s.Positive(ttl, "idle windows expire on their own")
	s.LessOrEqual(ttl, 200*time.Millisecond)

	res, err = s.store.Allow(ctx, "submit:192.0.2.11", 1, 200*time.Millisecond)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Positive(res.RetryAfter)

	time.Sleep(250 * time.Millisecond)
	res, err = s.store.Allow(ctx, "submit:192.0.2.11", 1, 200*time.Millisecond)
	s.Require().NoError(err)
	s.True(res.Allowed)
}
