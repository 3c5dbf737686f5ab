//go:build integration

package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/lock"
	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

// TestMutualExclusion verifies that two lockers sharing Redis never hold the
// same key at once.
func (s *RedisLockSuite) TestMutualExclusion() {
	a := lock.NewRedis(s.redis.Client, lock.WithPollInterval(5*time.Millisecond))
	b := lock.NewRedis(s.redis.Client, lock.WithPollInterval(5*time.Millisecond))

	var inside, violations atomic.Int32
	var wg sync.WaitGroup
	for i := range 20 {
		l := a
		if i%2 == 1 {
			l = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			release, err := l.Lock(ctx, "actor-42")
			if !s.NoError(err) {
				return
			}
			if inside.Add(1) > 1 {
				violations.Add(1)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	s.Equal(int32(0), violations.Load())
}

func (s *RedisLockSuite) TestExpiredLockIsNotReleasedByOldHolder() {
	l := lock.NewRedis(s.redis.Client, lock.WithTTL(50*time.Millisecond))
	ctx := context.Background()

	releaseOld, err := l.Lock(ctx, "actor-7")
	s.Require().NoError(err)
	time.Sleep(80 * time.Millisecond)

	releaseNew, err := l.Lock(ctx, "actor-7")
	s.Require().NoError(err)

	releaseOld()
	exists, err := s.redis.Client.Exists(ctx, "engine:lock:actor-7").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists, "stale holder must not delete the new holder's key")
	releaseNew()
}

func (s *RedisLockSuite) TestTimesOutWhenHeld() {
	l := lock.NewRedis(s.redis.Client, lock.WithTTL(5*time.Second))
	release, err := l.Lock(context.Background(), "actor-9")
	s.Require().NoError(err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "actor-9")
	s.Error(err)
}
