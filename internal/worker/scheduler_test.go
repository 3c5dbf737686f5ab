package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drinkmmaenergy-prog/avalo-platform-sub018/internal/platform/lock"
)

func TestSchedulerRunsJobsUntilCancelled(t *testing.T) {
	var fast, failing atomic.Int32
	s, err := New([]Job{
		{Name: "fast", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			fast.Add(1)
			return nil
		}},
		{Name: "failing", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			failing.Add(1)
			return errors.New("boom")
		}},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, fast.Load(), int32(2))
	assert.Greater(t, failing.Load(), int32(2), "failures do not stop the loop")
}

func TestRunNowSkipsWhileLocked(t *testing.T) {
	locker := lock.NewSharded(0)
	reg := prometheus.NewRegistry()
	s, err := New(nil, WithLocker(locker), WithRegisterer(reg))
	require.NoError(t, err)

	var runs int
	job := Job{Name: "settlement", Interval: time.Minute, Run: func(context.Context) error {
		runs++
		return nil
	}}

	release, err := locker.Lock(context.Background(), "job:settlement")
	require.NoError(t, err)
	assert.False(t, s.RunNow(context.Background(), job))
	release()

	assert.True(t, s.RunNow(context.Background(), job))
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.runs.WithLabelValues("settlement", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.runs.WithLabelValues("settlement", "ok")))
}

func TestNewValidatesJobs(t *testing.T) {
	_, err := New([]Job{{Name: "x", Interval: 0, Run: func(context.Context) error { return nil }}})
	assert.Error(t, err)
	_, err = New([]Job{{Interval: time.Second}})
	assert.Error(t, err)
}
