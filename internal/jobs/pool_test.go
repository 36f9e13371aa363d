package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/modelforge/pkg/logger"
)

func TestPool_RunsTasksAndCounts(t *testing.T) {
	p := NewPool(PoolConfig{Name: "test-counts"}, logger.Discard())

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit("ok", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}))
	}
	require.NoError(t, p.Submit("bad", func(ctx context.Context) error {
		return errors.New("boom")
	}))
	require.NoError(t, p.Submit("panics", func(ctx context.Context) error {
		panic("unexpected")
	}))

	require.NoError(t, p.Stop(context.Background()))

	m := p.Metrics()
	assert.Equal(t, int32(5), ran.Load())
	assert.Equal(t, int64(7), m.Submitted)
	assert.Equal(t, int64(5), m.Succeeded)
	assert.Equal(t, int64(2), m.Failed)
	assert.Zero(t, m.Running)
}

func TestPool_SubmitReturnsImmediately(t *testing.T) {
	p := NewPool(PoolConfig{Name: "test-detached", Concurrency: 1}, logger.Discard())

	release := make(chan struct{})
	for i := 0; i < 3; i++ {
		start := time.Now()
		require.NoError(t, p.Submit("blocked", func(ctx context.Context) error {
			<-release
			return nil
		}))
		assert.Less(t, time.Since(start), time.Second)
	}

	close(release)
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, int64(3), p.Metrics().Succeeded)
}

func TestPool_ConcurrencyLimit(t *testing.T) {
	p := NewPool(PoolConfig{Name: "test-limit", Concurrency: 2}, logger.Discard())

	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	for i := 0; i < 8; i++ {
		require.NoError(t, p.Submit("limited", func(ctx context.Context) error {
			mu.Lock()
			current++
			if current > peak {
				peak = current
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			current--
			mu.Unlock()
			return nil
		}))
	}

	require.NoError(t, p.Stop(context.Background()))
	assert.LessOrEqual(t, peak, 2)
	assert.Equal(t, int64(8), p.Metrics().Succeeded)
}

func TestPool_TaskContextOutlivesSubmitter(t *testing.T) {
	p := NewPool(PoolConfig{Name: "test-ctx"}, logger.Discard())

	reqCtx, cancelReq := context.WithCancel(context.Background())
	seen := make(chan error, 1)
	started := make(chan struct{})
	proceed := make(chan struct{})

	require.NoError(t, p.Submit("detached", func(ctx context.Context) error {
		close(started)
		<-proceed
		seen <- ctx.Err()
		return nil
	}))
	<-started
	cancelReq()
	<-reqCtx.Done()
	close(proceed)

	require.NoError(t, p.Stop(context.Background()))
	assert.NoError(t, <-seen)
}

func TestPool_StopTimeoutCancelsTasks(t *testing.T) {
	p := NewPool(PoolConfig{Name: "test-timeout"}, logger.Discard())

	cancelled := make(chan struct{})
	require.NoError(t, p.Submit("long", func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Stop(ctx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("task context was not cancelled")
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := NewPool(PoolConfig{Name: "test-closed"}, logger.Discard())
	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, p.Stop(context.Background()))

	err := p.Submit("late", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestTruncateError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want int
	}{
		{"short", "short error", 11},
		{"exact", strings.Repeat("a", maxErrorLength), maxErrorLength},
		{"long", strings.Repeat("b", maxErrorLength+50), maxErrorLength},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, TruncateError(tt.msg), tt.want)
		})
	}
}
