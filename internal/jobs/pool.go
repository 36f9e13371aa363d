package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/emergent-company/modelforge/pkg/logger"
)

var (
	poolTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jobs_pool_tasks_total",
		Help: "Tasks finished by a pool, by outcome",
	}, []string{"pool", "outcome"})

	poolRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jobs_pool_running_tasks",
		Help: "Tasks currently executing in a pool",
	}, []string{"pool"})

	poolTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jobs_pool_task_duration_seconds",
		Help:    "Wall time of pool tasks",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"pool"})
)

// ErrPoolClosed is returned by Submit after Stop has been called.
var ErrPoolClosed = errors.New("pool is closed")

// Task is a unit of detached work. The context is owned by the pool, not by
// whoever submitted the task.
type Task func(ctx context.Context) error

// PoolConfig contains configuration for a task pool
type PoolConfig struct {
	// Name is used for logging and metric labels
	Name string
	// Concurrency bounds concurrently running tasks; 0 means unlimited
	Concurrency int
}

// PoolMetrics is a snapshot of pool counters
type PoolMetrics struct {
	Submitted int64 `json:"submitted"`
	Running   int64 `json:"running"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// Pool runs detached tasks on an errgroup. Task failures are logged and
// counted but never cancel sibling tasks.
type Pool struct {
	config PoolConfig
	log    *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	group   errgroup.Group

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup

	metricsMu sync.RWMutex
	metrics   PoolMetrics
}

// NewPool creates a pool whose tasks run under a context detached from any
// request; it is cancelled only when Stop gives up waiting.
func NewPool(config PoolConfig, log *slog.Logger) *Pool {
	if config.Name == "" {
		config.Name = "default"
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		config:  config,
		log:     log.With(logger.Scope("jobs.pool"), slog.String("pool", config.Name)),
		baseCtx: ctx,
		cancel:  cancel,
	}
	limit := config.Concurrency
	if limit <= 0 {
		limit = -1
	}
	p.group.SetLimit(limit)
	return p
}

// Submit schedules task and returns immediately. When the pool is at its
// concurrency limit the task waits for a free slot.
func (p *Pool) Submit(name string, task Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.pending.Add(1)
	p.mu.Unlock()

	p.update(func(m *PoolMetrics) { m.Submitted++ })

	go func() {
		defer p.pending.Done()
		p.group.Go(func() error {
			p.execute(name, task)
			return nil
		})
	}()
	return nil
}

func (p *Pool) execute(name string, task Task) {
	start := time.Now()
	p.update(func(m *PoolMetrics) { m.Running++ })
	poolRunning.WithLabelValues(p.config.Name).Inc()

	err := p.safeRun(task)

	poolRunning.WithLabelValues(p.config.Name).Dec()
	poolTaskDuration.WithLabelValues(p.config.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		p.log.Warn("task failed", slog.String("task", name), logger.Error(err))
		poolTasks.WithLabelValues(p.config.Name, "failed").Inc()
		p.update(func(m *PoolMetrics) { m.Running--; m.Failed++ })
		return
	}
	p.log.Debug("task finished", slog.String("task", name), slog.Duration("duration", time.Since(start)))
	poolTasks.WithLabelValues(p.config.Name, "succeeded").Inc()
	p.update(func(m *PoolMetrics) { m.Running--; m.Succeeded++ })
}

func (p *Pool) safeRun(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(p.baseCtx)
}

// Stop rejects new submissions and waits for running tasks. If ctx expires
// first the task context is cancelled and Stop returns ctx.Err().
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		p.log.Info("pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.cancel()
		p.log.Warn("pool stop timeout, cancelling running tasks")
		return ctx.Err()
	}
}

// Metrics returns current pool metrics
func (p *Pool) Metrics() PoolMetrics {
	p.metricsMu.RLock()
	defer p.metricsMu.RUnlock()
	return p.metrics
}

func (p *Pool) update(fn func(*PoolMetrics)) {
	p.metricsMu.Lock()
	fn(&p.metrics)
	p.metricsMu.Unlock()
}

// TruncateError clips a message to maxErrorLength bytes for persistence.
func TruncateError(msg string) string {
	if len(msg) > maxErrorLength {
		return msg[:maxErrorLength]
	}
	return msg
}

const maxErrorLength = 2000
