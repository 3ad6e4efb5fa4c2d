package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingMetrics struct {
	mu                  sync.Mutex
	idle, busy, stopped int
	calls               int
}

func (m *recordingMetrics) RecordRound(string, time.Duration)             {}
func (m *recordingMetrics) RecordModelStep(string, string, time.Duration) {}
func (m *recordingMetrics) RecordModelInit(string, string)                {}
func (m *recordingMetrics) SetActiveModels(int)                           {}
func (m *recordingMetrics) RecordWorkerPoolStatus(idle, busy, stopped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idle, m.busy, m.stopped = idle, busy, stopped
	m.calls++
}

func TestPool_RunAllRunsEveryJob(t *testing.T) {
	p := NewPool(4, nil, zaptest.NewLogger(t), 0)
	require.NoError(t, p.Start())
	defer func() { _ = p.Shutdown(context.Background()) }()

	var count atomic.Int32
	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = func(ctx context.Context) { count.Add(1) }
	}

	require.NoError(t, p.RunAll(context.Background(), jobs))
	require.Equal(t, int32(20), count.Load())
}

func TestPool_RunAllBoundsConcurrency(t *testing.T) {
	p := NewPool(3, nil, zaptest.NewLogger(t), 0)
	defer func() { _ = p.Shutdown(context.Background()) }()

	var current, peak atomic.Int32
	jobs := make([]Job, 12)
	for i := range jobs {
		jobs[i] = func(ctx context.Context) {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
		}
	}

	require.NoError(t, p.RunAll(context.Background(), jobs))
	require.LessOrEqual(t, peak.Load(), int32(3))
	require.Equal(t, 3, p.Size())
}

func TestPool_SizeOneRunsInSubmissionOrder(t *testing.T) {
	p := NewPool(1, nil, zaptest.NewLogger(t), 0)
	defer func() { _ = p.Shutdown(context.Background()) }()

	var mu sync.Mutex
	var order []int
	jobs := make([]Job, 5)
	for i := range jobs {
		i := i
		jobs[i] = func(ctx context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}
	}

	require.NoError(t, p.RunAll(context.Background(), jobs))
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPool_RunAllWithCancelledContext(t *testing.T) {
	p := NewPool(2, nil, zaptest.NewLogger(t), 0)
	require.NoError(t, p.Start())
	defer func() { _ = p.Shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	jobs := []Job{func(ctx context.Context) { ran.Add(1) }}

	// A cancelled context races with an idle worker; whichever wins, RunAll
	// must return and never leave a job half-accounted.
	err := p.RunAll(ctx, jobs)
	if err != nil {
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, int32(0), ran.Load())
	} else {
		require.Equal(t, int32(1), ran.Load())
	}
}

func TestPool_PanickingJobDoesNotKillWorker(t *testing.T) {
	p := NewPool(1, nil, zaptest.NewLogger(t), 0)
	defer func() { _ = p.Shutdown(context.Background()) }()

	var ran atomic.Bool
	jobs := []Job{
		func(ctx context.Context) { panic("boom") },
		func(ctx context.Context) { ran.Store(true) },
	}

	require.NoError(t, p.RunAll(context.Background(), jobs))
	require.True(t, ran.Load())
}

func TestPool_ShutdownIsIdempotentAndRejectsWork(t *testing.T) {
	p := NewPool(2, nil, zaptest.NewLogger(t), 0)
	require.NoError(t, p.Start())

	require.NoError(t, p.Shutdown(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))

	err := p.RunAll(context.Background(), []Job{func(ctx context.Context) {}})
	require.ErrorIs(t, err, ErrPoolClosed)
	require.ErrorIs(t, p.Start(), ErrPoolClosed)
}

func TestPool_SizeIsAtLeastOne(t *testing.T) {
	p := NewPool(0, nil, nil, 0)
	require.Equal(t, 1, p.Size())
}

func TestPool_Occupancy(t *testing.T) {
	metrics := &recordingMetrics{}
	p := NewPool(2, metrics, zaptest.NewLogger(t), 0)

	occ := p.Occupancy()
	require.Zero(t, occ.Workers)
	require.False(t, occ.Serving)

	require.NoError(t, p.Start())
	occ = p.recordOccupancy()
	require.Equal(t, 2, occ.Workers)
	require.Equal(t, 2, occ.Idle)
	require.True(t, occ.Serving)

	metrics.mu.Lock()
	require.Equal(t, 1, metrics.calls)
	require.Equal(t, 2, metrics.idle)
	metrics.mu.Unlock()

	// A worker stepping a model is busy; the pool still serves.
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- p.RunAll(context.Background(), []Job{func(ctx context.Context) {
			close(started)
			<-release
		}})
	}()
	<-started
	require.Eventually(t, func() bool { return p.Occupancy().Busy == 1 }, time.Second, time.Millisecond)
	require.True(t, p.Occupancy().Serving)
	close(release)
	require.NoError(t, <-done)

	require.NoError(t, p.Shutdown(context.Background()))
	occ = p.Occupancy()
	require.Equal(t, 2, occ.Stopped)
	require.False(t, occ.Serving)
}

func TestPool_SamplesOccupancyWhileRunning(t *testing.T) {
	metrics := &recordingMetrics{}
	p := NewPool(3, metrics, zaptest.NewLogger(t), 5*time.Millisecond)
	require.NoError(t, p.Start())

	require.Eventually(t, func() bool {
		metrics.mu.Lock()
		defer metrics.mu.Unlock()
		return metrics.calls >= 2 && metrics.idle == 3
	}, time.Second, time.Millisecond)

	require.NoError(t, p.Shutdown(context.Background()))

	metrics.mu.Lock()
	calls := metrics.calls
	metrics.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	metrics.mu.Lock()
	require.Equal(t, calls, metrics.calls)
	metrics.mu.Unlock()
}
