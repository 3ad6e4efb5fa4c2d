package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/simorch/pkg/ports"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned when jobs are submitted to a pool that has been
// shut down.
var ErrPoolClosed = errors.New("worker pool closed")

// Job is a unit of work run by a pool worker.
type Job func(ctx context.Context)

// Pool manages a pool of worker goroutines
type Pool struct {
	size    int
	metrics ports.MetricsCollector
	logger  *zap.Logger

	// sampleEvery is the occupancy sampling interval; zero disables it.
	sampleEvery time.Duration

	jobs    chan *task
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	started bool
	closed  bool
}

// task is a job bound to its batch.
type task struct {
	ctx   context.Context
	job   Job
	batch *sync.WaitGroup
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool. A size below one is raised to one. A
// positive sampleEvery records the pool's occupancy as metrics at that
// interval while the pool runs.
func NewPool(
	size int,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	sampleEvery time.Duration,
) *Pool {
	if size < 1 {
		size = 1
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		size:        size,
		metrics:     metrics,
		logger:      logger,
		sampleEvery: sampleEvery,
		jobs:        make(chan *task),
		workers:     make([]*worker, size),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Start starts the worker pool. Calling Start on a running pool is a no-op.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.started {
		return nil
	}
	p.started = true

	p.logger.Debug("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	if p.sampleEvery > 0 {
		p.wg.Add(1)
		go p.watchOccupancy(p.ctx, p.sampleEvery)
	}

	return nil
}

// RunAll submits jobs in order and blocks until every submitted job has
// finished. Submission stops early when ctx is done or the pool shuts down;
// jobs already running are never interrupted and are still waited for. The
// returned error is ctx.Err() or ErrPoolClosed when not every job was
// submitted.
func (p *Pool) RunAll(ctx context.Context, jobs []Job) error {
	p.mu.Lock()
	started, closed := p.started, p.closed
	p.mu.Unlock()

	if closed {
		return ErrPoolClosed
	}
	if !started {
		if err := p.Start(); err != nil {
			return err
		}
	}

	var batch sync.WaitGroup
	var submitErr error

submit:
	for _, job := range jobs {
		batch.Add(1)
		t := &task{ctx: ctx, job: job, batch: &batch}

		select {
		case p.jobs <- t:
		case <-ctx.Done():
			batch.Done()
			submitErr = ctx.Err()
			break submit
		case <-p.ctx.Done():
			batch.Done()
			submitErr = ErrPoolClosed
			break submit
		}
	}

	batch.Wait()
	return submitErr
}

// Shutdown gracefully shuts down the worker pool
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.logger.Debug("shutting down worker pool")

	// Cancel context to signal workers to stop
	p.cancel()

	// Wait for all workers to finish with timeout
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	status := make(map[string]WorkerStatus)
	if !started {
		return status
	}
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped)
			return
		case t := <-w.pool.jobs:
			w.execute(t)
		}
	}
}

// execute runs a single job and releases its batch slot.
func (w *worker) execute(t *task) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error("job panicked",
				zap.String("worker_id", w.id),
				zap.Any("panic", r))
		}
		w.setStatus(WorkerStatusIdle)
		t.batch.Done()
	}()

	t.job(t.ctx)
}

func (w *worker) setStatus(s WorkerStatus) {
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
}
