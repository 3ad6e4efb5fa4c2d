package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/aescanero/simorch/internal/application/workers"
	"github.com/aescanero/simorch/pkg/blackboard"
	"github.com/aescanero/simorch/pkg/ports"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Options configures an Orchestrator.
type Options struct {
	// RunID identifies the run in events and persisted snapshots. A random
	// UUID is used when empty.
	RunID string
	// MaxParallelism bounds how many models of one level step at once.
	// Defaults to runtime.NumCPU(); 1 runs every round sequentially in
	// total order.
	MaxParallelism int
	// StepTimeout, when positive, is set as a deadline on the context passed
	// to each model step.
	StepTimeout time.Duration
	// PoolSampleInterval, when positive, records worker pool occupancy as
	// metrics at this interval.
	PoolSampleInterval time.Duration

	Metrics ports.MetricsCollector
	Tracer  trace.Tracer
}

// Orchestrator coordinates the registered models of one simulation run.
//
// The control surface (Register, Initialize, Step, Dispose) is not
// reentrant: callers serialize it. Pause, Resume and the query methods may
// be called from any goroutine.
type Orchestrator struct {
	runID    string
	opts     Options
	logger   *zap.Logger
	metrics  ports.MetricsCollector
	tracer   trace.Tracer
	registry *Registry
	events   *dispatcher
	pool     *workers.Pool

	mu             sync.Mutex
	state          RunState
	step           int64
	graph          *Graph
	sim            *SimulationContext
	stepping       bool
	pauseRequested bool
	disposed       bool

	runCtx    context.Context
	cancelRun context.CancelFunc
	inflight  sync.WaitGroup
}

// New creates an orchestrator in state RunCreated.
func New(opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if opts.MaxParallelism <= 0 {
		opts.MaxParallelism = runtime.NumCPU()
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NopMetrics{}
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("simorch")
	}

	logger = logger.With(zap.String("run_id", opts.RunID))
	runCtx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		runID:     opts.RunID,
		opts:      opts,
		logger:    logger,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		registry:  NewRegistry(),
		events:    newDispatcher(logger),
		pool:      workers.NewPool(opts.MaxParallelism, opts.Metrics, logger, opts.PoolSampleInterval),
		state:     RunCreated,
		runCtx:    runCtx,
		cancelRun: cancel,
	}
}

// RunID returns the run identity.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// State returns the run state.
func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// CurrentStep returns the number of the last round started, 0 before the
// first Step.
func (o *Orchestrator) CurrentStep() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// IsComplete reports whether the run reached RunCompleted.
func (o *Orchestrator) IsComplete() bool {
	return o.State() == RunCompleted
}

// Clock returns the logical time after the last round started.
func (o *Orchestrator) Clock() Clock {
	o.mu.Lock()
	defer o.mu.Unlock()
	ts := DefaultTimeStep
	if o.sim != nil {
		ts = o.sim.TimeStep
	}
	return newClock(o.step, ts)
}

// Shared returns the run's blackboard, nil before Initialize.
func (o *Orchestrator) Shared() *blackboard.SharedContext {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sim == nil {
		return nil
	}
	return o.sim.Shared
}

// Graph returns the execution plan, nil before a successful graph build.
func (o *Orchestrator) Graph() *Graph {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.graph
}

// Registrations returns every registration in registration order.
func (o *Orchestrator) Registrations() []*Registration {
	return o.registry.Registrations()
}

// Registration returns the registration for id.
func (o *Orchestrator) Registration(id string) (*Registration, bool) {
	return o.registry.Get(id)
}

// Pool exposes the worker pool for health reporting.
func (o *Orchestrator) Pool() *workers.Pool {
	return o.pool
}

// Subscribe registers obs for lifecycle events and returns a function that
// unsubscribes it.
func (o *Orchestrator) Subscribe(obs Observer) func() {
	return o.events.subscribe(obs)
}

// Register adds a model. It is accepted only before Initialize.
func (o *Orchestrator) Register(model Model, options ModelOptions, dependsOn ...string) (*Registration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.disposed {
		return nil, ErrDisposed
	}
	if o.state != RunCreated {
		return nil, &InvalidStateError{Op: "register", State: o.state}
	}

	reg, err := o.registry.Register(model, options, dependsOn...)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("model registered",
		zap.String("model_id", reg.id),
		zap.Int("priority", reg.options.Priority),
		zap.Strings("depends_on", reg.dependsOn),
		zap.Bool("optional", reg.options.Optional))

	return reg, nil
}

// Plan builds the execution plan from the current registrations without
// changing any state.
func (o *Orchestrator) Plan() (*Graph, error) {
	return BuildGraph(o.registry.Registrations())
}

// Initialize resolves the dependency graph and initializes every model in
// total order.
//
// Structural failures (unknown dependency, cycle) and the initialization
// failure of a required model move the orchestrator to RunError and are
// returned. A failing optional model moves to ModelError and is excluded from
// every later round. Dispose cancels ctx and waits for Initialize to return.
func (o *Orchestrator) Initialize(ctx context.Context, sim *SimulationContext) error {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return ErrDisposed
	}
	if o.state != RunCreated {
		state := o.state
		o.mu.Unlock()
		return &InvalidStateError{Op: "initialize", State: state}
	}
	if sim == nil || sim.Shared == nil {
		o.mu.Unlock()
		return fmt.Errorf("initialize: simulation context without shared context: %w", ErrInvalidArgument)
	}
	if sim.TimeStep <= 0 {
		sim.TimeStep = DefaultTimeStep
	}
	o.sim = sim
	o.inflight.Add(1)
	o.mu.Unlock()

	defer o.inflight.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(o.runCtx, cancel)
	defer stop()

	graph, err := BuildGraph(o.registry.Registrations())
	if err != nil {
		o.logger.Error("dependency graph rejected", zap.Error(err))
		o.setState(RunError)
		return fmt.Errorf("initialize: %w", err)
	}

	o.mu.Lock()
	o.graph = graph
	o.mu.Unlock()

	o.logger.Info("dependency graph built",
		zap.Int("models", len(graph.order)),
		zap.Int("levels", graph.Len()))

	for _, reg := range graph.order {
		if err := ctx.Err(); err != nil {
			o.setState(RunError)
			return fmt.Errorf("initialize: %w", err)
		}

		if err := o.initializeModel(ctx, reg); err != nil {
			initErr := &InitializationError{ModelID: reg.id, Err: err}
			reg.fail(initErr)

			if reg.options.Optional {
				o.logger.Warn("optional model failed to initialize, excluded from run",
					zap.String("model_id", reg.id),
					zap.Error(err))
				o.metrics.RecordModelInit(reg.id, "contained")
				continue
			}

			o.logger.Error("required model failed to initialize",
				zap.String("model_id", reg.id),
				zap.Error(err))
			o.metrics.RecordModelInit(reg.id, "error")
			o.setState(RunError)
			return initErr
		}

		reg.setState(ModelReady)
		o.metrics.RecordModelInit(reg.id, "ok")
	}

	if err := ctx.Err(); err != nil {
		o.setState(RunError)
		return fmt.Errorf("initialize: %w", err)
	}

	if err := o.pool.Start(); err != nil {
		o.setState(RunError)
		return fmt.Errorf("initialize: %w", err)
	}

	o.setState(RunReady)
	o.metrics.SetActiveModels(o.countActive())
	o.logger.Info("orchestrator ready", zap.Int("active_models", o.countActive()))

	return nil
}

func (o *Orchestrator) initializeModel(ctx context.Context, reg *Registration) (err error) {
	reg.setState(ModelInitializing)

	mc := &ModelContext{
		ModelID:    reg.id,
		Shared:     o.sim.Shared,
		Parameters: reg.options.Parameters,
		TimeStep:   o.sim.TimeStep,
		Logger:     o.logger.With(zap.String("model_id", reg.id)),
	}

	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()

	return reg.model.Initialize(ctx, mc)
}

// Step runs one round: every level in order, the active models of a level
// concurrently, each level joined before the next starts.
//
// Step requires RunReady or RunRunning. It returns ResultCompleted once every
// model that counts toward completion has completed, ResultContinue
// otherwise. A failing required model ends the round after its level, moves
// the orchestrator to RunError and is returned as a *StepError together with
// ResultError. Cancelling ctx or disposing the orchestrator lets the current
// level finish, starts no further level and fails the run with
// ErrRoundAborted.
func (o *Orchestrator) Step(ctx context.Context) (StepResult, error) {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return ResultError, ErrDisposed
	}
	switch o.state {
	case RunReady:
		o.state = RunRunning
	case RunRunning:
	default:
		state := o.state
		o.mu.Unlock()
		return ResultError, &InvalidStateError{Op: "step", State: state}
	}
	o.step++
	step := o.step
	graph := o.graph
	clock := newClock(step, o.sim.TimeStep)
	o.stepping = true
	o.inflight.Add(1)
	o.mu.Unlock()

	defer o.inflight.Done()

	roundCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(o.runCtx, cancel)
	defer stop()

	roundCtx, span := o.tracer.Start(roundCtx, "orchestrator.step",
		trace.WithAttributes(
			attribute.String("sim.run_id", o.runID),
			attribute.Int64("sim.step", step),
		))
	defer span.End()

	// Models are never preempted: they see the round's values but not its
	// cancellation, which is honoured only at level boundaries.
	modelCtx := context.WithoutCancel(roundCtx)

	start := time.Now()
	failures := &roundFailures{}
	var abortErr error

	for i, level := range graph.levels {
		if err := roundCtx.Err(); err != nil {
			abortErr = err
			break
		}
		if failures.first() != nil {
			break
		}

		jobs := make([]workers.Job, 0, len(level))
		for _, reg := range level {
			if !reg.active() {
				continue
			}
			reg := reg
			jobs = append(jobs, func(ctx context.Context) {
				o.stepModel(ctx, reg, clock, failures)
			})
		}
		if len(jobs) == 0 {
			continue
		}

		if err := o.pool.RunAll(modelCtx, jobs); err != nil {
			abortErr = err
			break
		}

		o.logger.Debug("level barrier reached",
			zap.Int64("step", step),
			zap.Int("level", i),
			zap.Int("models", len(jobs)))
	}

	result, err := o.finishRound(step, failures.first(), abortErr)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("sim.outcome", result.String()))

	o.events.dispatch(modelCtx, Event{
		Type:          EventBarrierReached,
		RunID:         o.runID,
		Step:          step,
		Timestamp:     time.Now(),
		Result:        result,
		Err:           err,
		Duration:      duration,
		Models:        graph.Order(),
		SimulatedTime: clock.SimulatedTime,
	})

	o.metrics.RecordRound(result.String(), duration)
	o.metrics.SetActiveModels(o.countActive())

	o.logger.Debug("round finished",
		zap.Int64("step", step),
		zap.String("outcome", result.String()),
		zap.Duration("duration", duration))

	return result, err
}

// finishRound decides the round outcome and applies the state transition,
// including a pause requested during the round.
func (o *Orchestrator) finishRound(step int64, fatal, abortErr error) (StepResult, error) {
	var (
		result StepResult
		err    error
		next   RunState
	)

	switch {
	case abortErr != nil:
		result = ResultError
		err = fmt.Errorf("%w at step %d: %w", ErrRoundAborted, step, abortErr)
		next = RunError
		o.logger.Error("round aborted", zap.Int64("step", step), zap.Error(abortErr))
	case fatal != nil:
		result = ResultError
		err = fatal
		next = RunError
	case o.completionReached():
		result = ResultCompleted
		next = RunCompleted
		o.logger.Info("run completed", zap.Int64("step", step))
	default:
		result = ResultContinue
		next = RunRunning
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.stepping = false
	if next == RunRunning && o.pauseRequested {
		next = RunPaused
		o.logger.Info("run paused", zap.Int64("step", step))
	}
	o.pauseRequested = false
	o.state = next

	return result, err
}

// stepModel runs one model's step on a worker and records its outcome.
func (o *Orchestrator) stepModel(ctx context.Context, reg *Registration, clock Clock, failures *roundFailures) {
	reg.setState(ModelStepping)

	o.events.dispatch(ctx, Event{
		Type:      EventBeforeModelStep,
		RunID:     o.runID,
		Step:      clock.Step,
		Timestamp: time.Now(),
		Model:     reg,
	})

	ctx, span := o.tracer.Start(ctx, "model.step",
		trace.WithAttributes(
			attribute.String("sim.model_id", reg.id),
			attribute.Int64("sim.step", clock.Step),
		))
	defer span.End()

	start := time.Now()
	result, err := o.callStep(ctx, reg, clock)
	duration := time.Since(start)

	event := Event{
		Type:     EventAfterModelStep,
		RunID:    o.runID,
		Step:     clock.Step,
		Model:    reg,
		Duration: duration,
	}

	if err != nil {
		stepErr := &StepError{ModelID: reg.id, Step: clock.Step, Err: err}
		reg.fail(stepErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if reg.options.Optional {
			o.logger.Warn("optional model failed, excluded from run",
				zap.String("model_id", reg.id),
				zap.Int64("step", clock.Step),
				zap.Error(err))
			o.metrics.RecordModelStep(reg.id, "contained", duration)
		} else {
			o.logger.Error("required model failed",
				zap.String("model_id", reg.id),
				zap.Int64("step", clock.Step),
				zap.Error(err))
			o.metrics.RecordModelStep(reg.id, "error", duration)
			failures.add(stepErr)
		}

		event.Result = ResultError
		event.Err = stepErr
	} else {
		reg.recordStep(result)
		o.metrics.RecordModelStep(reg.id, result.String(), duration)
		event.Result = result
	}

	event.Timestamp = time.Now()
	o.events.dispatch(ctx, event)
}

func (o *Orchestrator) callStep(ctx context.Context, reg *Registration, clock Clock) (result StepResult, err error) {
	if o.opts.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.StepTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = ResultError, &panicError{value: r}
		}
	}()

	result, err = reg.model.Step(ctx, clock)
	if err != nil {
		return ResultError, err
	}

	switch result {
	case ResultContinue, ResultCompleted:
		return result, nil
	case ResultError:
		return ResultError, errors.New("model reported an error result")
	default:
		return ResultError, fmt.Errorf("model returned unknown result %d", int(result))
	}
}

// completionReached reports whether every model counting toward completion
// has completed. Failed and ContinueAfterComplete models never count, so a
// run without any counting model completes after its first round.
func (o *Orchestrator) completionReached() bool {
	for _, reg := range o.graph.order {
		if reg.options.ContinueAfterComplete {
			continue
		}
		if state := reg.State(); state != ModelError && state != ModelCompleted {
			return false
		}
	}
	return true
}

func (o *Orchestrator) countActive() int {
	n := 0
	for _, reg := range o.registry.Registrations() {
		if reg.active() {
			n++
		}
	}
	return n
}

// Pause moves a running orchestrator to RunPaused. When a round is in
// progress the pause takes effect after its final barrier.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.disposed {
		return ErrDisposed
	}
	switch o.state {
	case RunRunning:
		if o.stepping {
			o.pauseRequested = true
			return nil
		}
		o.state = RunPaused
		o.logger.Info("run paused", zap.Int64("step", o.step))
		return nil
	default:
		return &InvalidStateError{Op: "pause", State: o.state}
	}
}

// Resume returns a paused orchestrator to RunRunning, or withdraws a pause
// still pending on the current round.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.disposed {
		return ErrDisposed
	}
	switch {
	case o.state == RunPaused:
		o.state = RunRunning
		o.logger.Info("run resumed", zap.Int64("step", o.step))
		return nil
	case o.state == RunRunning && o.pauseRequested:
		o.pauseRequested = false
		return nil
	default:
		return &InvalidStateError{Op: "resume", State: o.state}
	}
}

// Dispose releases the orchestrator. A round in progress finishes its
// current level and stops; Dispose waits for it, then shuts the worker pool
// down. It is idempotent and safe in any state; the run state stays
// queryable.
func (o *Orchestrator) Dispose() error {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return nil
	}
	o.disposed = true
	o.mu.Unlock()

	o.cancelRun()
	o.inflight.Wait()

	if err := o.pool.Shutdown(context.Background()); err != nil {
		return fmt.Errorf("dispose: %w", err)
	}

	o.logger.Debug("orchestrator disposed")
	return nil
}

func (o *Orchestrator) setState(s RunState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// roundFailures collects fatal model failures of one round.
type roundFailures struct {
	mu   sync.Mutex
	errs []error
}

func (f *roundFailures) add(err error) {
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()
}

func (f *roundFailures) first() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) == 0 {
		return nil
	}
	return f.errs[0]
}
