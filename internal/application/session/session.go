// Package session serializes access to one orchestrator run for concurrent
// callers and drives its autorun loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"go.uber.org/zap"
)

// pausedPoll is how often an autorun loop without an interval checks whether
// a paused run was resumed.
const pausedPoll = 10 * time.Millisecond

// ErrRunFailed is returned by Run when the orchestrator is already in
// RunError.
var ErrRunFailed = errors.New("run failed")

// Session owns an initialized orchestrator. Step is serialized; Pause,
// Resume and the queries go straight to the orchestrator, which is safe for
// them.
type Session struct {
	orch   *orchestrator.Orchestrator
	logger *zap.Logger

	mu sync.Mutex
}

// Status is the externally visible view of a run.
type Status struct {
	RunID    string                          `json:"run_id"`
	State    orchestrator.RunState           `json:"state"`
	Step     int64                           `json:"step"`
	Complete bool                            `json:"complete"`
	Clock    orchestrator.Clock              `json:"clock"`
	Levels   [][]string                      `json:"levels,omitempty"`
	Models   []orchestrator.RegistrationInfo `json:"models"`
}

// New creates a session over orch.
func New(orch *orchestrator.Orchestrator, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		orch:   orch,
		logger: logger.With(zap.String("run_id", orch.RunID())),
	}
}

// Orchestrator returns the underlying orchestrator.
func (s *Session) Orchestrator() *orchestrator.Orchestrator {
	return s.orch
}

// Step runs one round. Concurrent calls run one after the other.
func (s *Session) Step(ctx context.Context) (orchestrator.StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orch.Step(ctx)
}

// Pause requests a pause; see Orchestrator.Pause.
func (s *Session) Pause() error {
	return s.orch.Pause()
}

// Resume resumes a paused run; see Orchestrator.Resume.
func (s *Session) Resume() error {
	return s.orch.Resume()
}

// Status returns the current run status.
func (s *Session) Status() Status {
	regs := s.orch.Registrations()
	models := make([]orchestrator.RegistrationInfo, 0, len(regs))
	for _, reg := range regs {
		models = append(models, reg.Info())
	}

	st := Status{
		RunID:    s.orch.RunID(),
		State:    s.orch.State(),
		Step:     s.orch.CurrentStep(),
		Complete: s.orch.IsComplete(),
		Clock:    s.orch.Clock(),
		Models:   models,
	}
	if g := s.orch.Graph(); g != nil {
		st.Levels = g.LevelIDs()
	}
	return st
}

// Snapshot returns a copy of the shared context, empty before Initialize.
func (s *Session) Snapshot() map[string]any {
	shared := s.orch.Shared()
	if shared == nil {
		return map[string]any{}
	}
	return shared.Snapshot()
}

// Run steps the orchestrator until the run completes, a round fails, ctx is
// done or maxSteps rounds were run by this call (0 means no limit). With a
// positive interval one round is started per tick; ticks that find the run
// paused are skipped.
//
// Run returns nil on completion or when maxSteps is reached, ctx.Err() when
// ctx is done and the round error otherwise.
func (s *Session) Run(ctx context.Context, interval time.Duration, maxSteps int64) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	s.logger.Info("autorun started",
		zap.Duration("interval", interval),
		zap.Int64("max_steps", maxSteps))

	var steps int64
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("autorun stopped", zap.Int64("steps", steps), zap.Error(err))
			return err
		}

		switch state := s.orch.State(); state {
		case orchestrator.RunCompleted:
			return nil
		case orchestrator.RunError:
			return ErrRunFailed
		case orchestrator.RunPaused:
			if err := s.wait(ctx, tick, pausedPoll); err != nil {
				return err
			}
			continue
		}

		result, err := s.Step(ctx)
		if err != nil {
			// A pause that landed between the state check and the step.
			if errors.Is(err, orchestrator.ErrInvalidState) && s.orch.State() == orchestrator.RunPaused {
				continue
			}
			s.logger.Error("autorun stopped on failed round", zap.Int64("steps", steps), zap.Error(err))
			return fmt.Errorf("autorun: %w", err)
		}
		steps++

		if result == orchestrator.ResultCompleted {
			s.logger.Info("autorun finished, run completed", zap.Int64("steps", steps))
			return nil
		}
		if maxSteps > 0 && steps >= maxSteps {
			s.logger.Info("autorun reached step limit", zap.Int64("steps", steps))
			return nil
		}

		if tick != nil {
			if err := s.wait(ctx, tick, 0); err != nil {
				return err
			}
		}
	}
}

// wait blocks until the next tick, or for fallback when there is no ticker.
func (s *Session) wait(ctx context.Context, tick <-chan time.Time, fallback time.Duration) error {
	if tick == nil {
		timer := time.NewTimer(fallback)
		defer timer.Stop()
		tick = timer.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tick:
		return nil
	}
}

// Close disposes the orchestrator.
func (s *Session) Close() error {
	return s.orch.Dispose()
}
