package demo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aescanero/simorch/internal/application/orchestrator"
)

// ErrInjected is the failure raised by the fail model.
var ErrInjected = errors.New("injected failure")

// Fail continues until round fail_at, where it returns an error. With
// fail_on_init it fails during initialization instead.
type Fail struct {
	failAt  int64
	message string
}

// NewFail creates an uninitialized fail model.
func NewFail() *Fail { return &Fail{} }

func (f *Fail) Name() string { return KindFail }

func (f *Fail) Initialize(_ context.Context, mc *orchestrator.ModelContext) error {
	var err error
	if f.message, err = mc.ParamString("message", "model failure"); err != nil {
		return err
	}
	if v, ok := mc.Param("fail_on_init"); ok && v == true {
		return fmt.Errorf("%s: %w", f.message, ErrInjected)
	}
	if f.failAt, err = mc.ParamInt("fail_at", 1); err != nil {
		return err
	}
	if f.failAt < 1 {
		return paramError("fail_at", "must be at least 1")
	}
	return nil
}

func (f *Fail) Step(_ context.Context, clock orchestrator.Clock) (orchestrator.StepResult, error) {
	if clock.Step == f.failAt {
		return orchestrator.ResultError, fmt.Errorf("%s at step %d: %w", f.message, clock.Step, ErrInjected)
	}
	return orchestrator.ResultContinue, nil
}
