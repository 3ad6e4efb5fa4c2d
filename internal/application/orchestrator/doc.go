// Package orchestrator implements the step-based simulation orchestrator.
//
// The orchestrator runs independently authored models inside one logical
// clock. It:
//   - Keeps a registry of models with their options and declared dependencies
//   - Resolves dependencies into execution levels, rejecting cycles and
//     unknown identities
//   - Steps every level in order, running the models of one level
//     concurrently and joining them before the next level starts
//   - Contains failures of optional models and stops the run on failures of
//     required ones
//   - Dispatches lifecycle events before and after each model step and once
//     per round at the final barrier
//
// Typical use:
//
//	orch := orchestrator.New(orchestrator.Options{MaxParallelism: 4}, logger)
//	defer orch.Dispose()
//
//	_, _ = orch.Register(wind, orchestrator.ModelOptions{Priority: 10})
//	_, _ = orch.Register(projectile, orchestrator.ModelOptions{Priority: 20}, "wind")
//
//	if err := orch.Initialize(ctx, &orchestrator.SimulationContext{
//	    Shared:   blackboard.New(),
//	    TimeStep: 100 * time.Millisecond,
//	}); err != nil {
//	    return err
//	}
//	for !orch.IsComplete() {
//	    if _, err := orch.Step(ctx); err != nil {
//	        return err
//	    }
//	}
package orchestrator
