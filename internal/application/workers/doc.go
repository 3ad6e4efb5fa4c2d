// Package workers implements the bounded worker pool that executes the model
// steps of one execution level concurrently.
//
// The pool manages a fixed number of goroutines that:
//   - Receive jobs submitted as a batch by RunAll
//   - Run each job with the submitter's context
//   - Report idle/busy/stopped status, sampled as Occupancy
//
// RunAll returns only after every submitted job has finished, which makes it
// the per-level barrier of the orchestrator. A pool of size one runs jobs in
// submission order.
//
// Occupancy is served by /health and, when sampling is enabled, recorded as
// metrics until the pool shuts down.
package workers
