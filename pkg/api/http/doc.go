// Package http provides the HTTP REST API of a simulation run.
//
// The HTTP server exposes endpoints for:
//   - Run status, registered models and the shared context
//   - Step, pause and resume control
//   - Health checks
//   - Prometheus metrics
package http
