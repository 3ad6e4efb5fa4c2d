// Package demo provides small simulation models for scenarios and examples.
//
// Models are built by kind through a Factory:
//
//	wind        writes a steady or gusting wind speed to the shared context
//	projectile  integrates a ballistic trajectory with drag against the wind
//	counter     counts rounds up to a target, then completes
//	fail        fails on a configured round
//
// Every model reads its parameters from the registration's parameter bag and
// publishes its state under keys prefixed with its model id, except wind,
// which writes a single well-known key.
package demo
