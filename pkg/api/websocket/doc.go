// Package websocket streams run lifecycle events to clients.
//
// Clients connect to /api/v1/run/stream and receive one JSON message per
// event. The optional types query parameter, a comma separated list such as
// "round.barrier", filters the stream.
package websocket
