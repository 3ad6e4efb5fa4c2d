package grpc

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func startServer(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()
	srv, err := NewServer(&Config{Port: 0, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(fmt.Sprintf("localhost:%d", srv.Addr().(*net.TCPAddr).Port), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return srv, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestServer_HealthStartsNotServing(t *testing.T) {
	_, client := startServer(t)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ""))
}

func TestHealthObserver_MirrorsRun(t *testing.T) {
	srv, client := startServer(t)
	obs := NewHealthObserver(srv.Health(), zaptest.NewLogger(t))

	obs.SetState(orchestrator.RunReady)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))

	obs.OnEvent(context.Background(), orchestrator.Event{Type: orchestrator.EventAfterModelStep, Result: orchestrator.ResultError})
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ServiceName))

	obs.OnEvent(context.Background(), orchestrator.Event{Type: orchestrator.EventBarrierReached, Result: orchestrator.ResultError})
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ServiceName))
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, ""))
}
