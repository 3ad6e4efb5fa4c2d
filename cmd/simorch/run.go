package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aescanero/simorch/internal/application/orchestrator"
	"github.com/aescanero/simorch/internal/application/session"
	"github.com/aescanero/simorch/internal/config"
	"github.com/aescanero/simorch/internal/demo"
	"github.com/aescanero/simorch/internal/scenario"
	"github.com/aescanero/simorch/pkg/adapters/events"
	memoryevents "github.com/aescanero/simorch/pkg/adapters/events/memory"
	redisevents "github.com/aescanero/simorch/pkg/adapters/events/redis"
	"github.com/aescanero/simorch/pkg/adapters/metrics/prometheus"
	"github.com/aescanero/simorch/pkg/adapters/storage"
	memorystorage "github.com/aescanero/simorch/pkg/adapters/storage/memory"
	redisstorage "github.com/aescanero/simorch/pkg/adapters/storage/redis"
	"github.com/aescanero/simorch/pkg/adapters/tracing"
	"github.com/aescanero/simorch/pkg/api/grpc"
	"github.com/aescanero/simorch/pkg/api/http"
	"github.com/aescanero/simorch/pkg/api/websocket"
	"github.com/aescanero/simorch/pkg/blackboard"
	"github.com/aescanero/simorch/pkg/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run [scenario]",
	Short: "Run a scenario and serve the HTTP and gRPC APIs",
	Long: `Run a scenario until it completes, fails or the process is stopped.

Configuration is read from the environment (SIMORCH_*, RUN_*, REDIS_*,
SNAPSHOT_*, TRACING_*). The scenario path given as argument overrides
RUN_SCENARIO.

With RUN_AUTOSTART=false no round runs on its own; rounds are driven with
POST /api/v1/run/step.

RUN_RESTORE_FROM seeds the shared context with the latest snapshot of
another run before models initialize. The bundled models resume from the
keys they find (counts, projectile state, wind speed); other models may
overwrite seeded keys at initialization. The step clock starts again at 1.

Examples:
  simorch run scenarios/crosswind.yaml
  RUN_STEP_INTERVAL=200ms SIMORCH_BACKEND=redis simorch run scenarios/crosswind.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			cfg.Run.Scenario = args[0]
		}
		if cfg.Run.Scenario == "" {
			return errors.New("no scenario given (argument or RUN_SCENARIO)")
		}

		logger := initLogger(cfg.LogLevel)
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	},
}

// backend bundles the event bus and snapshot storage of the configured
// backend.
type backend struct {
	bus    ports.EventBus
	store  ports.SnapshotStorage
	client *goredis.Client
}

func newBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	if cfg.Backend == config.BackendMemory {
		return &backend{
			bus:   memoryevents.NewInMemoryEventBus(logger),
			store: memorystorage.NewInMemorySnapshotStorage(),
		}, nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	bus, err := redisevents.NewStreamsEventBus(client, redisevents.Options{
		ConsumerGroup: cfg.Redis.ConsumerGroup,
		ConsumerName:  fmt.Sprintf("simorch-%d", os.Getpid()),
		MaxLen:        cfg.Redis.StreamMaxLen,
	}, logger)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	return &backend{
		bus:    bus,
		store:  redisstorage.NewSnapshotStorage(client, cfg.Snapshots.TTL, logger),
		client: client,
	}, nil
}

func (b *backend) Close() error {
	err := b.bus.Close()
	if b.client != nil {
		err = errors.Join(err, b.client.Close())
	}
	return err
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting simulation orchestrator",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("scenario", cfg.Run.Scenario),
		zap.String("backend", cfg.Backend))

	sc, err := scenario.Load(cfg.Run.Scenario)
	if err != nil {
		return err
	}

	be, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("backend close error", zap.Error(err))
		}
	}()

	tracer, err := tracing.NewProvider(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		ServiceName:  cfg.Tracing.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}()

	orch := orchestrator.New(orchestrator.Options{
		RunID:              cfg.Run.ID,
		MaxParallelism:     cfg.Run.MaxParallelism,
		StepTimeout:        cfg.Run.StepTimeout,
		PoolSampleInterval: cfg.Workers.HealthCheckInterval,
		Metrics:            prometheus.NewCollector(nil),
		Tracer:             tracer.Tracer(),
	}, logger)

	if err := sc.Apply(orch, demo.NewFactory()); err != nil {
		return err
	}

	shared := blackboard.New()
	if cfg.Run.RestoreFrom != "" {
		step, err := storage.RestoreLatest(ctx, be.store, cfg.Run.RestoreFrom, shared)
		if err != nil {
			return err
		}
		logger.Info("shared context restored",
			zap.String("from_run", cfg.Run.RestoreFrom),
			zap.Int64("step", step),
			zap.Int("keys", shared.Len()))
	}

	sim := sc.SimulationContext(shared)
	if cfg.Run.TimeStep > 0 {
		sim.TimeStep = cfg.Run.TimeStep
	}

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	healthObserver := grpc.NewHealthObserver(grpcServer.Health(), logger)

	orch.Subscribe(events.NewBusObserver(be.bus, logger))
	orch.Subscribe(healthObserver)
	if cfg.Snapshots.Enabled {
		orch.Subscribe(storage.NewSnapshotRecorder(be.store, shared, cfg.Snapshots.Every, logger))
	}

	if err := be.bus.Subscribe(ctx, ports.TopicRoundEvents, logRound(logger)); err != nil {
		return fmt.Errorf("failed to subscribe to round events: %w", err)
	}

	sess := session.New(orch, logger)
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Error("orchestrator dispose error", zap.Error(err))
		}
	}()

	if err := orch.Initialize(ctx, sim); err != nil {
		healthObserver.SetState(orch.State())
		return err
	}
	healthObserver.SetState(orch.State())

	httpServer := http.NewServer(&http.Config{
		Port:    cfg.HTTPPort,
		Session: sess,
		Logger:  logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(orch, logger))

	serverErr := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()
	go func() {
		if err := grpcServer.Start(); err != nil {
			serverErr <- fmt.Errorf("gRPC server failed: %w", err)
		}
	}()

	logger.Info("simulation orchestrator started",
		zap.String("run_id", orch.RunID()),
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("models", len(sc.Models)),
		zap.Bool("autostart", cfg.Run.AutoStart))

	runDone := make(chan error, 1)
	if cfg.Run.AutoStart {
		go func() {
			runDone <- sess.Run(ctx, cfg.Run.StepInterval, cfg.Run.MaxSteps)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case runErr = <-serverErr:
		logger.Error("server failed", zap.Error(runErr))
	case err := <-runDone:
		status := sess.Status()
		if err != nil {
			logger.Error("run failed", zap.Error(err), zap.Int64("step", status.Step))
		} else {
			logger.Info("run finished",
				zap.Int64("step", status.Step),
				zap.Bool("complete", status.Complete),
				zap.Duration("simulated_time", status.Clock.SimulatedTime))
		}
		// The APIs stay up for inspection until the process is stopped.
		select {
		case <-ctx.Done():
			logger.Info("received shutdown signal")
		case runErr = <-serverErr:
			logger.Error("server failed", zap.Error(runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}

	logger.Info("simulation orchestrator shut down complete")
	return runErr
}

func logRound(logger *zap.Logger) ports.EventHandler {
	return func(_ context.Context, event ports.Event) error {
		logger.Debug("round finished",
			zap.String("run_id", event.RunID),
			zap.Int64("step", event.Step),
			zap.Any("result", event.Data["result"]),
			zap.Any("duration_ms", event.Data["duration_ms"]))
		return nil
	}
}
