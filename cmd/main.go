// Agora Orchestrator Server
//
// Serves routed market-analysis pipelines over gRPC and HTTP, and runs the
// order book spread monitor against a simulated feed.
//
// Usage:
//
//	go run ./cmd                                  # defaults, :50051 and :8080
//	go run ./cmd -config agora.yaml               # YAML overrides
//	go run ./cmd -query "latest news for MSFT"    # one routed run, then exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/msyber/agora/commbus"
	"github.com/msyber/agora/coreengine/agents"
	"github.com/msyber/agora/coreengine/artifact"
	"github.com/msyber/agora/coreengine/broker"
	"github.com/msyber/agora/coreengine/config"
	"github.com/msyber/agora/coreengine/events"
	"github.com/msyber/agora/coreengine/grpc"
	"github.com/msyber/agora/coreengine/httpapi"
	"github.com/msyber/agora/coreengine/kernel"
	"github.com/msyber/agora/coreengine/observability"
	"github.com/msyber/agora/coreengine/risk"
	"github.com/msyber/agora/coreengine/runtime"
	"github.com/msyber/agora/coreengine/session"
	"github.com/msyber/agora/coreengine/stream"
	"github.com/msyber/agora/coreengine/tools"
)

const (
	version    = "1.0.0"
	routerName = "root_agent"
)

func main() {
	configPath := flag.String("config", os.Getenv("AGORA_CONFIG"), "path to a YAML config file")
	query := flag.String("query", "", "run one routed request, print its events and exit")
	flag.Parse()

	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agora: %v\n", err)
		os.Exit(1)
	}
	config.Set(cfg)

	logger := observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, logger, *query, os.Stdout); err != nil {
		logger.Error("agora_failed", "error", err.Error())
		os.Exit(1)
	}
}

// app holds the wired engine.
type app struct {
	router *runtime.Router
	store  artifact.Store
	bus    *commbus.InMemoryCommBus
	close  func() error
}

func build(cfg *config.Config, logger observability.Logger) (*app, error) {
	store, closeStore, err := openStore(cfg.Artifacts)
	if err != nil {
		return nil, err
	}

	bus := commbus.NewInMemoryCommBus(cfg.Broker.QueryTimeout, logger)
	bus.AddMiddleware(commbus.NewLoggingMiddleware(logger))
	bus.AddMiddleware(commbus.NewCircuitBreakerMiddleware(
		cfg.Broker.FailureThreshold,
		cfg.Broker.ResetTimeout,
		[]string{
			commbus.TypePipelineStarted,
			commbus.TypePipelineCompleted,
			commbus.TypeStageStarted,
			commbus.TypeStageCompleted,
			commbus.TypeRouteSelected,
			commbus.TypeSpreadAlertRaised,
		},
	))

	if err := broker.Register(bus, broker.NewSimulated(cfg.Broker.Latency, broker.WithLogger(logger))); err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to register broker: %w", err)
	}

	exec := tools.NewToolExecutor()
	if err := tools.RegisterMarketTools(exec); err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	builder := runtime.Builder{
		Deps: agents.Deps{
			Artifacts:   store,
			Tools:       exec,
			Portfolio:   risk.NewStaticPortfolio(cfg.Portfolio.State(), cfg.Risk.Limits()),
			Broker:      broker.NewBusClient(bus),
			Logger:      logger,
			NotionalUSD: cfg.Risk.NotionalUSD,
		},
		Bus:    bus,
		Logger: logger,
	}
	router, err := builder.Router(routerName, cfg.Router.HelpText, cfg.Pipelines)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	return &app{router: router, store: store, bus: bus, close: closeStore}, nil
}

func openStore(cfg config.ArtifactsConfig) (artifact.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		store, err := artifact.NewSQLiteStore(cfg.SQLiteDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open artifact store: %w", err)
		}
		return store, store.Close, nil
	default:
		return artifact.NewMemoryStore(), func() error { return nil }, nil
	}
}

func run(cfg *config.Config, logger *observability.SlogLogger, query string, out io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      version,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Stdout:       cfg.Telemetry.Stdout,
		Writer:       os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer_shutdown_failed", "error", err.Error())
		}
	}()

	a, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Warn("artifact_store_close_failed", "error", err.Error())
		}
	}()

	if query != "" {
		return runOnce(ctx, cfg, a, query, out)
	}
	return serve(ctx, cfg, a, logger)
}

// runOnce dispatches query and prints each event as one JSON line.
func runOnce(ctx context.Context, cfg *config.Config, a *app, query string, out io.Writer) error {
	sc := session.New(cfg.App.Name, cfg.App.UserID, query)
	pipeline, seq := a.router.Dispatch(ctx, sc)
	fmt.Fprintf(out, "# session=%s pipeline=%s\n", sc.SessionID, pipeline)

	enc := json.NewEncoder(out)
	for ev := range seq {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, a *app, logger *observability.SlogLogger) error {
	logger.Info("agora_starting",
		"version", version,
		"grpc_addr", cfg.Server.GRPCAddr,
		"http_addr", cfg.Server.HTTPAddr,
		"routes", len(a.router.Routes()),
	)

	limiter := kernel.NewRateLimiter(cfg.Server.RunsPerMinute, time.Minute)

	orchestrator := grpc.NewOrchestratorServer(a.router, a.store, logger,
		grpc.WithAppID(cfg.App.Name),
		grpc.WithDefaultUser(cfg.App.UserID),
		grpc.WithAlertBus(a.bus),
		grpc.WithRunLimiter(limiter),
	)
	grpcServer := grpc.NewGracefulServer(orchestrator, logger, cfg.Server.GRPCAddr)

	api := httpapi.New(a.router, a.store, logger,
		httpapi.WithAppID(cfg.App.Name),
		httpapi.WithDefaultUser(cfg.App.UserID),
		httpapi.WithRateLimiter(limiter),
	)
	httpServer := api.HTTPServer(cfg.Server.HTTPAddr)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := grpcServer.Start(serveCtx); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("http_server_started", "address", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var monitorDone <-chan struct{}
	if cfg.MonitorEnabled() {
		monitorDone = startMonitor(serveCtx, cfg.Monitor, a.bus, logger)
	}

	logger.Info("agora_ready")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal_received")
	case runErr = <-errCh:
		logger.Error("server_failed", "error", runErr.Error())
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_failed", "error", err.Error())
	}
	grpcServer.ShutdownWithTimeout(cfg.Server.ShutdownTimeout)

	wg.Wait()
	if monitorDone != nil {
		<-monitorDone
	}
	logger.Info("agora_stopped")
	return runErr
}

// startMonitor connects a simulated feed to the spread monitor. Alerts reach
// subscribers through the bus.
func startMonitor(ctx context.Context, cfg config.MonitorConfig, bus commbus.CommBus, logger observability.Logger) <-chan struct{} {
	queue := stream.NewQueue()
	feed := stream.NewSimulatedFeed(cfg.Ticker,
		stream.WithBasePrice(cfg.BasePrice),
		stream.WithTickInterval(cfg.TickInterval),
		stream.WithFeedLogger(logger),
	)
	monitor := stream.NewMonitor(cfg.Name, queue,
		stream.WithThreshold(cfg.Threshold),
		stream.WithMonitorBus(bus),
		stream.WithMonitorLogger(logger),
	)

	go feed.Run(ctx, queue)
	return monitor.Start(ctx, func(ev events.Event) {
		logger.Debug("monitor_alert", "text", ev.Text)
	})
}
