// tracerd is the state-space explorer daemon -- it loads a network
// scenario, builds a tracer.Driver over the bundled reference simulator,
// and exposes the driver's operations over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/lpaquette/bgptracer/internal/config"
	"github.com/lpaquette/bgptracer/internal/scenario"
	"github.com/lpaquette/bgptracer/internal/server"
	"github.com/lpaquette/bgptracer/internal/simref"
	"github.com/lpaquette/bgptracer/internal/tracer"
	"github.com/lpaquette/bgptracer/internal/tracermetrics"
	appversion "github.com/lpaquette/bgptracer/internal/version"
)

// shutdownTimeout is the maximum time to wait for HTTP servers to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("tracerd starting",
		slog.String("version", appversion.Version),
		slog.String("http_addr", cfg.HTTP.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.String("scenario", cfg.Scenario.Path),
	)

	reg := prometheus.NewRegistry()
	collector := tracermetrics.NewCollector(reg)

	driver, err := buildDriver(cfg, collector)
	if err != nil {
		logger.Error("failed to build tracer driver", slog.String("error", err.Error()))
		return 1
	}

	if _, err := driver.Start(context.Background()); err != nil {
		logger.Error("failed to capture root state", slog.String("error", err.Error()))
		return 1
	}

	collector.ObserveGraph(len(driver.Graph().States()), len(driver.Graph().FinalStates()), driver.Graph().MaxQueueDepth())

	if err := runServers(cfg, driver, collector, reg, logger); err != nil {
		logger.Error("tracerd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("tracerd stopped")
	return 0
}

// buildDriver loads the configured scenario and constructs a Driver over
// the in-memory reference simulator and network, reporting through
// collector.
func buildDriver(cfg *config.Config, collector *tracermetrics.Collector) (*tracer.Driver, error) {
	sc, err := scenario.Load(cfg.Scenario.Path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}

	net, events, err := sc.Build()
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}

	sim := simref.NewSimulator(net, events)

	return tracer.NewDriver(sim, net, cfg.Tracer.MaxStates, cfg.Tracer.MaxFinalStates, tracer.WithMetrics(collector)), nil
}

// runServers sets up and runs the tracer HTTP and metrics servers using an
// errgroup with signal-aware context for graceful shutdown.
func runServers(
	cfg *config.Config,
	driver *tracer.Driver,
	collector *tracermetrics.Collector,
	reg *prometheus.Registry,
	logger *slog.Logger,
) error {
	traceSrv := newTraceServer(cfg.HTTP, driver, collector, logger)
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	lc := net.ListenConfig{}

	g.Go(func() error {
		logger.Info("trace server listening", slog.String("addr", cfg.HTTP.Addr))
		return listenAndServe(gCtx, &lc, traceSrv, cfg.HTTP.Addr)
	})

	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(gCtx, &lc, metricsSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, traceSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}

	return nil
}

func gracefulShutdown(ctx context.Context, logger *slog.Logger, servers ...*http.Server) error {
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}

	return shutdownErr
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}

	return nil
}

func newTraceServer(cfg config.HTTPConfig, driver *tracer.Driver, collector *tracermetrics.Collector, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(driver, logger, collector),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}

		return cfg, nil
	}

	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
