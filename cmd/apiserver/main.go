// API server entry point for KnotWeave.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/KnotWeave/internal/application/matching"
	"github.com/turtacn/KnotWeave/internal/config"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/prometheus"
	grpcserver "github.com/turtacn/KnotWeave/internal/interfaces/grpc"
	httpserver "github.com/turtacn/KnotWeave/internal/interfaces/http"
	"github.com/turtacn/KnotWeave/internal/interfaces/http/handlers"
	"github.com/turtacn/KnotWeave/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to configuration file (default: environment and defaults)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "knotweave: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "knotweave: logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("api server exited", logging.Err(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

func run(cfg *config.Config, configPath string, logger logging.Logger) error {
	logger.Info("starting KnotWeave API server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.Int("http_port", cfg.Server.HTTP.Port),
		logging.Int("grpc_port", cfg.Server.GRPC.Port),
		logging.Bool("grpc_enabled", !cfg.Server.GRPC.Disabled),
	)

	var (
		metrics        *prometheus.EngineMetrics
		metricsHandler http.Handler
		recorder       middleware.RequestRecorder
	)
	if !cfg.Metrics.Disabled {
		collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableGoMetrics:      cfg.Metrics.GoMetrics,
			EnableProcessMetrics: cfg.Metrics.GoMetrics,
		}, logger)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		metrics = prometheus.NewEngineMetrics(collector)
		metricsHandler = collector.Handler()
		recorder = metrics
	}

	svc, err := matching.NewService(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	svc.Start(ctx)

	if configPath != "" {
		watchConfig(configPath, logger)
	}

	cors := middleware.DefaultCORSConfig(cfg.Server.HTTP.AllowedOrigins...)
	router := httpserver.NewRouter(httpserver.RouterConfig{
		KnotHandler:    handlers.NewKnotHandler(svc, logger, cfg.Server.HTTP.MaxBodySize),
		CompatHandler:  handlers.NewCompatHandler(svc, logger, cfg.Server.HTTP.MaxBodySize),
		HealthHandler:  handlers.NewHealthHandler(version, newEngineHealthAdapter(svc)),
		CORS:           &cors,
		Logging:        middleware.DefaultLoggingConfig(),
		Logger:         logger,
		Recorder:       recorder,
		MetricsHandler: metricsHandler,
	})
	httpSrv := httpserver.NewServer(cfg.Server.HTTP, router, logger)

	var grpcSrv *grpcserver.Server
	if !cfg.Server.GRPC.Disabled {
		grpcSrv = grpcserver.NewServer(cfg.Server.GRPC,
			grpcserver.WithLogger(logger),
			grpcserver.WithMetrics(metrics),
			grpcserver.WithMaxRecvMsgSize(int(cfg.Server.HTTP.MaxBodySize)),
		)
		grpcSrv.RegisterEngine(grpcserver.NewEngineServer(svc))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	if grpcSrv != nil {
		g.Go(grpcSrv.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if grpcSrv != nil {
			grpcSrv.SetServing(false)
			if err := grpcSrv.Stop(shutdownCtx); err != nil {
				logger.Error("grpc server shutdown error", logging.Err(err))
			}
		}
		return httpSrv.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("servers stopped")
	return nil
}

// watchConfig applies log level changes from the config file at runtime.
// Engine constants are fixed at startup.
func watchConfig(path string, logger logging.Logger) {
	setter, ok := logger.(logging.LevelSetter)
	if !ok {
		return
	}
	err := config.Watch(path,
		func(cfg *config.Config) {
			setter.SetLevel(cfg.Log.Level)
			logger.Info("log level updated", logging.String("level", cfg.Log.Level))
		},
		func(err error) {
			logger.Warn("ignoring invalid config revision", logging.Err(err))
		},
	)
	if err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}
}
