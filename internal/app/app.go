// Package app wires the stores, services, transports and background workers
// and runs them as one unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"log/slog"

	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/Thomblin/heimsight/internal/config"
	"github.com/Thomblin/heimsight/internal/core/domain/telemetry"
	"github.com/Thomblin/heimsight/internal/core/services/otlp"
	"github.com/Thomblin/heimsight/internal/core/services/querylang"
	"github.com/Thomblin/heimsight/internal/core/services/retention"
	"github.com/Thomblin/heimsight/internal/infrastructure/database"
	chrepo "github.com/Thomblin/heimsight/internal/infrastructure/repository/clickhouse"
	"github.com/Thomblin/heimsight/internal/infrastructure/repository/memory"
	"github.com/Thomblin/heimsight/internal/migration"
	grpctransport "github.com/Thomblin/heimsight/internal/transport/grpc"
	httptransport "github.com/Thomblin/heimsight/internal/transport/http"
	"github.com/Thomblin/heimsight/internal/transport/http/handlers"
	"github.com/Thomblin/heimsight/internal/workers"
	"github.com/Thomblin/heimsight/pkg/logging"
)

// App holds the assembled application.
type App struct {
	config     *config.Config
	logger     *logrus.Logger
	slogger    *slog.Logger
	db         *database.ClickHouseDB
	stores     *telemetry.Stores
	httpServer *httptransport.Server
	grpcServer *grpctransport.Server
	monitor    *workers.DataAgeMonitor
}

// New builds the application: backend selection, migrations, services,
// transports.
func New(cfg *config.Config) (*App, error) {
	logger := newLogrus(cfg)
	slogger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)

	app := &App{
		config:  cfg,
		logger:  logger,
		slogger: slogger,
	}

	if cfg.IsMemoryStore() {
		logger.Info("Using in-memory storage backend")
		app.stores = &telemetry.Stores{
			Logs:    memory.NewLogStore(),
			Metrics: memory.NewMetricStore(),
			Traces:  memory.NewTraceStore(),
		}
	} else {
		if cfg.ClickHouse.AutoMigrate {
			runner, err := migration.NewRunner(cfg, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize migrations: %w", err)
			}
			if err := runner.Up(); err != nil {
				return nil, err
			}
			if err := runner.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close migration runner")
			}
		}

		db, err := database.NewClickHouseDB(cfg, logger)
		if err != nil {
			return nil, err
		}
		app.db = db
		app.stores = &telemetry.Stores{
			Logs:    chrepo.NewLogsRepository(db.Conn),
			Metrics: chrepo.NewMetricsRepository(db.Conn),
			Traces:  chrepo.NewSpansRepository(db.Conn),
		}
	}

	querySvc := querylang.NewService(app.stores, logger)
	retentionSvc := retention.NewService(app.stores, logger)

	var backendHealth func() error
	if app.db != nil {
		backendHealth = app.db.Health
	}

	h := handlers.New(cfg, app.stores, querySvc, retentionSvc, backendHealth, logger)
	app.httpServer = httptransport.NewServer(cfg, logger, h)

	grpcLogger := slogger.With("component", "grpc")
	app.grpcServer = grpctransport.NewServer(
		cfg.Server.Host,
		cfg.GRPC.Port,
		cfg.Server.MaxRequestSize,
		grpctransport.NewOTLPLogsHandler(app.stores.Logs, otlp.NewLogsConverter(logger), grpcLogger),
		grpctransport.NewOTLPMetricsHandler(app.stores.Metrics, otlp.NewMetricsConverter(logger), grpcLogger),
		grpctransport.NewOTLPTracesHandler(app.stores.Traces, otlp.NewTracesConverter(logger), grpcLogger),
		grpcLogger,
	)

	app.monitor = workers.NewDataAgeMonitor(
		app.stores,
		retentionSvc,
		cfg.Monitor.Interval,
		slogger.With("component", "data-age-monitor"),
	)

	return app, nil
}

// Run starts both servers and the monitor, blocking until a signal arrives
// or either server fails; the whole group then tears down.
func (a *App) Run() error {
	var g run.Group

	g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))

	g.Add(func() error {
		return a.httpServer.Start()
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Warn("HTTP shutdown incomplete")
		}
	})

	g.Add(func() error {
		return a.grpcServer.Start()
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.grpcServer.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Warn("gRPC shutdown incomplete")
		}
	})

	monitorCtx, cancelMonitor := context.WithCancel(context.Background())
	g.Add(func() error {
		return a.monitor.Start(monitorCtx)
	}, func(error) {
		cancelMonitor()
	})

	err := g.Run()

	if a.db != nil {
		if closeErr := a.db.Close(); closeErr != nil {
			a.logger.WithError(closeErr).Warn("Failed to close ClickHouse connection")
		}
	}

	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		a.slogger.Info("Shutdown complete", "signal", sigErr.Signal)
		return nil
	}
	return err
}

func newLogrus(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
