package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platinummonkey/stockyard/pkg/audit"
	"github.com/platinummonkey/stockyard/pkg/config"
	"github.com/platinummonkey/stockyard/pkg/devserver"
	"github.com/platinummonkey/stockyard/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type flags struct {
	addr   string
	driver string
	dsn    string
	noSeed bool
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "stockyard-devserver",
		Short:         "Reference backend for the role permission endpoints",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address (overrides STOCKYARD_DEVSERVER_ADDR)")
	cmd.Flags().StringVar(&f.driver, "driver", "", "database driver: sqlite3 or postgres")
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "database DSN")
	cmd.Flags().BoolVar(&f.noSeed, "no-seed", false, "do not seed an empty database")
	return cmd
}

func run(ctx context.Context, f flags) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if f.addr != "" {
		cfg.DevServer.Addr = f.addr
	}
	if f.driver != "" {
		cfg.DevServer.Driver = f.driver
	}
	if f.dsn != "" {
		cfg.DevServer.DSN = f.dsn
	}
	if f.noSeed {
		cfg.DevServer.Seed = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	otelCfg := cfg.OTel()
	otelCfg.ServiceName += "-devserver"
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return err
	}
	otelMetrics, err := observability.NewOTelMetrics()
	if err != nil {
		return err
	}

	dialect, err := devserver.DialectFor(cfg.DevServer.Driver)
	if err != nil {
		return err
	}
	db, err := devserver.OpenDB(ctx, cfg.DevServer.Driver, cfg.DevServer.DSN)
	if err != nil {
		return err
	}
	if err := devserver.Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return err
	}
	store := devserver.NewStore(db, dialect, otelMetrics)
	if cfg.DevServer.Seed {
		if err := devserver.Seed(ctx, store); err != nil {
			db.Close()
			return err
		}
	}

	auditLogger, err := newAuditLogger(cfg.DevServer.AuditDir, logger)
	if err != nil {
		db.Close()
		return err
	}

	opts := devserver.Options{
		Tokens: cfg.DevServer.Tokens,
		Logger: logger,
		OTel:   otelMetrics,
		Health: observability.NewHealthChecker(db, nil, cfg.Observability.OTelServiceVersion),
		Audit:  auditLogger,
	}
	if cfg.Gateway.Origin != "" {
		opts.AllowedOrigins = []string{cfg.Gateway.Origin}
	}
	if cfg.Observability.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts.Registry = registry
		opts.Metrics = observability.NewMetrics(registry)
	}

	server := &http.Server{
		Addr:              cfg.DevServer.Addr,
		Handler:           devserver.NewServer(store, opts).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.DevServer.Shutdown)
	shutdown.Register("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	shutdown.Register("database", store.Close)
	shutdown.Register("audit log", func(context.Context) error {
		return auditLogger.Close()
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":   cfg.DevServer.Addr,
			"driver": cfg.DevServer.Driver,
		}).Info("dev server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			shutdown.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	return shutdown.Wait(ctx)
}

// newAuditLogger always logs audit events and also appends them to dir when set
func newAuditLogger(dir string, logger *observability.Logger) (audit.Logger, error) {
	loggers := []audit.Logger{audit.NewLogLogger(logger)}
	if dir != "" {
		file, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: dir, Rotate: true})
		if err != nil {
			return nil, err
		}
		loggers = append(loggers, file)
	}
	return audit.NewMultiLogger(loggers...), nil
}
