// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry setup, health checks and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("endpoint", "/roles").Info("request served")
//
// The CLI uses NewTextLogger; servers use the JSON formatter. Request IDs are
// carried in the context with WithRequestID and picked up by FromContext.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	http.Handle("/metrics", observability.MetricsHandler(registry))
//
// Gateway requests, cache hits and evictions, deduplicated calls, back-off
// rejections and permission saves are all counted under the stockyard_ prefix.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// InitOTel installs OTLP gRPC trace and metric exporters. When disabled the
// global no-op providers stay in place and Tracer and NewOTelMetrics are free.
//
// # Health and Shutdown
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	router.HandleFunc("/health", checker.Liveness)
//
//	sm := observability.NewShutdownManager(logger, server, 0)
//	sm.Register("store", store.Close)
//	sm.Wait(ctx)
package observability
