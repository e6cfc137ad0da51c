package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry instruments for the dev server. They are
// exported through the meter provider installed by InitOTel, or dropped by
// the global no-op provider when OTel is disabled.
type OTelMetrics struct {
	httpRequests metric.Int64Counter
	httpDuration metric.Float64Histogram

	dbQueries       metric.Int64Counter
	dbQueryDuration metric.Float64Histogram
	dbOpenConns     metric.Int64Gauge

	permissionUpdates metric.Int64Counter
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(TracerName)

	m := &OTelMetrics{}
	var err error

	if m.httpRequests, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http.server.requests counter: %w", err)
	}

	if m.httpDuration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http.server.duration histogram: %w", err)
	}

	if m.dbQueries, err = meter.Int64Counter(
		"db.client.queries",
		metric.WithDescription("Total number of store queries"),
		metric.WithUnit("{query}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create db.client.queries counter: %w", err)
	}

	if m.dbQueryDuration, err = meter.Float64Histogram(
		"db.client.duration",
		metric.WithDescription("Store query duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create db.client.duration histogram: %w", err)
	}

	if m.dbOpenConns, err = meter.Int64Gauge(
		"db.client.connections.open",
		metric.WithDescription("Open database connections"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create db.client.connections.open gauge: %w", err)
	}

	if m.permissionUpdates, err = meter.Int64Counter(
		"stockyard.permission.updates",
		metric.WithDescription("Role/permission grants written by bulk updates"),
		metric.WithUnit("{update}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create stockyard.permission.updates counter: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records one served request
func (m *OTelMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", statusCode),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordDBQuery records one store query
func (m *OTelMetrics) RecordDBQuery(ctx context.Context, operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("db.operation", operation),
		attribute.Bool("error", err != nil),
	)
	m.dbQueries.Add(ctx, 1, attrs)
	m.dbQueryDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOpenConnections records the connection pool size
func (m *OTelMetrics) RecordOpenConnections(ctx context.Context, open int) {
	m.dbOpenConns.Record(ctx, int64(open))
}

// RecordPermissionUpdates counts grants written by one bulk update
func (m *OTelMetrics) RecordPermissionUpdates(ctx context.Context, n int) {
	m.permissionUpdates.Add(ctx, int64(n))
}
