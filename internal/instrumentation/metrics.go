package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrTool      = "tool"
	attrTrigger   = "trigger"
)

var (
	httpBuckets = []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0}
	callBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}
)

// Metrics records the bridge's metrics. The zero value and a nil
// *Metrics are valid no-op recorders.
type Metrics struct {
	httpRequests metric.Int64Counter
	httpDuration metric.Float64Histogram

	apiCalls    metric.Int64Counter
	apiDuration metric.Float64Histogram

	authAttempts      metric.Int64Counter
	tokenRefreshes    metric.Int64Counter
	credentialReloads metric.Int64Counter

	toolCalls    metric.Int64Counter
	toolDuration metric.Float64Histogram
}

// NewMetrics creates all instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	b := instrumentBuilder{meter: meter}
	m := &Metrics{
		httpRequests: b.counter("http_requests_total", "Total number of HTTP requests", "{request}"),
		httpDuration: b.histogram("http_request_duration_seconds", "HTTP request duration in seconds", httpBuckets),

		apiCalls:    b.counter("google_api_operations_total", "Total number of Google API operations", "{operation}"),
		apiDuration: b.histogram("google_api_operation_duration_seconds", "Google API operation duration in seconds", callBuckets),

		authAttempts:      b.counter("oauth_auth_total", "Total number of interactive OAuth authorizations", "{attempt}"),
		tokenRefreshes:    b.counter("oauth_token_refresh_total", "Total number of OAuth token refresh attempts", "{attempt}"),
		credentialReloads: b.counter("credential_reloads_total", "Total number of credential reloads from disk", "{reload}"),

		toolCalls:    b.counter("mcp_tool_invocations_total", "Total number of MCP tool invocations", "{invocation}"),
		toolDuration: b.histogram("mcp_tool_duration_seconds", "MCP tool execution duration in seconds", callBuckets),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// instrumentBuilder keeps the first instrument creation error.
type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) counter(name, desc, unit string) metric.Int64Counter {
	if b.err != nil {
		return nil
	}
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		b.err = fmt.Errorf("failed to create %s counter: %w", name, err)
	}
	return c
}

func (b *instrumentBuilder) histogram(name, desc string, buckets []float64) metric.Float64Histogram {
	if b.err != nil {
		return nil
	}
	h, err := b.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	if err != nil {
		b.err = fmt.Errorf("failed to create %s histogram: %w", name, err)
	}
	return h
}

// RecordHTTPRequest records one request served by the streamable HTTP
// transport.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordGoogleAPIOperation records one Gmail or Calendar API call.
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.apiCalls == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.apiCalls.Add(ctx, 1, attrs)
	m.apiDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthAuth records the result of an interactive authorization.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.authAttempts == nil {
		return
	}
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records the result of a refresh token grant.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.tokenRefreshes == nil {
		return
	}
	m.tokenRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordCredentialReload records that the cached credential was dropped
// and will be re-read from disk.
func (m *Metrics) RecordCredentialReload(ctx context.Context, trigger string) {
	if m == nil || m.credentialReloads == nil {
		return
	}
	m.credentialReloads.Add(ctx, 1, metric.WithAttributes(attribute.String(attrTrigger, trigger)))
}

// RecordToolInvocation records one MCP tool call.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	if m == nil || m.toolCalls == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	)
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
}
