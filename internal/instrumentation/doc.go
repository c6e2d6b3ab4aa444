// Package instrumentation provides OpenTelemetry metrics, tracing and the
// tool audit log for the inboxbridge MCP server.
//
// # Metrics
//
//   - http_requests_total, http_request_duration_seconds: streamable HTTP
//     transport requests by method, path and status
//   - google_api_operations_total, google_api_operation_duration_seconds:
//     Gmail and Calendar calls by service, operation and status
//   - oauth_auth_total, oauth_token_refresh_total: interactive
//     authorizations and refresh grants by result
//   - credential_reloads_total: cached credentials dropped because the
//     token file changed
//   - mcp_tool_invocations_total, mcp_tool_duration_seconds: tool calls
//     by tool and status
//
// Metrics are exported through a dedicated Prometheus registry (see
// Provider.MetricsHandler), OTLP/HTTP or, for debugging, stderr.
//
// # Configuration
//
// DefaultConfig holds the built-in settings: enabled, prometheus metrics,
// no tracing, a 0.1 trace sampling rate and audit logging without remote
// ids. The [instrumentation] section of the inboxbridge config file and
// the matching environment variables override them.
package instrumentation
