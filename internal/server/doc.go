// Package server holds the runtime shared by the MCP tools.
//
// ServerContext is the service factory. It asks the credential Manager
// for a usable credential on every client request and memoizes one
// Gmail and one Calendar client per credential generation, so a
// refreshed or re-authorized token transparently yields new clients.
//
// TokenWatcher observes the token file and invalidates the context when
// another process (for example "inboxbridge auth login") rewrites it.
//
// HTTPServer exposes the MCP server over streamable HTTP on a loopback
// address, next to health probes. MetricsServer serves Prometheus
// metrics on a separate port.
package server
