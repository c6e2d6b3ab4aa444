// Package common holds what every MCP tool package shares: argument
// parsing, the JSON result envelope and the instrumentation wrapper.
package common
