// Package cmd implements the command-line interface for inboxbridge.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing Gmail and Calendar tools (default)
//   - auth login: Authorize access to Google, refreshing or running the browser flow
//   - auth status: Show the state of the stored credential
//   - config show: Print the effective configuration as TOML
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// Settings come from an optional TOML file, INBOXBRIDGE_* environment
// variables and command line flags, in increasing order of precedence.
package cmd
