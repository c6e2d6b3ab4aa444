// Package resources provides read-only MCP resources:
//
//   - auth://status reports whether the bridge holds a usable credential
//     and which configuration files exist. It never starts an
//     authorization flow.
//   - user://profile reports the email address of the authorized Gmail
//     account.
package resources
