// Package logging provides structured logging utilities for inboxbridge.
//
// All output goes through log/slog. When the bridge runs on the stdio
// transport stdout carries the protocol stream, so loggers built by
// NewLogger always write to stderr unless told otherwise.
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "gmail.list_recent")
//	logger.Info("listing emails", logging.Status(logging.StatusSuccess))
//
// Tokens and message addresses are never logged verbatim; use
// SanitizeToken and AnonymizeEmail.
package logging
