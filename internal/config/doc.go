// Package config loads inboxbridge settings.
//
// Settings are layered: built-in defaults, then an optional TOML file,
// then environment variables. Command-line flags are applied last by the
// cmd package. The resulting Config is passed explicitly to the
// components that need it; nothing reads process-wide state afterwards.
package config
