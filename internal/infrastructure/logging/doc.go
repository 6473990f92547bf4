// Package logging provides structured logging for lutronbond.
//
// This package wraps Go's standard log/slog package so the bridge
// sessions, supervisor and integrations all log with the same fields.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	session.SetLogger(logger.Component("lutron"))
//
// # Security
//
// Never log the Bond token, Tuya local keys, or bridge passwords.
package logging
