// Package api implements the HTTP status API and WebSocket live feed for lutronbond.
//
// This package provides:
//   - GET /healthz liveness check
//   - GET /api/v1/status with session, supervisor, bus and journal state
//   - GET /api/v1/metrics runtime and connection metrics as JSON
//   - GET /metrics Prometheus exposition
//   - GET /api/v1/journal/events and /api/v1/journal/dispatches
//   - GET /api/v1/ws live event and dispatch feed
//
// # Security
//
// When security.jwt.enabled is set every route except /healthz requires an
// HS256 bearer token signed with security.jwt.secret. WebSocket connections
// authenticate with a single-use ticket from POST /api/v1/auth/ws-ticket so
// the token never appears in a URL.
//
// # Graceful Degradation
//
// Every data source is optional. Without a journal the journal routes answer
// 503; without MQTT or the database the corresponding status blocks are
// omitted.
package api
