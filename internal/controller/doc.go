// Package controller supervises the bridge sessions and routes their events.
//
// A Supervisor owns the sessions for every configured bridge. Start
// verifies the downstream Bond bridge, starts its keepalive, subscribes
// every Listener on the event bus and then runs the session loop:
//
//	open all sessions ──fail──► close all, return ErrOpenFailed
//	       │
//	stream all sessions concurrently
//	       │
//	incomplete stream ──► close all, back off, reopen
//	other error       ──► close all, return it
//	shutdown          ──► close all, return nil
//
// Each decoded event is published on the bus under "<bridge>:<device>"
// and passed to the registered observers (MQTT mirror, telemetry,
// journal, websocket feed). Handler outcomes are reported to dispatch
// observers with their latency.
//
// BuildListeners turns the device mappings in config into bus listeners
// for the Lutron, Bond, Tuya and MQTT integrations.
package controller
