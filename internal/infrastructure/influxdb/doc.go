// Package influxdb records bridge telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched point writes, and health monitoring.
//
// # Measurements
//
//   - lutron_event: one point per decoded event, tagged by bridge, device,
//     operation, component and action
//   - dispatch: one point per handler invocation with its outcome and latency
//   - lutron_session: session state transitions
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteEvent(evt)
//
// # Error Handling
//
// Write operations are non-blocking. Batch failures reach the SetOnError
// callback wrapped in ErrWriteFailed; Close flushes whatever is still queued.
package influxdb
