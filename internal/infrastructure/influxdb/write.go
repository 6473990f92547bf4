package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
)

// Measurement names.
const (
	MeasurementEvent    = "lutron_event"
	MeasurementDispatch = "dispatch"
	MeasurementSession  = "lutron_session"
)

// Dispatch describes one handler invocation for an event.
type Dispatch struct {
	// Integration is "lutron", "bond", "tuya" or "mqtt".
	Integration string
	Target      string
	Bridge      string
	Device      int
	Handled     bool
	Latency     time.Duration
}

// WriteEvent records a decoded bridge event.
func (c *Client) WriteEvent(evt lutron.Event) {
	c.record(eventPoint(evt, time.Now()))
}

// WriteDispatch records the outcome of one handler invocation.
func (c *Client) WriteDispatch(d Dispatch) {
	c.record(dispatchPoint(d, time.Now()))
}

// WriteSessionState records a session state transition for bridge.
func (c *Client) WriteSessionState(bridge string, state lutron.State) {
	c.record(sessionPoint(bridge, state, time.Now()))
}

func eventPoint(evt lutron.Event, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementEvent,
		map[string]string{
			"bridge":    evt.Bridge,
			"device":    strconv.Itoa(evt.Device),
			"operation": evt.Operation.String(),
			"component": evt.Component.Name(),
			"action":    evt.Action.Name(),
		},
		map[string]interface{}{
			"count":      1,
			"parameters": evt.Parameters,
		},
		ts,
	)
}

func dispatchPoint(d Dispatch, ts time.Time) *write.Point {
	outcome := "skipped"
	if d.Handled {
		outcome = "handled"
	}
	return write.NewPoint(
		MeasurementDispatch,
		map[string]string{
			"integration": d.Integration,
			"target":      d.Target,
			"bridge":      d.Bridge,
			"device":      strconv.Itoa(d.Device),
			"outcome":     outcome,
		},
		map[string]interface{}{
			"count":      1,
			"latency_ms": float64(d.Latency) / float64(time.Millisecond),
		},
		ts,
	)
}

func sessionPoint(bridge string, state lutron.State, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementSession,
		map[string]string{"bridge": bridge},
		map[string]interface{}{
			"state": state.String(),
			"ready": state == lutron.StateReady,
		},
		ts,
	)
}
