package bond

import (
	"context"
	"errors"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
)

// ActionRunner executes a Bond device action. *Client implements it.
type ActionRunner interface {
	Do(ctx context.Context, deviceID string, action Action) error
}

// Ensure Client implements ActionRunner.
var _ ActionRunner = (*Client)(nil)

// Target maps Lutron events to actions on one Bond device.
type Target struct {
	// DeviceID is the Bond device id, e.g. "6409d2a2".
	DeviceID string

	// Name labels the device in logs. Default: "Unnamed".
	Name string

	// Actions maps component → action → Bond action. A bare string is an
	// action without argument; {Action: argument} passes the argument.
	Actions lutron.ActionTable
}

// NewHandler returns an event handler that runs Bond actions for target.
// It returns true only when the bridge accepted the action.
func NewHandler(target Target, runner ActionRunner, logger Logger) func(context.Context, lutron.Event) bool {
	name := target.Name
	if name == "" {
		name = "Unnamed"
	}

	return func(ctx context.Context, evt lutron.Event) bool {
		spec, err := target.Actions.Lookup(evt.Component, evt.Action)
		switch {
		case err == nil:
		case errors.Is(err, lutron.ErrNoAction):
			return false
		default:
			if logger != nil {
				logger.Warn("event not configured for Bond device", "event", evt.String(), "device", target.DeviceID, "reason", err.Error())
			}
			return false
		}

		var action Action
		switch spec.Kind() {
		case lutron.SpecName:
			action = Action{Name: spec.Name()}
		case lutron.SpecTarget:
			action = Action{Name: spec.Name(), Argument: spec.Argument()}
		default:
			if logger != nil {
				logger.Error("invalid Bond action declaration", "event", evt.String(), "device", target.DeviceID, "action", spec.String())
			}
			return false
		}

		if logger != nil {
			logger.Debug("translated event into Bond action", "event", evt.String(), "action", action.String())
		}

		if err := runner.Do(ctx, target.DeviceID, action); err != nil {
			if logger != nil {
				logger.Error("Bond request failed", "action", action.Name, "device", target.DeviceID, "name", name, "error", err)
			}
			return false
		}

		if logger != nil {
			logger.Info("Bond request sent", "action", action.Name, "name", name, "device", target.DeviceID)
		}
		return true
	}
}
