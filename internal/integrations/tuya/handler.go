package tuya

import (
	"context"
	"errors"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
)

// Switch is an on/off device. *Device implements it.
type Switch interface {
	ID() string
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

// Ensure Device implements Switch.
var _ Switch = (*Device)(nil)

// Supported action names.
const (
	ActionTurnOn  = "TurnOn"
	ActionTurnOff = "TurnOff"
)

// Target maps Lutron events to switch actions on one device.
type Target struct {
	Name    string
	Device  Switch
	Actions lutron.ActionTable
}

// NewHandler returns an event handler that switches target.Device.
// Entries must be the bare names TurnOn or TurnOff.
func NewHandler(target Target, logger Logger) func(context.Context, lutron.Event) bool {
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
				logger.Warn("event not configured for Tuya device", "event", evt.String(), "device", target.Device.ID(), "reason", err.Error())
			}
			return false
		}

		var do func(context.Context) error
		if spec.Kind() == lutron.SpecName {
			switch spec.Name() {
			case ActionTurnOn:
				do = target.Device.TurnOn
			case ActionTurnOff:
				do = target.Device.TurnOff
			}
		}
		if do == nil {
			if logger != nil {
				logger.Warn("unknown Tuya device method", "action", spec.String(), "device", target.Device.ID())
			}
			return false
		}

		if logger != nil {
			logger.Debug("starting Tuya request", "action", spec.Name(), "device", target.Device.ID())
		}
		if err := do(ctx); err != nil {
			if logger != nil {
				logger.Error("Tuya request failed", "action", spec.Name(), "device", target.Device.ID(), "name", name, "error", err)
			}
			return false
		}

		if logger != nil {
			logger.Info("Tuya request sent", "action", spec.Name(), "device", target.Device.ID(), "name", name)
		}
		return true
	}
}
