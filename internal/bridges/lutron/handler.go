package lutron

import (
	"context"
	"errors"
	"fmt"
)

// Sender delivers a command to the bridge named in cmd.Bridge.
type Sender interface {
	Send(ctx context.Context, cmd Command) error
}

// Ensure Registry implements Sender.
var _ Sender = (*Registry)(nil)

// Send routes cmd to the session for cmd.Bridge.
func (r *Registry) Send(ctx context.Context, cmd Command) error {
	s, ok := r.Lookup(cmd.Bridge)
	if !ok {
		return fmt.Errorf("%w: no session for %s", ErrNotConnected, cmd.Bridge)
	}
	return s.Send(ctx, cmd)
}

// Target is one Lutron-to-Lutron mapping: events are translated through
// Actions into commands for IntegrationID on the selected bridge.
type Target struct {
	// IntegrationID is the device id the command is addressed to.
	IntegrationID int

	// Bridge selects the destination bridge; 0 or 1 is the primary.
	Bridge int

	// Actions is the translation table.
	Actions ActionTable
}

// NewHandler returns an event handler that translates events for target and
// sends them through sender.
//
// The bridge selector is resolved here, so an unknown bridge fails at
// registration rather than on the first event. The handler returns true
// only when a command was sent.
func NewHandler(target Target, bridges Bridges, sender Sender, logger Logger) (func(context.Context, Event) bool, error) {
	bridge, err := bridges.Resolve(target.Bridge)
	if err != nil {
		return nil, err
	}

	var log logSink
	log.set(logger)

	return func(ctx context.Context, evt Event) bool {
		cmd, err := BuildCommand(target.Actions, target.IntegrationID, bridge, evt)
		switch {
		case err == nil:
		case errors.Is(err, ErrNoAction):
			return false
		case errors.Is(err, ErrNotConfigured):
			log.warn("event not configured for Lutron target",
				"event", evt.String(), "integration_id", target.IntegrationID, "reason", err.Error())
			return false
		default:
			log.error("invalid Lutron action configuration",
				"event", evt.String(), "integration_id", target.IntegrationID, "error", err)
			return false
		}

		log.debug("translated event into Lutron command", "command", cmd.String())

		if err := sender.Send(ctx, cmd); err != nil {
			log.error("failed to send Lutron command", "command", cmd.String(), "error", err)
			return false
		}
		return true
	}, nil
}
