package lutron

import (
	"fmt"
	"strconv"
)

// Bridges lists configured bridge hosts; the first is the primary bridge.
type Bridges []string

// Resolve maps a bridge selector to a host. 0 (unspecified) and 1 select the
// primary bridge, 2 the second, and so on.
func (b Bridges) Resolve(index int) (string, error) {
	if index == 0 {
		index = 1
	}
	if index < 1 || index > len(b) || b[index-1] == "" {
		return "", fmt.Errorf("%w: %d", ErrUnknownBridge, index)
	}
	return b[index-1], nil
}

// BuildCommand translates evt into a command for integrationID on bridge,
// according to table.
//
// The entry for the event's component and action is resolved as:
//
//  1. target is an output action name: OUTPUT command with the argument as
//     parameters.
//  2. target is a component and the argument a device action name: DEVICE
//     command.
//  3. otherwise, if the event carries parameters, the entry is treated as a
//     table keyed by those parameters and the matching row is resolved by
//     rules 1 and 2.
//
// Errors matching ErrNotConfigured or ErrNoAction mean the event is skipped.
// Errors matching ErrFatal mean the table entry is malformed.
func BuildCommand(table ActionTable, integrationID int, bridge string, evt Event) (Command, error) {
	spec, err := table.Lookup(evt.Component, evt.Action)
	if err != nil {
		return Command{}, err
	}

	switch spec.Kind() {
	case SpecTarget, SpecTable:
	default:
		return Command{}, fmt.Errorf("%w: %w: %s", ErrFatal, ErrInvalidActionSpec, spec)
	}

	cmd, ok := resolveTarget(spec)
	if !ok {
		if evt.Parameters == "" {
			return Command{}, fmt.Errorf("%w: %w: %s", ErrFatal, ErrUnknownTarget, spec.label())
		}

		row, found := spec.Sub(evt.Parameters)
		if !found {
			return Command{}, fmt.Errorf("%w: %w: %s:%s", ErrNotConfigured, ErrParameterNotMapped, evt.Action, evt.Parameters)
		}
		if cmd, ok = resolveTarget(row); !ok {
			return Command{}, fmt.Errorf("%w: %w: %s", ErrFatal, ErrUnresolvable, row)
		}
	}

	cmd.Device = integrationID
	cmd.Bridge = bridge
	return cmd, nil
}

// resolveTarget applies the output-action and component/device-action rules
// to a single {target: argument} entry.
func resolveTarget(spec ActionSpec) (Command, bool) {
	if spec.Kind() != SpecTarget {
		return Command{}, false
	}

	if action, ok := OutputActionByName(spec.Name()); ok {
		return Command{
			Operation:  OperationOutput,
			Component:  ComponentAny,
			Action:     action.Action(),
			Parameters: spec.ArgumentText(),
		}, true
	}

	component, ok := ComponentByName(spec.Name())
	if !ok {
		return Command{}, false
	}
	if _, isString := spec.Argument().(string); !isString {
		return Command{}, false
	}
	action, ok := DeviceActionByName(spec.ArgumentText())
	if !ok {
		return Command{}, false
	}
	return Command{
		Operation: OperationDevice,
		Component: component,
		Action:    action.Action(),
	}, true
}

// Topic returns the event bus topic for events from device on bridge,
// e.g. "10.0.0.1:16".
func Topic(bridge string, device int) string {
	return bridge + ":" + strconv.Itoa(device)
}

// Topic returns the bus topic the event is published on.
func (e Event) Topic() string { return Topic(e.Bridge, e.Device) }
