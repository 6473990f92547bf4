package lutron

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Event is a decoded inbound frame.
//
// For OUTPUT events Component is always ComponentAny and Action is an
// OutputAction. For every other operation Action is a DeviceAction.
type Event struct {
	// Operation is the frame's operation field.
	Operation Operation

	// Device is the integration id of the keypad or load.
	Device int

	// Component is the button position; ComponentAny for outputs.
	Component Component

	// Action is the decoded action code.
	Action Action

	// Parameters holds the remaining payload, e.g. an output level "75.00".
	// Empty when the frame carried none.
	Parameters string

	// Bridge is the host of the session that produced the event.
	Bridge string
}

// Command is an outbound instruction bound to one bridge.
type Command struct {
	Operation  Operation
	Device     int
	Component  Component
	Action     Action
	Parameters string
	Bridge     string
}

// ParseEvent decodes one raw frame read from bridge.
//
// Surrounding whitespace and the line terminator are trimmed and a leading
// ready prompt is removed, since the first frame after a command carries it.
// Unknown operation, component and action codes decode to their UNKNOWN
// variants rather than failing.
func ParseEvent(raw []byte, bridge string) (Event, error) {
	line := bytes.TrimSpace(raw)
	line = bytes.TrimPrefix(line, []byte(ReadyPrompt))

	if len(line) == 0 || line[0] != EventMarker {
		return Event{}, fmt.Errorf("%w: unrecognised event %q", ErrMalformedFrame, line)
	}

	parts := strings.Split(string(line[1:]), ",")
	if len(parts) < 4 {
		return Event{}, fmt.Errorf("%w: %q", ErrTruncatedFrame, line)
	}

	device, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Event{}, fmt.Errorf("%w: device id %q", ErrMalformedFrame, parts[1])
	}
	code, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return Event{}, fmt.Errorf("%w: component %q", ErrMalformedFrame, parts[2])
	}

	evt := Event{
		Operation: ParseOperation(parts[0]),
		Device:    device,
		Bridge:    bridge,
	}

	if evt.Operation == OperationOutput {
		evt.Component = ComponentAny
		evt.Action = OutputActionFromCode(code).Action()
		evt.Parameters = parts[3]
		return evt, nil
	}

	evt.Component = ComponentFromCode(code)
	evt.Action = parseDeviceAction(parts[3]).Action()
	if len(parts) > 4 {
		evt.Parameters = parts[4]
	}
	return evt, nil
}

// parseDeviceAction accepts integral decimal values such as "3" or "3.00".
func parseDeviceAction(field string) DeviceAction {
	f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || f != float64(int(f)) {
		return DeviceUnknown
	}
	return DeviceActionFromCode(int(f))
}

// String returns a compact human-readable form for logs.
func (e Event) String() string {
	return formatMessage("Event", e.Bridge, e.Operation, e.Device, e.Component, e.Action, e.Parameters)
}

// Encode serialises the command to its wire form, including the line terminator.
//
// The frame shape follows the action's kind:
//
//	#OUTPUT,<device>,<action>,<parameters>
//	#DEVICE,<device>,<component>,<action>
func (c Command) Encode() ([]byte, error) {
	var s string
	switch c.Action.Kind() {
	case ActionKindOutput:
		s = fmt.Sprintf("%c%s,%d,%d,%s%s", CommandMarker, OperationOutput, c.Device, c.Action.Code(), c.Parameters, LineTerminator)
	case ActionKindDevice:
		s = fmt.Sprintf("%c%s,%d,%d,%d%s", CommandMarker, OperationDevice, c.Device, int(c.Component), c.Action.Code(), LineTerminator)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidAction, c.Action)
	}
	return []byte(s), nil
}

// String returns a compact human-readable form for logs.
func (c Command) String() string {
	return formatMessage("Command", c.Bridge, c.Operation, c.Device, c.Component, c.Action, c.Parameters)
}

func formatMessage(kind, bridge string, op Operation, device int, comp Component, action Action, params string) string {
	if params == "" {
		params = "-"
	}
	return fmt.Sprintf("%s(BRIDGE:%s %s:%d %s:%s:%s)", kind, bridge, op, device, comp.Name(), action.Name(), params)
}
