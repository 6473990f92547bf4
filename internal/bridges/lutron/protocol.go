package lutron

import "fmt"

// Wire-level protocol constants.
const (
	// EventMarker prefixes every inbound event frame.
	EventMarker = '~'

	// CommandMarker prefixes every outbound command frame.
	CommandMarker = '#'

	// LineTerminator ends every frame in both directions.
	LineTerminator = "\r\n"

	// LoginPrompt is sent by the bridge when it wants a username.
	LoginPrompt = "login: "

	// PasswordPrompt is sent by the bridge when it wants a password.
	PasswordPrompt = "password: "

	// ReadyPrompt is sent once the session is logged in, and again after each
	// command is acknowledged.
	ReadyPrompt = "GNET> "

	// DefaultUsername and DefaultPassword are the bridge's stock integration credentials.
	DefaultUsername = "lutron"
	DefaultPassword = "integration"

	// DefaultPort is the bridge's telnet integration port.
	DefaultPort = 23
)

// Operation identifies the kind of integration message.
type Operation int

// Operations understood by the bridge.
const (
	OperationUnknown Operation = iota
	OperationDevice
	OperationOutput
)

var operationNames = map[Operation]string{
	OperationUnknown: "UNKNOWN",
	OperationDevice:  "DEVICE",
	OperationOutput:  "OUTPUT",
}

// ParseOperation maps a wire operation name to an Operation.
// Unrecognised names map to OperationUnknown.
func ParseOperation(name string) Operation {
	switch name {
	case "DEVICE":
		return OperationDevice
	case "OUTPUT":
		return OperationOutput
	default:
		return OperationUnknown
	}
}

// String returns the wire name of the operation.
func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// Component is a keypad button position. ComponentAny stands in for OUTPUT
// events, which have no component.
type Component int

// Component codes as assigned by the bridge.
const (
	ComponentUnknown   Component = -1
	ComponentAny       Component = 1
	ComponentBtn1      Component = 2
	ComponentBtn2      Component = 3
	ComponentBtn3      Component = 4
	ComponentBtnRaise  Component = 5
	ComponentBtnLower  Component = 6
	ComponentBtnScene1 Component = 8
	ComponentBtnScene2 Component = 9
	ComponentBtnScene3 Component = 10
	ComponentBtnScene4 Component = 11
)

var componentNames = map[Component]string{
	ComponentUnknown:   "UNKNOWN",
	ComponentAny:       "ANY",
	ComponentBtn1:      "BTN_1",
	ComponentBtn2:      "BTN_2",
	ComponentBtn3:      "BTN_3",
	ComponentBtnRaise:  "BTN_RAISE",
	ComponentBtnLower:  "BTN_LOWER",
	ComponentBtnScene1: "BTN_SCENE_1",
	ComponentBtnScene2: "BTN_SCENE_2",
	ComponentBtnScene3: "BTN_SCENE_3",
	ComponentBtnScene4: "BTN_SCENE_4",
}

// ComponentFromCode maps a wire code to a Component, or ComponentUnknown.
func ComponentFromCode(code int) Component {
	c := Component(code)
	if _, ok := componentNames[c]; ok {
		return c
	}
	return ComponentUnknown
}

// ComponentByName looks up a component by its configuration name.
// The UNKNOWN sentinel is never returned.
func ComponentByName(name string) (Component, bool) {
	for c, n := range componentNames {
		if n == name && c != ComponentUnknown {
			return c, true
		}
	}
	return ComponentUnknown, false
}

// Name returns the configuration name of the component (e.g. "BTN_1").
func (c Component) Name() string {
	if name, ok := componentNames[c]; ok {
		return name
	}
	return componentNames[ComponentUnknown]
}

// String implements fmt.Stringer.
func (c Component) String() string {
	return "Component." + c.Name()
}

// DeviceAction is an action on a keypad component.
type DeviceAction int

// Device action codes.
const (
	DeviceUnknown DeviceAction = -1
	DeviceEnable  DeviceAction = 1
	DeviceDisable DeviceAction = 2
	DevicePress   DeviceAction = 3
	DeviceRelease DeviceAction = 4
	DeviceHold    DeviceAction = 5
	DeviceDblTap  DeviceAction = 6
	DeviceScene   DeviceAction = 7
	DeviceLED     DeviceAction = 9
	DeviceLevel   DeviceAction = 14
)

var deviceActionNames = map[DeviceAction]string{
	DeviceUnknown: "UNKNOWN",
	DeviceEnable:  "ENABLE",
	DeviceDisable: "DISABLE",
	DevicePress:   "PRESS",
	DeviceRelease: "RELEASE",
	DeviceHold:    "HOLD",
	DeviceDblTap:  "DBLTAP",
	DeviceScene:   "SCENE",
	DeviceLED:     "LED",
	DeviceLevel:   "LEVEL",
}

// OutputAction is an action on a load (dimmer, switch).
type OutputAction int

// Output action codes. The bridge defines more; only these are handled.
const (
	OutputUnknown               OutputAction = -1
	OutputSetLevel              OutputAction = 1
	OutputStartRaising          OutputAction = 2
	OutputStartLowering         OutputAction = 3
	OutputStopRaisingOrLowering OutputAction = 4
)

var outputActionNames = map[OutputAction]string{
	OutputUnknown:               "UNKNOWN",
	OutputSetLevel:              "SET_LEVEL",
	OutputStartRaising:          "START_RAISING",
	OutputStartLowering:         "START_LOWERING",
	OutputStopRaisingOrLowering: "STOP_RAISING_OR_LOWERING",
}

// DeviceActionFromCode maps a wire code to a DeviceAction, or DeviceUnknown.
func DeviceActionFromCode(code int) DeviceAction {
	a := DeviceAction(code)
	if _, ok := deviceActionNames[a]; ok {
		return a
	}
	return DeviceUnknown
}

// OutputActionFromCode maps a wire code to an OutputAction, or OutputUnknown.
func OutputActionFromCode(code int) OutputAction {
	a := OutputAction(code)
	if _, ok := outputActionNames[a]; ok {
		return a
	}
	return OutputUnknown
}

// DeviceActionByName looks up a device action by configuration name.
// The UNKNOWN sentinel is never returned.
func DeviceActionByName(name string) (DeviceAction, bool) {
	for a, n := range deviceActionNames {
		if n == name && a != DeviceUnknown {
			return a, true
		}
	}
	return DeviceUnknown, false
}

// OutputActionByName looks up an output action by configuration name.
// The UNKNOWN sentinel is never returned.
func OutputActionByName(name string) (OutputAction, bool) {
	for a, n := range outputActionNames {
		if n == name && a != OutputUnknown {
			return a, true
		}
	}
	return OutputUnknown, false
}

// Action wraps the DeviceAction value in the Action union.
func (a DeviceAction) Action() Action { return Action{kind: ActionKindDevice, code: int(a)} }

// Action wraps the OutputAction value in the Action union.
func (a OutputAction) Action() Action { return Action{kind: ActionKindOutput, code: int(a)} }

// ActionKind tags which enumeration an Action belongs to.
type ActionKind uint8

// Action kinds. The zero value marks an Action that was never set.
const (
	ActionKindNone ActionKind = iota
	ActionKindDevice
	ActionKindOutput
)

// Action is either a DeviceAction or an OutputAction, never both.
type Action struct {
	kind ActionKind
	code int
}

// Kind reports which enumeration the action belongs to.
func (a Action) Kind() ActionKind { return a.kind }

// Code returns the wire code of the action.
func (a Action) Code() int { return a.code }

// Device returns the DeviceAction, if this is one.
func (a Action) Device() (DeviceAction, bool) {
	return DeviceAction(a.code), a.kind == ActionKindDevice
}

// Output returns the OutputAction, if this is one.
func (a Action) Output() (OutputAction, bool) {
	return OutputAction(a.code), a.kind == ActionKindOutput
}

// Name returns the configuration name of the action (e.g. "PRESS").
func (a Action) Name() string {
	switch a.kind {
	case ActionKindDevice:
		if name, ok := deviceActionNames[DeviceAction(a.code)]; ok {
			return name
		}
	case ActionKindOutput:
		if name, ok := outputActionNames[OutputAction(a.code)]; ok {
			return name
		}
	}
	return "UNKNOWN"
}

// String returns the qualified name, e.g. "DeviceAction.PRESS".
func (a Action) String() string {
	switch a.kind {
	case ActionKindDevice:
		return "DeviceAction." + a.Name()
	case ActionKindOutput:
		return "OutputAction." + a.Name()
	default:
		return "Action(none)"
	}
}
