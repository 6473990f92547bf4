package lutron

import "errors"

// Domain errors for the Lutron bridge package.
var (
	// ErrMalformedFrame is returned when an inbound frame does not start with
	// the event marker or carries non-numeric address fields.
	ErrMalformedFrame = errors.New("lutron: malformed frame")

	// ErrTruncatedFrame is returned when an inbound frame has fewer than four fields.
	ErrTruncatedFrame = errors.New("lutron: truncated frame")

	// ErrInvalidAction is returned when a command carries an action that is
	// neither a DeviceAction nor an OutputAction.
	ErrInvalidAction = errors.New("lutron: invalid action")

	// ErrConnectionFailed is returned when the transport cannot be opened.
	ErrConnectionFailed = errors.New("lutron: connection failed")

	// ErrNotConnected is returned when an operation needs an open transport.
	ErrNotConnected = errors.New("lutron: not connected")

	// ErrNotReady is returned when an operation needs a logged-in session.
	ErrNotReady = errors.New("lutron: not logged in")

	// ErrLoginFailed is returned when the handshake never reaches the ready prompt.
	ErrLoginFailed = errors.New("lutron: login failed")

	// ErrIncompleteStream is returned by Stream when the transport ends or
	// fails mid-frame. The supervisor reconnects on this error.
	ErrIncompleteStream = errors.New("lutron: incomplete stream")

	// ErrCrossBridge is returned when a command is sent through a session for
	// a different bridge.
	ErrCrossBridge = errors.New("lutron: intended bridge does not match this connection")

	// ErrUnknownBridge is returned when a bridge selector does not name a
	// configured bridge.
	ErrUnknownBridge = errors.New("lutron: unknown bridge")
)

// Translation signals.
//
// ErrNotConfigured and ErrNoAction mean the event is skipped. ErrFatal means
// the table entry is structurally wrong; only the current event is aborted.
var (
	// ErrNotConfigured groups the "table omits this entry" signals.
	ErrNotConfigured = errors.New("lutron: not configured")

	// ErrUnknownComponent is returned when the table has no entry for the component.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrUnknownAction is returned when the component has no entry for the action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrParameterNotMapped is returned when the parameter-keyed table has no
	// entry for the event's parameters.
	ErrParameterNotMapped = errors.New("action not specified for parameter")

	// ErrNoAction is returned when the table maps the action to null.
	ErrNoAction = errors.New("lutron: no action configured")

	// ErrFatal groups configuration errors that abort handling of one event.
	ErrFatal = errors.New("lutron: fatal configuration error")

	// ErrInvalidActionSpec is returned when an entry has the wrong shape.
	ErrInvalidActionSpec = errors.New("invalid action declaration")

	// ErrUnknownTarget is returned when the target names neither an output
	// action nor a component/device action pair.
	ErrUnknownTarget = errors.New("unknown action encountered")

	// ErrUnresolvable is returned when the parameter-keyed fallback also fails.
	ErrUnresolvable = errors.New("unknown error encountered")
)
