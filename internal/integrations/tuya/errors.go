package tuya

import "errors"

// Domain errors for the Tuya integration.
var (
	// ErrInvalidFrame is returned when a received frame fails validation.
	ErrInvalidFrame = errors.New("tuya: invalid frame")

	// ErrUnsupportedVersion is returned for protocol versions other than 3.1 and 3.3.
	ErrUnsupportedVersion = errors.New("tuya: unsupported protocol version")

	// ErrInvalidKey is returned when the local key is not a 16-byte AES key.
	ErrInvalidKey = errors.New("tuya: invalid local key")

	// ErrInvalidDevice is returned when a device definition is incomplete.
	ErrInvalidDevice = errors.New("tuya: invalid device")

	// ErrCommandRejected is returned when the device answers with a non-zero return code.
	ErrCommandRejected = errors.New("tuya: command rejected")

	// ErrRequestFailed is returned when a command fails after all retries.
	ErrRequestFailed = errors.New("tuya: request failed")
)
