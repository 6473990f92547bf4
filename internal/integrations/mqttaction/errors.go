package mqttaction

import "errors"

var (
	// ErrInvalidTarget is returned when a target cannot be published to.
	ErrInvalidTarget = errors.New("mqttaction: invalid target")

	// ErrNoPublisher is returned when no MQTT publisher was supplied.
	ErrNoPublisher = errors.New("mqttaction: no publisher")
)
