// Package mqttaction forwards translated Lutron events to MQTT.
//
// Two pieces live here:
//   - NewHandler: an event handler that looks up the event in an action
//     table and publishes the resulting action on lutronbond/command/<target>.
//   - Mirror: an observer that republishes every decoded event on
//     lutronbond/event/<bridge>/<device>.
//
// Both take a Publisher, which *mqtt.Client satisfies.
package mqttaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
	"github.com/nerrad567/lutronbond/internal/infrastructure/mqtt"
)

// Publisher sends a payload to an MQTT topic.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Ensure the infrastructure client implements Publisher.
var _ Publisher = (*mqtt.Client)(nil)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Source describes the event that triggered a published action.
type Source struct {
	Bridge     string `json:"bridge"`
	Device     int    `json:"device"`
	Operation  string `json:"operation"`
	Component  string `json:"component"`
	Action     string `json:"action"`
	Parameters string `json:"parameters,omitempty"`
}

// SourceOf builds the Source block for evt.
func SourceOf(evt lutron.Event) Source {
	return Source{
		Bridge:     evt.Bridge,
		Device:     evt.Device,
		Operation:  evt.Operation.String(),
		Component:  evt.Component.Name(),
		Action:     evt.Action.Name(),
		Parameters: evt.Parameters,
	}
}

// Message is the JSON payload published for one translated action.
type Message struct {
	Action    string    `json:"action"`
	Argument  any       `json:"argument,omitempty"`
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Target maps Lutron events to actions published for one MQTT consumer.
type Target struct {
	// Name is the topic suffix: actions go to lutronbond/command/<Name>.
	Name string

	// Actions maps component → action → published action. A bare string
	// publishes without argument; {Action: argument} includes the argument.
	Actions lutron.ActionTable

	// QoS is the publish quality of service level.
	QoS byte
}

// NewHandler returns an event handler that publishes actions for target.
// It returns true only when the message was handed to the broker.
func NewHandler(target Target, pub Publisher, logger Logger) (func(context.Context, lutron.Event) bool, error) {
	if target.Name == "" {
		return nil, fmt.Errorf("%w: empty target name", ErrInvalidTarget)
	}
	if pub == nil {
		return nil, ErrNoPublisher
	}
	topic := mqtt.Topics{}.Command(target.Name)

	return func(_ context.Context, evt lutron.Event) bool {
		spec, err := target.Actions.Lookup(evt.Component, evt.Action)
		switch {
		case err == nil:
		case errors.Is(err, lutron.ErrNoAction):
			return false
		default:
			if logger != nil {
				logger.Warn("event not configured for MQTT target", "event", evt.String(), "target", target.Name, "reason", err.Error())
			}
			return false
		}

		msg := Message{Source: SourceOf(evt), Timestamp: time.Now().UTC()}
		switch spec.Kind() {
		case lutron.SpecName:
			msg.Action = spec.Name()
		case lutron.SpecTarget:
			msg.Action = spec.Name()
			msg.Argument = spec.Argument()
		default:
			if logger != nil {
				logger.Error("invalid MQTT action declaration", "event", evt.String(), "target", target.Name, "action", spec.String())
			}
			return false
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			if logger != nil {
				logger.Error("failed to encode MQTT action", "target", target.Name, "error", err)
			}
			return false
		}

		if err := pub.Publish(topic, payload, target.QoS, false); err != nil {
			if logger != nil {
				logger.Error("MQTT publish failed", "topic", topic, "action", msg.Action, "error", err)
			}
			return false
		}

		if logger != nil {
			logger.Debug("MQTT action published", "topic", topic, "action", msg.Action)
		}
		return true
	}, nil
}
