package mqttaction

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
	"github.com/nerrad567/lutronbond/internal/infrastructure/mqtt"
)

// EventMessage is the JSON payload of a mirrored event.
type EventMessage struct {
	Source
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// Mirror republishes decoded events on their per-device event topic.
type Mirror struct {
	pub    Publisher
	qos    byte
	logger Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewMirror creates a mirror publishing at qos. Events are never retained.
func NewMirror(pub Publisher, qos byte, logger Logger) *Mirror {
	return &Mirror{pub: pub, qos: qos, logger: logger}
}

// Observe publishes evt. It has the observer signature the supervisor
// expects and never blocks on the broker beyond the publish timeout.
func (m *Mirror) Observe(evt lutron.Event) {
	topic := mqtt.Topics{}.Event(evt.Bridge, evt.Device)

	payload, err := json.Marshal(EventMessage{
		Source:    SourceOf(evt),
		Summary:   evt.String(),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		m.failed.Add(1)
		return
	}

	if err := m.pub.Publish(topic, payload, m.qos, false); err != nil {
		m.failed.Add(1)
		if m.logger != nil {
			m.logger.Warn("failed to mirror event", "topic", topic, "error", err)
		}
		return
	}
	m.published.Add(1)
}

// Stats returns the number of mirrored and failed events.
func (m *Mirror) Stats() (published, failed uint64) {
	return m.published.Load(), m.failed.Load()
}
