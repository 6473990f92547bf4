package controller

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
	"github.com/nerrad567/lutronbond/internal/infrastructure/config"
	"github.com/nerrad567/lutronbond/internal/integrations/bond"
	"github.com/nerrad567/lutronbond/internal/integrations/mqttaction"
	"github.com/nerrad567/lutronbond/internal/integrations/tuya"
)

// Integration names used in listeners, metrics and the journal.
const (
	IntegrationLutron = "lutron"
	IntegrationBond   = "bond"
	IntegrationTuya   = "tuya"
	IntegrationMQTT   = "mqtt"
)

// Listener is one handler bound to a source device's bus topic.
type Listener struct {
	// Topic is "<bridge>:<integration id>" of the source device.
	Topic string

	// Name is the source device's configured name.
	Name string

	// Integration is one of the Integration* constants.
	Integration string

	// Target identifies the destination within the integration, e.g. a
	// Bond device id or "10.0.0.2:5" for a Lutron output.
	Target string

	// Handler translates and dispatches events.
	Handler func(ctx context.Context, evt lutron.Event) bool
}

// TuyaFactory builds the switch for a Tuya target.
type TuyaFactory func(target config.TuyaTarget) (tuya.Switch, error)

// Integrations supplies the clients that listeners dispatch through.
// A nil client makes any target of that integration a configuration error.
type Integrations struct {
	Lutron  lutron.Sender
	Bond    bond.ActionRunner
	Tuya    TuyaFactory
	MQTT    mqttaction.Publisher
	MQTTQoS byte

	// Logger is passed to every handler. Optional.
	Logger Logger
}

// NewTuyaFactory returns a TuyaFactory that creates devices using the
// protocol defaults from cfg.
func NewTuyaFactory(cfg *config.Config) TuyaFactory {
	return func(t config.TuyaTarget) (tuya.Switch, error) {
		dev, err := tuya.NewDevice(tuya.DeviceConfig{
			ID:         t.DeviceID,
			Address:    t.Address,
			Port:       t.Port,
			LocalKey:   t.LocalKey,
			Version:    cfg.TuyaVersion(t),
			Timeout:    cfg.Tuya.Timeout,
			RetryLimit: cfg.Tuya.RetryLimit,
		})
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
}

// BuildListeners creates a listener for every target in the device
// mappings of every configured bridge.
//
// Bridges are visited in order and devices by ascending integration id.
// Within one device the order is Lutron, Bond, Tuya, MQTT, then the order
// of the configured list.
func BuildListeners(cfg *config.Config, in Integrations) ([]Listener, error) {
	bridges := cfg.BridgeAddresses()
	var listeners []Listener

	for _, bridge := range cfg.Lutron.Bridges {
		ids := make([]int, 0, len(bridge.Devices))
		for id := range bridge.Devices {
			ids = append(ids, id)
		}
		sort.Ints(ids)

		for _, id := range ids {
			mapping := bridge.Devices[id]
			topic := lutron.Topic(bridge.Address, id)
			add := func(integration, target string, h func(context.Context, lutron.Event) bool) {
				listeners = append(listeners, Listener{
					Topic:       topic,
					Name:        mapping.Name,
					Integration: integration,
					Target:      target,
					Handler:     h,
				})
			}

			for _, t := range mapping.Lutron {
				if in.Lutron == nil {
					return nil, fmt.Errorf("%s: lutron target configured without a bridge sender", topic)
				}
				h, err := lutron.NewHandler(lutron.Target{
					IntegrationID: t.IntegrationID,
					Bridge:        t.Bridge,
					Actions:       t.Actions,
				}, bridges, in.Lutron, in.Logger)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", topic, err)
				}
				dest, _ := bridges.Resolve(t.Bridge) //nolint:errcheck // resolved by NewHandler above
				add(IntegrationLutron, lutron.Topic(dest, t.IntegrationID), h)
			}

			for _, t := range mapping.Bond {
				if in.Bond == nil {
					return nil, fmt.Errorf("%s: bond target %s configured without a Bond client", topic, t.DeviceID)
				}
				add(IntegrationBond, t.DeviceID, bond.NewHandler(bond.Target{
					DeviceID: t.DeviceID,
					Name:     t.Name,
					Actions:  t.Actions,
				}, in.Bond, in.Logger))
			}

			for _, t := range mapping.Tuya {
				if in.Tuya == nil {
					return nil, fmt.Errorf("%s: tuya target %s configured without a device factory", topic, t.DeviceID)
				}
				dev, err := in.Tuya(t)
				if err != nil {
					return nil, fmt.Errorf("%s: tuya device %s: %w", topic, t.DeviceID, err)
				}
				add(IntegrationTuya, t.DeviceID, tuya.NewHandler(tuya.Target{
					Name:    t.Name,
					Device:  dev,
					Actions: t.Actions,
				}, in.Logger))
			}

			for _, t := range mapping.MQTT {
				if in.MQTT == nil {
					return nil, fmt.Errorf("%s: mqtt target %s configured without an MQTT client", topic, t.Target)
				}
				h, err := mqttaction.NewHandler(mqttaction.Target{
					Name:    t.Target,
					Actions: t.Actions,
					QoS:     in.MQTTQoS,
				}, in.MQTT, in.Logger)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", topic, err)
				}
				add(IntegrationMQTT, t.Target, h)
			}
		}
	}

	return listeners, nil
}

// Summary counts listeners per integration, for startup logging.
func Summary(listeners []Listener) map[string]int {
	out := make(map[string]int)
	for _, l := range listeners {
		out[l.Integration]++
	}
	return out
}

// String returns a compact description for logs.
func (l Listener) String() string {
	return l.Topic + " -> " + l.Integration + ":" + l.Target + " (" + strconv.Quote(l.Name) + ")"
}
