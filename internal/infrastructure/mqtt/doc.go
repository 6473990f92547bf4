// Package mqtt provides MQTT client connectivity for lutronbond.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	lutronbond/command/<target>          translated actions for MQTT targets
//	lutronbond/event/<bridge>/<device>   mirror of every decoded event
//	lutronbond/simulate/<bridge>         raw frames injected as bridge events
//	lutronbond/system/status             retained online/offline status, LWT
//
// # Security Considerations
//
//   - Enable TLS when the broker is not on the local host (cfg.Broker.TLS=true)
//   - The simulate topic drives real devices; restrict it in the broker ACL
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.Command("bedroom-fan")
//	client.Publish(topic, []byte(`{"action":"TurnOn"}`), 1, false)
package mqtt
