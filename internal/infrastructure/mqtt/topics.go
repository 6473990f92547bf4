package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes. Every lutronbond topic lives under TopicPrefix.
const (
	// TopicPrefix is the root of all lutronbond topics.
	TopicPrefix = "lutronbond"

	// TopicPrefixCommand carries translated actions for MQTT targets.
	TopicPrefixCommand = TopicPrefix + "/command"

	// TopicPrefixEvent mirrors decoded bridge events.
	TopicPrefixEvent = TopicPrefix + "/event"

	// TopicPrefixSimulate accepts raw event frames to inject, per bridge.
	TopicPrefixSimulate = TopicPrefix + "/simulate"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for lutronbond MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Event("192.168.1.20", 21)
//	// Returns: "lutronbond/event/192.168.1.20/21"
type Topics struct{}

// Command returns the topic an MQTT target's actions are published to.
//
// Example: lutronbond/command/bedroom-fan
func (Topics) Command(target string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixCommand, target)
}

// Event returns the mirror topic for events from one device on one bridge.
//
// Example: lutronbond/event/192.168.1.20/21
func (Topics) Event(bridge string, device int) string {
	return fmt.Sprintf("%s/%s/%d", TopicPrefixEvent, bridge, device)
}

// Simulate returns the topic that injects raw frames as if bridge sent them.
//
// Example: lutronbond/simulate/192.168.1.20
func (Topics) Simulate(bridge string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixSimulate, bridge)
}

// SystemStatus returns the topic for service online/offline status.
// This is also used as the LWT topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllCommands matches every command topic.
func (Topics) AllCommands() string {
	return TopicPrefixCommand + "/#"
}

// AllEvents matches every mirrored event.
func (Topics) AllEvents() string {
	return TopicPrefixEvent + "/+/+"
}

// AllSimulate matches the simulate topic of every bridge.
func (Topics) AllSimulate() string {
	return TopicPrefixSimulate + "/+"
}

// BridgeFromSimulate extracts the bridge address from a simulate topic.
func (Topics) BridgeFromSimulate(topic string) (string, bool) {
	bridge, ok := strings.CutPrefix(topic, TopicPrefixSimulate+"/")
	if !ok || bridge == "" || strings.Contains(bridge, "/") {
		return "", false
	}
	return bridge, true
}
