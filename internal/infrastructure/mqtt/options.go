package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/lutronbond/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second

	// defaultDisconnectQuiesce is in milliseconds, as paho expects.
	defaultDisconnectQuiesce = 1000

	maxQoS        = 2
	tlsMinVersion = tls.VersionTLS12

	// statusQoS is used for the will and status messages regardless of the
	// configured action QoS.
	statusQoS = 1
)

// Offline reasons carried in the status payload.
const (
	reasonShutdown = "graceful_shutdown"
	reasonLost     = "unexpected_disconnect"
)

// buildClientOptions maps the mqtt config section onto paho options. paho
// owns reconnection; the supervisor never restarts the broker connection.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}
	return opts
}

// configureLWT has the broker publish a retained offline status for
// clientID if the connection drops without Close.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetBinaryWill(Topics{}.SystemStatus(), offlinePayload(clientID, reasonLost), statusQoS, true)
}

// statusMessage is the retained document on lutronbond/system/status.
type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func statusPayload(status, clientID, reason string) []byte {
	b, _ := json.Marshal(statusMessage{ //nolint:errcheck // plain strings always marshal
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

func onlinePayload(clientID string) []byte {
	return statusPayload("online", clientID, "")
}

func offlinePayload(clientID, reason string) []byte {
	return statusPayload("offline", clientID, reason)
}

// clientID returns id, or a unique id when it is empty or ends in "-".
// Brokers drop the older connection when two clients share an id.
func clientID(id string) string {
	switch {
	case id == "":
		return "lutronbond-" + uuid.NewString()[:8]
	case strings.HasSuffix(id, "-"):
		return id + uuid.NewString()[:8]
	default:
		return id
	}
}
