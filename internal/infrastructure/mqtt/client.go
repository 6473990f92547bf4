package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/lutronbond/internal/infrastructure/config"
)

var (
	// ErrNotConnected is returned by Publish, Subscribe and HealthCheck while
	// the broker connection is down.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed wraps the cause of a failed initial connect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps publish timeouts, broker rejections and
	// oversized payloads.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps subscribe timeouts and broker rejections.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic is returned for an empty topic.
	ErrInvalidTopic = errors.New("mqtt: empty topic")

	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: qos must be 0, 1 or 2")
)

// Logger is the subset of logging.Logger the client reports through.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler receives one inbound message. paho calls it on its own
// goroutine; a returned error is logged and the message is still acked.
type MessageHandler func(topic string, payload []byte) error

// Client is the lutronbond broker connection. It publishes translated
// actions and mirrored events, carries the simulate subscription, and keeps
// a retained online/offline status on lutronbond/system/status.
//
// All methods are safe for concurrent use. Subscriptions made through
// Subscribe are replayed after every reconnect.
type Client struct {
	client   pahomqtt.Client
	clientID string

	connected atomic.Bool

	mu    sync.RWMutex
	subs  map[string]subscription
	hooks hooks
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// hooks are the optional observers installed after Connect.
type hooks struct {
	log          Logger
	onConnect    func()
	onDisconnect func(error)
}

// Connect dials the configured broker and waits up to defaultConnectTimeout
// for the first CONNACK. The broker publishes an offline status on the
// client's behalf if the connection later drops without Close.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		clientID: clientID(cfg.Broker.ClientID),
		subs:     make(map[string]subscription),
	}
	cfg.Broker.ClientID = c.clientID

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.clientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if log := c.currentHooks().log; log != nil {
			log.Info("reconnecting to MQTT broker", "broker", cfg.Broker.Host)
		}
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: no CONNACK within %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The on-connect hook runs asynchronously; mark the client usable now so
	// callers can subscribe straight after Connect returns.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) currentHooks() hooks {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hooks
}

// onConnected runs on the initial connect and on every reconnect.
func (c *Client) onConnected() {
	c.connected.Store(true)

	c.mu.RLock()
	for topic, sub := range c.subs {
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.mu.RUnlock()

	c.client.Publish(Topics{}.SystemStatus(), statusQoS, true, onlinePayload(c.clientID))

	if fn := c.currentHooks().onConnect; fn != nil {
		fn()
	}
}

func (c *Client) onConnectionLost(err error) {
	c.connected.Store(false)
	if fn := c.currentHooks().onDisconnect; fn != nil {
		fn(err)
	}
}

// Close publishes a graceful offline status and disconnects. It is safe to
// call on a client that never connected.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.client.Publish(Topics{}.SystemStatus(), statusQoS, true, offlinePayload(c.clientID, reasonShutdown)).
			WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether both this wrapper and paho consider the
// connection up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.connected.Load() && c.client.IsConnected()
}

// SetOnConnect installs fn to run after every (re)connect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.hooks.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect installs fn to run when the connection is lost.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.hooks.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets where handler errors and recovered panics are reported.
func (c *Client) SetLogger(log Logger) {
	c.mu.Lock()
	c.hooks.log = log
	c.mu.Unlock()
}

// wrapHandler adapts handler to paho, logging its errors and recovering
// panics so one bad frame cannot kill paho's router goroutine.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		log := c.currentHooks().log
		defer func() {
			if r := recover(); r != nil && log != nil {
				log.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil && log != nil {
			log.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
