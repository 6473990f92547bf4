//go:build integration

package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// Integration tests against a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func connectTest(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_Connect(t *testing.T) {
	client := connectTest(t, "lutronbond-int-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestIntegration_ConnectRefused(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 19998

	_, err := Connect(cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestIntegration_Close(t *testing.T) {
	client := connectTest(t, "lutronbond-int-close")

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
	if err := client.Publish("lutronbond/int/x", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestIntegration_SubscriptionsReplayed(t *testing.T) {
	client := connectTest(t, "lutronbond-int-sub-track")
	noop := func(string, []byte) error { return nil }

	topics := []string{
		Topics{}.Simulate("10.0.0.1"),
		Topics{}.Simulate("10.0.0.2"),
	}
	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, noop); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	client.mu.RLock()
	defer client.mu.RUnlock()
	for _, topic := range topics {
		if _, ok := client.subs[topic]; !ok {
			t.Errorf("%s not kept for replay", topic)
		}
	}
}

func TestIntegration_EventRoundtrip(t *testing.T) {
	pub := connectTest(t, "lutronbond-int-pub")
	sub := connectTest(t, "lutronbond-int-sub")

	received := make(chan string, 1)
	var once sync.Once
	err := sub.Subscribe(Topics{}.AllEvents(), 1, func(topic string, p []byte) error {
		once.Do(func() { received <- topic + " " + string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pub.Publish(Topics{}.Event("10.0.0.1", 21), []byte(`{"device":21}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if want := `lutronbond/event/10.0.0.1/21 {"device":21}`; msg != want {
			t.Errorf("received %q, want %q", msg, want)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}

func TestIntegration_Callbacks(t *testing.T) {
	client := connectTest(t, "lutronbond-int-callbacks")

	connected := make(chan struct{}, 1)
	client.SetOnConnect(func() { connected <- struct{}{} })
	client.SetOnDisconnect(func(error) {})

	client.onConnected()

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Error("OnConnect callback not invoked")
	}
}
