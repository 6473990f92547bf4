package lutron

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryMemoises(t *testing.T) {
	r := NewRegistry(SessionConfig{})

	a := r.Get("10.0.0.1")
	b := r.Get("10.0.0.1")
	c := r.GetWithPort("10.0.0.2", 2323)

	if a != b {
		t.Error("Get() returned different sessions for the same host")
	}
	if c.Port() != 2323 {
		t.Errorf("Port() = %d, want 2323", c.Port())
	}
	if r.GetWithPort("10.0.0.2", 23) != c {
		t.Error("GetWithPort() must reuse the existing session")
	}

	sessions := r.Sessions()
	if len(sessions) != 2 || sessions[0] != a || sessions[1] != c {
		t.Errorf("Sessions() = %v, want creation order", sessions)
	}

	if _, ok := r.Lookup("10.0.0.3"); ok {
		t.Error("Lookup() must not create sessions")
	}
}

func TestRegistryReset(t *testing.T) {
	r := NewRegistry(SessionConfig{})
	r.Get("10.0.0.1")
	r.Get("10.0.0.2")

	if err := r.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if len(r.Sessions()) != 0 || len(r.Hosts()) != 0 {
		t.Error("Reset() left sessions behind")
	}
}

func TestRegistrySend(t *testing.T) {
	r := NewRegistry(SessionConfig{})
	cmd := Command{Operation: OperationDevice, Device: 1, Component: ComponentBtn1, Action: DevicePress.Action(), Bridge: "10.0.0.9"}

	if err := r.Send(context.Background(), cmd); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() to unknown bridge error = %v, want ErrNotConnected", err)
	}

	r.Get("10.0.0.9")
	if err := r.Send(context.Background(), cmd); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() on closed session error = %v, want ErrNotConnected", err)
	}
}
