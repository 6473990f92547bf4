package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/lutronbond/internal/api"
	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
	"github.com/nerrad567/lutronbond/internal/controller"
	"github.com/nerrad567/lutronbond/internal/infrastructure/config"
	"github.com/nerrad567/lutronbond/internal/infrastructure/logging"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// writeConfig writes a config file and points LUTRONBOND_CONFIG at it.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("LUTRONBOND_CONFIG", path)
	return path
}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LUTRONBOND_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_InvalidContent(t *testing.T) {
	writeConfig(t, "lutron:\n  bridges: []\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "lutron.bridges") {
		t.Fatalf("run() error = %v, want lutron.bridges validation error", err)
	}
}

func TestRun_BridgeUnreachable(t *testing.T) {
	writeConfig(t, fmt.Sprintf(`
lutron:
  bridges:
    - address: 127.0.0.1
      port: %d
  connect_timeout: 2s
logging:
  level: error
`, closedPort(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := run(ctx)
	if !errors.Is(err, controller.ErrOpenFailed) {
		t.Fatalf("run() error = %v, want ErrOpenFailed", err)
	}
}

// serveBridge accepts one connection, runs the login handshake and then
// holds the connection open. ready is closed once the ready prompt is sent.
func serveBridge(ln net.Listener, ready chan<- struct{}) {
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	for _, prompt := range []string{lutron.LoginPrompt, lutron.PasswordPrompt} {
		if _, err := conn.Write([]byte(prompt)); err != nil {
			return
		}
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
	}
	if _, err := conn.Write([]byte(lutron.ReadyPrompt)); err != nil {
		return
	}
	close(ready)

	// Block until the session closes the connection.
	_, _ = r.ReadString('\n') //nolint:errcheck // EOF on close
}

func TestRun_ShutdownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	ready := make(chan struct{})
	go serveBridge(ln, ready)

	writeConfig(t, fmt.Sprintf(`
lutron:
  bridges:
    - address: 127.0.0.1
      port: %d
logging:
  level: error
shutdown_grace_period: 1s
`, port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("run() returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge login did not complete")
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

type recordingHandler struct {
	events []lutron.Event
}

func (h *recordingHandler) Handle(evt lutron.Event) { h.events = append(h.events, evt) }

func TestSimulateHandler(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		want    int
	}{
		{"injects frame", "lutronbond/simulate/10.0.0.2", "~DEVICE,21,2,3", 1},
		{"unknown bridge", "lutronbond/simulate/10.9.9.9", "~DEVICE,21,2,3", 0},
		{"malformed frame", "lutronbond/simulate/10.0.0.2", "hello", 0},
		{"wrong topic", "lutronbond/event/10.0.0.2/21", "~DEVICE,21,2,3", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{}
			fn := simulateHandler(h, lutron.Bridges{"10.0.0.2", "10.0.0.3"}, nil, logging.Discard())

			if err := fn(tt.topic, []byte(tt.payload)); err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if len(h.events) != tt.want {
				t.Fatalf("handled %d events, want %d", len(h.events), tt.want)
			}
			if tt.want == 1 {
				evt := h.events[0]
				if evt.Bridge != "10.0.0.2" || evt.Device != 21 || evt.Action != lutron.DevicePress.Action() {
					t.Errorf("event = %+v", evt)
				}
			}
		})
	}
}

func TestDispatchConversions(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := controller.Dispatch{
		Event: lutron.Event{
			Operation: lutron.OperationDevice,
			Device:    21,
			Component: lutron.ComponentBtn1,
			Action:    lutron.DevicePress.Action(),
			Bridge:    "10.0.0.2",
		},
		Integration: controller.IntegrationBond,
		Target:      "6409d2a2",
		Handled:     true,
		Latency:     15 * time.Millisecond,
		At:          at,
	}

	j := journalDispatch(d)
	if j.Bridge != "10.0.0.2" || j.Device != 21 || j.Component != "BTN_1" || j.Action != "PRESS" {
		t.Errorf("journal entry source = %+v", j)
	}
	if j.Integration != "bond" || j.Target != "6409d2a2" || !j.Handled || j.Latency != 15*time.Millisecond || !j.DispatchedAt.Equal(at) {
		t.Errorf("journal entry outcome = %+v", j)
	}

	i := influxDispatch(d)
	if i.Bridge != "10.0.0.2" || i.Device != 21 || i.Integration != "bond" || i.Target != "6409d2a2" || !i.Handled {
		t.Errorf("influx dispatch = %+v", i)
	}
}

type recordingStates struct {
	writes []string
}

func (r *recordingStates) WriteSessionState(bridge string, state lutron.State) {
	r.writes = append(r.writes, bridge+"="+state.String())
}

func TestSampleOnce(t *testing.T) {
	registry := lutron.NewRegistry(lutron.SessionConfig{})
	registry.Get("10.0.0.2")
	registry.Get("10.0.0.3")

	w := &recordingStates{}
	last := make(map[string]lutron.State)

	sampleOnce(registry, w, last)
	want := []string{"10.0.0.2=disconnected", "10.0.0.3=disconnected"}
	if strings.Join(w.writes, ",") != strings.Join(want, ",") {
		t.Fatalf("first sample = %v, want %v", w.writes, want)
	}

	sampleOnce(registry, w, last)
	if len(w.writes) != 2 {
		t.Errorf("unchanged states were written again: %v", w.writes)
	}
}

func TestSessionStats(t *testing.T) {
	registry := lutron.NewRegistry(lutron.SessionConfig{})
	registry.GetWithPort("10.0.0.2", 2323)

	stats := sessionStats(registry)()
	if len(stats) != 1 || stats[0].Host != "10.0.0.2" || stats[0].State != "disconnected" {
		t.Errorf("sessionStats() = %+v", stats)
	}
}

const tokenConfig = `
lutron:
  bridges:
    - address: 10.0.0.2
security:
  jwt:
    enabled: %t
    secret: ` + testSecret + `
    issuer: lutronbond
`

func TestIssueToken(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(tokenConfig, true))

	var out bytes.Buffer
	if err := issueToken([]string{"-ttl", "1h", "alice"}, path, &out); err != nil {
		t.Fatalf("issueToken() error = %v", err)
	}

	cfg := config.JWTConfig{Enabled: true, Secret: testSecret, Issuer: "lutronbond"}
	claims, err := api.ParseToken(strings.TrimSpace(out.String()), cfg)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "alice" {
		t.Errorf("subject = %q, want alice", claims.Subject)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > time.Hour || ttl < 59*time.Minute {
		t.Errorf("token expires in %v, want about 1h", ttl)
	}
}

func TestIssueToken_Errors(t *testing.T) {
	enabled := writeConfig(t, fmt.Sprintf(tokenConfig, true))
	disabled := writeConfig(t, fmt.Sprintf(tokenConfig, false))

	tests := []struct {
		name string
		args []string
		path string
	}{
		{"no subject", nil, enabled},
		{"two subjects", []string{"alice", "bob"}, enabled},
		{"bad flag", []string{"-ttl", "soon", "alice"}, enabled},
		{"jwt disabled", []string{"alice"}, disabled},
		{"missing config", []string{"alice"}, "/nonexistent/config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := issueToken(tt.args, tt.path, &out); err == nil {
				t.Errorf("issueToken(%v) succeeded, want error", tt.args)
			}
			if out.Len() != 0 {
				t.Errorf("unexpected output %q", out.String())
			}
		})
	}
}
