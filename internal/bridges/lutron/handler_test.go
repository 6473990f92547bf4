package lutron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// mockSender records commands and optionally fails.
type mockSender struct {
	mu   sync.Mutex
	sent []Command
	err  error
}

func (m *mockSender) Send(_ context.Context, cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, cmd)
	return nil
}

// mockLogger counts calls per level.
type mockLogger struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (m *mockLogger) Debug(string, ...any) {}
func (m *mockLogger) Info(string, ...any)  {}

func (m *mockLogger) Warn(msg string, kv ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, fmt.Sprint(append([]any{msg}, kv...)...))
}

func (m *mockLogger) Error(msg string, kv ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, fmt.Sprint(append([]any{msg}, kv...)...))
}

func TestNewHandlerSendsCommand(t *testing.T) {
	sender := &mockSender{}
	bridges := Bridges{testBridge, "10.0.0.2"}

	handler, err := NewHandler(Target{
		IntegrationID: 5,
		Bridge:        2,
		Actions:       mustTable(t, `BTN_1: {PRESS: {SET_LEVEL: "100,0.01"}}`),
	}, bridges, sender, nil)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	if ok := handler(context.Background(), deviceEvent(ComponentBtn1, DevicePress)); !ok {
		t.Fatal("handler returned false")
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d commands, want 1", len(sender.sent))
	}
	got := sender.sent[0]
	if got.Bridge != "10.0.0.2" || got.Device != 5 || got.Parameters != "100,0.01" {
		t.Errorf("sent %s", got)
	}
}

func TestNewHandlerUnknownBridge(t *testing.T) {
	_, err := NewHandler(Target{IntegrationID: 5, Bridge: 3}, Bridges{testBridge}, &mockSender{}, nil)
	if !errors.Is(err, ErrUnknownBridge) {
		t.Errorf("NewHandler() error = %v, want ErrUnknownBridge", err)
	}
}

func TestNewHandlerOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		evt       Event
		sendErr   error
		want      bool
		wantWarn  bool
		wantError bool
	}{
		{
			name:  "configured",
			table: `BTN_1: {PRESS: {BTN_2: PRESS}}`,
			evt:   deviceEvent(ComponentBtn1, DevicePress),
			want:  true,
		},
		{
			name:  "null entry is silent",
			table: `BTN_1: {RELEASE: ~}`,
			evt:   deviceEvent(ComponentBtn1, DeviceRelease),
		},
		{
			name:     "missing component warns",
			table:    `BTN_2: {PRESS: ~}`,
			evt:      deviceEvent(ComponentBtn1, DevicePress),
			wantWarn: true,
		},
		{
			name:     "unmapped parameter warns",
			table:    `ANY: {SET_LEVEL: {"100": {SET_LEVEL: "100,0.50"}}}`,
			evt:      outputEvent(OutputSetLevel, "25"),
			wantWarn: true,
		},
		{
			name:      "invalid declaration is an error",
			table:     `BTN_1: {PRESS: TurnOn}`,
			evt:       deviceEvent(ComponentBtn1, DevicePress),
			wantError: true,
		},
		{
			name:      "send failure is an error",
			table:     `BTN_1: {PRESS: {BTN_2: PRESS}}`,
			evt:       deviceEvent(ComponentBtn1, DevicePress),
			sendErr:   ErrNotReady,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := &mockLogger{}
			handler, err := NewHandler(Target{IntegrationID: 9, Actions: mustTable(t, tt.table)},
				Bridges{testBridge}, &mockSender{err: tt.sendErr}, logger)
			if err != nil {
				t.Fatalf("NewHandler() error = %v", err)
			}

			if got := handler(context.Background(), tt.evt); got != tt.want {
				t.Errorf("handler() = %v, want %v", got, tt.want)
			}
			if (len(logger.warns) > 0) != tt.wantWarn {
				t.Errorf("warnings = %v, want warn %v", logger.warns, tt.wantWarn)
			}
			if (len(logger.errors) > 0) != tt.wantError {
				t.Errorf("errors = %v, want error %v", logger.errors, tt.wantError)
			}
		})
	}
}
