package controller

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/lutronbond/internal/bridges/lutron"
	"github.com/nerrad567/lutronbond/internal/infrastructure/config"
	"github.com/nerrad567/lutronbond/internal/integrations/bond"
	"github.com/nerrad567/lutronbond/internal/integrations/tuya"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []lutron.Command
}

func (f *fakeSender) Send(_ context.Context, cmd lutron.Command) error {
	f.mu.Lock()
	f.sent = append(f.sent, cmd)
	f.mu.Unlock()
	return nil
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRunner) Do(_ context.Context, deviceID string, action bond.Action) error {
	f.mu.Lock()
	f.calls = append(f.calls, deviceID+"/"+action.Name)
	f.mu.Unlock()
	return nil
}

type fakeSwitch struct {
	id string
	on bool
}

func (f *fakeSwitch) ID() string                    { return f.id }
func (f *fakeSwitch) TurnOn(context.Context) error  { f.on = true; return nil }
func (f *fakeSwitch) TurnOff(context.Context) error { f.on = false; return nil }

type fakePublisher struct {
	topics []string
}

func (f *fakePublisher) Publish(topic string, _ []byte, _ byte, _ bool) error {
	f.topics = append(f.topics, topic)
	return nil
}

func pressTable(spec lutron.ActionSpec) lutron.ActionTable {
	return lutron.ActionTable{"BTN_1": {"PRESS": spec}}
}

func testConfig() *config.Config {
	return &config.Config{
		Lutron: config.LutronConfig{
			Bridges: []config.BridgeConfig{
				{
					Address: "10.0.0.2",
					Devices: map[int]config.DeviceMapping{
						22: {
							Name: "Office keypad",
							MQTT: config.List[config.MQTTTarget]{{Target: "office", Actions: pressTable(lutron.NameSpec("toggle"))}},
						},
						21: {
							Name: "Bedroom keypad",
							Lutron: config.List[config.LutronTarget]{
								{IntegrationID: 5, Bridge: 2, Actions: pressTable(lutron.TargetSpec("SET_LEVEL", "100"))},
							},
							Bond: config.List[config.BondTarget]{
								{DeviceID: "6409d2a2", Name: "Fan", Actions: pressTable(lutron.NameSpec("TurnLightOn"))},
							},
							Tuya: config.List[config.TuyaTarget]{
								{DeviceID: "plug-1", Actions: pressTable(lutron.NameSpec("TurnOn"))},
								{DeviceID: "plug-2", Actions: pressTable(lutron.NameSpec("TurnOn"))},
							},
						},
					},
				},
				{
					Address: "10.0.0.3",
					Devices: map[int]config.DeviceMapping{
						88: {
							Name: "Hall keypad",
							Bond: config.List[config.BondTarget]{
								{DeviceID: "aabbccdd", Actions: pressTable(lutron.NameSpec("TurnLightOn"))},
							},
						},
					},
				},
			},
		},
	}
}

func TestBuildListeners(t *testing.T) {
	sender := &fakeSender{}
	runner := &fakeRunner{}
	pub := &fakePublisher{}
	switches := map[string]*fakeSwitch{}

	listeners, err := BuildListeners(testConfig(), Integrations{
		Lutron: sender,
		Bond:   runner,
		Tuya: func(t config.TuyaTarget) (tuya.Switch, error) {
			sw := &fakeSwitch{id: t.DeviceID}
			switches[t.DeviceID] = sw
			return sw, nil
		},
		MQTT:    pub,
		MQTTQoS: 1,
	})
	if err != nil {
		t.Fatalf("BuildListeners() error = %v", err)
	}

	want := []struct {
		topic, integration, target string
	}{
		{"10.0.0.2:21", IntegrationLutron, "10.0.0.3:5"},
		{"10.0.0.2:21", IntegrationBond, "6409d2a2"},
		{"10.0.0.2:21", IntegrationTuya, "plug-1"},
		{"10.0.0.2:21", IntegrationTuya, "plug-2"},
		{"10.0.0.2:22", IntegrationMQTT, "office"},
		{"10.0.0.3:88", IntegrationBond, "aabbccdd"},
	}
	if len(listeners) != len(want) {
		t.Fatalf("len(listeners) = %d, want %d: %v", len(listeners), len(want), listeners)
	}
	for i, w := range want {
		l := listeners[i]
		if l.Topic != w.topic || l.Integration != w.integration || l.Target != w.target {
			t.Errorf("listener[%d] = %s, want %s -> %s:%s", i, l, w.topic, w.integration, w.target)
		}
	}

	// Exercise the handlers end to end.
	evt := lutron.Event{
		Operation: lutron.OperationDevice,
		Device:    21,
		Component: lutron.ComponentBtn1,
		Action:    lutron.DevicePress.Action(),
		Bridge:    "10.0.0.2",
	}
	for _, l := range listeners[:4] {
		if !l.Handler(context.Background(), evt) {
			t.Errorf("%s: handler returned false", l)
		}
	}

	if len(sender.sent) != 1 || sender.sent[0].Bridge != "10.0.0.3" || sender.sent[0].Device != 5 {
		t.Errorf("lutron commands = %+v", sender.sent)
	}
	if len(runner.calls) != 1 || runner.calls[0] != "6409d2a2/TurnLightOn" {
		t.Errorf("bond calls = %v", runner.calls)
	}
	if !switches["plug-1"].on || !switches["plug-2"].on {
		t.Error("tuya switches not turned on")
	}

	evt.Device = 22
	if !listeners[4].Handler(context.Background(), evt) {
		t.Error("mqtt handler returned false")
	}
	if len(pub.topics) != 1 || pub.topics[0] != "lutronbond/command/office" {
		t.Errorf("mqtt topics = %v", pub.topics)
	}

	summary := Summary(listeners)
	if summary[IntegrationBond] != 2 || summary[IntegrationTuya] != 2 || summary[IntegrationLutron] != 1 || summary[IntegrationMQTT] != 1 {
		t.Errorf("Summary() = %v", summary)
	}
}

func TestBuildListeners_Errors(t *testing.T) {
	tuyaErr := errors.New("bad key")

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		in      Integrations
		wantErr error
	}{
		{
			name:   "missing bond client",
			mutate: func(*config.Config) {},
			in:     Integrations{Lutron: &fakeSender{}, MQTT: &fakePublisher{}},
		},
		{
			name: "unknown bridge index",
			mutate: func(c *config.Config) {
				c.Lutron.Bridges = c.Lutron.Bridges[:1]
			},
			in:      Integrations{Lutron: &fakeSender{}, Bond: &fakeRunner{}},
			wantErr: lutron.ErrUnknownBridge,
		},
		{
			name:   "tuya factory fails",
			mutate: func(*config.Config) {},
			in: Integrations{
				Lutron: &fakeSender{},
				Bond:   &fakeRunner{},
				Tuya:   func(config.TuyaTarget) (tuya.Switch, error) { return nil, tuyaErr },
			},
			wantErr: tuyaErr,
		},
		{
			name:   "missing mqtt client",
			mutate: func(*config.Config) {},
			in: Integrations{
				Lutron: &fakeSender{},
				Bond:   &fakeRunner{},
				Tuya:   func(t config.TuyaTarget) (tuya.Switch, error) { return &fakeSwitch{id: t.DeviceID}, nil },
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			_, err := BuildListeners(cfg, tt.in)
			if err == nil {
				t.Fatal("BuildListeners() succeeded, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewTuyaFactory(t *testing.T) {
	cfg := &config.Config{Tuya: config.TuyaConfig{DefaultVersion: "3.3"}}
	factory := NewTuyaFactory(cfg)

	sw, err := factory(config.TuyaTarget{DeviceID: "plug-1", Address: "10.0.0.50", LocalKey: "0123456789abcdef"})
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}
	if sw.ID() != "plug-1" {
		t.Errorf("ID() = %q, want plug-1", sw.ID())
	}

	if _, err := factory(config.TuyaTarget{DeviceID: "plug-2", Address: "10.0.0.51", LocalKey: "short"}); !errors.Is(err, tuya.ErrInvalidKey) {
		t.Errorf("short key error = %v, want ErrInvalidKey", err)
	}

	if _, err := factory(config.TuyaTarget{DeviceID: "plug-3", Address: "10.0.0.52", LocalKey: "0123456789abcdef", Version: "3.4"}); !errors.Is(err, tuya.ErrUnsupportedVersion) {
		t.Errorf("version 3.4 error = %v, want ErrUnsupportedVersion", err)
	}
}
