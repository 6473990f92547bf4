package lutron

import (
	"errors"
	"strings"
	"testing"
)

func deviceEvent(comp Component, action DeviceAction) Event {
	return Event{Operation: OperationDevice, Device: 8, Component: comp, Action: action.Action(), Bridge: testBridge}
}

func outputEvent(action OutputAction, params string) Event {
	return Event{Operation: OperationOutput, Device: 16, Component: ComponentAny, Action: action.Action(), Parameters: params, Bridge: testBridge}
}

func TestBuildCommand(t *testing.T) {
	const bridge2 = "10.0.0.2"

	tests := []struct {
		name   string
		table  string
		bridge string
		evt    Event
		want   Command
	}{
		{
			name:   "device event to output command",
			table:  `BTN_1: {PRESS: {SET_LEVEL: "100,0.01"}}`,
			bridge: testBridge,
			evt:    deviceEvent(ComponentBtn1, DevicePress),
			want:   Command{Operation: OperationOutput, Device: 5, Component: ComponentAny, Action: OutputSetLevel.Action(), Parameters: "100,0.01", Bridge: testBridge},
		},
		{
			name:   "device event to device command",
			table:  `BTN_1: {PRESS: {BTN_3: PRESS}}`,
			bridge: testBridge,
			evt:    deviceEvent(ComponentBtn1, DevicePress),
			want:   Command{Operation: OperationDevice, Device: 5, Component: ComponentBtn3, Action: DevicePress.Action(), Bridge: testBridge},
		},
		{
			name:   "component and device action on the same button",
			table:  `BTN_1: {PRESS: {BTN_1: PRESS}}`,
			bridge: testBridge,
			evt:    deviceEvent(ComponentBtn1, DevicePress),
			want:   Command{Operation: OperationDevice, Device: 5, Component: ComponentBtn1, Action: DevicePress.Action(), Bridge: testBridge},
		},
		{
			name:   "numeric argument becomes parameters",
			table:  `BTN_LOWER: {PRESS: {SET_LEVEL: 0}}`,
			bridge: bridge2,
			evt:    deviceEvent(ComponentBtnLower, DevicePress),
			want:   Command{Operation: OperationOutput, Device: 5, Component: ComponentAny, Action: OutputSetLevel.Action(), Parameters: "0", Bridge: bridge2},
		},
		{
			name: "output event to output command",
			table: `
ANY:
  SET_LEVEL:
    "100": {SET_LEVEL: "100,0.50"}
    "0": {SET_LEVEL: "0,0.05"}`,
			bridge: testBridge,
			evt:    outputEvent(OutputSetLevel, "100"),
			want:   Command{Operation: OperationOutput, Device: 5, Component: ComponentAny, Action: OutputSetLevel.Action(), Parameters: "100,0.50", Bridge: testBridge},
		},
		{
			name: "output event to device command",
			table: `
ANY:
  SET_LEVEL:
    "100": {BTN_1: PRESS}`,
			bridge: testBridge,
			evt:    outputEvent(OutputSetLevel, "100"),
			want:   Command{Operation: OperationDevice, Device: 5, Component: ComponentBtn1, Action: DevicePress.Action(), Bridge: testBridge},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildCommand(mustTable(t, tt.table), 5, tt.bridge, tt.evt)
			if err != nil {
				t.Fatalf("BuildCommand() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildCommand() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuildCommandSignals(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		evt      Event
		wantErrs []error
		contains string
	}{
		{
			name:     "unknown component",
			table:    `BTN_2: {PRESS: {SET_LEVEL: 100}}`,
			evt:      deviceEvent(ComponentBtn1, DevicePress),
			wantErrs: []error{ErrNotConfigured, ErrUnknownComponent},
		},
		{
			name:     "unknown action",
			table:    `BTN_1: {RELEASE: {SET_LEVEL: 100}}`,
			evt:      deviceEvent(ComponentBtn1, DevicePress),
			wantErrs: []error{ErrNotConfigured, ErrUnknownAction},
		},
		{
			name:     "null entry",
			table:    `BTN_1: {PRESS: ~}`,
			evt:      deviceEvent(ComponentBtn1, DevicePress),
			wantErrs: []error{ErrNoAction},
		},
		{
			name:     "bare string is invalid for lutron",
			table:    `BTN_1: {PRESS: TurnOn}`,
			evt:      deviceEvent(ComponentBtn1, DevicePress),
			wantErrs: []error{ErrFatal, ErrInvalidActionSpec},
		},
		{
			name:     "multi-entry scalar mapping is invalid",
			table:    `BTN_1: {PRESS: {SET_LEVEL: 1, BTN_1: PRESS}}`,
			evt:      deviceEvent(ComponentBtn1, DevicePress),
			wantErrs: []error{ErrFatal, ErrInvalidActionSpec},
		},
		{
			name:     "unknown target without parameters",
			table:    `BTN_1: {PRESS: {HOKEY_POKEY: true}}`,
			evt:      deviceEvent(ComponentBtn1, DevicePress),
			wantErrs: []error{ErrFatal, ErrUnknownTarget},
			contains: "HOKEY_POKEY",
		},
		{
			name:     "component with non-action argument",
			table:    `BTN_1: {PRESS: {BTN_2: 3}}`,
			evt:      deviceEvent(ComponentBtn1, DevicePress),
			wantErrs: []error{ErrFatal, ErrUnknownTarget},
		},
		{
			name:     "unmapped parameter",
			table:    `ANY: {SET_LEVEL: {"100": {SET_LEVEL: "100,0.50"}}}`,
			evt:      outputEvent(OutputSetLevel, "50"),
			wantErrs: []error{ErrNotConfigured, ErrParameterNotMapped},
		},
		{
			name:     "unresolvable row",
			table:    `ANY: {SET_LEVEL: {"100": {FOO: BAR}}}`,
			evt:      outputEvent(OutputSetLevel, "100"),
			wantErrs: []error{ErrFatal, ErrUnresolvable},
		},
		{
			name:     "row that is itself a table",
			table:    `ANY: {SET_LEVEL: {"100": {SET_LEVEL: "100"}, "0": {"x": {}}}}`,
			evt:      outputEvent(OutputSetLevel, "0"),
			wantErrs: []error{ErrFatal, ErrUnresolvable},
		},
		{
			name:     "parameter table on event without parameters",
			table:    `BTN_1: {PRESS: {"100": {SET_LEVEL: "100"}}}`,
			evt:      deviceEvent(ComponentBtn1, DevicePress),
			wantErrs: []error{ErrFatal, ErrUnknownTarget},
			contains: "100",
		},
		{
			name:     "target matching the parameter with a scalar row",
			table:    `ANY: {SET_LEVEL: {"75": WHATEVER}}`,
			evt:      outputEvent(OutputSetLevel, "75"),
			wantErrs: []error{ErrFatal, ErrUnresolvable},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildCommand(mustTable(t, tt.table), 5, testBridge, tt.evt)
			if err == nil {
				t.Fatal("BuildCommand() error = nil")
			}
			for _, want := range tt.wantErrs {
				if !errors.Is(err, want) {
					t.Errorf("BuildCommand() error = %v, want %v", err, want)
				}
			}
			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not mention %q", err, tt.contains)
			}
		})
	}
}

func TestBridgesResolve(t *testing.T) {
	bridges := Bridges{"10.0.0.1", "10.0.0.2"}

	tests := []struct {
		index   int
		want    string
		wantErr bool
	}{
		{0, "10.0.0.1", false},
		{1, "10.0.0.1", false},
		{2, "10.0.0.2", false},
		{3, "", true},
		{-1, "", true},
	}

	for _, tt := range tests {
		got, err := bridges.Resolve(tt.index)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownBridge) {
				t.Errorf("Resolve(%d) error = %v, want ErrUnknownBridge", tt.index, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Resolve(%d) = %q, %v, want %q", tt.index, got, err, tt.want)
		}
	}

	if _, err := (Bridges{"10.0.0.1", ""}).Resolve(2); !errors.Is(err, ErrUnknownBridge) {
		t.Errorf("Resolve(2) with unset second bridge error = %v", err)
	}
}
