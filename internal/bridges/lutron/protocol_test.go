package lutron

import "testing"

func TestComponentCodes(t *testing.T) {
	tests := []struct {
		code int
		want Component
		name string
	}{
		{1, ComponentAny, "ANY"},
		{2, ComponentBtn1, "BTN_1"},
		{3, ComponentBtn2, "BTN_2"},
		{4, ComponentBtn3, "BTN_3"},
		{5, ComponentBtnRaise, "BTN_RAISE"},
		{6, ComponentBtnLower, "BTN_LOWER"},
		{8, ComponentBtnScene1, "BTN_SCENE_1"},
		{9, ComponentBtnScene2, "BTN_SCENE_2"},
		{10, ComponentBtnScene3, "BTN_SCENE_3"},
		{11, ComponentBtnScene4, "BTN_SCENE_4"},
		{7, ComponentUnknown, "UNKNOWN"},
		{99, ComponentUnknown, "UNKNOWN"},
	}

	for _, tt := range tests {
		got := ComponentFromCode(tt.code)
		if got != tt.want {
			t.Errorf("ComponentFromCode(%d) = %v, want %v", tt.code, got, tt.want)
		}
		if got.Name() != tt.name {
			t.Errorf("ComponentFromCode(%d).Name() = %q, want %q", tt.code, got.Name(), tt.name)
		}
	}
}

func TestByNameExcludesUnknown(t *testing.T) {
	if _, ok := ComponentByName("UNKNOWN"); ok {
		t.Error("ComponentByName(UNKNOWN) should not resolve")
	}
	if _, ok := DeviceActionByName("UNKNOWN"); ok {
		t.Error("DeviceActionByName(UNKNOWN) should not resolve")
	}
	if _, ok := OutputActionByName("UNKNOWN"); ok {
		t.Error("OutputActionByName(UNKNOWN) should not resolve")
	}
	if c, ok := ComponentByName("BTN_SCENE_4"); !ok || c != ComponentBtnScene4 {
		t.Errorf("ComponentByName(BTN_SCENE_4) = %v, %v", c, ok)
	}
	if a, ok := DeviceActionByName("DBLTAP"); !ok || a != DeviceDblTap {
		t.Errorf("DeviceActionByName(DBLTAP) = %v, %v", a, ok)
	}
	if a, ok := OutputActionByName("STOP_RAISING_OR_LOWERING"); !ok || a != OutputStopRaisingOrLowering {
		t.Errorf("OutputActionByName(STOP_RAISING_OR_LOWERING) = %v, %v", a, ok)
	}
}

func TestActionUnion(t *testing.T) {
	press := DevicePress.Action()
	if press.Kind() != ActionKindDevice || press.Code() != 3 || press.Name() != "PRESS" {
		t.Errorf("DevicePress.Action() = %v (kind %d, code %d)", press, press.Kind(), press.Code())
	}
	if _, ok := press.Output(); ok {
		t.Error("device action must not report as output action")
	}

	level := OutputSetLevel.Action()
	if level.Kind() != ActionKindOutput || level.Code() != 1 || level.String() != "OutputAction.SET_LEVEL" {
		t.Errorf("OutputSetLevel.Action() = %v", level)
	}
	if a, ok := level.Output(); !ok || a != OutputSetLevel {
		t.Errorf("Output() = %v, %v", a, ok)
	}

	// Same code, different kinds.
	if DeviceEnable.Action() == OutputSetLevel.Action() {
		t.Error("actions of different kinds with equal codes must differ")
	}

	var zero Action
	if zero.Kind() != ActionKindNone || zero.Name() != "UNKNOWN" {
		t.Errorf("zero Action = %v", zero)
	}
}

func TestParseOperation(t *testing.T) {
	tests := map[string]Operation{
		"DEVICE": OperationDevice,
		"OUTPUT": OperationOutput,
		"WHOA":   OperationUnknown,
		"":       OperationUnknown,
	}
	for in, want := range tests {
		if got := ParseOperation(in); got != want {
			t.Errorf("ParseOperation(%q) = %v, want %v", in, got, want)
		}
	}
}
