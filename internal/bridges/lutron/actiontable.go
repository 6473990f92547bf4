package lutron

import (
	"fmt"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SpecKind classifies the shape of one action table entry.
type SpecKind int

// Action spec shapes. The zero value is SpecNone, so a YAML null decodes to
// a configured no-op.
const (
	// SpecNone is a null entry: the event is deliberately ignored.
	SpecNone SpecKind = iota

	// SpecName is a bare string, e.g. "TurnLightOn".
	SpecName

	// SpecTarget is a single-entry mapping with a scalar value,
	// e.g. {SET_LEVEL: "100,0.01"} or {BTN_1: PRESS}.
	SpecTarget

	// SpecTable is a mapping whose values are themselves mappings, keyed by
	// event parameters, e.g. {"100": {SET_LEVEL: "100,0.50"}}.
	SpecTable

	// SpecInvalid is any other shape.
	SpecInvalid
)

// String returns the shape name.
func (k SpecKind) String() string {
	switch k {
	case SpecNone:
		return "none"
	case SpecName:
		return "name"
	case SpecTarget:
		return "target"
	case SpecTable:
		return "table"
	case SpecInvalid:
		return "invalid"
	default:
		return "SpecKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ActionSpec is the parsed intent of one action table entry.
//
// Entries are classified once, when the configuration is decoded, so
// handlers only switch on Kind.
type ActionSpec struct {
	kind SpecKind

	// name is the bare string for SpecName and the target for SpecTarget.
	name string

	// arg is the decoded scalar argument of a SpecTarget; argText is its
	// source text.
	arg     any
	argText string

	// SpecTable entries, in declaration order.
	keys  []string
	table map[string]ActionSpec

	// reason explains a SpecInvalid entry.
	reason string
}

// NoAction returns a null entry.
func NoAction() ActionSpec { return ActionSpec{} }

// NameSpec returns a bare-string entry.
func NameSpec(name string) ActionSpec {
	return ActionSpec{kind: SpecName, name: name}
}

// TargetSpec returns a single-entry {target: arg} entry. arg must be a
// scalar (string, number, bool) or nil.
func TargetSpec(target string, arg any) ActionSpec {
	text := ""
	if arg != nil {
		text = fmt.Sprint(arg)
	}
	return ActionSpec{kind: SpecTarget, name: target, arg: arg, argText: text}
}

// TableSpec returns a parameter-keyed entry. Keys are kept sorted.
func TableSpec(entries map[string]ActionSpec) ActionSpec {
	keys := make([]string, 0, len(entries))
	table := make(map[string]ActionSpec, len(entries))
	for k, v := range entries {
		keys = append(keys, k)
		table[k] = v
	}
	sort.Strings(keys)
	return ActionSpec{kind: SpecTable, keys: keys, table: table}
}

// InvalidSpec returns an entry that failed classification.
func InvalidSpec(reason string) ActionSpec {
	return ActionSpec{kind: SpecInvalid, reason: reason}
}

// Kind returns the entry's shape.
func (s ActionSpec) Kind() SpecKind { return s.kind }

// Name returns the bare string of a SpecName or the target of a SpecTarget.
func (s ActionSpec) Name() string { return s.name }

// Argument returns the decoded scalar argument of a SpecTarget.
func (s ActionSpec) Argument() any { return s.arg }

// ArgumentText returns the argument as written, or "" when absent.
func (s ActionSpec) ArgumentText() string { return s.argText }

// Keys returns the parameter keys of a SpecTable in declaration order.
func (s ActionSpec) Keys() []string { return append([]string(nil), s.keys...) }

// Reason explains why an entry is SpecInvalid.
func (s ActionSpec) Reason() string { return s.reason }

// Sub looks up the parameter-keyed entry for params.
//
// A SpecTarget is treated as a one-row table: its target is the key and its
// argument the value.
func (s ActionSpec) Sub(params string) (ActionSpec, bool) {
	switch s.kind {
	case SpecTable:
		sub, ok := s.table[params]
		return sub, ok
	case SpecTarget:
		if s.name != params {
			return ActionSpec{}, false
		}
		if s.arg == nil {
			return NoAction(), true
		}
		return NameSpec(s.argText), true
	default:
		return ActionSpec{}, false
	}
}

// label names the entry in error messages.
func (s ActionSpec) label() string {
	switch s.kind {
	case SpecName, SpecTarget:
		return s.name
	case SpecTable:
		if len(s.keys) > 0 {
			return s.keys[0]
		}
		return "{}"
	case SpecInvalid:
		return s.reason
	default:
		return "null"
	}
}

// String implements fmt.Stringer.
func (s ActionSpec) String() string {
	switch s.kind {
	case SpecNone:
		return "null"
	case SpecName:
		return strconv.Quote(s.name)
	case SpecTarget:
		return fmt.Sprintf("{%s: %s}", s.name, s.argText)
	case SpecTable:
		return fmt.Sprintf("table%v", s.keys)
	default:
		return "invalid(" + s.reason + ")"
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.
//
// Shape errors do not fail decoding; they yield a SpecInvalid entry so that
// only events reaching it are rejected.
func (s *ActionSpec) UnmarshalYAML(node *yaml.Node) error {
	*s = specFromNode(node)
	return nil
}

func specFromNode(node *yaml.Node) ActionSpec {
	switch node.Kind {
	case yaml.AliasNode:
		if node.Alias != nil {
			return specFromNode(node.Alias)
		}
		return InvalidSpec("dangling alias")
	case yaml.ScalarNode:
		if node.ShortTag() == "!!null" {
			return NoAction()
		}
		if node.ShortTag() != "!!str" {
			return InvalidSpec(fmt.Sprintf("line %d: expected action name or mapping, got %s", node.Line, node.Value))
		}
		return NameSpec(node.Value)
	case yaml.MappingNode:
		return specFromMapping(node)
	default:
		return InvalidSpec(fmt.Sprintf("line %d: unsupported action shape", node.Line))
	}
}

func specFromMapping(node *yaml.Node) ActionSpec {
	pairs := len(node.Content) / 2
	if pairs == 0 {
		return InvalidSpec(fmt.Sprintf("line %d: empty mapping", node.Line))
	}

	nested := 0
	for i := 1; i < len(node.Content); i += 2 {
		if resolveAlias(node.Content[i]).Kind == yaml.MappingNode {
			nested++
		}
	}

	switch {
	case nested == pairs:
		out := ActionSpec{kind: SpecTable, table: make(map[string]ActionSpec, pairs)}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if _, dup := out.table[key]; !dup {
				out.keys = append(out.keys, key)
			}
			out.table[key] = specFromNode(node.Content[i+1])
		}
		return out
	case nested == 0 && pairs == 1:
		key, value := node.Content[0], resolveAlias(node.Content[1])
		if value.Kind != yaml.ScalarNode {
			return InvalidSpec(fmt.Sprintf("line %d: argument of %s must be a scalar", value.Line, key.Value))
		}
		if value.ShortTag() == "!!null" {
			return ActionSpec{kind: SpecTarget, name: key.Value}
		}
		var arg any
		if err := value.Decode(&arg); err != nil {
			return InvalidSpec(fmt.Sprintf("line %d: %v", value.Line, err))
		}
		return ActionSpec{kind: SpecTarget, name: key.Value, arg: arg, argText: value.Value}
	default:
		return InvalidSpec(fmt.Sprintf("line %d: expected a single {target: argument} entry", node.Line))
	}
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

// ActionTable maps component name → action name → entry. It is read-only
// once loaded.
type ActionTable map[string]map[string]ActionSpec

// Lookup returns the entry for an event's component and action.
//
// Missing entries match ErrNotConfigured. A null entry returns ErrNoAction.
func (t ActionTable) Lookup(component Component, action Action) (ActionSpec, error) {
	actions, ok := t[component.Name()]
	if !ok {
		return ActionSpec{}, fmt.Errorf("%w: %w: %s", ErrNotConfigured, ErrUnknownComponent, component)
	}
	spec, ok := actions[action.Name()]
	if !ok {
		return ActionSpec{}, fmt.Errorf("%w: %w: %s", ErrNotConfigured, ErrUnknownAction, action)
	}
	if spec.Kind() == SpecNone {
		return spec, ErrNoAction
	}
	return spec, nil
}
