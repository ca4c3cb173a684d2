package nodemat

import (
	"encoding/json"
	"fmt"
)

// InputMode selects how an [InputBlock] provides its value.
type InputMode uint8

const (
	// InputUniform values are set by the application through Bind.
	InputUniform InputMode = iota
	// InputAttribute values are per vertex mesh data.
	InputAttribute
	// InputSystemValue values are provided by the [Scene].
	InputSystemValue
	// InputConstant values are compiled into the program.
	InputConstant
)

func (m InputMode) String() string {
	switch m {
	case InputUniform:
		return "uniform"
	case InputAttribute:
		return "attribute"
	case InputSystemValue:
		return "system"
	case InputConstant:
		return "constant"
	}
	return fmt.Sprintf("InputMode(%d)", uint8(m))
}

// AttributeType returns the type of the well known mesh attribute name and whether it is known.
func AttributeType(name string) (PointType, bool) {
	switch name {
	case "position", "normal":
		return TypeVector3, true
	case "tangent", "color", "matricesIndices", "matricesWeights":
		return TypeVector4, true
	case "uv", "uv2", "uv3", "uv4":
		return TypeVector2, true
	}
	return 0, false
}

// InputBlock feeds a value into the graph from outside of it.
type InputBlock struct {
	BlockBase
	mode      InputMode
	attribute string
	system    SystemValue
	value     Value
	valueFn   func() Value
	output    *ConnectionPoint
}

// NewInputBlock returns a uniform input of type typ. Its value is set with SetValue or SetValueFunc.
func NewInputBlock(name string, typ PointType) *InputBlock {
	ib := &InputBlock{}
	ib.Init(ib, name, TargetVertexAndFragment)
	ib.isInput = true
	ib.output = ib.RegisterOutput("output", typ)
	return ib
}

// NewAttributeBlock returns an input reading the mesh attribute name, such as "position" or "uv".
func NewAttributeBlock(attribute string) *InputBlock {
	typ, ok := AttributeType(attribute)
	if !ok {
		typ = TypeVector4
	}
	ib := NewInputBlock(attribute, typ)
	ib.SetAttribute(attribute, typ)
	return ib
}

// NewSystemValueBlock returns an input bound to a scene provided value.
func NewSystemValueBlock(sv SystemValue) *InputBlock {
	ib := NewInputBlock(sv.String(), sv.Type())
	ib.SetSystemValue(sv)
	return ib
}

// NewConstantBlock returns an input compiled into the program as a constant.
func NewConstantBlock(name string, v Value) *InputBlock {
	ib := NewInputBlock(name, v.typ)
	ib.SetValue(v)
	ib.mode = InputConstant
	return ib
}

// ClassName implements [Block].
func (ib *InputBlock) ClassName() string { return "InputBlock" }

// Output returns the single output of the block.
func (ib *InputBlock) Output() *ConnectionPoint { return ib.output }

func (ib *InputBlock) Mode() InputMode { return ib.mode }

// Type returns the declared output type.
func (ib *InputBlock) Type() PointType { return ib.output.typ }

// Attribute returns the attribute name of an attribute input.
func (ib *InputBlock) Attribute() string { return ib.attribute }

// SystemValue returns the system value of a system value input.
func (ib *InputBlock) SystemValue() SystemValue { return ib.system }

// SetAttribute makes the block read a mesh attribute. Attributes are only available to
// the vertex stage and are carried to the fragment stage with varyings.
func (ib *InputBlock) SetAttribute(name string, typ PointType) {
	ib.mode = InputAttribute
	ib.attribute = name
	ib.output.typ = typ
	ib.target = TargetVertex
}

// SetSystemValue makes the block read sv from the scene.
func (ib *InputBlock) SetSystemValue(sv SystemValue) {
	ib.mode = InputSystemValue
	ib.system = sv
	ib.output.typ = sv.Type()
	ib.target = TargetVertexAndFragment
}

// SetConstant toggles between a constant and a uniform for blocks holding a value.
func (ib *InputBlock) SetConstant(constant bool) {
	if constant {
		ib.mode = InputConstant
	} else if ib.mode == InputConstant {
		ib.mode = InputUniform
	}
	ib.target = TargetVertexAndFragment
}

// Value returns the value set with SetValue.
func (ib *InputBlock) Value() Value { return ib.value }

// SetValue sets the uniform or constant value. An AutoDetect block adopts the value type.
func (ib *InputBlock) SetValue(v Value) {
	ib.value = v
	if ib.output.typ == TypeAutoDetect || ib.output.typ == 0 {
		ib.output.typ = v.typ
	}
	if ib.mode == InputAttribute || ib.mode == InputSystemValue {
		ib.mode = InputUniform
		ib.target = TargetVertexAndFragment
	}
}

// SetValueFunc sets a callback evaluated on every Bind. It takes precedence over SetValue.
func (ib *InputBlock) SetValueFunc(fn func() Value) {
	ib.valueFn = fn
}

func (ib *InputBlock) currentValue() Value {
	if ib.valueFn != nil {
		return ib.valueFn()
	}
	return ib.value
}

// Build implements [Block].
func (ib *InputBlock) Build(state *BuildState) error {
	out := ib.output
	switch ib.mode {
	case InputAttribute:
		out.varName = ib.attribute
		state.EmitAttribute(ib.attribute, out.typ)
		return nil
	case InputConstant:
		if err := ib.value.Validate(); err != nil {
			return fmt.Errorf("constant %s: %w", ib.name, err)
		}
		if out.varName == "" {
			out.varName = state.FreeVariableName(ib.name)
		}
		state.EmitConstant(out.varName, ib.value)
		return nil
	case InputSystemValue:
		if ib.system == SystemNone || ib.system >= systemValueEnd {
			return fmt.Errorf("invalid system value %d", ib.system)
		}
	case InputUniform:
		if !ib.value.IsSet() && ib.valueFn == nil {
			state.Warn(ib, "uniform has no value and will not be bound")
		}
	}
	if out.varName == "" {
		out.varName = state.FreeVariableName("u_" + ib.name)
	}
	state.EmitUniform(out.varName, out.typ, "")
	state.registerInputBlock(ib)
	return nil
}

type inputProperties struct {
	Mode        InputMode   `json:"mode"`
	Type        PointType   `json:"type"`
	Attribute   string      `json:"attribute,omitempty"`
	SystemValue SystemValue `json:"systemValue,omitempty"`
	Value       *Value      `json:"value,omitempty"`
}

// MarshalProperties implements [PropertyHolder].
func (ib *InputBlock) MarshalProperties() (json.RawMessage, error) {
	props := inputProperties{
		Mode:      ib.mode,
		Type:      ib.output.typ,
		Attribute: ib.attribute,
	}
	if ib.mode == InputSystemValue {
		props.SystemValue = ib.system
	}
	if ib.value.IsSet() {
		v := ib.value
		props.Value = &v
	}
	return json.Marshal(props)
}

// UnmarshalProperties implements [PropertyHolder].
func (ib *InputBlock) UnmarshalProperties(data json.RawMessage) error {
	var props inputProperties
	err := json.Unmarshal(data, &props)
	if err != nil {
		return err
	}
	ib.output.typ = props.Type
	if props.Value != nil {
		ib.SetValue(*props.Value)
	}
	switch props.Mode {
	case InputAttribute:
		ib.SetAttribute(props.Attribute, props.Type)
	case InputSystemValue:
		ib.SetSystemValue(props.SystemValue)
	case InputConstant:
		ib.SetConstant(true)
	case InputUniform:
		ib.SetConstant(false)
	default:
		return fmt.Errorf("unknown input mode %d", props.Mode)
	}
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (m InputMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements [encoding.TextUnmarshaler].
func (m *InputMode) UnmarshalText(text []byte) error {
	for _, candidate := range []InputMode{InputUniform, InputAttribute, InputSystemValue, InputConstant} {
		if candidate.String() == string(text) {
			*m = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown input mode %q", text)
}
