package nodemat

import (
	"fmt"
	"strings"
)

// PointType is the semantic type carried by a [ConnectionPoint]. Values are bit flags
// so sets of accepted or excluded types can be expressed as masks.
type PointType uint16

const (
	TypeFloat PointType = 1 << iota
	TypeInt
	TypeVector2
	TypeVector3
	TypeVector4
	TypeColor3
	TypeColor4
	TypeMatrix
	// TypeObject is an opaque value with no GLSL representation such as a texture.
	TypeObject
	_
	// TypeAutoDetect points take the type of whatever they are connected to.
	TypeAutoDetect
	// TypeBasedOnInput points take the type of one or more linked input points.
	TypeBasedOnInput

	TypeAll PointType = 1<<12 - 1
)

var typeNames = [...]struct {
	t    PointType
	name string
}{
	{TypeFloat, "Float"},
	{TypeInt, "Int"},
	{TypeVector2, "Vector2"},
	{TypeVector3, "Vector3"},
	{TypeVector4, "Vector4"},
	{TypeColor3, "Color3"},
	{TypeColor4, "Color4"},
	{TypeMatrix, "Matrix"},
	{TypeObject, "Object"},
	{TypeAutoDetect, "AutoDetect"},
	{TypeBasedOnInput, "BasedOnInput"},
}

func (t PointType) String() string {
	for _, tn := range typeNames {
		if tn.t == t {
			return tn.name
		}
	}
	if t == 0 {
		return "None"
	}
	// Mask.
	var sb strings.Builder
	for _, tn := range typeNames {
		if t&tn.t != 0 {
			if sb.Len() > 0 {
				sb.WriteByte('|')
			}
			sb.WriteString(tn.name)
		}
	}
	return sb.String()
}

// MarshalText implements [encoding.TextMarshaler].
func (t PointType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (t *PointType) UnmarshalText(text []byte) error {
	for _, tn := range typeNames {
		if tn.name == string(text) {
			*t = tn.t
			return nil
		}
	}
	return fmt.Errorf("unknown point type %q", text)
}

// GLSLType returns the GLSL type name used to declare values of type t.
// Unresolved types fall back to float.
func (t PointType) GLSLType() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeVector2:
		return "vec2"
	case TypeVector3, TypeColor3:
		return "vec3"
	case TypeVector4, TypeColor4:
		return "vec4"
	case TypeMatrix:
		return "mat4"
	}
	return "float"
}

// Components returns the number of scalar components of t.
func (t PointType) Components() int {
	switch t {
	case TypeFloat, TypeInt:
		return 1
	case TypeVector2:
		return 2
	case TypeVector3, TypeColor3:
		return 3
	case TypeVector4, TypeColor4:
		return 4
	case TypeMatrix:
		return 16
	}
	return 0
}

// isScalar reports whether t is float or int.
func (t PointType) isScalar() bool { return t == TypeFloat || t == TypeInt }

// equivalentTypes reports whether a and b share a GLSL representation.
func equivalentTypes(a, b PointType) bool {
	switch {
	case a == b:
		return true
	case a == TypeVector3 && b == TypeColor3, a == TypeColor3 && b == TypeVector3:
		return true
	case a == TypeVector4 && b == TypeColor4, a == TypeColor4 && b == TypeVector4:
		return true
	}
	return false
}

// Direction of a connection point.
type Direction uint8

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// Target is the set of shader stages a block or point emits code into.
type Target uint8

const (
	TargetVertex Target = 1 << iota
	TargetFragment
	// TargetNeutral blocks adopt the stage they are reached from.
	TargetNeutral

	TargetVertexAndFragment = TargetVertex | TargetFragment
)

func (t Target) String() string {
	switch t {
	case TargetVertex:
		return "Vertex"
	case TargetFragment:
		return "Fragment"
	case TargetNeutral:
		return "Neutral"
	case TargetVertexAndFragment:
		return "VertexAndFragment"
	}
	return fmt.Sprintf("Target(%d)", uint8(t))
}

// MarshalText implements [encoding.TextMarshaler].
func (t Target) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements [encoding.TextUnmarshaler].
func (t *Target) UnmarshalText(text []byte) error {
	for _, candidate := range []Target{TargetVertex, TargetFragment, TargetNeutral, TargetVertexAndFragment} {
		if candidate.String() == string(text) {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown block target %q", text)
}

// CompatibilityState is the result of checking whether two points may be connected.
type CompatibilityState uint8

const (
	Compatible CompatibilityState = iota
	TypeIncompatible
	TargetIncompatible
	HierarchyIssue
	DirectionIncompatible
)

func (cs CompatibilityState) String() string {
	switch cs {
	case Compatible:
		return "Compatible"
	case TypeIncompatible:
		return "TypeIncompatible"
	case TargetIncompatible:
		return "TargetIncompatible"
	case HierarchyIssue:
		return "HierarchyIssue"
	case DirectionIncompatible:
		return "DirectionIncompatible"
	}
	return fmt.Sprintf("CompatibilityState(%d)", uint8(cs))
}

// SystemValue identifies a value provided by the [Scene] at bind time.
type SystemValue uint8

const (
	SystemNone SystemValue = iota
	SystemWorld
	SystemView
	SystemProjection
	SystemViewProjection
	SystemWorldView
	SystemWorldViewProjection
	SystemCameraPosition
	SystemFogColor
	SystemFogParameters
	SystemTime
	SystemDeltaTime
	systemValueEnd
)

var systemValueNames = [systemValueEnd]string{
	SystemNone:                "None",
	SystemWorld:               "World",
	SystemView:                "View",
	SystemProjection:          "Projection",
	SystemViewProjection:      "ViewProjection",
	SystemWorldView:           "WorldView",
	SystemWorldViewProjection: "WorldViewProjection",
	SystemCameraPosition:      "CameraPosition",
	SystemFogColor:            "FogColor",
	SystemFogParameters:       "FogParameters",
	SystemTime:                "Time",
	SystemDeltaTime:           "DeltaTime",
}

func (sv SystemValue) String() string {
	if sv < systemValueEnd {
		return systemValueNames[sv]
	}
	return fmt.Sprintf("SystemValue(%d)", uint8(sv))
}

// Type returns the point type of the system value.
func (sv SystemValue) Type() PointType {
	switch sv {
	case SystemWorld, SystemView, SystemProjection, SystemViewProjection, SystemWorldView, SystemWorldViewProjection:
		return TypeMatrix
	case SystemCameraPosition:
		return TypeVector3
	case SystemFogColor:
		return TypeColor3
	case SystemFogParameters:
		return TypeVector4
	case SystemTime, SystemDeltaTime:
		return TypeFloat
	}
	return 0
}

// MarshalText implements [encoding.TextMarshaler].
func (sv SystemValue) MarshalText() ([]byte, error) { return []byte(sv.String()), nil }

// UnmarshalText implements [encoding.TextUnmarshaler].
func (sv *SystemValue) UnmarshalText(text []byte) error {
	for i, name := range systemValueNames {
		if name == string(text) {
			*sv = SystemValue(i)
			return nil
		}
	}
	return fmt.Errorf("unknown system value %q", text)
}
