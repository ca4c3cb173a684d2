package nodemat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	math "github.com/chewxy/math32"
	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/nodemat/glbuild"
)

// Vec4 is a four component vector, used for Vector4 and Color4 values.
type Vec4 struct {
	X, Y, Z, W float32
}

// Array returns the vector components as an array.
func (v Vec4) Array() [4]float32 { return [4]float32{v.X, v.Y, v.Z, v.W} }

// Value is a literal of a concrete [PointType]. The zero Value is unset.
type Value struct {
	typ PointType
	c   [16]float32
}

// FloatValue returns a Float value.
func FloatValue(v float32) Value {
	return Value{typ: TypeFloat, c: [16]float32{v}}
}

// IntValue returns an Int value. Ints are carried exactly up to 2**24.
func IntValue(v int) Value {
	return Value{typ: TypeInt, c: [16]float32{float32(v)}}
}

// Vector2Value returns a Vector2 value.
func Vector2Value(v ms2.Vec) Value {
	return Value{typ: TypeVector2, c: [16]float32{v.X, v.Y}}
}

// Vector3Value returns a Vector3 value.
func Vector3Value(v ms3.Vec) Value {
	return Value{typ: TypeVector3, c: [16]float32{v.X, v.Y, v.Z}}
}

// Vector4Value returns a Vector4 value.
func Vector4Value(v Vec4) Value {
	return Value{typ: TypeVector4, c: [16]float32{v.X, v.Y, v.Z, v.W}}
}

// Color3Value returns a Color3 value from red, green and blue channels.
func Color3Value(r, g, b float32) Value {
	return Value{typ: TypeColor3, c: [16]float32{r, g, b}}
}

// Color4Value returns a Color4 value from red, green, blue and alpha channels.
func Color4Value(r, g, b, a float32) Value {
	return Value{typ: TypeColor4, c: [16]float32{r, g, b, a}}
}

// MatrixValue returns a Matrix value.
func MatrixValue(m ms3.Mat4) Value {
	return MatrixValueFromArray(m.Array())
}

// MatrixValueFromArray returns a Matrix value from row-major components.
func MatrixValueFromArray(rowMajor [16]float32) Value {
	return Value{typ: TypeMatrix, c: rowMajor}
}

// Type returns the value's type, 0 if the value is unset.
func (v Value) Type() PointType { return v.typ }

// IsSet reports whether the value carries a literal.
func (v Value) IsSet() bool { return v.typ != 0 }

// Components returns the scalar components of the value. Matrices are row-major.
func (v Value) Components() []float32 {
	return v.c[:v.typ.Components()]
}

func (v Value) Float() float32 { return v.c[0] }
func (v Value) Int() int       { return int(v.c[0]) }
func (v Value) Vec2() ms2.Vec  { return ms2.Vec{X: v.c[0], Y: v.c[1]} }
func (v Value) Vec3() ms3.Vec  { return ms3.Vec{X: v.c[0], Y: v.c[1], Z: v.c[2]} }
func (v Value) Vec4() Vec4     { return Vec4{X: v.c[0], Y: v.c[1], Z: v.c[2], W: v.c[3]} }

// MatrixArray returns the row-major matrix components.
func (v Value) MatrixArray() [16]float32 { return v.c }

// Validate returns an error if the value is unset or holds a NaN or infinite component.
func (v Value) Validate() error {
	n := v.typ.Components()
	if n == 0 {
		return fmt.Errorf("value of type %s has no literal representation", v.typ)
	}
	for i, c := range v.c[:n] {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("value component %d is not finite: %v", i, c)
		}
	}
	return nil
}

// AppendGLSL appends the GLSL literal expression of v to b.
func (v Value) AppendGLSL(b []byte) []byte {
	switch v.typ {
	case TypeFloat:
		return glbuild.AppendFloat(b, '-', '.', v.c[0])
	case TypeInt:
		return strconv.AppendInt(b, int64(v.Int()), 10)
	case TypeVector2:
		return glbuild.AppendVec2(b, v.Vec2())
	case TypeVector3, TypeColor3:
		return glbuild.AppendVec3(b, v.Vec3())
	case TypeVector4, TypeColor4:
		return glbuild.AppendVec4(b, v.c[0], v.c[1], v.c[2], v.c[3])
	case TypeMatrix:
		return glbuild.AppendMat4(b, v.c)
	}
	return appendZeroLiteral(b, v.typ)
}

// appendZeroLiteral appends the zero literal of a GLSL type.
func appendZeroLiteral(b []byte, t PointType) []byte {
	switch t {
	case TypeInt:
		return append(b, '0')
	case TypeVector2, TypeVector3, TypeColor3, TypeVector4, TypeColor4, TypeMatrix:
		b = append(b, t.GLSLType()...)
		return append(b, "(0.)"...)
	}
	return append(b, "0."...)
}

func (v Value) String() string {
	if !v.IsSet() {
		return "<unset>"
	}
	return string(v.AppendGLSL(nil))
}

type jsonValue struct {
	Type  PointType `json:"type"`
	Value []float32 `json:"value"`
}

// MarshalJSON encodes the value as its type name and components.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.IsSet() {
		return []byte("null"), nil
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(jsonValue{Type: v.typ, Value: v.Components()})
}

// UnmarshalJSON decodes a value encoded by [Value.MarshalJSON].
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var jv jsonValue
	err := json.Unmarshal(data, &jv)
	if err != nil {
		return err
	}
	n := jv.Type.Components()
	if n == 0 {
		return fmt.Errorf("cannot decode literal of type %s", jv.Type)
	} else if len(jv.Value) != n {
		return fmt.Errorf("%s literal wants %d components, got %d", jv.Type, n, len(jv.Value))
	}
	var nv Value
	nv.typ = jv.Type
	copy(nv.c[:], jv.Value)
	if err := nv.Validate(); err != nil {
		return errors.Join(errors.New("decoding literal"), err)
	}
	*v = nv
	return nil
}
