package nodemat

import (
	"encoding/json"
	"fmt"

	"github.com/soypat/nodemat/glbuild"
)

// TransformBlock multiplies a vector by a matrix. Vectors with fewer than four
// components are completed with ComplementZ and ComplementW, so a position uses
// w=1 and a direction w=0.
type TransformBlock struct {
	BlockBase
	vector, transform *ConnectionPoint
	output, xyz       *ConnectionPoint
	ComplementZ       float32
	ComplementW       float32
}

// NewTransformBlock returns a transform block with ComplementW set to 1.
func NewTransformBlock(name string) *TransformBlock {
	tb := &TransformBlock{ComplementW: 1}
	tb.Init(tb, name, TargetNeutral)
	tb.vector = tb.RegisterInput("vector", TypeAutoDetect, false)
	tb.vector.accepted = TypeVector2 | TypeVector3 | TypeVector4 | TypeColor3 | TypeColor4
	tb.vector.excluded = TypeFloat | TypeInt | TypeMatrix | TypeObject
	tb.transform = tb.RegisterInput("transform", TypeMatrix, false)
	tb.output = tb.RegisterOutput("output", TypeVector4)
	tb.xyz = tb.RegisterOutput("xyz", TypeVector3)
	return tb
}

// ClassName implements [Block].
func (tb *TransformBlock) ClassName() string { return "TransformBlock" }

func (tb *TransformBlock) Vector() *ConnectionPoint    { return tb.vector }
func (tb *TransformBlock) Transform() *ConnectionPoint { return tb.transform }
func (tb *TransformBlock) Output() *ConnectionPoint    { return tb.output }
func (tb *TransformBlock) XYZ() *ConnectionPoint       { return tb.xyz }

// Build implements [Block].
func (tb *TransformBlock) Build(state *BuildState) error {
	vec := state.Expr(tb.vector)
	var complete []byte
	switch t := tb.vector.Type(); t {
	case TypeVector2:
		complete = fmt.Appendf(complete, "vec4(%s, ", vec)
		complete = glbuild.AppendFloats(complete, ',', '-', '.', tb.ComplementZ, tb.ComplementW)
		complete = append(complete, ')')
	case TypeVector3, TypeColor3:
		complete = fmt.Appendf(complete, "vec4(%s, ", vec)
		complete = glbuild.AppendFloat(complete, '-', '.', tb.ComplementW)
		complete = append(complete, ')')
	case TypeVector4, TypeColor4:
		complete = append(complete, vec...)
	default:
		return fmt.Errorf("cannot transform value of type %s", t)
	}
	state.Declaref(tb.output, "%s * %s", state.Expr(tb.transform), complete)
	if tb.xyz.HasEndpoints() {
		state.Declaref(tb.xyz, "%s.xyz", tb.output.VariableName())
	}
	return nil
}

type transformProperties struct {
	ComplementZ float32 `json:"complementZ"`
	ComplementW float32 `json:"complementW"`
}

// MarshalProperties implements [PropertyHolder].
func (tb *TransformBlock) MarshalProperties() (json.RawMessage, error) {
	return json.Marshal(transformProperties{ComplementZ: tb.ComplementZ, ComplementW: tb.ComplementW})
}

// UnmarshalProperties implements [PropertyHolder].
func (tb *TransformBlock) UnmarshalProperties(data json.RawMessage) error {
	var props transformProperties
	err := json.Unmarshal(data, &props)
	if err != nil {
		return err
	}
	tb.ComplementZ = props.ComplementZ
	tb.ComplementW = props.ComplementW
	return nil
}
