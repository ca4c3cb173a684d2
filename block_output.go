package nodemat

import (
	"encoding/json"
	"errors"

	"github.com/soypat/nodemat/glbuild"
	"github.com/soypat/nodemat/glbuild/glsllib"
)

// VertexOutputBlock writes the clip space position of the vertex stage.
type VertexOutputBlock struct {
	BlockBase
	vector *ConnectionPoint
}

// NewVertexOutputBlock returns the final block of the vertex stage.
func NewVertexOutputBlock(name string) *VertexOutputBlock {
	vo := &VertexOutputBlock{}
	vo.Init(vo, name, TargetVertex)
	vo.finalMerger = true
	vo.unique = true
	vo.vector = vo.RegisterInput("vector", TypeVector4, false)
	return vo
}

// ClassName implements [Block].
func (vo *VertexOutputBlock) ClassName() string { return "VertexOutputBlock" }

// Vector returns the clip space position input.
func (vo *VertexOutputBlock) Vector() *ConnectionPoint { return vo.vector }

// Build implements [Block].
func (vo *VertexOutputBlock) Build(state *BuildState) error {
	state.Code(string(glbuild.AppendAssign(nil, "gl_Position", state.Expr(vo.vector))))
	return nil
}

// FragmentOutputName is the name of the color output of generated fragment stages.
const FragmentOutputName = "glFragColor"

// FragmentOutputBlock writes the color of the fragment stage.
type FragmentOutputBlock struct {
	BlockBase
	rgba, rgb, a *ConnectionPoint
	// ConvertToGammaSpace converts the linear output color to gamma space.
	ConvertToGammaSpace bool
	// ConvertToLinearSpace converts the gamma space output color to linear space.
	ConvertToLinearSpace bool

	gammaDefine, linearDefine string
}

// NewFragmentOutputBlock returns the final block of the fragment stage.
func NewFragmentOutputBlock(name string) *FragmentOutputBlock {
	fo := &FragmentOutputBlock{}
	fo.Init(fo, name, TargetFragment)
	fo.finalMerger = true
	fo.unique = true
	fo.rgba = fo.RegisterInput("rgba", TypeColor4, true)
	fo.rgb = fo.RegisterInput("rgb", TypeColor3, true)
	fo.a = fo.RegisterInput("a", TypeFloat, true)
	return fo
}

// ClassName implements [Block].
func (fo *FragmentOutputBlock) ClassName() string { return "FragmentOutputBlock" }

func (fo *FragmentOutputBlock) RGBA() *ConnectionPoint { return fo.rgba }
func (fo *FragmentOutputBlock) RGB() *ConnectionPoint  { return fo.rgb }
func (fo *FragmentOutputBlock) A() *ConnectionPoint    { return fo.a }

var errNoFragmentColor = errors.New("fragment output needs rgba or rgb connected")

// Build implements [Block].
func (fo *FragmentOutputBlock) Build(state *BuildState) error {
	state.EmitFragmentOutput(FragmentOutputName)
	switch {
	case fo.rgba.IsConnected():
		state.Code(string(glbuild.AppendAssign(nil, FragmentOutputName, state.Expr(fo.rgba))))
	case fo.rgb.IsConnected():
		alpha := "1."
		if fo.a.IsConnected() {
			alpha = state.Expr(fo.a)
		}
		state.Codef("%s = vec4(%s, %s);\n", FragmentOutputName, state.Expr(fo.rgb), alpha)
	default:
		return errNoFragmentColor
	}

	fo.gammaDefine = state.FreeDefineName("CONVERTTOGAMMA")
	fo.linearDefine = state.FreeDefineName("CONVERTTOLINEAR")
	state.RegisterDefines(fo)
	state.EmitFunction(glsllib.ToGammaSpace())
	state.EmitFunction(glsllib.ToLinearSpace())
	state.Codef("#ifdef %s\n%s.rgb = nmToGammaSpace(%s.rgb);\n#endif\n", fo.gammaDefine, FragmentOutputName, FragmentOutputName)
	state.Codef("#ifdef %s\n%s.rgb = nmToLinearSpace(%s.rgb);\n#endif\n", fo.linearDefine, FragmentOutputName, FragmentOutputName)
	return nil
}

// DefinesFunc implements [DefinePreparer].
func (fo *FragmentOutputBlock) DefinesFunc() DefinesFunc {
	gamma, linear := fo.gammaDefine, fo.linearDefine
	return func(scene Scene, defines Defines) {
		defines[gamma] = fo.ConvertToGammaSpace
		defines[linear] = fo.ConvertToLinearSpace
	}
}

type fragmentOutputProperties struct {
	ConvertToGammaSpace  bool `json:"convertToGammaSpace"`
	ConvertToLinearSpace bool `json:"convertToLinearSpace"`
}

// MarshalProperties implements [PropertyHolder].
func (fo *FragmentOutputBlock) MarshalProperties() (json.RawMessage, error) {
	return json.Marshal(fragmentOutputProperties{
		ConvertToGammaSpace:  fo.ConvertToGammaSpace,
		ConvertToLinearSpace: fo.ConvertToLinearSpace,
	})
}

// UnmarshalProperties implements [PropertyHolder].
func (fo *FragmentOutputBlock) UnmarshalProperties(data json.RawMessage) error {
	var props fragmentOutputProperties
	err := json.Unmarshal(data, &props)
	if err != nil {
		return err
	}
	fo.ConvertToGammaSpace = props.ConvertToGammaSpace
	fo.ConvertToLinearSpace = props.ConvertToLinearSpace
	return nil
}
