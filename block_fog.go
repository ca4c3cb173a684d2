package nodemat

import (
	"github.com/soypat/nodemat/glbuild"
	"github.com/soypat/nodemat/glbuild/glsllib"
)

// FogDefine is enabled when the scene has fog.
const FogDefine = "FOG"

// FogBlock blends its input color towards the fog color by view distance. The view
// space position is computed in the vertex stage and reaches the fragment stage as a
// varying. Fog code is compiled only when [FogDefine] is set.
type FogBlock struct {
	BlockBase
	worldPosition, view *ConnectionPoint
	input, fogColor     *ConnectionPoint
	output              *ConnectionPoint

	fogDistance string
	fogParams   string
}

func NewFogBlock(name string) *FogBlock {
	fb := &FogBlock{}
	fb.Init(fb, name, TargetVertexAndFragment)
	fb.worldPosition = fb.RegisterInput("worldPosition", TypeVector4, false)
	fb.worldPosition.target = TargetVertex
	fb.view = fb.RegisterInput("view", TypeMatrix, false)
	fb.view.target = TargetVertex
	fb.input = fb.RegisterInput("input", TypeColor3, false)
	fb.input.accepted = TypeColor4 | TypeVector4
	fb.input.target = TargetFragment
	fb.fogColor = fb.RegisterInput("fogColor", TypeColor3, false)
	fb.fogColor.target = TargetFragment
	fb.output = fb.RegisterOutput("output", TypeColor3)
	fb.output.target = TargetFragment
	return fb
}

// ClassName implements [Block].
func (fb *FogBlock) ClassName() string { return "FogBlock" }

func (fb *FogBlock) WorldPosition() *ConnectionPoint { return fb.worldPosition }
func (fb *FogBlock) View() *ConnectionPoint          { return fb.view }
func (fb *FogBlock) Input() *ConnectionPoint         { return fb.input }
func (fb *FogBlock) FogColor() *ConnectionPoint      { return fb.fogColor }
func (fb *FogBlock) Output() *ConnectionPoint        { return fb.output }

// Build implements [Block].
func (fb *FogBlock) Build(state *BuildState) error {
	if !state.IsFragment() {
		fb.fogDistance = state.FreeVariableName("vFogDistance")
		state.UseDefine(FogDefine)
		state.EmitVarying(fb.fogDistance, TypeVector3, FogDefine)
		state.body = glbuild.AppendIfdef(state.body, FogDefine, false)
		state.Codef("%s = (%s * %s).xyz;\n", fb.fogDistance, state.Expr(fb.view), state.Expr(fb.worldPosition))
		state.body = glbuild.AppendEndif(state.body)
		return nil
	}

	fb.fogParams = state.FreeVariableName("fogParameters")
	state.EmitUniform(fb.fogParams, TypeVector4, FogDefine)
	state.EmitFunction(glsllib.FogFactor())
	state.RegisterBindable(fb)
	state.RegisterDefines(fb)

	color := state.Expr(fb.input)
	if t := fb.input.SourceType(); t != TypeColor3 && t != TypeVector3 {
		color += ".rgb"
	}
	factor := state.FreeVariableName("fogFactor")
	state.body = glbuild.AppendIfdef(state.body, FogDefine, false)
	state.Codef("float %s = nmCalcFogFactor(length(%s), %s);\n", factor, fb.fogDistance, fb.fogParams)
	state.Declaref(fb.output, "mix(%s, %s, %s)", state.Expr(fb.fogColor), color, factor)
	state.Code("#else\n")
	state.Declare(fb.output, color)
	state.body = glbuild.AppendEndif(state.body)
	return nil
}

// BindFunc implements [Binder].
func (fb *FogBlock) BindFunc() BindFunc {
	name := fb.fogParams
	return func(dst UniformSetter, scene Scene) error {
		if !scene.FogEnabled() {
			return nil
		}
		params, ok := scene.SystemValue(SystemFogParameters)
		if !ok {
			return nil
		}
		return SetValue(dst, name, params)
	}
}

// DefinesFunc implements [DefinePreparer].
func (fb *FogBlock) DefinesFunc() DefinesFunc {
	return func(scene Scene, defines Defines) {
		defines[FogDefine] = scene.FogEnabled()
	}
}
