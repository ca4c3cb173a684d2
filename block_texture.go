package nodemat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soypat/nodemat/glbuild"
	"github.com/soypat/nodemat/glbuild/glsllib"
)

// textureSampling is the sampler state shared by blocks that read textures: the
// sampler uniform, its texture unit and gamma handling.
type textureSampling struct {
	texture Texture
	// gammaSpace is set for textures whose texels are stored gamma encoded.
	gammaSpace bool

	samplerName string
	gammaDefine string
	unit        int
}

// declare allocates the sampler uniform, the gamma define and a texture unit.
func (ts *textureSampling) declare(state *BuildState, base string) {
	ts.samplerName = state.FreeVariableName(base + "Sampler")
	ts.gammaDefine = state.FreeDefineName(strings.ToUpper(ts.samplerName) + "_GAMMA")
	ts.unit = state.NextTextureUnit()
	state.EmitSampler(ts.samplerName, "")
}

// appendSample appends the GLSL sampling expression at uv of type uvType.
func (ts *textureSampling) appendSample(b []byte, uv string, uvType PointType) []byte {
	b = fmt.Appendf(b, "texture(%s, %s", ts.samplerName, uv)
	if uvType != TypeVector2 {
		b = append(b, ".xy"...)
	}
	return append(b, ')')
}

// emitLinearize converts the color variable to linear space when the gamma define is set.
func (ts *textureSampling) emitLinearize(state *BuildState, color string) {
	state.EmitFunction(glsllib.ToLinearSpace())
	state.body = glbuild.AppendIfdef(state.body, ts.gammaDefine, false)
	state.Codef("%s.rgb = nmToLinearSpace(%s.rgb);\n", color, color)
	state.body = glbuild.AppendEndif(state.body)
}

// bindFunc binds the texture set at bind time to the sampler and unit of the
// build in progress.
func (ts *textureSampling) bindFunc() BindFunc {
	name, unit := ts.samplerName, ts.unit
	return func(dst UniformSetter, scene Scene) error {
		if ts.texture == nil {
			return nil
		}
		return dst.SetSampler(name, unit, ts.texture)
	}
}

// definesFunc enables the gamma define of the build in progress for gamma encoded textures.
func (ts *textureSampling) definesFunc() DefinesFunc {
	define := ts.gammaDefine
	return func(scene Scene, defines Defines) {
		defines[define] = ts.gammaSpace
	}
}

// TextureBlock samples a 2D texture at its uv input.
type TextureBlock struct {
	BlockBase
	sampling textureSampling

	uv                    *ConnectionPoint
	rgba, rgb, r, g, b, a *ConnectionPoint
}

func NewTextureBlock(name string) *TextureBlock {
	tb := &TextureBlock{}
	tb.Init(tb, name, TargetNeutral)
	tb.uv = tb.RegisterInput("uv", TypeVector2, false)
	tb.uv.accepted = TypeVector3 | TypeVector4
	tb.rgba = tb.RegisterOutput("rgba", TypeColor4)
	tb.rgb = tb.RegisterOutput("rgb", TypeColor3)
	tb.r = tb.RegisterOutput("r", TypeFloat)
	tb.g = tb.RegisterOutput("g", TypeFloat)
	tb.b = tb.RegisterOutput("b", TypeFloat)
	tb.a = tb.RegisterOutput("a", TypeFloat)
	return tb
}

// ClassName implements [Block].
func (tb *TextureBlock) ClassName() string { return "TextureBlock" }

func (tb *TextureBlock) UV() *ConnectionPoint   { return tb.uv }
func (tb *TextureBlock) RGBA() *ConnectionPoint { return tb.rgba }
func (tb *TextureBlock) RGB() *ConnectionPoint  { return tb.rgb }
func (tb *TextureBlock) R() *ConnectionPoint    { return tb.r }
func (tb *TextureBlock) G() *ConnectionPoint    { return tb.g }
func (tb *TextureBlock) B() *ConnectionPoint    { return tb.b }
func (tb *TextureBlock) A() *ConnectionPoint    { return tb.a }

// SetTexture sets the texture bound to the block's sampler.
func (tb *TextureBlock) SetTexture(tex Texture) { tb.sampling.texture = tex }

func (tb *TextureBlock) Texture() Texture { return tb.sampling.texture }

// SetGammaSpace marks the texture as gamma encoded, making sampled colors
// convert to linear space.
func (tb *TextureBlock) SetGammaSpace(gamma bool) { tb.sampling.gammaSpace = gamma }

func (tb *TextureBlock) GammaSpace() bool { return tb.sampling.gammaSpace }

// SamplerName returns the sampler uniform allocated by the last build.
func (tb *TextureBlock) SamplerName() string { return tb.sampling.samplerName }

// Build implements [Block].
func (tb *TextureBlock) Build(state *BuildState) error {
	tb.sampling.declare(state, tb.name)
	state.RegisterBindable(tb)
	state.RegisterDefines(tb)

	rgba := tb.rgba.VariableName()
	state.Declare(tb.rgba, string(tb.sampling.appendSample(nil, state.Expr(tb.uv), tb.uv.SourceType())))
	tb.sampling.emitLinearize(state, rgba)
	var expr []byte
	for _, ch := range []splitOut{
		{tb.rgb, glbuild.SwizzleN(3)},
		{tb.r, glbuild.NewSwizzle(true, false, false, false)},
		{tb.g, glbuild.NewSwizzle(false, true, false, false)},
		{tb.b, glbuild.NewSwizzle(false, false, true, false)},
		{tb.a, glbuild.NewSwizzle(false, false, false, true)},
	} {
		if !ch.out.HasEndpoints() {
			continue
		}
		expr = append(expr[:0], rgba...)
		expr = append(expr, '.')
		expr = ch.sw.AppendMapped_rgba(expr)
		state.Declare(ch.out, string(expr))
	}
	return nil
}

// BindFunc implements [Binder].
func (tb *TextureBlock) BindFunc() BindFunc { return tb.sampling.bindFunc() }

// DefinesFunc implements [DefinePreparer].
func (tb *TextureBlock) DefinesFunc() DefinesFunc { return tb.sampling.definesFunc() }

type textureProperties struct {
	GammaSpace bool `json:"gammaSpace"`
}

// MarshalProperties implements [PropertyHolder].
func (tb *TextureBlock) MarshalProperties() (json.RawMessage, error) {
	return json.Marshal(textureProperties{GammaSpace: tb.sampling.gammaSpace})
}

// UnmarshalProperties implements [PropertyHolder].
func (tb *TextureBlock) UnmarshalProperties(data json.RawMessage) error {
	var props textureProperties
	err := json.Unmarshal(data, &props)
	if err != nil {
		return err
	}
	tb.sampling.gammaSpace = props.GammaSpace
	return nil
}
