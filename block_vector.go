package nodemat

import (
	"errors"

	"github.com/soypat/nodemat/glbuild"
)

// VectorSplitterBlock splits a vector into its components and sub-vectors.
// One of the xyzw, xyz or xy inputs must be connected, the first connected wins.
type VectorSplitterBlock struct {
	BlockBase
	xyzwIn, xyzIn, xyIn *ConnectionPoint
	xyzOut, xyOut, zw   *ConnectionPoint
	x, y, z, w          *ConnectionPoint
}

func NewVectorSplitterBlock(name string) *VectorSplitterBlock {
	vs := &VectorSplitterBlock{}
	vs.Init(vs, name, TargetNeutral)
	vs.xyzwIn = vs.RegisterInput("xyzw", TypeVector4, true)
	vs.xyzwIn.accepted = TypeColor4
	vs.xyzIn = vs.RegisterInput("xyz", TypeVector3, true)
	vs.xyzIn.accepted = TypeColor3
	vs.xyIn = vs.RegisterInput("xy", TypeVector2, true)
	vs.xyzOut = vs.RegisterOutput("xyz", TypeVector3)
	vs.xyOut = vs.RegisterOutput("xy", TypeVector2)
	vs.zw = vs.RegisterOutput("zw", TypeVector2)
	vs.x = vs.RegisterOutput("x", TypeFloat)
	vs.y = vs.RegisterOutput("y", TypeFloat)
	vs.z = vs.RegisterOutput("z", TypeFloat)
	vs.w = vs.RegisterOutput("w", TypeFloat)
	return vs
}

// ClassName implements [Block].
func (vs *VectorSplitterBlock) ClassName() string { return "VectorSplitterBlock" }

func (vs *VectorSplitterBlock) XYZWIn() *ConnectionPoint { return vs.xyzwIn }
func (vs *VectorSplitterBlock) XYZIn() *ConnectionPoint  { return vs.xyzIn }
func (vs *VectorSplitterBlock) XYIn() *ConnectionPoint   { return vs.xyIn }
func (vs *VectorSplitterBlock) XYZ() *ConnectionPoint    { return vs.xyzOut }
func (vs *VectorSplitterBlock) XY() *ConnectionPoint     { return vs.xyOut }
func (vs *VectorSplitterBlock) ZW() *ConnectionPoint     { return vs.zw }
func (vs *VectorSplitterBlock) X() *ConnectionPoint      { return vs.x }
func (vs *VectorSplitterBlock) Y() *ConnectionPoint      { return vs.y }
func (vs *VectorSplitterBlock) Z() *ConnectionPoint      { return vs.z }
func (vs *VectorSplitterBlock) W() *ConnectionPoint      { return vs.w }

var errSplitterInput = errors.New("vector splitter needs one of xyzw, xyz or xy connected")

// Build implements [Block].
func (vs *VectorSplitterBlock) Build(state *BuildState) error {
	var src string
	var n int
	switch {
	case vs.xyzwIn.IsConnected():
		src, n = state.Expr(vs.xyzwIn), 4
	case vs.xyzIn.IsConnected():
		src, n = state.Expr(vs.xyzIn), 3
	case vs.xyIn.IsConnected():
		src, n = state.Expr(vs.xyIn), 2
	default:
		return errSplitterInput
	}
	emitSwizzled(state, src, n, []splitOut{
		{vs.xyzOut, glbuild.SwizzleN(3)},
		{vs.xyOut, glbuild.SwizzleN(2)},
		{vs.zw, glbuild.NewSwizzle(false, false, true, true)},
		{vs.x, glbuild.NewSwizzle(true, false, false, false)},
		{vs.y, glbuild.NewSwizzle(false, true, false, false)},
		{vs.z, glbuild.NewSwizzle(false, false, true, false)},
		{vs.w, glbuild.NewSwizzle(false, false, false, true)},
	})
	return nil
}

type splitOut struct {
	out *ConnectionPoint
	sw  glbuild.Swizzle
}

// emitSwizzled declares every used output as a swizzle of the n component src.
// Components missing from src read as zero.
func emitSwizzled(state *BuildState, src string, n int, outs []splitOut) {
	var expr []byte
	for _, o := range outs {
		if !o.out.HasEndpoints() {
			continue
		}
		expr = expr[:0]
		if o.sw&^glbuild.SwizzleN(n) != 0 {
			// Selection exceeds the source, pad with zeros.
			expr = append(expr, o.out.Type().GLSLType()...)
			expr = append(expr, '(')
			for i := 0; i < 4; i++ {
				bit := glbuild.Swizzle(1 << i)
				if o.sw&bit == 0 {
					continue
				}
				if len(expr) > 0 && expr[len(expr)-1] != '(' {
					expr = append(expr, ',')
				}
				if i < n {
					expr = append(expr, src...)
					expr = append(expr, '.')
					expr = bit.AppendMapped_xyzw(expr)
				} else {
					expr = append(expr, "0."...)
				}
			}
			expr = append(expr, ')')
		} else {
			expr = append(expr, src...)
			expr = append(expr, '.')
			expr = o.sw.AppendMapped_xyzw(expr)
		}
		state.Declare(o.out, string(expr))
	}
}

// VectorMergerBlock assembles vectors from float components.
// Unconnected components read their literal value, zero by default.
type VectorMergerBlock struct {
	BlockBase
	x, y, z, w    *ConnectionPoint
	xyzw, xyz, xy *ConnectionPoint
}

func NewVectorMergerBlock(name string) *VectorMergerBlock {
	vm := &VectorMergerBlock{}
	vm.Init(vm, name, TargetNeutral)
	vm.x = vm.RegisterInput("x", TypeFloat, true)
	vm.y = vm.RegisterInput("y", TypeFloat, true)
	vm.z = vm.RegisterInput("z", TypeFloat, true)
	vm.w = vm.RegisterInput("w", TypeFloat, true)
	vm.xyzw = vm.RegisterOutput("xyzw", TypeVector4)
	vm.xyz = vm.RegisterOutput("xyz", TypeVector3)
	vm.xy = vm.RegisterOutput("xy", TypeVector2)
	return vm
}

// ClassName implements [Block].
func (vm *VectorMergerBlock) ClassName() string { return "VectorMergerBlock" }

func (vm *VectorMergerBlock) X() *ConnectionPoint    { return vm.x }
func (vm *VectorMergerBlock) Y() *ConnectionPoint    { return vm.y }
func (vm *VectorMergerBlock) Z() *ConnectionPoint    { return vm.z }
func (vm *VectorMergerBlock) W() *ConnectionPoint    { return vm.w }
func (vm *VectorMergerBlock) XYZW() *ConnectionPoint { return vm.xyzw }
func (vm *VectorMergerBlock) XYZ() *ConnectionPoint  { return vm.xyz }
func (vm *VectorMergerBlock) XY() *ConnectionPoint   { return vm.xy }

// Build implements [Block].
func (vm *VectorMergerBlock) Build(state *BuildState) error {
	x, y, z, w := state.Expr(vm.x), state.Expr(vm.y), state.Expr(vm.z), state.Expr(vm.w)
	if vm.xyzw.HasEndpoints() {
		state.Declaref(vm.xyzw, "vec4(%s, %s, %s, %s)", x, y, z, w)
	}
	if vm.xyz.HasEndpoints() {
		state.Declaref(vm.xyz, "vec3(%s, %s, %s)", x, y, z)
	}
	if vm.xy.HasEndpoints() {
		state.Declaref(vm.xy, "vec2(%s, %s)", x, y)
	}
	return nil
}

// FragCoordBlock exposes the window coordinates of the current fragment.
type FragCoordBlock struct {
	BlockBase
	xy, xyz, xyzw *ConnectionPoint
	x, y, z, w    *ConnectionPoint
}

func NewFragCoordBlock(name string) *FragCoordBlock {
	fc := &FragCoordBlock{}
	fc.Init(fc, name, TargetFragment)
	fc.xy = fc.RegisterOutput("xy", TypeVector2)
	fc.xyz = fc.RegisterOutput("xyz", TypeVector3)
	fc.xyzw = fc.RegisterOutput("xyzw", TypeVector4)
	fc.x = fc.RegisterOutput("x", TypeFloat)
	fc.y = fc.RegisterOutput("y", TypeFloat)
	fc.z = fc.RegisterOutput("z", TypeFloat)
	fc.w = fc.RegisterOutput("w", TypeFloat)
	for _, out := range fc.outputs {
		out.target = TargetFragment
	}
	return fc
}

// ClassName implements [Block].
func (fc *FragCoordBlock) ClassName() string { return "FragCoordBlock" }

func (fc *FragCoordBlock) XY() *ConnectionPoint   { return fc.xy }
func (fc *FragCoordBlock) XYZ() *ConnectionPoint  { return fc.xyz }
func (fc *FragCoordBlock) XYZW() *ConnectionPoint { return fc.xyzw }
func (fc *FragCoordBlock) X() *ConnectionPoint    { return fc.x }
func (fc *FragCoordBlock) Y() *ConnectionPoint    { return fc.y }
func (fc *FragCoordBlock) Z() *ConnectionPoint    { return fc.z }
func (fc *FragCoordBlock) W() *ConnectionPoint    { return fc.w }

// Build implements [Block].
func (fc *FragCoordBlock) Build(state *BuildState) error {
	emitSwizzled(state, "gl_FragCoord", 4, []splitOut{
		{fc.xy, glbuild.SwizzleN(2)},
		{fc.xyz, glbuild.SwizzleN(3)},
		{fc.xyzw, glbuild.SwizzleN(4)},
		{fc.x, glbuild.NewSwizzle(true, false, false, false)},
		{fc.y, glbuild.NewSwizzle(false, true, false, false)},
		{fc.z, glbuild.NewSwizzle(false, false, true, false)},
		{fc.w, glbuild.NewSwizzle(false, false, false, true)},
	})
	return nil
}
