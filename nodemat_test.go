package nodemat_test

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/nodemat"
)

func mustConnect(t *testing.T, from, to *nodemat.ConnectionPoint) {
	t.Helper()
	err := from.ConnectTo(to)
	if err != nil {
		t.Fatal(err)
	}
}

func mustAddOutput(t *testing.T, g *nodemat.Graph, b nodemat.Block) {
	t.Helper()
	err := g.AddOutput(b)
	if err != nil {
		t.Fatal(err)
	}
}

func addBlocks(g *nodemat.Graph, blocks ...nodemat.Block) {
	for _, b := range blocks {
		g.AddBlock(b)
	}
}

// basicGraph transforms the position attribute to clip space and outputs a uniform color.
func basicGraph(t *testing.T) *nodemat.Graph {
	g := nodemat.NewGraph("basic")
	pos := nodemat.NewAttributeBlock("position")
	wvp := nodemat.NewSystemValueBlock(nodemat.SystemWorldViewProjection)
	xf := nodemat.NewTransformBlock("clipPosition")
	vo := nodemat.NewVertexOutputBlock("vertexOutput")
	tint := nodemat.NewInputBlock("tint", nodemat.TypeColor3)
	tint.SetValue(nodemat.Color3Value(1, 0.5, 0.25))
	fo := nodemat.NewFragmentOutputBlock("fragmentOutput")
	addBlocks(g, pos, wvp, xf, tint)
	mustConnect(t, pos.Output(), xf.Vector())
	mustConnect(t, wvp.Output(), xf.Transform())
	mustConnect(t, xf.Output(), vo.Vector())
	mustConnect(t, tint.Output(), fo.RGB())
	mustAddOutput(t, g, vo)
	mustAddOutput(t, g, fo)
	return g
}

// texturedGraph is basicGraph with the output color scaled by time and alpha read from a texture.
func texturedGraph(t *testing.T) (*nodemat.Graph, *nodemat.TextureBlock) {
	g := basicGraph(t)
	fo := g.BlockByName("fragmentOutput").(*nodemat.FragmentOutputBlock)
	tint := g.BlockByName("tint").(*nodemat.InputBlock)
	tint.Output().DisconnectFrom(fo.RGB())

	scale := nodemat.NewScaleBlock("pulse")
	timeBlock := nodemat.NewSystemValueBlock(nodemat.SystemTime)
	uv := nodemat.NewAttributeBlock("uv")
	tex := nodemat.NewTextureBlock("diffuse")
	addBlocks(g, scale, timeBlock, uv, tex)
	mustConnect(t, tint.Output(), scale.Input())
	mustConnect(t, timeBlock.Output(), scale.Factor())
	mustConnect(t, scale.Output(), fo.RGB())
	mustConnect(t, uv.Output(), tex.UV())
	mustConnect(t, tex.A(), fo.A())
	return g, tex
}

func mustBuild(t *testing.T, g *nodemat.Graph, cfg nodemat.BuildConfig) *nodemat.Program {
	t.Helper()
	prog, err := g.Build(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return prog
}

func TestBuildBasic(t *testing.T) {
	prog := mustBuild(t, basicGraph(t), nodemat.BuildConfig{})
	vertex := prog.VertexSource()
	fragment := prog.FragmentSource()
	for _, want := range []string{
		"#version 330 core\n",
		"in vec3 position;\n",
		"uniform mat4 u_WorldViewProjection;\n",
		"u_WorldViewProjection * vec4(position, 1.)",
		"gl_Position = ",
	} {
		if !strings.Contains(vertex, want) {
			t.Errorf("vertex source missing %q:\n%s", want, vertex)
		}
	}
	for _, want := range []string{
		"uniform vec3 u_tint;\n",
		"out vec4 glFragColor;\n",
		"glFragColor = vec4(u_tint, 1.);\n",
	} {
		if !strings.Contains(fragment, want) {
			t.Errorf("fragment source missing %q:\n%s", want, fragment)
		}
	}
	if strings.Contains(fragment, "u_WorldViewProjection") {
		t.Error("vertex only uniform leaked into fragment stage")
	}
	if len(prog.Attributes) != 1 || prog.Attributes[0].Name != "position" {
		t.Errorf("unexpected attributes %+v", prog.Attributes)
	}
	if len(prog.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", prog.Diagnostics)
	}
}

func TestConnectTypeIncompatible(t *testing.T) {
	f := nodemat.NewInputBlock("f", nodemat.TypeFloat)
	vo := nodemat.NewVertexOutputBlock("vo")
	if got := f.Output().CompatibilityState(vo.Vector()); got != nodemat.TypeIncompatible {
		t.Fatalf("want TypeIncompatible, got %s", got)
	}
	err := f.Output().ConnectTo(vo.Vector())
	var cerr *nodemat.ConnectionError
	if !errors.As(err, &cerr) || cerr.State != nodemat.TypeIncompatible {
		t.Fatalf("want connection error with TypeIncompatible, got %v", err)
	}
	if vo.Vector().IsConnected() || f.Output().HasEndpoints() {
		t.Error("failed connection left an edge behind")
	}

	// Equivalent types connect.
	c4 := nodemat.NewInputBlock("c4", nodemat.TypeColor4)
	mustConnect(t, c4.Output(), vo.Vector())
}

func TestConnectTargetIncompatible(t *testing.T) {
	fc := nodemat.NewFragCoordBlock("fragCoord")
	vo := nodemat.NewVertexOutputBlock("vo")
	if got := fc.XYZW().CompatibilityState(vo.Vector()); got != nodemat.TargetIncompatible {
		t.Errorf("direct: want TargetIncompatible, got %s", got)
	}

	// Through a neutral block already feeding the vertex stage.
	mat := nodemat.NewSystemValueBlock(nodemat.SystemWorld)
	xf := nodemat.NewTransformBlock("xf")
	mustConnect(t, mat.Output(), xf.Transform())
	mustConnect(t, xf.Output(), vo.Vector())
	if got := fc.XYZW().CompatibilityState(xf.Vector()); got != nodemat.TargetIncompatible {
		t.Errorf("indirect: want TargetIncompatible, got %s", got)
	}

	// Fragment values may feed fragment blocks.
	fo := nodemat.NewFragmentOutputBlock("fo")
	mustConnect(t, fc.XYZW(), fo.RGBA())
}

func TestConnectHierarchyIssue(t *testing.T) {
	a := nodemat.NewMathBlock("a", nodemat.MathAdd)
	b := nodemat.NewMathBlock("b", nodemat.MathAdd)
	c := nodemat.NewMathBlock("c", nodemat.MathAdd)
	mustConnect(t, a.Output(), b.Left())
	mustConnect(t, b.Output(), c.Left())
	if got := c.Output().CompatibilityState(a.Right()); got != nodemat.HierarchyIssue {
		t.Errorf("want HierarchyIssue for cycle, got %s", got)
	}
	if got := a.Output().CompatibilityState(a.Left()); got != nodemat.HierarchyIssue {
		t.Errorf("want HierarchyIssue for self connection, got %s", got)
	}
	if got := a.Output().CompatibilityState(b.Output()); got != nodemat.DirectionIncompatible {
		t.Errorf("want DirectionIncompatible, got %s", got)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	in := nodemat.NewInputBlock("in", nodemat.TypeVector4)
	vo := nodemat.NewVertexOutputBlock("vo")
	mustConnect(t, in.Output(), vo.Vector())
	in.Output().DisconnectFrom(vo.Vector())
	vo.Vector().DisconnectFrom(in.Output())
	if vo.Vector().IsConnected() || in.Output().HasEndpoints() {
		t.Fatal("edge not removed")
	}
	mustConnect(t, vo.Vector(), in.Output()) // Reversed argument order.
	if vo.Vector().ConnectedPoint() != in.Output() || len(in.Output().Endpoints()) != 1 {
		t.Fatal("reconnect failed")
	}
}

func TestReconnectReplacesSource(t *testing.T) {
	a := nodemat.NewInputBlock("a", nodemat.TypeVector4)
	b := nodemat.NewInputBlock("b", nodemat.TypeVector4)
	vo := nodemat.NewVertexOutputBlock("vo")
	mustConnect(t, a.Output(), vo.Vector())
	mustConnect(t, b.Output(), vo.Vector())
	if a.Output().HasEndpoints() {
		t.Error("old source still lists the input as endpoint")
	}
	if vo.Vector().ConnectedPoint() != b.Output() {
		t.Error("input not connected to new source")
	}
}

func TestAutoDetectResolution(t *testing.T) {
	add := nodemat.NewMathBlock("add", nodemat.MathAdd)
	if got := add.Output().Type(); got != nodemat.TypeFloat {
		t.Errorf("unconnected output: want Float, got %s", got)
	}
	v3 := nodemat.NewInputBlock("v3", nodemat.TypeVector3)
	mustConnect(t, v3.Output(), add.Left())
	if got := add.Right().Type(); got != nodemat.TypeVector3 {
		t.Errorf("linked input: want Vector3, got %s", got)
	}
	if got := add.Output().Type(); got != nodemat.TypeVector3 {
		t.Errorf("output: want Vector3, got %s", got)
	}

	v2 := nodemat.NewInputBlock("v2", nodemat.TypeVector2)
	if got := v2.Output().CompatibilityState(add.Right()); got != nodemat.TypeIncompatible {
		t.Errorf("mismatched linked input: want TypeIncompatible, got %s", got)
	}
	f := nodemat.NewInputBlock("f", nodemat.TypeFloat)
	if got := f.Output().CompatibilityState(add.Right()); got != nodemat.Compatible {
		t.Errorf("scalar broadcast: want Compatible, got %s", got)
	}
	dot := nodemat.NewMathBlock("dot", nodemat.MathDot)
	mustConnect(t, v3.Output(), dot.Left())
	if got := f.Output().CompatibilityState(dot.Right()); got != nodemat.TypeIncompatible {
		t.Errorf("strict link: want TypeIncompatible, got %s", got)
	}
	if got := dot.Output().Type(); got != nodemat.TypeFloat {
		t.Errorf("dot output: want Float, got %s", got)
	}

	// Scalar on the left, vector on the right: the output is the vector.
	mul := nodemat.NewMathBlock("mul", nodemat.MathMultiply)
	mustConnect(t, f.Output(), mul.Left())
	mustConnect(t, v3.Output(), mul.Right())
	if got := mul.Output().Type(); got != nodemat.TypeVector3 {
		t.Errorf("broadcast output: want Vector3, got %s", got)
	}
	trig := nodemat.NewTrigonometryBlock("len", nodemat.OpLength)
	mustConnect(t, v3.Output(), trig.Input())
	if got := trig.Output().Type(); got != nodemat.TypeFloat {
		t.Errorf("length output: want Float, got %s", got)
	}
}

func TestNotConnectedDiagnostic(t *testing.T) {
	g := nodemat.NewGraph("missing")
	vo := nodemat.NewVertexOutputBlock("vertexOutput")
	fo := nodemat.NewFragmentOutputBlock("fragmentOutput")
	tint := nodemat.NewInputBlock("tint", nodemat.TypeColor4)
	tint.SetValue(nodemat.Color4Value(1, 1, 1, 1))
	mustConnect(t, tint.Output(), fo.RGBA())
	mustAddOutput(t, g, vo)
	mustAddOutput(t, g, fo)

	prog, err := g.Build(nodemat.BuildConfig{})
	if err == nil {
		t.Fatal("expected error")
	}
	if prog == nil {
		t.Fatal("program must be returned with diagnostics")
	}
	const want = "input vector from block vertexOutput[VertexOutputBlock] is not connected and is not optional"
	found := false
	for _, d := range prog.Diagnostics {
		if d.Message == want && d.Severity == nodemat.SeverityError && d.Point == vo.Vector() {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostic %q not reported, got %v", want, prog.Diagnostics)
	}
	// Traversal continued past the error.
	if !strings.Contains(prog.FragmentSource(), "glFragColor = u_tint;") {
		t.Errorf("fragment stage not generated:\n%s", prog.FragmentSource())
	}
}

func TestMissingOutputs(t *testing.T) {
	g := nodemat.NewGraph("empty")
	prog, err := g.Build(nodemat.BuildConfig{})
	if err == nil || len(prog.Diagnostics.Errors()) != 2 {
		t.Fatalf("want two errors, got %v", prog.Diagnostics)
	}
	prog, _ = g.Build(nodemat.BuildConfig{Flags: nodemat.FlagAllowEmptyVertexProgram})
	if len(prog.Diagnostics.Errors()) != 1 {
		t.Fatalf("want one error with empty vertex program allowed, got %v", prog.Diagnostics)
	}
	if err := g.AddOutput(nodemat.NewMathBlock("neutral", nodemat.MathAdd)); !errors.Is(err, nodemat.ErrInvalidOutput) {
		t.Errorf("want ErrInvalidOutput, got %v", err)
	}
}

func TestUniqueBlocks(t *testing.T) {
	g := basicGraph(t)
	second := nodemat.NewVertexOutputBlock("second")
	mustConnect(t, g.BlockByName("clipPosition").Base().Output("output"), second.Vector())
	mustAddOutput(t, g, second)
	prog, err := g.Build(nodemat.BuildConfig{})
	if err == nil {
		t.Fatal("expected error")
	}
	found := false
	for _, d := range prog.Diagnostics {
		found = found || strings.Contains(d.Message, "more than one VertexOutputBlock")
	}
	if !found {
		t.Errorf("duplicate unique block not reported: %v", prog.Diagnostics)
	}
}

var localDecl = regexp.MustCompile(`(?m)^(?:float|int|vec2|vec3|vec4|mat4) (\w+) = `)

func TestVariableNamesUnique(t *testing.T) {
	g := basicGraph(t)
	fo := g.BlockByName("fragmentOutput").(*nodemat.FragmentOutputBlock)
	tint := g.BlockByName("tint").(*nodemat.InputBlock)
	tint.Output().DisconnectFrom(fo.RGB())
	last := tint.Output()
	for i := 0; i < 5; i++ {
		// All blocks share a name and all outputs are called "output".
		add := nodemat.NewMathBlock("add", nodemat.MathAdd)
		g.AddBlock(add)
		mustConnect(t, last, add.Left())
		mustConnect(t, tint.Output(), add.Right())
		last = add.Output()
	}
	mustConnect(t, last, fo.RGB())
	prog := mustBuild(t, g, nodemat.BuildConfig{ExcludedNames: []string{"output1"}})

	seen := make(map[string]bool)
	for _, src := range []string{prog.VertexSource(), prog.FragmentSource()} {
		for _, m := range localDecl.FindAllStringSubmatch(src, -1) {
			name := m[1]
			if seen[name] {
				t.Errorf("variable %q declared twice", name)
			}
			if name == "output1" || name == "output" {
				t.Errorf("excluded or reserved name %q declared", name)
			}
			seen[name] = true
		}
	}
	if len(seen) != 6 {
		t.Errorf("want 6 local variables, got %d: %v", len(seen), seen)
	}
}

func TestDeterministic(t *testing.T) {
	g, _ := texturedGraph(t)
	cfg := nodemat.BuildConfig{Flags: nodemat.FlagEmitComments}
	first := mustBuild(t, g, cfg)
	second := mustBuild(t, g, cfg)
	if first.VertexSource() != second.VertexSource() || first.FragmentSource() != second.FragmentSource() {
		t.Fatal("rebuilding the same graph changed the sources")
	}
	clone, err := g.Clone(nodemat.DefaultRegistry())
	if err != nil {
		t.Fatal(err)
	}
	third := mustBuild(t, clone, cfg)
	if first.String() != third.String() {
		t.Errorf("clone compiles differently:\n%s\nvs\n%s", first, third)
	}
}

func TestVaryingInjection(t *testing.T) {
	g, tex := texturedGraph(t)
	prog := mustBuild(t, g, nodemat.BuildConfig{})
	vertex, fragment := prog.VertexSource(), prog.FragmentSource()
	for _, want := range []string{"in vec2 uv;\n", "out vec2 v_uv;\n", "v_uv = uv;\n"} {
		if !strings.Contains(vertex, want) {
			t.Errorf("vertex source missing %q:\n%s", want, vertex)
		}
	}
	sample := fmt.Sprintf("texture(%s, v_uv)", tex.SamplerName())
	for _, want := range []string{"in vec2 v_uv;\n", "uniform sampler2D diffuseSampler;\n", sample} {
		if !strings.Contains(fragment, want) {
			t.Errorf("fragment source missing %q:\n%s", want, fragment)
		}
	}
	if strings.Contains(fragment, "in vec2 uv;") {
		t.Error("attribute declared in fragment stage")
	}
	if len(prog.Varyings) != 1 || prog.Varyings[0].Name != "v_uv" {
		t.Errorf("unexpected varyings %+v", prog.Varyings)
	}
}

func TestLiteralInputs(t *testing.T) {
	g := basicGraph(t)
	fo := g.BlockByName("fragmentOutput").(*nodemat.FragmentOutputBlock)
	tint := g.BlockByName("tint").(*nodemat.InputBlock)
	tint.Output().DisconnectFrom(fo.RGB())
	merge := nodemat.NewVectorMergerBlock("merge")
	g.AddBlock(merge)
	merge.X().SetValue(nodemat.FloatValue(0.5))
	merge.W().SetValue(nodemat.FloatValue(1))
	mustConnect(t, merge.XYZW(), fo.RGBA())
	prog := mustBuild(t, g, nodemat.BuildConfig{})
	if !strings.Contains(prog.FragmentSource(), "vec4(0.5, 0., 0., 1.)") {
		t.Errorf("literal values not emitted:\n%s", prog.FragmentSource())
	}
}

func TestSplitterRemapClamp(t *testing.T) {
	g := basicGraph(t)
	fo := g.BlockByName("fragmentOutput").(*nodemat.FragmentOutputBlock)
	tint := g.BlockByName("tint").(*nodemat.InputBlock)
	tint.Output().DisconnectFrom(fo.RGB())

	split := nodemat.NewVectorSplitterBlock("split")
	remap := nodemat.NewRemapBlock("remap")
	clamp := nodemat.NewClampBlock("clamp")
	addBlocks(g, split, remap, clamp)
	mustConnect(t, tint.Output(), split.XYZIn())
	mustConnect(t, split.X(), remap.Input())
	mustConnect(t, remap.Output(), clamp.Value())
	mustConnect(t, clamp.Output(), fo.A())
	mustConnect(t, split.XYZ(), fo.RGB())
	prog := mustBuild(t, g, nodemat.BuildConfig{})
	fragment := prog.FragmentSource()
	for _, want := range []string{"u_tint.x;", "u_tint.xyz;", "* 0.5 + 0.5;", "clamp("} {
		if !strings.Contains(fragment, want) {
			t.Errorf("fragment source missing %q:\n%s", want, fragment)
		}
	}

	remap.SourceRange = [2]float32{1, 1}
	_, err := g.Build(nodemat.BuildConfig{})
	if err == nil {
		t.Error("empty remap range must be reported")
	}
}

func TestSourcesDefines(t *testing.T) {
	g := basicGraph(t)
	fo := g.BlockByName("fragmentOutput").(*nodemat.FragmentOutputBlock)
	fo.ConvertToGammaSpace = true
	prog := mustBuild(t, g, nodemat.BuildConfig{})
	defines := prog.PrepareDefines(&nodemat.SceneState{})
	names := defines.Names()
	if len(names) != 1 || !strings.HasPrefix(names[0], "CONVERTTOGAMMA") {
		t.Fatalf("unexpected defines %v", names)
	}
	_, fragment := prog.Sources(defines)
	lines := strings.SplitN(fragment, "\n", 3)
	if lines[0] != "#version 330 core" || lines[1] != "#define "+names[0] {
		t.Errorf("defines not injected after version:\n%s", fragment)
	}
	if !strings.Contains(fragment, "#ifdef "+names[0]+"\n") {
		t.Errorf("define not used in source:\n%s", fragment)
	}
	if nodemat.Defines(nil).Key() != (nodemat.Defines{"X": false}).Key() {
		t.Error("disabled defines must not change the key")
	}
}

func TestBindOrder(t *testing.T) {
	g, tex := texturedGraph(t)
	tex.SetTexture(fakeTexture(7))
	prog := mustBuild(t, g, nodemat.BuildConfig{})
	scene := &nodemat.SceneState{
		World:      ms3.ScalingMat4(ms3.Vec{X: 1, Y: 1, Z: 1}),
		View:       ms3.ScalingMat4(ms3.Vec{X: 1, Y: 1, Z: 1}),
		Projection: ms3.ScalingMat4(ms3.Vec{X: 2, Y: 2, Z: 2}),
		Time:       1.5,
	}
	rec := &recorder{}
	err := prog.Bind(rec, scene)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"u_WorldViewProjection", "u_Time", "u_tint", "diffuseSampler"}
	if strings.Join(rec.names, ",") != strings.Join(want, ",") {
		t.Errorf("bind order: want %v, got %v", want, rec.names)
	}
	if rec.values["u_Time"] != float32(1.5) {
		t.Errorf("time not bound: %v", rec.values["u_Time"])
	}
	if m := rec.values["u_WorldViewProjection"].([16]float32); m[0] != 2 || m[15] != 1 {
		t.Errorf("bad world view projection %v", m)
	}
	if rec.values["diffuseSampler"] != "unit0:7" {
		t.Errorf("bad sampler binding %v", rec.values["diffuseSampler"])
	}
}

func TestMaterialFrame(t *testing.T) {
	g := fogGraph(t)
	compiler := &fakeCompiler{}
	mat := nodemat.NewMaterial(g, nodemat.BuildConfig{}, compiler)
	scene := &nodemat.SceneState{
		World:      ms3.ScalingMat4(ms3.Vec{X: 1, Y: 1, Z: 1}),
		View:       ms3.ScalingMat4(ms3.Vec{X: 1, Y: 1, Z: 1}),
		Projection: ms3.ScalingMat4(ms3.Vec{X: 1, Y: 1, Z: 1}),
		FogColor:   ms3.Vec{X: 0.5, Y: 0.5, Z: 0.5},
		FogEnd:     100,
	}
	frame := func(wantBuilds, wantLinks int) {
		t.Helper()
		err := mat.Frame(scene)
		if err != nil {
			t.Fatal(err)
		}
		builds, links := mat.Stats()
		if builds != wantBuilds || links != wantLinks {
			t.Fatalf("want %d builds and %d links, got %d and %d", wantBuilds, wantLinks, builds, links)
		}
	}
	frame(1, 1)
	frame(1, 1)
	if strings.Contains(compiler.fragment, "#define FOG") {
		t.Error("fog enabled without scene fog")
	}

	scene.FogMode = nodemat.FogLinear
	frame(1, 2)
	if !strings.Contains(compiler.fragment, "#define FOG\n") || !strings.Contains(compiler.vertex, "#define FOG\n") {
		t.Error("fog define missing after enabling scene fog")
	}
	linked := mat.Linked().(*linkedRecorder)
	if _, ok := linked.values["fogParameters"]; !ok {
		t.Errorf("fog parameters not bound, got %v", linked.names)
	}
	frame(1, 2)

	mat.MarkDirty()
	frame(2, 3)
	if compiler.deleted != 2 {
		t.Errorf("want 2 released programs, got %d", compiler.deleted)
	}
}

// fogGraph applies fog to a uniform color.
func fogGraph(t *testing.T) *nodemat.Graph {
	g := basicGraph(t)
	fo := g.BlockByName("fragmentOutput").(*nodemat.FragmentOutputBlock)
	tint := g.BlockByName("tint").(*nodemat.InputBlock)
	pos := g.BlockByName("position").(*nodemat.InputBlock)
	tint.Output().DisconnectFrom(fo.RGB())

	world := nodemat.NewSystemValueBlock(nodemat.SystemWorld)
	view := nodemat.NewSystemValueBlock(nodemat.SystemView)
	fogColor := nodemat.NewSystemValueBlock(nodemat.SystemFogColor)
	worldPos := nodemat.NewTransformBlock("worldPosition")
	fog := nodemat.NewFogBlock("fog")
	addBlocks(g, world, view, fogColor, worldPos, fog)
	mustConnect(t, pos.Output(), worldPos.Vector())
	mustConnect(t, world.Output(), worldPos.Transform())
	mustConnect(t, worldPos.Output(), fog.WorldPosition())
	mustConnect(t, view.Output(), fog.View())
	mustConnect(t, tint.Output(), fog.Input())
	mustConnect(t, fogColor.Output(), fog.FogColor())
	mustConnect(t, fog.Output(), fo.RGB())
	return g
}

func TestFogStages(t *testing.T) {
	prog := mustBuild(t, fogGraph(t), nodemat.BuildConfig{})
	vertex, fragment := prog.VertexSource(), prog.FragmentSource()
	for _, want := range []string{"#ifdef FOG\nout vec3 vFogDistance;\n#endif\n", "vFogDistance = (u_View * "} {
		if !strings.Contains(vertex, want) {
			t.Errorf("vertex source missing %q:\n%s", want, vertex)
		}
	}
	for _, want := range []string{"#ifdef FOG\nin vec3 vFogDistance;\n#endif\n", "nmCalcFogFactor(length(vFogDistance), fogParameters)", "#else\n"} {
		if !strings.Contains(fragment, want) {
			t.Errorf("fragment source missing %q:\n%s", want, fragment)
		}
	}
	if strings.Contains(vertex, "nmCalcFogFactor") {
		t.Error("fragment only function included in vertex stage")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	g, _ := texturedGraph(t)
	merge := nodemat.NewVectorMergerBlock("merge")
	merge.Z().SetValue(nodemat.FloatValue(0.25))
	g.AddBlock(merge)
	data, err := nodemat.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	reg := nodemat.DefaultRegistry()
	g2, err := nodemat.Unmarshal(data, reg)
	if err != nil {
		t.Fatal(err)
	}
	data2, err := nodemat.Marshal(g2)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(data2) {
		t.Errorf("round trip changed encoding:\n%s\nvs\n%s", data, data2)
	}
	merge2 := g2.BlockByName("merge").(*nodemat.VectorMergerBlock)
	if v := merge2.Z().Value(); v.Type() != nodemat.TypeFloat || v.Float() != 0.25 {
		t.Errorf("literal not restored: %v", v)
	}
	if len(g2.Outputs()) != 2 {
		t.Errorf("want 2 outputs, got %d", len(g2.Outputs()))
	}

	_, err = nodemat.Unmarshal(data, nodemat.NewRegistry())
	if !errors.Is(err, nodemat.ErrUnknownBlock) {
		t.Errorf("want ErrUnknownBlock from empty registry, got %v", err)
	}
}

func TestValueValidate(t *testing.T) {
	v := nodemat.Vector2Value(ms2.Vec{X: 1, Y: 2})
	if err := v.Validate(); err != nil {
		t.Error(err)
	}
	if got := v.String(); got != "vec2(1.,2.)" {
		t.Errorf("want vec2(1.,2.), got %s", got)
	}
	var zero float32
	nan := nodemat.FloatValue(zero / zero)
	if nan.Validate() == nil {
		t.Error("NaN must not validate")
	}
	if _, err := nan.MarshalJSON(); err == nil {
		t.Error("NaN must not encode")
	}
	var decoded nodemat.Value
	if err := decoded.UnmarshalJSON([]byte(`{"type":"Vector3","value":[1,2]}`)); err == nil {
		t.Error("short component list must fail to decode")
	}
}

func TestAcceptedTypeSource(t *testing.T) {
	g := fogGraph(t)
	fog := g.BlockByName("fog").(*nodemat.FogBlock)
	c4 := nodemat.NewInputBlock("c4", nodemat.TypeColor4)
	c4.SetValue(nodemat.Color4Value(1, 0, 0, 1))
	g.AddBlock(c4)
	mustConnect(t, c4.Output(), fog.Input())
	if got := fog.Input().SourceType(); got != nodemat.TypeColor4 {
		t.Errorf("fog input: want Color4 source, got %s", got)
	}
	if got := fog.Input().Type(); got != nodemat.TypeColor3 {
		t.Errorf("fog input: declared type changed to %s", got)
	}
	fragment := mustBuild(t, g, nodemat.BuildConfig{}).FragmentSource()
	if !strings.Contains(fragment, "u_c4.rgb, fogFactor)") || strings.Contains(fragment, "u_c4,") {
		t.Errorf("four component fog input not reduced to rgb:\n%s", fragment)
	}

	g, tex := texturedGraph(t)
	uv4 := nodemat.NewInputBlock("uv4", nodemat.TypeVector4)
	uv4.SetValue(nodemat.Vector4Value(nodemat.Vec4{X: 0.5, Y: 0.5, W: 1}))
	g.AddBlock(uv4)
	mustConnect(t, uv4.Output(), tex.UV())
	fragment = mustBuild(t, g, nodemat.BuildConfig{}).FragmentSource()
	if !strings.Contains(fragment, "texture(diffuseSampler, u_uv4.xy)") {
		t.Errorf("four component uv not reduced to xy:\n%s", fragment)
	}

	// Literal uv of an accepted type.
	tex.UV().DisconnectFrom(uv4.Output())
	tex.UV().SetValue(nodemat.Vector3Value(ms3.Vec{X: 0.5, Y: 0.5}))
	fragment = mustBuild(t, g, nodemat.BuildConfig{}).FragmentSource()
	if !strings.Contains(fragment, ").xy)") || strings.Contains(fragment, "u_uv4") {
		t.Errorf("literal uv not reduced to xy:\n%s", fragment)
	}
}

func TestFragmentDataInVertexStage(t *testing.T) {
	fc := nodemat.NewFragCoordBlock("fragCoord")
	cos := nodemat.NewTrigonometryBlock("cos", nodemat.OpCos)
	vo := nodemat.NewVertexOutputBlock("vertexOutput")
	mustConnect(t, fc.XYZW(), cos.Input())
	if got := cos.Output().CompatibilityState(vo.Vector()); got != nodemat.TargetIncompatible {
		t.Errorf("neutral block fed by fragment data: want TargetIncompatible, got %s", got)
	}
	err := cos.Output().ConnectTo(vo.Vector())
	var cerr *nodemat.ConnectionError
	if !errors.As(err, &cerr) || cerr.State != nodemat.TargetIncompatible {
		t.Fatalf("want connection error with TargetIncompatible, got %v", err)
	}

	// Forced edges are reported by the compiler.
	err = cos.Output().ConnectToForce(vo.Vector())
	if err != nil {
		t.Fatal(err)
	}
	g := nodemat.NewGraph("fragmentInVertex")
	color := nodemat.NewInputBlock("color", nodemat.TypeColor4)
	color.SetValue(nodemat.Color4Value(1, 1, 1, 1))
	fo := nodemat.NewFragmentOutputBlock("fragmentOutput")
	addBlocks(g, fc, cos, color)
	mustConnect(t, color.Output(), fo.RGBA())
	mustAddOutput(t, g, vo)
	mustAddOutput(t, g, fo)
	prog, err := g.Build(nodemat.BuildConfig{})
	if err == nil {
		t.Fatal("expected build error")
	}
	found := false
	for _, d := range prog.Diagnostics.Errors() {
		found = found || strings.Contains(d.Message, "reads fragment stage data in the vertex stage")
	}
	if !found {
		t.Errorf("diagnostic not reported: %v", prog.Diagnostics)
	}
	if strings.Contains(prog.VertexSource(), "gl_FragCoord") {
		t.Errorf("fragment built-in emitted in vertex stage:\n%s", prog.VertexSource())
	}
}

func TestScalarWiden(t *testing.T) {
	newGraph := func() (*nodemat.Graph, *nodemat.FragmentOutputBlock, *nodemat.InputBlock, *nodemat.InputBlock) {
		g := basicGraph(t)
		fo := g.BlockByName("fragmentOutput").(*nodemat.FragmentOutputBlock)
		tint := g.BlockByName("tint").(*nodemat.InputBlock)
		tint.Output().DisconnectFrom(fo.RGB())
		f := nodemat.NewInputBlock("f", nodemat.TypeFloat)
		f.SetValue(nodemat.FloatValue(0.5))
		v3 := nodemat.NewInputBlock("v3", nodemat.TypeVector3)
		v3.SetValue(nodemat.Vector3Value(ms3.Vec{X: 1, Y: 2, Z: 3}))
		addBlocks(g, f, v3)
		return g, fo, f, v3
	}
	for _, tc := range []struct {
		op          nodemat.MathOp
		scalarRight bool
		want        string
	}{
		{op: nodemat.MathMin, want: "min(vec3(u_f), u_v3)"},
		{op: nodemat.MathMax, scalarRight: true, want: "max(u_v3, vec3(u_f))"},
		{op: nodemat.MathModulo, want: "mod(vec3(u_f), u_v3)"},
		{op: nodemat.MathStep, scalarRight: true, want: "step(u_v3, vec3(u_f))"},
	} {
		g, fo, f, v3 := newGraph()
		mb := nodemat.NewMathBlock("op", tc.op)
		g.AddBlock(mb)
		left, right := f, v3
		if tc.scalarRight {
			left, right = v3, f
		}
		mustConnect(t, left.Output(), mb.Left())
		mustConnect(t, right.Output(), mb.Right())
		mustConnect(t, mb.Output(), fo.RGB())
		fragment := mustBuild(t, g, nodemat.BuildConfig{}).FragmentSource()
		if !strings.Contains(fragment, tc.want) {
			t.Errorf("%s: want %q in\n%s", tc.op, tc.want, fragment)
		}
	}

	// Scalar literal.
	g, fo, _, v3 := newGraph()
	mod := nodemat.NewMathBlock("mod", nodemat.MathModulo)
	g.AddBlock(mod)
	mustConnect(t, v3.Output(), mod.Left())
	mod.Right().SetValue(nodemat.FloatValue(2))
	mustConnect(t, mod.Output(), fo.RGB())
	fragment := mustBuild(t, g, nodemat.BuildConfig{}).FragmentSource()
	if !strings.Contains(fragment, "mod(u_v3, vec3(2.))") {
		t.Errorf("literal scalar not widened:\n%s", fragment)
	}

	// Additions broadcast natively.
	g, fo, f, v3 := newGraph()
	add := nodemat.NewMathBlock("add", nodemat.MathAdd)
	lerp := nodemat.NewLerpBlock("lerp")
	addBlocks(g, add, lerp)
	mustConnect(t, f.Output(), add.Left())
	mustConnect(t, v3.Output(), add.Right())
	mustConnect(t, f.Output(), lerp.Left())
	mustConnect(t, add.Output(), lerp.Right())
	lerp.Gradient().SetValue(nodemat.FloatValue(0.25))
	mustConnect(t, lerp.Output(), fo.RGB())
	fragment = mustBuild(t, g, nodemat.BuildConfig{}).FragmentSource()
	for _, want := range []string{"= u_f + u_v3;", "mix(vec3(u_f), "} {
		if !strings.Contains(fragment, want) {
			t.Errorf("want %q in\n%s", want, fragment)
		}
	}
}

func TestRemapLiteralBounds(t *testing.T) {
	g := basicGraph(t)
	fo := g.BlockByName("fragmentOutput").(*nodemat.FragmentOutputBlock)
	f := nodemat.NewInputBlock("f", nodemat.TypeFloat)
	f.SetValue(nodemat.FloatValue(0.5))
	remap := nodemat.NewRemapBlock("remap")
	addBlocks(g, f, remap)
	mustConnect(t, f.Output(), remap.Input())
	mustConnect(t, remap.Output(), fo.A())
	remap.SourceMin().SetValue(nodemat.FloatValue(0))
	remap.TargetMax().SetValue(nodemat.FloatValue(2))

	// [0,1] onto [0,2].
	const folded = "u_f * 2. + 0.;"
	fragment := mustBuild(t, g, nodemat.BuildConfig{}).FragmentSource()
	if !strings.Contains(fragment, folded) {
		t.Errorf("literal bounds ignored, want %q in\n%s", folded, fragment)
	}
	clone, err := g.Clone(nodemat.DefaultRegistry())
	if err != nil {
		t.Fatal(err)
	}
	fragment = mustBuild(t, clone, nodemat.BuildConfig{}).FragmentSource()
	if !strings.Contains(fragment, folded) {
		t.Errorf("literal bounds lost in clone:\n%s", fragment)
	}

	hi := nodemat.NewInputBlock("hi", nodemat.TypeFloat)
	hi.SetValue(nodemat.FloatValue(4))
	g.AddBlock(hi)
	mustConnect(t, hi.Output(), remap.SourceMax())
	fragment = mustBuild(t, g, nodemat.BuildConfig{}).FragmentSource()
	if want := "0. + (u_f - 0.) * (2. - 0.) / (u_hi - 0.)"; !strings.Contains(fragment, want) {
		t.Errorf("want %q in\n%s", want, fragment)
	}
}

func TestProgramKeepsBuildNames(t *testing.T) {
	g, tex := texturedGraph(t)
	tex.SetTexture(fakeTexture(3))
	tex.SetGammaSpace(true)
	first := mustBuild(t, g, nodemat.BuildConfig{})

	g.BlockByName("tint").Base().SetName("color")
	tex.SetName("albedo")
	second := mustBuild(t, g, nodemat.BuildConfig{})
	if !strings.Contains(second.FragmentSource(), "uniform sampler2D albedoSampler;\n") {
		t.Fatalf("rename not applied:\n%s", second.FragmentSource())
	}

	rec := &recorder{}
	err := first.Bind(rec, &nodemat.SceneState{Time: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"u_WorldViewProjection", "u_Time", "u_tint", "diffuseSampler"}
	if strings.Join(rec.names, ",") != strings.Join(want, ",") {
		t.Errorf("first program: want %v, got %v", want, rec.names)
	}
	names := first.PrepareDefines(&nodemat.SceneState{}).Names()
	if len(names) != 1 || names[0] != "DIFFUSESAMPLER_GAMMA0" {
		t.Errorf("first program defines: got %v", names)
	}

	rec = &recorder{}
	err = second.Bind(rec, &nodemat.SceneState{Time: 1})
	if err != nil {
		t.Fatal(err)
	}
	want = []string{"u_WorldViewProjection", "u_Time", "u_color", "albedoSampler"}
	if strings.Join(rec.names, ",") != strings.Join(want, ",") {
		t.Errorf("second program: want %v, got %v", want, rec.names)
	}
}

func TestTextureChannels(t *testing.T) {
	g, _ := texturedGraph(t)
	fragment := mustBuild(t, g, nodemat.BuildConfig{}).FragmentSource()
	if !strings.Contains(fragment, " = rgba.a;\n") {
		t.Errorf("alpha channel not read from sample:\n%s", fragment)
	}
	if strings.Contains(fragment, "rgba.rgb;") {
		t.Errorf("unconnected rgb channel declared:\n%s", fragment)
	}
}

func TestSceneDerivedMatrices(t *testing.T) {
	scene := &nodemat.SceneState{
		World:      ms3.ScalingMat4(ms3.Vec{X: 2, Y: 2, Z: 2}),
		View:       ms3.ScalingMat4(ms3.Vec{X: 3, Y: 3, Z: 3}),
		Projection: ms3.ScalingMat4(ms3.Vec{X: 5, Y: 5, Z: 5}),
	}
	for _, tc := range []struct {
		sv   nodemat.SystemValue
		want float32
	}{
		{nodemat.SystemWorldView, 6},
		{nodemat.SystemViewProjection, 15},
		{nodemat.SystemWorldViewProjection, 30},
	} {
		v, ok := scene.SystemValue(tc.sv)
		if !ok {
			t.Fatalf("%s not provided", tc.sv)
		}
		m := v.MatrixArray()
		if m[0] != tc.want || m[5] != tc.want || m[10] != tc.want || m[15] != 1 {
			t.Errorf("%s: want diagonal %v, got %v", tc.sv, tc.want, m)
		}
	}
}

type fakeTexture uint32

func (ft fakeTexture) TextureID() uint32 { return uint32(ft) }

// recorder is a UniformSetter recording the order and value of every call.
type recorder struct {
	names  []string
	values map[string]any
}

func (r *recorder) record(name string, v any) error {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	r.names = append(r.names, name)
	r.values[name] = v
	return nil
}

func (r *recorder) SetFloat(name string, v float32) error     { return r.record(name, v) }
func (r *recorder) SetInt(name string, v int32) error         { return r.record(name, v) }
func (r *recorder) SetVec2(name string, v ms2.Vec) error      { return r.record(name, v) }
func (r *recorder) SetVec3(name string, v ms3.Vec) error      { return r.record(name, v) }
func (r *recorder) SetVec4(name string, v nodemat.Vec4) error { return r.record(name, v) }
func (r *recorder) SetMat4(name string, m [16]float32) error  { return r.record(name, m) }
func (r *recorder) SetSampler(name string, unit int, tex nodemat.Texture) error {
	return r.record(name, fmt.Sprintf("unit%d:%d", unit, tex.TextureID()))
}

type fakeCompiler struct {
	vertex, fragment string
	deleted          int
}

func (fc *fakeCompiler) Link(vertex, fragment string) (nodemat.LinkedProgram, error) {
	fc.vertex, fc.fragment = vertex, fragment
	return &linkedRecorder{compiler: fc}, nil
}

type linkedRecorder struct {
	recorder
	compiler *fakeCompiler
}

func (lr *linkedRecorder) Delete() { lr.compiler.deleted++ }
