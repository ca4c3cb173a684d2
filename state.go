package nodemat

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/soypat/nodemat/glbuild"
)

// Attribute is a vertex input declared by a compiled program.
type Attribute struct {
	Name string
	Type PointType
}

// Uniform is a non-sampler uniform declared by a compiled program.
type Uniform struct {
	Name string
	Type PointType
	// Define is the preprocessor define guarding the declaration, if any.
	Define string
}

// Varying is a value passed from the vertex to the fragment stage.
type Varying struct {
	Name   string
	Type   PointType
	Define string
}

// sharedData is the compilation state shared by the vertex and fragment stages.
type sharedData struct {
	cfg     BuildConfig
	buildID uint64

	varNames    *glbuild.Namer
	defineNames *glbuild.Namer
	defines     []string

	varyings    []Varying
	varyingFor  map[*ConnectionPoint]string
	inputs      []inputBinding
	bindables   []blockBinding
	definers    []blockDefines
	textureUnit int

	notConnected    []*ConnectionPoint
	notConnectedSet map[*ConnectionPoint]bool
	diags           Diagnostics

	emittedVertex   bool
	emittedFragment bool
}

func newSharedData(cfg BuildConfig, buildID uint64) *sharedData {
	return &sharedData{
		cfg:             cfg,
		buildID:         buildID,
		varNames:        glbuild.NewNamer(cfg.ExcludedNames...),
		defineNames:     glbuild.NewDefineNamer(),
		varyingFor:      make(map[*ConnectionPoint]string),
		notConnectedSet: make(map[*ConnectionPoint]bool),
	}
}

func (sh *sharedData) recordNotConnected(cp *ConnectionPoint) {
	if sh.notConnectedSet[cp] {
		return
	}
	sh.notConnectedSet[cp] = true
	sh.notConnected = append(sh.notConnected, cp)
}

func (sh *sharedData) reportNotConnected() {
	for _, cp := range sh.notConnected {
		owner := cp.owner.Base()
		sh.diags.add(SeverityError, cp.owner, cp, fmt.Sprintf("input %s from block %s[%s] is not connected and is not optional",
			cp.name, owner.name, cp.owner.ClassName()))
	}
}

// BuildState accumulates the code of one shader stage. Blocks receive it in [Block.Build].
type BuildState struct {
	target Target
	shared *sharedData
	// vertex is the vertex stage state, set on the fragment stage state.
	vertex *BuildState

	attributes []Attribute
	uniforms   []Uniform
	samplers   []Uniform
	outputs    []string
	constants  []byte
	functions  []glbuild.ShaderFunction
	declared   map[string]bool
	body       []byte
}

func newBuildState(target Target, shared *sharedData, vertex *BuildState) *BuildState {
	return &BuildState{
		target:   target,
		shared:   shared,
		vertex:   vertex,
		declared: make(map[string]bool),
	}
}

// Target returns the stage being generated, TargetVertex or TargetFragment.
func (s *BuildState) Target() Target { return s.target }

// IsFragment reports whether the fragment stage is being generated.
func (s *BuildState) IsFragment() bool { return s.target == TargetFragment }

// VertexState returns the vertex stage state during the fragment pass, or the
// receiver during the vertex pass.
func (s *BuildState) VertexState() *BuildState {
	if s.vertex != nil {
		return s.vertex
	}
	return s
}

// Flags returns the build flags of the compilation.
func (s *BuildState) Flags() Flags { return s.shared.cfg.Flags }

// FreeVariableName returns an identifier derived from base that is unique across both stages.
func (s *BuildState) FreeVariableName(base string) string {
	return s.shared.varNames.Free(base)
}

// FreeDefineName returns a preprocessor define derived from base that is unique
// across both stages and records it in the program define list.
func (s *BuildState) FreeDefineName(base string) string {
	name := s.shared.defineNames.Free(base)
	s.shared.defines = append(s.shared.defines, name)
	return name
}

// UseDefine records a well known define name the program reacts to, such as FOG.
func (s *BuildState) UseDefine(name string) {
	if !slices.Contains(s.shared.defines, name) {
		s.shared.defines = append(s.shared.defines, name)
	}
}

// NextTextureUnit allocates a texture unit for a sampler.
func (s *BuildState) NextTextureUnit() int {
	unit := s.shared.textureUnit
	s.shared.textureUnit++
	return unit
}

func (s *BuildState) claimDeclaration(name string) bool {
	if s.declared[name] {
		return false
	}
	s.declared[name] = true
	return true
}

// EmitAttribute declares a vertex attribute. Attributes may only be declared in the
// vertex stage, fragment state calls are redirected there.
func (s *BuildState) EmitAttribute(name string, t PointType) {
	vs := s.VertexState()
	if vs.claimDeclaration(name) {
		vs.attributes = append(vs.attributes, Attribute{Name: name, Type: t})
	}
}

// EmitUniform declares a uniform in the current stage. If define is not empty the
// declaration is guarded by it.
func (s *BuildState) EmitUniform(name string, t PointType, define string) {
	if s.claimDeclaration(name) {
		s.uniforms = append(s.uniforms, Uniform{Name: name, Type: t, Define: define})
	}
}

// EmitSampler declares a 2D sampler uniform in the current stage.
func (s *BuildState) EmitSampler(name, define string) {
	if s.claimDeclaration(name) {
		s.samplers = append(s.samplers, Uniform{Name: name, Type: TypeObject, Define: define})
	}
}

// EmitVarying declares a varying in both stages. It returns false if the varying
// was already declared, in which case the caller must not assign it again.
func (s *BuildState) EmitVarying(name string, t PointType, define string) bool {
	sh := s.shared
	for _, v := range sh.varyings {
		if v.Name == name {
			return false
		}
	}
	sh.varyings = append(sh.varyings, Varying{Name: name, Type: t, Define: define})
	return true
}

// EmitConstant declares a constant in the current stage.
func (s *BuildState) EmitConstant(name string, v Value) {
	if s.claimDeclaration(name) {
		s.constants = glbuild.AppendConstDecl(s.constants, v.typ.GLSLType(), name, v.AppendGLSL)
	}
}

// EmitFragmentOutput declares a vec4 fragment stage output.
func (s *BuildState) EmitFragmentOutput(name string) {
	if s.target == TargetFragment && s.claimDeclaration(name) {
		s.outputs = append(s.outputs, name)
	}
}

// EmitFunction includes a GLSL function in the current stage. Functions are
// included once, in order of first inclusion.
func (s *BuildState) EmitFunction(fn glbuild.ShaderFunction) {
	for _, got := range s.functions {
		if got.Name == fn.Name {
			if !got.Equal(fn) {
				s.shared.diags.add(SeverityError, nil, nil, "conflicting definitions of shader function "+fn.Name)
			}
			return
		}
	}
	s.functions = append(s.functions, fn)
}

// Code appends raw code to the main function body.
func (s *BuildState) Code(code string) {
	s.body = append(s.body, code...)
}

// Codef appends formatted code to the main function body.
func (s *BuildState) Codef(format string, args ...any) {
	s.body = fmt.Appendf(s.body, format, args...)
}

// Declare appends the declaration of output out initialized to expr:
//
//	<type> <name> = <expr>;
func (s *BuildState) Declare(out *ConnectionPoint, expr string) {
	s.body = glbuild.AppendLocalDecl(s.body, out.Type().GLSLType(), out.VariableName())
	s.body = append(s.body, expr...)
	s.body = append(s.body, ';', '\n')
}

// Declaref is like [BuildState.Declare] with a formatted expression.
func (s *BuildState) Declaref(out *ConnectionPoint, format string, args ...any) {
	s.Declare(out, fmt.Sprintf(format, args...))
}

// Expr returns the GLSL expression for an input: the upstream variable when
// connected, else its literal value, else the zero value of its type.
func (s *BuildState) Expr(in *ConnectionPoint) string {
	if name := in.VariableName(); name != "" {
		return name
	}
	if in.value.IsSet() {
		return string(in.value.AppendGLSL(nil))
	}
	return string(appendZeroLiteral(nil, in.Type()))
}

// inputBinding is an input block uniform as allocated by one build.
type inputBinding struct {
	block  *InputBlock
	name   string
	mode   InputMode
	system SystemValue
}

type blockBinding struct {
	block Block
	bind  BindFunc
}

type blockDefines struct {
	block   Block
	prepare DefinesFunc
}

// RegisterBindable schedules b for per-frame binding. The bind function is taken
// now so the program keeps binding the names of this build.
func (s *BuildState) RegisterBindable(b Binder) {
	for _, got := range s.shared.bindables {
		if got.block == b {
			return
		}
	}
	s.shared.bindables = append(s.shared.bindables, blockBinding{block: b, bind: b.BindFunc()})
}

// RegisterDefines schedules b for define recomputation before binding.
func (s *BuildState) RegisterDefines(b DefinePreparer) {
	for _, got := range s.shared.definers {
		if got.block == b {
			return
		}
	}
	s.shared.definers = append(s.shared.definers, blockDefines{block: b, prepare: b.DefinesFunc()})
}

func (s *BuildState) registerInputBlock(ib *InputBlock) {
	for _, got := range s.shared.inputs {
		if got.block == ib {
			return
		}
	}
	s.shared.inputs = append(s.shared.inputs, inputBinding{
		block:  ib,
		name:   ib.output.varName,
		mode:   ib.mode,
		system: ib.system,
	})
}

// Warn records a warning diagnostic for block b.
func (s *BuildState) Warn(b Block, msg string) {
	s.shared.diags.add(SeverityWarning, b, nil, msg)
}

// build emits b and, first, every source connected to its inputs.
func (s *BuildState) build(b Block) {
	bb := b.Base()
	sh := s.shared
	if bb.built(sh.buildID, s.target) {
		return
	}
	if bb.visiting {
		sh.diags.add(SeverityError, b, nil, "cycle detected through block "+bb.name)
		return
	}
	bb.visiting = true
	defer func() { bb.visiting = false }()

	if !bb.isInput {
		for _, out := range bb.outputs {
			if out.varName == "" {
				out.varName = s.FreeVariableName(out.name)
			}
		}
	}
	for _, in := range bb.inputs {
		if in.connected == nil {
			if !in.optional && !in.value.IsSet() {
				sh.recordNotConnected(in)
			}
			continue
		}
		if bb.target != TargetNeutral && (in.target&bb.target == 0 || in.target&s.target == 0) {
			continue
		}
		src := in.connected.owner
		if src.Base() == bb {
			continue
		}
		if s.target == TargetVertex && in.connected.dependsOnFragment(make(map[Block]bool)) {
			sh.diags.add(SeverityError, b, in, fmt.Sprintf("input %s from block %s[%s] reads fragment stage data in the vertex stage",
				in.name, bb.name, b.ClassName()))
			continue
		}
		s.buildSource(src, in)
	}

	if bb.finalMerger {
		if s.target == TargetVertex {
			sh.emittedVertex = true
		} else {
			sh.emittedFragment = true
		}
	}
	if sh.cfg.Flags&FlagEmitComments != 0 && !bb.isInput {
		s.Codef("// %s[%s]\n", bb.name, b.ClassName())
		if bb.comment != "" {
			s.Codef("// %s\n", bb.comment)
		}
	}
	if sh.cfg.Flags&FlagVerbose != 0 {
		Logger().Debug("build block", slog.String("block", bb.name), slog.String("class", b.ClassName()), slog.String("stage", s.target.String()))
	}
	err := b.Build(s)
	if err != nil {
		sh.diags.add(SeverityError, b, nil, err.Error())
	}
	bb.markBuilt(sh.buildID, s.target)
}

// buildSource builds the source block of input in. During the fragment pass values
// produced only by the vertex stage are carried over by a varying.
func (s *BuildState) buildSource(src Block, in *ConnectionPoint) {
	sb := src.Base()
	id := s.shared.buildID
	if s.target == TargetFragment {
		vertexOnly := sb.target == TargetVertex ||
			(sb.target != TargetVertexAndFragment && sb.builtIn(id, TargetVertex) && !sb.builtIn(id, TargetFragment))
		if vertexOnly {
			if !sb.builtIn(id, TargetVertex) {
				s.vertex.build(src)
			}
			s.carryVarying(in)
			return
		}
	}
	s.build(src)
}

// carryVarying declares a varying assigned in the vertex stage from the source of in
// and makes in read the varying in the fragment stage.
func (s *BuildState) carryVarying(in *ConnectionPoint) {
	sh := s.shared
	src := in.connected
	name, ok := sh.varyingFor[src]
	if !ok {
		srcName := src.VariableName()
		if srcName == "" {
			sh.diags.add(SeverityError, in.owner, in, "source of "+in.String()+" produced no value in the vertex stage")
			return
		}
		name = s.FreeVariableName("v_" + srcName)
		sh.varyingFor[src] = name
		if s.EmitVarying(name, src.Type(), "") {
			s.vertex.body = glbuild.AppendAssign(s.vertex.body, name, srcName)
		}
	}
	in.SetVariableName(name)
}

// finalize returns the stage source without the version directive.
func (s *BuildState) finalize() string {
	var b []byte
	comments := s.shared.cfg.Flags&FlagEmitComments != 0
	if s.shared.cfg.Flags&FlagNoPrecision == 0 {
		b = append(b, glbuild.PrecisionStr...)
	}
	if comments && len(s.attributes) > 0 {
		b = append(b, "\n// Attributes\n"...)
	}
	for _, a := range s.attributes {
		b = glbuild.AppendAttributeDecl(b, a.Type.GLSLType(), a.Name)
	}
	if comments && len(s.uniforms)+len(s.samplers) > 0 {
		b = append(b, "\n// Uniforms\n"...)
	}
	for _, u := range s.uniforms {
		b = appendGuarded(b, u.Define, func(b []byte) []byte {
			return glbuild.AppendUniformDecl(b, u.Type.GLSLType(), u.Name)
		})
	}
	for _, u := range s.samplers {
		b = appendGuarded(b, u.Define, func(b []byte) []byte {
			return glbuild.AppendSamplerDecl(b, u.Name)
		})
	}
	if comments && len(s.shared.varyings) > 0 {
		b = append(b, "\n// Varyings\n"...)
	}
	for _, v := range s.shared.varyings {
		b = appendGuarded(b, v.Define, func(b []byte) []byte {
			return glbuild.AppendVaryingDecl(b, s.target == TargetVertex, v.Type.GLSLType(), v.Name)
		})
	}
	for _, out := range s.outputs {
		b = glbuild.AppendVaryingDecl(b, true, "vec4", out)
	}
	if comments && len(s.constants) > 0 {
		b = append(b, "\n// Constants\n"...)
	}
	b = append(b, s.constants...)
	for _, fn := range s.functions {
		b = append(b, '\n')
		b = append(b, fn.Source...)
		b = append(b, '\n')
	}
	b = append(b, "\nvoid main(void) {\n"...)
	b = append(b, s.body...)
	b = append(b, "}\n"...)
	return string(b)
}

func appendGuarded(b []byte, define string, decl func([]byte) []byte) []byte {
	if define == "" {
		return decl(b)
	}
	b = glbuild.AppendIfdef(b, define, false)
	b = decl(b)
	return glbuild.AppendEndif(b)
}
