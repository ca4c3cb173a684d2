package nodemat

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/nodemat/glbuild"
)

// Texture is a GPU texture handle bound to a sampler.
type Texture interface {
	TextureID() uint32
}

// UniformSetter receives uniform values when a [Program] is bound. Implemented
// by the OpenGL program of the glprog package.
type UniformSetter interface {
	SetFloat(name string, v float32) error
	SetInt(name string, v int32) error
	SetVec2(name string, v ms2.Vec) error
	SetVec3(name string, v ms3.Vec) error
	SetVec4(name string, v Vec4) error
	// SetMat4 sets a matrix from its row-major components.
	SetMat4(name string, rowMajor [16]float32) error
	// SetSampler binds tex to texture unit and points the sampler at it.
	SetSampler(name string, unit int, tex Texture) error
}

// SetValue dispatches v to the setter method matching its type.
func SetValue(dst UniformSetter, name string, v Value) error {
	switch v.typ {
	case TypeFloat:
		return dst.SetFloat(name, v.Float())
	case TypeInt:
		return dst.SetInt(name, int32(v.Int()))
	case TypeVector2:
		return dst.SetVec2(name, v.Vec2())
	case TypeVector3, TypeColor3:
		return dst.SetVec3(name, v.Vec3())
	case TypeVector4, TypeColor4:
		return dst.SetVec4(name, v.Vec4())
	case TypeMatrix:
		return dst.SetMat4(name, v.c)
	}
	return fmt.Errorf("cannot set uniform %s from value of type %s", name, v.typ)
}

// Defines is the set of preprocessor defines enabled for a program variant.
type Defines map[string]bool

// Names returns the enabled define names in lexical order.
func (d Defines) Names() []string {
	names := make([]string, 0, len(d))
	for _, name := range slices.Sorted(maps.Keys(d)) {
		if d[name] {
			names = append(names, name)
		}
	}
	return names
}

// Key returns a hash of the enabled defines, equal for equal sets.
func (d Defines) Key() uint64 {
	var key uint64
	for _, name := range d.Names() {
		key = glbuild.Hash([]byte(name), key)
		key = glbuild.Hash([]byte{0}, key)
	}
	return key
}

// Program is a compiled graph: both stage sources, the declarations they
// make and the runtime binding list.
type Program struct {
	version      string
	vertexBody   string
	fragmentBody string

	Attributes []Attribute
	// Uniforms declared by either stage, vertex first, excluding samplers.
	Uniforms []Uniform
	Samplers []string
	Varyings []Varying
	// DefineNames lists the defines blocks may enable through PrepareDefines.
	DefineNames []string
	Diagnostics Diagnostics

	inputs    []inputBinding
	bindables []blockBinding
	definers  []blockDefines
}

func newProgram(version string, vs, fs *BuildState) *Program {
	sh := vs.shared
	p := &Program{
		version:      version,
		vertexBody:   vs.finalize(),
		fragmentBody: fs.finalize(),
		Attributes:   vs.attributes,
		Varyings:     sh.varyings,
		DefineNames:  sh.defines,
		Diagnostics:  sh.diags,
		inputs:       sh.inputs,
		bindables:    sh.bindables,
		definers:     sh.definers,
	}
	for _, s := range []*BuildState{vs, fs} {
		for _, u := range s.uniforms {
			if !slices.ContainsFunc(p.Uniforms, func(got Uniform) bool { return got.Name == u.Name }) {
				p.Uniforms = append(p.Uniforms, u)
			}
		}
		for _, u := range s.samplers {
			if !slices.Contains(p.Samplers, u.Name) {
				p.Samplers = append(p.Samplers, u.Name)
			}
		}
	}
	return p
}

// VertexSource returns the vertex stage source with no defines enabled.
func (p *Program) VertexSource() string { return p.version + p.vertexBody }

// FragmentSource returns the fragment stage source with no defines enabled.
func (p *Program) FragmentSource() string { return p.version + p.fragmentBody }

// Sources returns both stage sources with the enabled defines injected after the
// version directive.
func (p *Program) Sources(defines Defines) (vertex, fragment string) {
	var header []byte
	header = append(header, p.version...)
	for _, name := range defines.Names() {
		header = glbuild.AppendDefineDecl(header, name, "")
	}
	return string(header) + p.vertexBody, string(header) + p.fragmentBody
}

// PrepareDefines asks every block with defines to compute them for scene.
func (p *Program) PrepareDefines(scene Scene) Defines {
	defines := make(Defines, len(p.DefineNames))
	for _, d := range p.definers {
		d.prepare(scene, defines)
	}
	return defines
}

// Bind pushes all uniform values of the program to dst: system values first, then
// user uniforms, then bindable blocks, each group in registration order. Binding
// continues after a failure and the failures are returned joined.
func (p *Program) Bind(dst UniformSetter, scene Scene) error {
	var errs []error
	for _, in := range p.inputs {
		if in.mode != InputSystemValue {
			continue
		}
		v, ok := scene.SystemValue(in.system)
		if !ok {
			errs = append(errs, fmt.Errorf("scene does not provide system value %s", in.system))
			continue
		}
		if err := SetValue(dst, in.name, v); err != nil {
			errs = append(errs, err)
		}
	}
	for _, in := range p.inputs {
		if in.mode != InputUniform {
			continue
		}
		v := in.block.currentValue()
		if !v.IsSet() {
			continue
		}
		if err := SetValue(dst, in.name, v); err != nil {
			errs = append(errs, err)
		}
	}
	for _, b := range p.bindables {
		if err := b.bind(dst, scene); err != nil {
			errs = append(errs, fmt.Errorf("binding %s: %w", b.block.Base().name, err))
		}
	}
	return errors.Join(errs...)
}

// String returns both sources, for debugging.
func (p *Program) String() string {
	var sb strings.Builder
	sb.WriteString("// Vertex\n")
	sb.WriteString(p.VertexSource())
	sb.WriteString("// Fragment\n")
	sb.WriteString(p.FragmentSource())
	return sb.String()
}
