package nodemat

import (
	"errors"
	"log/slog"
)

// LinkedProgram is a program compiled and linked by a shader compiler, ready to
// receive uniform values.
type LinkedProgram interface {
	UniformSetter
	// Delete releases the program.
	Delete()
}

// ShaderCompiler compiles and links generated stage sources.
type ShaderCompiler interface {
	Link(vertex, fragment string) (LinkedProgram, error)
}

// Material ties a graph to its compiled program. The graph is recompiled when it was
// marked dirty and relinked whenever the enabled defines change. A Material is not
// safe for concurrent use.
type Material struct {
	graph    *Graph
	cfg      BuildConfig
	compiler ShaderCompiler

	prog       *Program
	linked     LinkedProgram
	definesKey uint64
	dirty      bool

	builds, links int
}

// NewMaterial returns a material compiling g with cfg and linking with compiler.
func NewMaterial(g *Graph, cfg BuildConfig, compiler ShaderCompiler) *Material {
	if g == nil || compiler == nil {
		panic("nil graph or compiler")
	}
	return &Material{graph: g, cfg: cfg, compiler: compiler, dirty: true}
}

// MarkDirty schedules a rebuild of the graph on the next frame. Call after
// editing blocks or connections.
func (m *Material) MarkDirty() { m.dirty = true }

// IsDirty reports whether the next frame rebuilds the graph.
func (m *Material) IsDirty() bool { return m.dirty }

// Program returns the last compiled program, nil before the first frame.
func (m *Material) Program() *Program { return m.prog }

// Linked returns the currently linked program, nil before the first frame.
func (m *Material) Linked() LinkedProgram { return m.linked }

// Stats returns how many times the graph was compiled and the program linked.
func (m *Material) Stats() (builds, links int) { return m.builds, m.links }

// Frame prepares the material for drawing scene: it rebuilds the graph if dirty,
// relinks when the defines derived from scene changed and binds all uniforms.
// Bind failures are logged and do not fail the frame.
func (m *Material) Frame(scene Scene) error {
	if m.dirty || m.prog == nil {
		prog, err := m.graph.Build(m.cfg)
		if err != nil {
			return err
		}
		m.prog = prog
		m.dirty = false
		m.builds++
		m.definesKey = 0
		m.release()
		Logger().Info("material rebuilt", slog.String("graph", m.graph.Name), slog.Int("build", m.builds))
	}
	defines := m.prog.PrepareDefines(scene)
	key := defines.Key()
	if m.linked == nil || key != m.definesKey {
		vertex, fragment := m.prog.Sources(defines)
		linked, err := m.compiler.Link(vertex, fragment)
		if err != nil {
			return errors.Join(errors.New("linking material program"), err)
		}
		m.release()
		m.linked = linked
		m.definesKey = key
		m.links++
		Logger().Info("material linked", slog.String("graph", m.graph.Name), slog.Any("defines", defines.Names()))
	}
	err := m.prog.Bind(m.linked, scene)
	if err != nil {
		Logger().Warn("material bind", slog.String("graph", m.graph.Name), slog.String("err", err.Error()))
	}
	return nil
}

// Dispose releases the linked program.
func (m *Material) Dispose() {
	m.release()
	m.prog = nil
	m.dirty = true
}

func (m *Material) release() {
	if m.linked != nil {
		m.linked.Delete()
		m.linked = nil
	}
}
