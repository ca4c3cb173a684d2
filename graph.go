package nodemat

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

var (
	ErrNilBlock      = errors.New("nil block")
	ErrNotInGraph    = errors.New("block not in graph")
	ErrInvalidOutput = errors.New("output node must target exactly one of vertex or fragment stage")
)

// Graph is a set of blocks and the output blocks compilation starts from.
// A Graph is not safe for concurrent use.
type Graph struct {
	Name    string
	blocks  []Block
	outputs []Block
	nextID  uint64
	buildID uint64
}

// NewGraph returns an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{Name: name}
}

// AddBlock adds b to the graph and assigns it an identifier. Adding a block twice is a no-op.
// It returns b for convenience.
func (g *Graph) AddBlock(b Block) Block {
	if b == nil {
		panic(ErrNilBlock)
	}
	if g.contains(b) {
		return b
	}
	g.nextID++
	b.Base().id = g.nextID
	g.blocks = append(g.blocks, b)
	return b
}

func (g *Graph) contains(b Block) bool {
	return slices.Contains(g.blocks, b)
}

// AddOutput adds b to the graph and marks it as the root of a vertex or fragment stage.
func (g *Graph) AddOutput(b Block) error {
	if b == nil {
		return ErrNilBlock
	}
	switch b.Base().target {
	case TargetVertex, TargetFragment:
	default:
		return fmt.Errorf("%w: block %s targets %s", ErrInvalidOutput, b.Base().name, b.Base().target)
	}
	g.AddBlock(b)
	if !slices.Contains(g.outputs, b) {
		g.outputs = append(g.outputs, b)
	}
	return nil
}

// RemoveBlock disconnects b and removes it from the graph.
func (g *Graph) RemoveBlock(b Block) error {
	idx := slices.Index(g.blocks, b)
	if idx < 0 {
		return ErrNotInGraph
	}
	b.Base().Disconnect()
	g.blocks = slices.Delete(g.blocks, idx, idx+1)
	if oidx := slices.Index(g.outputs, b); oidx >= 0 {
		g.outputs = slices.Delete(g.outputs, oidx, oidx+1)
	}
	return nil
}

// Blocks returns the blocks of the graph in insertion order. The slice must not be modified.
func (g *Graph) Blocks() []Block { return g.blocks }

// Outputs returns the output blocks of the graph. The slice must not be modified.
func (g *Graph) Outputs() []Block { return g.outputs }

// BlockByName returns the first block named name, or nil.
func (g *Graph) BlockByName(name string) Block {
	for _, b := range g.blocks {
		if b.Base().name == name {
			return b
		}
	}
	return nil
}

// BlockByID returns the block with identifier id, or nil.
func (g *Graph) BlockByID(id uint64) Block {
	for _, b := range g.blocks {
		if b.Base().id == id {
			return b
		}
	}
	return nil
}

// Build compiles the graph into a vertex and fragment program. The vertex stage is
// generated first, starting from the vertex output blocks, then the fragment stage.
// Build always returns a program. The returned error joins the error diagnostics of
// the program, if any.
func (g *Graph) Build(cfg BuildConfig) (*Program, error) {
	g.buildID++
	sh := newSharedData(cfg, g.buildID)
	vs := newBuildState(TargetVertex, sh, nil)
	fs := newBuildState(TargetFragment, sh, vs)

	var vertexOuts, fragmentOuts []Block
	for _, out := range g.outputs {
		if out.Base().target == TargetVertex {
			vertexOuts = append(vertexOuts, out)
		} else {
			fragmentOuts = append(fragmentOuts, out)
		}
	}
	if len(vertexOuts) == 0 && cfg.Flags&FlagAllowEmptyVertexProgram == 0 {
		sh.diags.add(SeverityError, nil, nil, "graph has no vertex output block")
	}
	if len(fragmentOuts) == 0 {
		sh.diags.add(SeverityError, nil, nil, "graph has no fragment output block")
	}
	vertexRoots := g.prepare(sh, vertexOuts, fragmentOuts)

	for _, b := range vertexRoots {
		vs.build(b)
	}
	for _, b := range fragmentOuts {
		fs.build(b)
	}
	sh.reportNotConnected()
	if len(vertexOuts) > 0 && !sh.emittedVertex {
		sh.diags.add(SeverityWarning, nil, nil, "no final vertex block was built")
	}
	if len(fragmentOuts) > 0 && !sh.emittedFragment {
		sh.diags.add(SeverityWarning, nil, nil, "no final fragment block was built")
	}

	prog := newProgram(cfg.version(), vs, fs)
	Logger().Debug("graph built", slog.String("graph", g.Name), slog.Int("diagnostics", len(prog.Diagnostics)))
	return prog, prog.Diagnostics.Err()
}

// prepare resets the compilation state of every reachable block, reserves attribute
// names, checks unique blocks and returns the vertex pass roots: the vertex outputs
// followed by vertex stage blocks only reachable from the fragment outputs.
func (g *Graph) prepare(sh *sharedData, vertexOuts, fragmentOuts []Block) (vertexRoots []Block) {
	visited := make(map[Block]bool)
	var reachable []Block
	var walk func(b Block, fromFragment bool)
	walk = func(b Block, fromFragment bool) {
		if visited[b] {
			return
		}
		visited[b] = true
		bb := b.Base()
		bb.buildID = 0
		bb.builtStages = 0
		bb.visiting = false
		bb.resetNames()
		reachable = append(reachable, b)
		for _, in := range bb.inputs {
			if in.connected != nil {
				walk(in.connected.owner, fromFragment)
			}
		}
		if fromFragment && (bb.target == TargetVertex || (bb.target == TargetVertexAndFragment && !bb.isInput)) {
			vertexRoots = append(vertexRoots, b)
		}
	}
	for _, b := range vertexOuts {
		walk(b, false)
	}
	vertexRoots = append(vertexOuts[:len(vertexOuts):len(vertexOuts)], vertexRoots...)
	for _, b := range fragmentOuts {
		walk(b, true)
	}

	// Attribute names are fixed, no generated name may shadow them.
	for _, b := range reachable {
		if ib, ok := b.(*InputBlock); ok && ib.mode == InputAttribute {
			sh.varNames.Claim(ib.attribute)
		}
	}

	// Unique blocks, checked over the whole graph and any connected block outside it.
	seen := make(map[string]Block)
	check := slices.Concat(g.blocks, reachable)
	checked := make(map[Block]bool)
	for _, b := range check {
		if checked[b] || !b.Base().unique {
			continue
		}
		checked[b] = true
		cls := b.ClassName()
		if first, ok := seen[cls]; ok && first != b {
			sh.diags.add(SeverityError, b, nil, "graph cannot have more than one "+cls)
			continue
		}
		seen[cls] = b
	}
	return vertexRoots
}

// Clone returns a deep copy of the graph built through serialization.
func (g *Graph) Clone(reg *Registry) (*Graph, error) {
	data, err := Marshal(g)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data, reg)
}
