package nodemat

import (
	"encoding/json"
	"errors"
)

// Block is a node of a material graph. Block kinds embed a [BlockBase], which
// provides connection bookkeeping, and implement the code emission in Build.
type Block interface {
	// Base returns the shared block state. It is promoted from an embedded BlockBase.
	Base() *BlockBase
	// ClassName identifies the block kind in serialized graphs, see [Registry].
	ClassName() string
	// Build emits the block's code for the current stage of state. The compiler calls it
	// at most once per stage per compilation, after every connected source was built.
	Build(state *BuildState) error
}

// BindFunc pushes the values of a block into a program for one frame.
type BindFunc func(dst UniformSetter, scene Scene) error

// DefinesFunc sets the defines a block controls for scene.
type DefinesFunc func(scene Scene, defines Defines)

// Binder is implemented by blocks that push uniform values each frame.
// Blocks register themselves during a build with [BuildState.RegisterBindable],
// after allocating their uniform names.
type Binder interface {
	Block
	// BindFunc returns the function binding the names allocated by the build in progress.
	BindFunc() BindFunc
}

// DefinePreparer is implemented by blocks whose emitted code depends on preprocessor
// defines. Blocks register themselves with [BuildState.RegisterDefines], after
// allocating their define names.
type DefinePreparer interface {
	Block
	// DefinesFunc returns the function setting the defines allocated by the build in progress.
	DefinesFunc() DefinesFunc
}

// PropertyHolder is implemented by blocks with serializable properties.
type PropertyHolder interface {
	Block
	MarshalProperties() (json.RawMessage, error)
	UnmarshalProperties(data json.RawMessage) error
}

// BlockBase holds the state common to all blocks. Block kinds embed it and call
// [BlockBase.Init] from their constructor.
type BlockBase struct {
	self    Block
	id      uint64
	name    string
	target  Target
	inputs  []*ConnectionPoint
	outputs []*ConnectionPoint
	// finalMerger blocks terminate a stage: VertexOutputBlock and FragmentOutputBlock.
	finalMerger bool
	// unique blocks may appear at most once per graph.
	unique  bool
	isInput bool
	comment string

	buildID     uint64
	builtStages Target
	visiting    bool
}

var errBlockInit = errors.New("block not initialized: call BlockBase.Init from the constructor")

// Init binds the base to the block that embeds it. Constructors of block kinds
// defined outside this package must call Init before registering points.
func (bb *BlockBase) Init(self Block, name string, target Target) {
	if self == nil {
		panic("nil block")
	} else if self.Base() != bb {
		panic("Init called on BlockBase not embedded in block")
	}
	bb.self = self
	bb.name = name
	bb.target = target
}

// Base implements [Block].
func (bb *BlockBase) Base() *BlockBase { return bb }

// ID returns the identifier assigned when the block was added to a [Graph]. Zero if not added.
func (bb *BlockBase) ID() uint64 { return bb.id }

func (bb *BlockBase) Name() string        { return bb.name }
func (bb *BlockBase) SetName(name string) { bb.name = name }

// Target returns the stages the block emits code into.
func (bb *BlockBase) Target() Target { return bb.target }

// SetTarget changes the block target.
func (bb *BlockBase) SetTarget(t Target) { bb.target = t }

// Comment returns a free text comment emitted above the block's code when
// [FlagEmitComments] is set.
func (bb *BlockBase) Comment() string { return bb.comment }

func (bb *BlockBase) SetComment(comment string) { bb.comment = comment }

// IsFinalMerger reports whether the block terminates a shader stage.
func (bb *BlockBase) IsFinalMerger() bool { return bb.finalMerger }

// IsUnique reports whether at most one block of this class may exist in a graph.
func (bb *BlockBase) IsUnique() bool { return bb.unique }

// Inputs returns the block inputs in declaration order. The slice must not be modified.
func (bb *BlockBase) Inputs() []*ConnectionPoint { return bb.inputs }

// Outputs returns the block outputs in declaration order. The slice must not be modified.
func (bb *BlockBase) Outputs() []*ConnectionPoint { return bb.outputs }

// Input returns the input named name or nil.
func (bb *BlockBase) Input(name string) *ConnectionPoint { return findPoint(bb.inputs, name) }

// Output returns the output named name or nil.
func (bb *BlockBase) Output(name string) *ConnectionPoint { return findPoint(bb.outputs, name) }

func findPoint(points []*ConnectionPoint, name string) *ConnectionPoint {
	for _, cp := range points {
		if cp.name == name {
			return cp
		}
	}
	return nil
}

// RegisterInput adds an input point of the given type. Inputs participate in both
// stages unless restricted with [ConnectionPoint.SetTarget].
func (bb *BlockBase) RegisterInput(name string, typ PointType, optional bool) *ConnectionPoint {
	bb.mustInit()
	cp := &ConnectionPoint{
		name:      name,
		owner:     bb.self,
		direction: Input,
		typ:       typ,
		target:    TargetVertexAndFragment,
		optional:  optional,
	}
	bb.inputs = append(bb.inputs, cp)
	return cp
}

// RegisterOutput adds an output point of the given type.
func (bb *BlockBase) RegisterOutput(name string, typ PointType) *ConnectionPoint {
	bb.mustInit()
	cp := &ConnectionPoint{
		name:      name,
		owner:     bb.self,
		direction: Output,
		typ:       typ,
		target:    TargetVertexAndFragment,
	}
	bb.outputs = append(bb.outputs, cp)
	return cp
}

func (bb *BlockBase) mustInit() {
	if bb.self == nil {
		panic(errBlockInit)
	}
}

// linkTypes makes two AutoDetect inputs adopt each other's connected type.
func linkTypes(a, b *ConnectionPoint) {
	a.linked = b
	b.linked = a
}

// basedOn makes an output resolve its type from the given inputs.
func basedOn(out *ConnectionPoint, defaultType PointType, sources ...*ConnectionPoint) {
	out.typ = TypeBasedOnInput
	out.typeSources = sources
	out.defaultType = defaultType
}

// IsAncestorOf reports whether b is reachable downstream of the receiver.
func (bb *BlockBase) IsAncestorOf(b Block) bool {
	return bb.isAncestorOf(b, make(map[*BlockBase]bool))
}

func (bb *BlockBase) isAncestorOf(b Block, visited map[*BlockBase]bool) bool {
	for _, out := range bb.outputs {
		for _, ep := range out.endpoints {
			child := ep.owner.Base()
			if child == b.Base() {
				return true
			}
			if visited[child] {
				continue
			}
			visited[child] = true
			if child.isAncestorOf(b, visited) {
				return true
			}
		}
	}
	return false
}

// Disconnect removes every edge of the block.
func (bb *BlockBase) Disconnect() {
	for _, cp := range bb.inputs {
		cp.DisconnectAll()
	}
	for _, cp := range bb.outputs {
		cp.DisconnectAll()
	}
}

// built reports whether the block was already emitted into stage during compilation id.
// Blocks targeting both stages are emitted once per stage.
func (bb *BlockBase) built(id uint64, stage Target) bool {
	if bb.buildID != id {
		return false
	}
	if bb.target == TargetVertexAndFragment {
		return bb.builtStages&stage != 0
	}
	return bb.builtStages != 0
}

func (bb *BlockBase) markBuilt(id uint64, stage Target) {
	if bb.buildID != id {
		bb.buildID = id
		bb.builtStages = 0
	}
	bb.builtStages |= stage
}

// builtIn reports whether the block was emitted into stage during compilation id.
func (bb *BlockBase) builtIn(id uint64, stage Target) bool {
	return bb.buildID == id && bb.builtStages&stage != 0
}

// resetNames clears all variable names allocated by a previous compilation.
func (bb *BlockBase) resetNames() {
	for _, cp := range bb.inputs {
		cp.resetName()
	}
	for _, cp := range bb.outputs {
		cp.resetName()
	}
}
