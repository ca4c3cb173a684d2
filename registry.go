package nodemat

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrUnknownBlock is returned when a serialized block class is not registered.
var ErrUnknownBlock = errors.New("unknown block class")

// BlockConstructor returns a new block named name.
type BlockConstructor func(name string) Block

// Registry maps block class names to constructors. It is used to recreate blocks
// from serialized graphs.
type Registry struct {
	ctors map[string]BlockConstructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]BlockConstructor)}
}

// DefaultRegistry returns a new registry holding every block kind of this package.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("InputBlock", func(name string) Block { return NewInputBlock(name, TypeAutoDetect) })
	r.Register("VertexOutputBlock", func(name string) Block { return NewVertexOutputBlock(name) })
	r.Register("FragmentOutputBlock", func(name string) Block { return NewFragmentOutputBlock(name) })
	r.Register("TransformBlock", func(name string) Block { return NewTransformBlock(name) })
	for op := MathOp(0); op < mathOpEnd; op++ {
		r.Register(mathOps[op].class, func(name string) Block { return NewMathBlock(name, op) })
	}
	r.Register("ScaleBlock", func(name string) Block { return NewScaleBlock(name) })
	r.Register("LerpBlock", func(name string) Block { return NewLerpBlock(name) })
	r.Register("ClampBlock", func(name string) Block { return NewClampBlock(name) })
	r.Register("RemapBlock", func(name string) Block { return NewRemapBlock(name) })
	r.Register("TrigonometryBlock", func(name string) Block { return NewTrigonometryBlock(name, OpCos) })
	r.Register("VectorSplitterBlock", func(name string) Block { return NewVectorSplitterBlock(name) })
	r.Register("VectorMergerBlock", func(name string) Block { return NewVectorMergerBlock(name) })
	r.Register("FragCoordBlock", func(name string) Block { return NewFragCoordBlock(name) })
	r.Register("TextureBlock", func(name string) Block { return NewTextureBlock(name) })
	r.Register("FogBlock", func(name string) Block { return NewFogBlock(name) })
	return r
}

// Register adds or replaces the constructor of class.
func (r *Registry) Register(class string, ctor BlockConstructor) {
	if ctor == nil {
		panic("nil block constructor")
	}
	r.ctors[class] = ctor
}

// New returns a new block of class.
func (r *Registry) New(class, name string) (Block, error) {
	ctor, ok := r.ctors[class]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownBlock, class)
	}
	b := ctor(name)
	if b == nil {
		return nil, fmt.Errorf("constructor of %q: %w", class, ErrNilBlock)
	} else if got := b.ClassName(); got != class {
		return nil, fmt.Errorf("constructor of %q returned block of class %q", class, got)
	}
	return b, nil
}

// Classes returns the registered class names in lexical order.
func (r *Registry) Classes() []string {
	return slices.Sorted(maps.Keys(r.ctors))
}
