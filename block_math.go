package nodemat

import (
	"encoding/json"
	"errors"
	"fmt"

	math "github.com/chewxy/math32"
)

// MathOp is a binary operation of a [MathBlock].
type MathOp uint8

const (
	MathAdd MathOp = iota
	MathSubtract
	MathMultiply
	MathDivide
	MathMin
	MathMax
	MathPow
	MathStep
	MathModulo
	MathDot
	MathCross
	MathDistance
	mathOpEnd
)

var mathOps = [mathOpEnd]struct {
	class string
	// format of the GLSL expression over left and right.
	format string
	// result is the fixed result type, zero if based on the inputs.
	result PointType
	strict bool
	// widen converts a scalar operand to the vector result type, for built-in
	// functions lacking mixed scalar and vector overloads.
	widen bool
}{
	MathAdd:      {class: "AddBlock", format: "%s + %s"},
	MathSubtract: {class: "SubtractBlock", format: "%s - %s"},
	MathMultiply: {class: "MultiplyBlock", format: "%s * %s"},
	MathDivide:   {class: "DivideBlock", format: "%s / %s"},
	MathMin:      {class: "MinBlock", format: "min(%s, %s)", widen: true},
	MathMax:      {class: "MaxBlock", format: "max(%s, %s)", widen: true},
	MathPow:      {class: "PowBlock", format: "pow(%s, %s)", strict: true},
	MathStep:     {class: "StepBlock", format: "step(%s, %s)", widen: true},
	MathModulo:   {class: "ModBlock", format: "mod(%s, %s)", widen: true},
	MathDot:      {class: "DotBlock", format: "dot(%s, %s)", result: TypeFloat, strict: true},
	MathCross:    {class: "CrossBlock", format: "cross(%s, %s)", result: TypeVector3, strict: true},
	MathDistance: {class: "DistanceBlock", format: "distance(%s, %s)", result: TypeFloat, strict: true},
}

func (op MathOp) String() string {
	if op < mathOpEnd {
		return mathOps[op].class
	}
	return fmt.Sprintf("MathOp(%d)", uint8(op))
}

// MathBlock applies a binary operation to its left and right inputs. Inputs adopt
// the type of whatever is connected and the output takes the widest input type,
// except for operations with a fixed result type such as dot products.
type MathBlock struct {
	BlockBase
	op          MathOp
	left, right *ConnectionPoint
	output      *ConnectionPoint
}

// NewMathBlock returns a block applying op.
func NewMathBlock(name string, op MathOp) *MathBlock {
	if op >= mathOpEnd {
		panic("invalid math operation")
	}
	mb := &MathBlock{op: op}
	mb.Init(mb, name, TargetNeutral)
	mb.left = mb.RegisterInput("left", TypeAutoDetect, false)
	mb.right = mb.RegisterInput("right", TypeAutoDetect, false)
	linkTypes(mb.left, mb.right)
	info := mathOps[op]
	excluded := TypeObject
	switch op {
	case MathAdd, MathSubtract, MathMultiply:
	case MathCross:
		excluded |= TypeAll &^ (TypeVector3 | TypeColor3)
	default:
		excluded |= TypeMatrix
	}
	for _, in := range []*ConnectionPoint{mb.left, mb.right} {
		in.excluded = excluded
		in.strictLink = info.strict
	}
	if info.result != 0 {
		mb.output = mb.RegisterOutput("output", info.result)
	} else {
		mb.output = mb.RegisterOutput("output", TypeBasedOnInput)
		basedOn(mb.output, TypeFloat, mb.left, mb.right)
	}
	return mb
}

// ClassName implements [Block].
func (mb *MathBlock) ClassName() string { return mathOps[mb.op].class }

func (mb *MathBlock) Op() MathOp               { return mb.op }
func (mb *MathBlock) Left() *ConnectionPoint   { return mb.left }
func (mb *MathBlock) Right() *ConnectionPoint  { return mb.right }
func (mb *MathBlock) Output() *ConnectionPoint { return mb.output }

// Build implements [Block].
func (mb *MathBlock) Build(state *BuildState) error {
	info := mathOps[mb.op]
	left, right := state.Expr(mb.left), state.Expr(mb.right)
	if info.widen {
		t := mb.output.Type()
		left, right = widenScalar(mb.left, left, t), widenScalar(mb.right, right, t)
	}
	state.Declaref(mb.output, info.format, left, right)
	return nil
}

// widenScalar returns expr, the expression of in, converted to t when in carries
// a scalar and t is a vector.
func widenScalar(in *ConnectionPoint, expr string, t PointType) string {
	if !in.SourceType().isScalar() || t.isScalar() || t.Components() == 0 {
		return expr
	}
	return t.GLSLType() + "(" + expr + ")"
}

// ScaleBlock multiplies its input by a float factor.
type ScaleBlock struct {
	BlockBase
	input, factor *ConnectionPoint
	output        *ConnectionPoint
}

func NewScaleBlock(name string) *ScaleBlock {
	sb := &ScaleBlock{}
	sb.Init(sb, name, TargetNeutral)
	sb.input = sb.RegisterInput("input", TypeAutoDetect, false)
	sb.input.excluded = TypeObject
	sb.factor = sb.RegisterInput("factor", TypeFloat, false)
	sb.output = sb.RegisterOutput("output", TypeBasedOnInput)
	basedOn(sb.output, TypeFloat, sb.input)
	return sb
}

// ClassName implements [Block].
func (sb *ScaleBlock) ClassName() string { return "ScaleBlock" }

func (sb *ScaleBlock) Input() *ConnectionPoint  { return sb.input }
func (sb *ScaleBlock) Factor() *ConnectionPoint { return sb.factor }
func (sb *ScaleBlock) Output() *ConnectionPoint { return sb.output }

// Build implements [Block].
func (sb *ScaleBlock) Build(state *BuildState) error {
	state.Declaref(sb.output, "%s * %s", state.Expr(sb.input), state.Expr(sb.factor))
	return nil
}

// LerpBlock linearly interpolates between left and right by gradient.
type LerpBlock struct {
	BlockBase
	left, right, gradient *ConnectionPoint
	output                *ConnectionPoint
}

func NewLerpBlock(name string) *LerpBlock {
	lb := &LerpBlock{}
	lb.Init(lb, name, TargetNeutral)
	lb.left = lb.RegisterInput("left", TypeAutoDetect, false)
	lb.right = lb.RegisterInput("right", TypeAutoDetect, false)
	lb.gradient = lb.RegisterInput("gradient", TypeAutoDetect, false)
	linkTypes(lb.left, lb.right)
	for _, in := range lb.inputs {
		in.excluded = TypeObject | TypeMatrix
	}
	lb.output = lb.RegisterOutput("output", TypeBasedOnInput)
	basedOn(lb.output, TypeFloat, lb.left, lb.right)
	return lb
}

// ClassName implements [Block].
func (lb *LerpBlock) ClassName() string { return "LerpBlock" }

func (lb *LerpBlock) Left() *ConnectionPoint     { return lb.left }
func (lb *LerpBlock) Right() *ConnectionPoint    { return lb.right }
func (lb *LerpBlock) Gradient() *ConnectionPoint { return lb.gradient }
func (lb *LerpBlock) Output() *ConnectionPoint   { return lb.output }

// Build implements [Block].
func (lb *LerpBlock) Build(state *BuildState) error {
	t := lb.output.Type()
	left := widenScalar(lb.left, state.Expr(lb.left), t)
	right := widenScalar(lb.right, state.Expr(lb.right), t)
	state.Declaref(lb.output, "mix(%s, %s, %s)", left, right, state.Expr(lb.gradient))
	return nil
}

// ClampBlock clamps its input between Minimum and Maximum.
type ClampBlock struct {
	BlockBase
	value, output    *ConnectionPoint
	Minimum, Maximum float32
}

// NewClampBlock returns a block clamping to [0,1].
func NewClampBlock(name string) *ClampBlock {
	cb := &ClampBlock{Maximum: 1}
	cb.Init(cb, name, TargetNeutral)
	cb.value = cb.RegisterInput("value", TypeAutoDetect, false)
	cb.value.excluded = TypeObject | TypeMatrix
	cb.output = cb.RegisterOutput("output", TypeBasedOnInput)
	basedOn(cb.output, TypeFloat, cb.value)
	return cb
}

// ClassName implements [Block].
func (cb *ClampBlock) ClassName() string { return "ClampBlock" }

func (cb *ClampBlock) Value() *ConnectionPoint  { return cb.value }
func (cb *ClampBlock) Output() *ConnectionPoint { return cb.output }

var errEmptyRange = errors.New("empty range")

// Build implements [Block].
func (cb *ClampBlock) Build(state *BuildState) error {
	if cb.Minimum > cb.Maximum || math.IsNaN(cb.Minimum) || math.IsNaN(cb.Maximum) {
		return fmt.Errorf("clamp [%v,%v]: %w", cb.Minimum, cb.Maximum, errEmptyRange)
	}
	state.Declaref(cb.output, "clamp(%s, %s, %s)", state.Expr(cb.value), formatFloat(cb.Minimum), formatFloat(cb.Maximum))
	return nil
}

type rangeProperties struct {
	Minimum float32 `json:"minimum"`
	Maximum float32 `json:"maximum"`
}

// MarshalProperties implements [PropertyHolder].
func (cb *ClampBlock) MarshalProperties() (json.RawMessage, error) {
	return json.Marshal(rangeProperties{Minimum: cb.Minimum, Maximum: cb.Maximum})
}

// UnmarshalProperties implements [PropertyHolder].
func (cb *ClampBlock) UnmarshalProperties(data json.RawMessage) error {
	var props rangeProperties
	err := json.Unmarshal(data, &props)
	if err != nil {
		return err
	}
	cb.Minimum, cb.Maximum = props.Minimum, props.Maximum
	return nil
}

// RemapBlock maps its input linearly from a source range onto a target range.
// The range bounds may be connected as inputs, otherwise the properties are used.
type RemapBlock struct {
	BlockBase
	input                                      *ConnectionPoint
	sourceMin, sourceMax, targetMin, targetMax *ConnectionPoint
	output                                     *ConnectionPoint

	SourceRange [2]float32
	TargetRange [2]float32
}

// NewRemapBlock returns a block remapping [-1,1] onto [0,1].
func NewRemapBlock(name string) *RemapBlock {
	rb := &RemapBlock{SourceRange: [2]float32{-1, 1}, TargetRange: [2]float32{0, 1}}
	rb.Init(rb, name, TargetNeutral)
	rb.input = rb.RegisterInput("input", TypeAutoDetect, false)
	rb.input.excluded = TypeObject | TypeMatrix
	rb.sourceMin = rb.RegisterInput("sourceMin", TypeFloat, true)
	rb.sourceMax = rb.RegisterInput("sourceMax", TypeFloat, true)
	rb.targetMin = rb.RegisterInput("targetMin", TypeFloat, true)
	rb.targetMax = rb.RegisterInput("targetMax", TypeFloat, true)
	rb.output = rb.RegisterOutput("output", TypeBasedOnInput)
	basedOn(rb.output, TypeFloat, rb.input)
	return rb
}

// ClassName implements [Block].
func (rb *RemapBlock) ClassName() string { return "RemapBlock" }

func (rb *RemapBlock) Input() *ConnectionPoint     { return rb.input }
func (rb *RemapBlock) SourceMin() *ConnectionPoint { return rb.sourceMin }
func (rb *RemapBlock) SourceMax() *ConnectionPoint { return rb.sourceMax }
func (rb *RemapBlock) TargetMin() *ConnectionPoint { return rb.targetMin }
func (rb *RemapBlock) TargetMax() *ConnectionPoint { return rb.targetMax }
func (rb *RemapBlock) Output() *ConnectionPoint    { return rb.output }

// Build implements [Block].
func (rb *RemapBlock) Build(state *BuildState) error {
	in := state.Expr(rb.input)
	rangesConnected := rb.sourceMin.IsConnected() || rb.sourceMax.IsConnected() ||
		rb.targetMin.IsConnected() || rb.targetMax.IsConnected()
	if !rangesConnected {
		// Fold the constant ranges into a single multiply-add.
		smin, smax := rangeBound(rb.sourceMin, rb.SourceRange[0]), rangeBound(rb.sourceMax, rb.SourceRange[1])
		tmin, tmax := rangeBound(rb.targetMin, rb.TargetRange[0]), rangeBound(rb.targetMax, rb.TargetRange[1])
		span := smax - smin
		if math.Abs(span) < 1e-12 || math.IsNaN(span) {
			return fmt.Errorf("remap source range [%v,%v]: %w", smin, smax, errEmptyRange)
		}
		scale := (tmax - tmin) / span
		offset := tmin - smin*scale
		state.Declaref(rb.output, "%s * %s + %s", in, formatFloat(scale), formatFloat(offset))
		return nil
	}
	bound := func(cp *ConnectionPoint, v float32) string {
		if cp.IsConnected() {
			return state.Expr(cp)
		}
		return formatFloat(rangeBound(cp, v))
	}
	smin := bound(rb.sourceMin, rb.SourceRange[0])
	smax := bound(rb.sourceMax, rb.SourceRange[1])
	tmin := bound(rb.targetMin, rb.TargetRange[0])
	tmax := bound(rb.targetMax, rb.TargetRange[1])
	state.Declaref(rb.output, "%s + (%s - %s) * (%s - %s) / (%s - %s)", tmin, in, smin, tmax, tmin, smax, smin)
	return nil
}

// rangeBound returns the constant value of an unconnected range input: its literal
// when set, else the property value prop.
func rangeBound(cp *ConnectionPoint, prop float32) float32 {
	if cp.value.IsSet() && cp.value.typ.isScalar() {
		return cp.value.Float()
	}
	return prop
}

type remapProperties struct {
	SourceRange [2]float32 `json:"sourceRange"`
	TargetRange [2]float32 `json:"targetRange"`
}

// MarshalProperties implements [PropertyHolder].
func (rb *RemapBlock) MarshalProperties() (json.RawMessage, error) {
	return json.Marshal(remapProperties{SourceRange: rb.SourceRange, TargetRange: rb.TargetRange})
}

// UnmarshalProperties implements [PropertyHolder].
func (rb *RemapBlock) UnmarshalProperties(data json.RawMessage) error {
	var props remapProperties
	err := json.Unmarshal(data, &props)
	if err != nil {
		return err
	}
	rb.SourceRange, rb.TargetRange = props.SourceRange, props.TargetRange
	return nil
}

func formatFloat(v float32) string {
	return string(FloatValue(v).AppendGLSL(nil))
}
