package nodemat

import "fmt"

// ConnectionError is returned when two points cannot be connected.
type ConnectionError struct {
	State    CompatibilityState
	From, To *ConnectionPoint
}

func (ce *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect %s to %s: %s", ce.From, ce.To, ce.State)
}

// ConnectionPoint is a typed input or output slot of a block. Inputs have at most
// one upstream connected output. Outputs fan out to any number of endpoints.
type ConnectionPoint struct {
	name      string
	owner     Block
	direction Direction
	typ       PointType
	target    Target
	optional  bool
	value     Value

	connected *ConnectionPoint
	endpoints []*ConnectionPoint

	accepted PointType
	excluded PointType
	// linked is an AutoDetect sibling whose connected type is adopted when this point is unconnected.
	linked *ConnectionPoint
	// strictLink disables scalar broadcast between linked inputs.
	strictLink bool
	// typeSources resolve BasedOnInput types.
	typeSources []*ConnectionPoint
	defaultType PointType

	varName     string
	enforceName bool
}

// Name returns the point name, unique among the owner's inputs or outputs.
func (cp *ConnectionPoint) Name() string { return cp.name }

// Owner returns the block the point belongs to.
func (cp *ConnectionPoint) Owner() Block { return cp.owner }

func (cp *ConnectionPoint) Direction() Direction { return cp.direction }

// Target returns the stages the point participates in.
func (cp *ConnectionPoint) Target() Target { return cp.target }

// SetTarget restricts the point to the given stages.
func (cp *ConnectionPoint) SetTarget(t Target) { cp.target = t }

// IsOptional reports whether a build may leave the input unconnected without an error.
func (cp *ConnectionPoint) IsOptional() bool { return cp.optional }

// DeclaredType returns the type the point was declared with, which may be
// TypeAutoDetect or TypeBasedOnInput. See [ConnectionPoint.Type].
func (cp *ConnectionPoint) DeclaredType() PointType { return cp.typ }

// AcceptedTypes returns the mask of additional source types an input accepts.
func (cp *ConnectionPoint) AcceptedTypes() PointType { return cp.accepted }

// SetAcceptedTypes sets the mask of additional source types an input accepts.
func (cp *ConnectionPoint) SetAcceptedTypes(mask PointType) { cp.accepted = mask }

// ExcludedTypes returns the mask of source types an input rejects.
func (cp *ConnectionPoint) ExcludedTypes() PointType { return cp.excluded }

// SetExcludedTypes sets the mask of source types an input rejects.
func (cp *ConnectionPoint) SetExcludedTypes(mask PointType) { cp.excluded = mask }

// Value returns the literal used when the input is unconnected.
func (cp *ConnectionPoint) Value() Value { return cp.value }

// SetValue sets the literal used when the input is unconnected.
func (cp *ConnectionPoint) SetValue(v Value) { cp.value = v }

// Type returns the resolved type of the point. Resolution is computed on every call
// so it always reflects the current connections.
func (cp *ConnectionPoint) Type() PointType {
	switch cp.typ {
	case TypeAutoDetect:
		if cp.connected != nil {
			return cp.connected.Type()
		}
		if cp.linked != nil && cp.linked.connected != nil {
			return cp.linked.connected.Type()
		}
		if cp.value.IsSet() {
			return cp.value.typ
		}
		if cp.defaultType != 0 {
			return cp.defaultType
		}
	case TypeBasedOnInput:
		return cp.resolveBasedOnInput()
	}
	return cp.typ
}

// SourceType returns the type of the value an input actually receives: the resolved
// type of its upstream output when connected, else the type of its literal, else
// [ConnectionPoint.Type]. It differs from Type for inputs accepting extra types.
func (cp *ConnectionPoint) SourceType() PointType {
	if cp.direction == Input {
		if cp.connected != nil {
			return cp.connected.Type()
		}
		if cp.value.IsSet() {
			return cp.value.typ
		}
	}
	return cp.Type()
}

// resolveBasedOnInput picks the widest source type. Vector types win over scalars
// and over matrices, since matrix*vector yields a vector.
func (cp *ConnectionPoint) resolveBasedOnInput() PointType {
	var scalar, matrix, vector PointType
	for _, src := range cp.typeSources {
		if src.connected == nil && !src.value.IsSet() && src.typ == TypeAutoDetect &&
			(src.linked == nil || src.linked.connected == nil) {
			continue // Unresolvable source.
		}
		t := src.Type()
		switch {
		case t.isScalar():
			if scalar == 0 {
				scalar = t
			}
		case t == TypeMatrix:
			matrix = t
		case t == TypeAutoDetect || t == TypeBasedOnInput:
		default:
			if vector == 0 {
				vector = t
			}
		}
	}
	switch {
	case vector != 0:
		return vector
	case matrix != 0:
		return matrix
	case scalar != 0:
		return scalar
	case cp.defaultType != 0:
		return cp.defaultType
	}
	return TypeFloat
}

// IsConnected reports whether an input has an upstream point or an output has endpoints.
func (cp *ConnectionPoint) IsConnected() bool {
	return cp.connected != nil || len(cp.endpoints) > 0
}

// ConnectedPoint returns the upstream output of an input, or nil.
func (cp *ConnectionPoint) ConnectedPoint() *ConnectionPoint { return cp.connected }

// Endpoints returns the inputs an output feeds. The returned slice must not be modified.
func (cp *ConnectionPoint) Endpoints() []*ConnectionPoint { return cp.endpoints }

// HasEndpoints reports whether an output feeds any input.
func (cp *ConnectionPoint) HasEndpoints() bool { return len(cp.endpoints) > 0 }

// IsConnectedInVertexShader reports whether the value of the point is needed by the vertex stage.
func (cp *ConnectionPoint) IsConnectedInVertexShader() bool {
	return cp.isConnectedIn(TargetVertex, make(map[Block]bool))
}

// IsConnectedInFragmentShader reports whether the value of the point is needed by the fragment stage.
func (cp *ConnectionPoint) IsConnectedInFragmentShader() bool {
	return cp.isConnectedIn(TargetFragment, make(map[Block]bool))
}

func (cp *ConnectionPoint) isConnectedIn(stage Target, visited map[Block]bool) bool {
	if cp.target == stage {
		return true
	}
	for _, ep := range cp.endpoints {
		blk := ep.owner.Base()
		if blk.target == stage || ep.target == stage {
			return true
		}
		if visited[ep.owner] {
			continue
		}
		visited[ep.owner] = true
		if blk.target == TargetNeutral || blk.target == TargetVertexAndFragment {
			for _, out := range blk.outputs {
				if out.isConnectedIn(stage, visited) {
					return true
				}
			}
		}
	}
	return false
}

// dependsOnFragment reports whether the value of output cp is computed from fragment
// stage data, directly or through neutral blocks.
func (cp *ConnectionPoint) dependsOnFragment(visited map[Block]bool) bool {
	blk := cp.owner.Base()
	if blk.target == TargetFragment || cp.target == TargetFragment {
		return true
	}
	if blk.target != TargetNeutral || visited[cp.owner] {
		return false
	}
	visited[cp.owner] = true
	for _, in := range blk.inputs {
		if in.connected != nil && in.connected.dependsOnFragment(visited) {
			return true
		}
	}
	return false
}

// VariableName returns the GLSL identifier holding the point's value, or the empty
// string if no name has been allocated. Inputs resolve to their upstream output's
// name unless a local override (a varying) is enforced.
func (cp *ConnectionPoint) VariableName() string {
	if cp.direction == Input && !cp.enforceName && cp.connected != nil {
		return cp.connected.VariableName()
	}
	return cp.varName
}

// SetVariableName sets a local variable name override. On inputs the override
// takes precedence over the upstream name.
func (cp *ConnectionPoint) SetVariableName(name string) {
	cp.varName = name
	cp.enforceName = name != ""
}

func (cp *ConnectionPoint) resetName() {
	cp.varName = ""
	cp.enforceName = false
}

// orient returns the output and input of a pair of points.
func orient(a, b *ConnectionPoint) (out, in *ConnectionPoint, ok bool) {
	if a.direction == b.direction {
		return nil, nil, false
	}
	if a.direction == Output {
		return a, b, true
	}
	return b, a, true
}

// CanConnectTo reports whether cp and other may be connected.
func (cp *ConnectionPoint) CanConnectTo(other *ConnectionPoint) bool {
	return cp.CompatibilityState(other) == Compatible
}

// CompatibilityState checks whether cp and other may be connected, returning
// [Compatible] or the reason they may not. The check has no side effects.
func (cp *ConnectionPoint) CompatibilityState(other *ConnectionPoint) CompatibilityState {
	out, in, ok := orient(cp, other)
	if !ok {
		return DirectionIncompatible
	}
	srcBlock := out.owner.Base()
	dstBlock := in.owner.Base()
	if srcBlock == dstBlock {
		return HierarchyIssue
	}

	// Fragment values may never flow into the vertex stage.
	if out.dependsOnFragment(make(map[Block]bool)) {
		if dstBlock.target == TargetVertex || in.target == TargetVertex {
			return TargetIncompatible
		}
		for _, dstOut := range dstBlock.outputs {
			if dstOut.IsConnectedInVertexShader() {
				return TargetIncompatible
			}
		}
	}

	st := out.Type()
	if in.typ != TypeAutoDetect {
		dt := in.Type()
		if !equivalentTypes(st, dt) && in.accepted&st == 0 {
			return TypeIncompatible
		}
	} else if in.linked != nil && in.linked.connected != nil && in.linked.connected != out {
		// Linked AutoDetect inputs must agree, scalars broadcast.
		lt := in.linked.connected.Type()
		broadcast := !in.strictLink && (st.isScalar() || lt.isScalar())
		if !equivalentTypes(st, lt) && !broadcast && in.accepted&st == 0 {
			return TypeIncompatible
		}
	}
	if in.excluded&st != 0 {
		return TypeIncompatible
	}

	if dstBlock.IsAncestorOf(out.owner) {
		return HierarchyIssue
	}
	return Compatible
}

// ConnectTo connects an output to an input, in either argument order. It returns a
// [*ConnectionError] if the points are not compatible.
func (cp *ConnectionPoint) ConnectTo(other *ConnectionPoint) error {
	state := cp.CompatibilityState(other)
	if state != Compatible {
		return &ConnectionError{State: state, From: cp, To: other}
	}
	out, in, _ := orient(cp, other)
	link(out, in)
	return nil
}

// ConnectToForce connects two points skipping type, target and hierarchy checks.
// It still fails for same direction pairs and self connections.
func (cp *ConnectionPoint) ConnectToForce(other *ConnectionPoint) error {
	out, in, ok := orient(cp, other)
	if !ok {
		return &ConnectionError{State: DirectionIncompatible, From: cp, To: other}
	} else if out.owner == in.owner {
		return &ConnectionError{State: HierarchyIssue, From: cp, To: other}
	}
	link(out, in)
	return nil
}

func link(out, in *ConnectionPoint) {
	if in.connected == out {
		return
	}
	if in.connected != nil {
		in.connected.DisconnectFrom(in)
	}
	in.connected = out
	in.resetName()
	out.endpoints = append(out.endpoints, in)
}

// DisconnectFrom removes the edge between cp and other in both directions.
// Disconnecting points that are not connected is a no-op.
func (cp *ConnectionPoint) DisconnectFrom(other *ConnectionPoint) {
	out, in, ok := orient(cp, other)
	if !ok || in.connected != out {
		return
	}
	in.connected = nil
	in.resetName()
	for i, ep := range out.endpoints {
		if ep == in {
			out.endpoints = append(out.endpoints[:i], out.endpoints[i+1:]...)
			break
		}
	}
}

// DisconnectAll removes every edge of the point.
func (cp *ConnectionPoint) DisconnectAll() {
	if cp.connected != nil {
		cp.connected.DisconnectFrom(cp)
	}
	for len(cp.endpoints) > 0 {
		cp.DisconnectFrom(cp.endpoints[len(cp.endpoints)-1])
	}
}

func (cp *ConnectionPoint) String() string {
	if cp.owner == nil {
		return cp.name
	}
	return cp.owner.Base().name + "." + cp.name
}
