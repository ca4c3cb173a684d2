package nodemat

import (
	"encoding/json"
	"errors"
	"fmt"
)

type serialGraph struct {
	Name        string        `json:"name,omitempty"`
	Blocks      []serialBlock `json:"blocks"`
	OutputNodes []uint64      `json:"outputNodes"`
}

type serialBlock struct {
	CustomType string          `json:"customType"`
	ID         uint64          `json:"id"`
	Name       string          `json:"name"`
	Target     Target          `json:"target"`
	Comment    string          `json:"comments,omitempty"`
	Inputs     []serialInput   `json:"inputs"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// serialInput holds either a connection to an upstream output or a literal value.
type serialInput struct {
	Name                 string `json:"name"`
	TargetBlockID        uint64 `json:"targetBlockId,omitempty"`
	TargetConnectionName string `json:"targetConnectionName,omitempty"`
	Value                *Value `json:"value,omitempty"`
}

// Marshal encodes the graph as JSON. Block identifiers are renumbered in graph order
// starting from 1. Every connected block must belong to the graph.
func Marshal(g *Graph) ([]byte, error) {
	ids := make(map[Block]uint64, len(g.blocks))
	for i, b := range g.blocks {
		ids[b] = uint64(i + 1)
	}
	sg := serialGraph{
		Name:        g.Name,
		Blocks:      make([]serialBlock, 0, len(g.blocks)),
		OutputNodes: make([]uint64, 0, len(g.outputs)),
	}
	for _, b := range g.blocks {
		bb := b.Base()
		sb := serialBlock{
			CustomType: b.ClassName(),
			ID:         ids[b],
			Name:       bb.name,
			Target:     bb.target,
			Comment:    bb.comment,
			Inputs:     make([]serialInput, 0, len(bb.inputs)),
		}
		for _, in := range bb.inputs {
			si := serialInput{Name: in.name}
			if in.connected != nil {
				src := in.connected.owner
				srcID, ok := ids[src]
				if !ok {
					return nil, fmt.Errorf("input %s connected to %s: %w", in, src.Base().name, ErrNotInGraph)
				}
				si.TargetBlockID = srcID
				si.TargetConnectionName = in.connected.name
			} else if in.value.IsSet() {
				v := in.value
				si.Value = &v
			}
			sb.Inputs = append(sb.Inputs, si)
		}
		if ph, ok := b.(PropertyHolder); ok {
			props, err := ph.MarshalProperties()
			if err != nil {
				return nil, fmt.Errorf("block %s properties: %w", bb.name, err)
			}
			sb.Properties = props
		}
		sg.Blocks = append(sg.Blocks, sb)
	}
	for _, out := range g.outputs {
		sg.OutputNodes = append(sg.OutputNodes, ids[out])
	}
	return json.MarshalIndent(sg, "", "\t")
}

// Unmarshal decodes a graph encoded by [Marshal], creating blocks with reg.
// Connections are restored as saved, without compatibility checks.
func Unmarshal(data []byte, reg *Registry) (*Graph, error) {
	if reg == nil {
		return nil, errors.New("nil registry")
	}
	var sg serialGraph
	err := json.Unmarshal(data, &sg)
	if err != nil {
		return nil, err
	}
	g := NewGraph(sg.Name)
	byID := make(map[uint64]Block, len(sg.Blocks))
	for _, sb := range sg.Blocks {
		if _, dup := byID[sb.ID]; dup || sb.ID == 0 {
			return nil, fmt.Errorf("block %q has invalid or duplicate id %d", sb.Name, sb.ID)
		}
		b, err := reg.New(sb.CustomType, sb.Name)
		if err != nil {
			return nil, err
		}
		if len(sb.Properties) > 0 {
			ph, ok := b.(PropertyHolder)
			if !ok {
				return nil, fmt.Errorf("block %q of class %s has no properties", sb.Name, sb.CustomType)
			}
			err = ph.UnmarshalProperties(sb.Properties)
			if err != nil {
				return nil, fmt.Errorf("block %q properties: %w", sb.Name, err)
			}
		}
		bb := b.Base()
		if sb.Target != 0 {
			bb.target = sb.Target
		}
		bb.comment = sb.Comment
		byID[sb.ID] = b
		g.AddBlock(b)
	}
	for _, sb := range sg.Blocks {
		b := byID[sb.ID]
		for _, si := range sb.Inputs {
			in := b.Base().Input(si.Name)
			if in == nil {
				return nil, fmt.Errorf("block %q has no input %q", sb.Name, si.Name)
			}
			if si.Value != nil {
				in.SetValue(*si.Value)
			}
			if si.TargetBlockID == 0 {
				continue
			}
			src, ok := byID[si.TargetBlockID]
			if !ok {
				return nil, fmt.Errorf("input %s references missing block %d", in, si.TargetBlockID)
			}
			out := src.Base().Output(si.TargetConnectionName)
			if out == nil {
				return nil, fmt.Errorf("block %q has no output %q", src.Base().name, si.TargetConnectionName)
			}
			err = out.ConnectToForce(in)
			if err != nil {
				return nil, err
			}
		}
	}
	for _, id := range sg.OutputNodes {
		b, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("output node references missing block %d", id)
		}
		err = g.AddOutput(b)
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}
