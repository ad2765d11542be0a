package plan

import (
	"github.com/formworklabs/formwork/shape"
)

// Plan is a precomputed mirror of a shape's recursive structure: one node
// per reachable sub-shape, name lookup tables for structs and variants,
// and back-reference nodes where a shape recurses into itself. Building it
// once avoids repeated shape inspection and unbounded recursion on
// self-referential types.
type Plan struct {
	shape *shape.Shape
	nodes []node
}

// node children are node indices; -1 means absent. back points at an
// ancestor node when this node is a back-reference.
type node struct {
	shape *shape.Shape
	back  int32

	fields   []int32
	variants []int32
	elem     int32
	key      int32
	inner    int32
	ok       int32
	err      int32
	pointee  int32

	lookup        *nameLookup
	variantLookup *nameLookup
}

// New builds the plan for s.
func New(s *shape.Shape) *Plan {
	p := &Plan{shape: s}
	b := &builder{p: p, visiting: make(map[*shape.Shape]int32)}
	b.build(s)
	return p
}

// Shape returns the root shape the plan was built for.
func (p *Plan) Shape() *shape.Shape { return p.shape }

// Root returns the root node.
func (p *Plan) Root() Node { return p.NodeAt(0) }

// NodeAt returns the node at idx, resolving back-references to their
// target. An out-of-range idx yields an invalid Node.
func (p *Plan) NodeAt(idx int32) Node {
	if idx < 0 || int(idx) >= len(p.nodes) {
		return Node{p: p, idx: -1}
	}
	if b := p.nodes[idx].back; b >= 0 {
		idx = b
	}
	return Node{p: p, idx: idx}
}

// Len returns the number of nodes, back-references included.
func (p *Plan) Len() int { return len(p.nodes) }

type builder struct {
	p        *Plan
	visiting map[*shape.Shape]int32
}

func (b *builder) build(s *shape.Shape) int32 {
	if target, ok := b.visiting[s]; ok {
		b.p.nodes = append(b.p.nodes, node{shape: s, back: target})
		return int32(len(b.p.nodes) - 1)
	}

	idx := int32(len(b.p.nodes))
	b.p.nodes = append(b.p.nodes, node{
		shape: s, back: -1,
		elem: -1, key: -1, inner: -1, ok: -1, err: -1, pointee: -1,
	})
	b.visiting[s] = idx
	defer delete(b.visiting, s)

	switch s.Kind {
	case shape.KindStruct, shape.KindTuple:
		fields := make([]int32, len(s.Fields))
		for i := range s.Fields {
			fields[i] = b.build(s.Fields[i].Shape)
		}
		b.p.nodes[idx].fields = fields
		b.p.nodes[idx].lookup = newFieldLookup(s)

	case shape.KindEnum, shape.KindVariant:
		variants := make([]int32, len(s.Variants))
		for i := range s.Variants {
			variants[i] = -1
			if s.Variants[i].Payload != nil {
				variants[i] = b.build(s.Variants[i].Payload)
			}
		}
		b.p.nodes[idx].variants = variants
		b.p.nodes[idx].variantLookup = newVariantLookup(s)

	case shape.KindList, shape.KindSet, shape.KindSlice:
		if s.Elem != nil {
			b.p.nodes[idx].elem = b.build(s.Elem)
		}

	case shape.KindMap:
		if s.Key != nil {
			b.p.nodes[idx].key = b.build(s.Key)
		}
		if s.Elem != nil {
			b.p.nodes[idx].elem = b.build(s.Elem)
		}

	case shape.KindOption:
		if s.Inner != nil {
			b.p.nodes[idx].inner = b.build(s.Inner)
		}

	case shape.KindResult:
		if s.Ok != nil {
			b.p.nodes[idx].ok = b.build(s.Ok)
		}
		if s.Err != nil {
			b.p.nodes[idx].err = b.build(s.Err)
		}

	case shape.KindPointer:
		if s.Pointer != nil && s.Pointer.Pointee != nil {
			b.p.nodes[idx].pointee = b.build(s.Pointer.Pointee)
		}

	default:
		if s.Inner != nil {
			b.p.nodes[idx].inner = b.build(s.Inner)
		}
	}

	return idx
}

// Node is a view over one plan node.
type Node struct {
	p   *Plan
	idx int32
}

// Valid reports whether the node exists.
func (n Node) Valid() bool { return n.idx >= 0 }

// Index returns the node's position in the plan.
func (n Node) Index() int32 { return n.idx }

// Shape returns the node's shape, nil for invalid nodes.
func (n Node) Shape() *shape.Shape {
	if !n.Valid() {
		return nil
	}
	return n.p.nodes[n.idx].shape
}

// IsBackRef reports whether idx held a back-reference before resolution.
// NodeAt resolves them, so a Node's own back is always -1; this inspects a
// raw index.
func (p *Plan) IsBackRef(idx int32) bool {
	return idx >= 0 && int(idx) < len(p.nodes) && p.nodes[idx].back >= 0
}

// FieldIndex resolves a field name or alias through the node's lookup
// table. Returns -1 if absent or the node is not a product.
func (n Node) FieldIndex(name string) int {
	if !n.Valid() || n.p.nodes[n.idx].lookup == nil {
		return -1
	}
	return n.p.nodes[n.idx].lookup.index(name)
}

// VariantIndex resolves a variant name. Returns -1 if absent.
func (n Node) VariantIndex(name string) int {
	if !n.Valid() || n.p.nodes[n.idx].variantLookup == nil {
		return -1
	}
	return n.p.nodes[n.idx].variantLookup.index(name)
}

func (n Node) child(get func(*node) int32) Node {
	if !n.Valid() {
		return n
	}
	return n.p.NodeAt(get(&n.p.nodes[n.idx]))
}

// Field returns the node for field i.
func (n Node) Field(i int) Node {
	return n.child(func(nd *node) int32 {
		if i < 0 || i >= len(nd.fields) {
			return -1
		}
		return nd.fields[i]
	})
}

// VariantPayload returns the node for case i's payload; invalid for unit
// cases.
func (n Node) VariantPayload(i int) Node {
	return n.child(func(nd *node) int32 {
		if i < 0 || i >= len(nd.variants) {
			return -1
		}
		return nd.variants[i]
	})
}

// Elem returns the element node of a list, set, slice or map.
func (n Node) Elem() Node { return n.child(func(nd *node) int32 { return nd.elem }) }

// Key returns the key node of a map.
func (n Node) Key() Node { return n.child(func(nd *node) int32 { return nd.key }) }

// Inner returns the payload node of an option or wrapper.
func (n Node) Inner() Node { return n.child(func(nd *node) int32 { return nd.inner }) }

// Ok returns the ok payload node of a result.
func (n Node) Ok() Node { return n.child(func(nd *node) int32 { return nd.ok }) }

// Err returns the err payload node of a result.
func (n Node) Err() Node { return n.child(func(nd *node) int32 { return nd.err }) }

// Pointee returns the pointee node of an indirection.
func (n Node) Pointee() Node { return n.child(func(nd *node) int32 { return nd.pointee }) }
