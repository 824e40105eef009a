package quarry

import (
	"github.com/TheBitDrifter/mask"
)

type Operation int

const (
	OpAnd Operation = iota
	OpOr
	OpNot
)

type compositeNode struct {
	op         Operation
	children   []QueryNode
	components []Component
}

type query struct {
	root QueryNode
}

func newQuery() Query {
	return &query{}
}

func newCompositeNode(op Operation, components []Component) *compositeNode {
	return &compositeNode{
		op:         op,
		children:   make([]QueryNode, 0),
		components: components,
	}
}

// nodeMask builds the mask for a component list without registering unknown
// kinds. An unregistered kind cannot be present on any archetype, so the
// second result lets callers decide whether that makes the node unmatchable
// (And) or merely vacuous (Or, Not).
func nodeMask(components []Component, reg *Registry) (mask.Mask, bool) {
	var m mask.Mask
	allKnown := true
	for _, comp := range components {
		id, ok := reg.Lookup(comp)
		if !ok {
			allKnown = false
			continue
		}
		m.Mark(uint32(id))
	}
	return m, allKnown
}

func (n *compositeNode) Evaluate(arch ArchetypeView, reg *Registry) bool {
	knownMask, allKnown := nodeMask(n.components, reg)
	archeMask := arch.a.mask

	switch n.op {
	case OpAnd:
		if !allKnown || !archeMask.ContainsAll(knownMask) {
			return false
		}
		for _, child := range n.children {
			if !child.Evaluate(arch, reg) {
				return false
			}
		}
		return true

	case OpOr:
		if archeMask.ContainsAny(knownMask) {
			return true
		}
		for _, child := range n.children {
			if child.Evaluate(arch, reg) {
				return true
			}
		}
		return false

	case OpNot:
		if len(n.children) == 0 {
			return archeMask.ContainsNone(knownMask)
		}
		for _, child := range n.children {
			if child.Evaluate(arch, reg) {
				return false
			}
		}
		return !archeMask.ContainsAny(knownMask)
	}
	return false
}

func (q *query) And(items ...interface{}) QueryNode {
	components, children := q.processItems(items...)
	node := newCompositeNode(OpAnd, components)
	node.children = children
	if q.root == nil {
		q.root = node
	}
	return node
}

func (q *query) Or(items ...interface{}) QueryNode {
	components, children := q.processItems(items...)
	node := newCompositeNode(OpOr, components)
	node.children = children
	if q.root == nil {
		q.root = node
	}
	return node
}

func (q *query) Not(items ...interface{}) QueryNode {
	components, children := q.processItems(items...)
	node := newCompositeNode(OpNot, components)
	node.children = children
	if q.root == nil {
		q.root = node
	}
	return node
}

func (q *query) processItems(items ...interface{}) ([]Component, []QueryNode) {
	components := make([]Component, 0)
	children := make([]QueryNode, 0)

	for _, item := range items {
		switch v := item.(type) {
		case Component:
			components = append(components, v)
		case []Component:
			components = append(components, v...)
		case QueryNode:
			children = append(children, v)
		}
	}

	return components, children
}

func (q *query) Evaluate(arch ArchetypeView, reg *Registry) bool {
	if q.root == nil {
		return false
	}
	return q.root.Evaluate(arch, reg)
}
