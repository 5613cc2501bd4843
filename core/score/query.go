package score

import (
	"iter"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
)

// Descendants yields every node below n in document order (pre-order,
// depth-first). The tree must not be edited while iterating.
func (n *Node) Descendants() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n.walk(yield)
	}
}

func (n *Node) walk(yield func(*Node) bool) bool {
	for _, id := range n.children {
		c := n.doc.nodes[id]
		if !yield(c) || !c.walk(yield) {
			return false
		}
	}
	return true
}

// ChildrenOfKind yields the direct children of the given kind in order.
// The sequence is lazy and may be ranged over again.
func (n *Node) ChildrenOfKind(kind Kind) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, id := range n.children {
			c := n.doc.nodes[id]
			if c.kind == kind && !yield(c) {
				return
			}
		}
	}
}

// FirstChildOfKind returns the first direct child of the given kind.
func (n *Node) FirstChildOfKind(kind Kind) (*Node, bool) {
	for c := range n.ChildrenOfKind(kind) {
		return c, true
	}
	return nil, false
}

// FindDescendant returns the first descendant in document order that
// satisfies match.
func (n *Node) FindDescendant(match func(*Node) bool) (*Node, bool) {
	for d := range n.Descendants() {
		if match(d) {
			return d, true
		}
	}
	return nil, false
}

// FindDescendantByKind returns the first descendant of the given kind.
func (n *Node) FindDescendantByKind(kind Kind) (*Node, error) {
	if d, ok := n.FindDescendant(func(c *Node) bool { return c.kind == kind }); ok {
		return d, nil
	}
	return nil, errors.NewNotFound(string(kind), "below "+string(n.id))
}

// FindDescendantByID returns the descendant with the given ID. IDs are
// unique, so the arena lookup is confirmed by walking up to n.
func (n *Node) FindDescendantByID(id NodeID) (*Node, error) {
	if n.doc != nil {
		if c, ok := n.doc.nodes[id]; ok && c != n {
			for cur, ok := c.Parent(); ok; cur, ok = cur.Parent() {
				if cur == n {
					return c, nil
				}
			}
		}
	}
	return nil, errors.NewNotFound("node", string(id))
}

// Pages yields the pages of the document in order.
func (d *Document) Pages() iter.Seq[*Node] {
	return d.Root().ChildrenOfKind(KindPage)
}

// Measures yields every measure in document order.
func (d *Document) Measures() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for p := range d.Pages() {
			for s := range p.ChildrenOfKind(KindSystem) {
				for m := range s.ChildrenOfKind(KindMeasure) {
					if !yield(m) {
						return
					}
				}
			}
		}
	}
}

// Path describes where n sits, e.g. "page[0]/system[0]/measure[3]/staff[1]".
// Indices are positions among all siblings.
func (n *Node) Path() string {
	var parts []string
	for cur := n; ; {
		p, ok := cur.Parent()
		if !ok {
			if cur.kind != KindDocument {
				parts = append(parts, string(cur.kind)+"(detached)")
			}
			break
		}
		parts = append(parts, string(cur.kind)+"["+strconv.Itoa(p.IndexOf(cur))+"]")
		cur = p
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}
