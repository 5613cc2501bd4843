package score

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
)

// newUUID is a variable to allow deterministic IDs in tests.
var newUUID = uuid.NewString

// NodeID is a node identifier, unique within a Document.
type NodeID string

// Node is one element of a score. Which attribute fields are meaningful
// depends on Kind: N for measures, staves, layers and verses; Duration for
// notes and rests; Pitch for notes; Text for verses; Scope for alternative
// groups; Source for readings.
type Node struct {
	id       NodeID
	kind     Kind
	doc      *Document
	children []NodeID

	N        int
	Duration Duration
	Pitch    Pitch
	Text     string
	Scope    Scope
	Source   string
}

// Document is the arena that owns every node of one score.
type Document struct {
	nodes   map[NodeID]*Node
	parents map[NodeID]NodeID
	root    NodeID

	// Title is carried through from the source encoding.
	Title string

	// StaffGroup is the global staff declaration (MEI staffGrp).
	StaffGroup StaffGroup
}

// NewDocument creates an empty document with a root node.
func NewDocument() *Document {
	d := &Document{
		nodes:   make(map[NodeID]*Node),
		parents: make(map[NodeID]NodeID),
	}
	root := d.alloc(KindDocument, NodeID(string(KindDocument)+"-"+newUUID()))
	d.root = root.id
	return d
}

func (d *Document) alloc(kind Kind, id NodeID) *Node {
	n := &Node{id: id, kind: kind, doc: d}
	d.nodes[id] = n
	return n
}

// Root returns the document root. Pages are its children.
func (d *Document) Root() *Node {
	return d.nodes[d.root]
}

// Len returns the number of live nodes in the arena, attached or not.
func (d *Document) Len() int {
	return len(d.nodes)
}

// NewNode allocates a detached node with a generated ID. It panics on an
// invalid kind or on KindDocument, both of which are programming errors.
func (d *Document) NewNode(kind Kind) *Node {
	if !kind.IsValid() || kind == KindDocument {
		panic(fmt.Sprintf("score: cannot create node of kind %q", kind))
	}
	return d.alloc(kind, NodeID(string(kind)+"-"+newUUID()))
}

// NewNodeWithID allocates a detached node with a caller-supplied ID, as
// parsers do for source identifiers such as MEI xml:id.
func (d *Document) NewNodeWithID(kind Kind, id NodeID) (*Node, error) {
	if !kind.IsValid() || kind == KindDocument {
		return nil, errors.NewUnsupported("node kind", string(kind))
	}
	if id == "" {
		return nil, &errors.ChildError{Parent: string(d.root), Reason: "empty node ID"}
	}
	if _, exists := d.nodes[id]; exists {
		return nil, &errors.ChildError{Parent: string(d.root), Child: string(id), Reason: "duplicate node ID"}
	}
	return d.alloc(kind, id), nil
}

// Node returns the node with the given ID, attached or not.
func (d *Document) Node(id NodeID) (*Node, error) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, errors.NewNotFound("node", string(id))
	}
	return n, nil
}

// Discard destroys a detached node and its whole subtree. The node must not
// have a parent and must not be the root.
func (d *Document) Discard(n *Node) error {
	if n == nil || n.doc != d {
		return &errors.ChildError{Parent: string(d.root), Reason: "node does not belong to this document"}
	}
	if n.id == d.root {
		return &errors.ChildError{Parent: string(d.root), Child: string(n.id), Reason: "the root cannot be discarded"}
	}
	if owner, ok := d.parents[n.id]; ok {
		return &errors.OwnershipError{Node: string(n.id), Owner: string(owner)}
	}
	for _, m := range n.subtree() {
		for _, c := range m.children {
			delete(d.parents, c)
		}
		delete(d.nodes, m.id)
		m.doc = nil
		m.children = nil
	}
	return nil
}

// Adopt moves a detached subtree owned by another document into this
// document's arena. IDs are kept; a collision with an existing ID fails
// before anything is moved.
func (d *Document) Adopt(n *Node) error {
	if n == nil || n.doc == nil {
		return &errors.ChildError{Parent: string(d.root), Reason: "nil or discarded node"}
	}
	if n.doc == d {
		return nil
	}
	src := n.doc
	if n.id == src.root {
		return &errors.ChildError{Parent: string(d.root), Child: string(n.id), Reason: "cannot adopt another document's root"}
	}
	if owner, ok := src.parents[n.id]; ok {
		return &errors.OwnershipError{Node: string(n.id), Owner: string(owner)}
	}
	moving := n.subtree()
	for _, m := range moving {
		if _, exists := d.nodes[m.id]; exists {
			return &errors.ChildError{Parent: string(d.root), Child: string(m.id), Reason: "duplicate node ID"}
		}
	}
	for _, m := range moving {
		for _, c := range m.children {
			delete(src.parents, c)
			d.parents[c] = m.id
		}
		delete(src.nodes, m.id)
		d.nodes[m.id] = m
		m.doc = d
	}
	return nil
}

// subtree returns n and all of its descendants in pre-order.
func (n *Node) subtree() []*Node {
	out := []*Node{n}
	for i := 0; i < len(out); i++ {
		for _, c := range out[i].children {
			out = append(out, n.doc.nodes[c])
		}
	}
	return out
}

// ID returns the node identifier.
func (n *Node) ID() NodeID { return n.id }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Document returns the owning arena, or nil once the node is discarded.
func (n *Node) Document() *Document { return n.doc }

// Parent returns the owning node, if any.
func (n *Node) Parent() (*Node, bool) {
	if n.doc == nil {
		return nil, false
	}
	pid, ok := n.doc.parents[n.id]
	if !ok {
		return nil, false
	}
	return n.doc.nodes[pid], true
}

// IsAttached reports whether the node currently has a parent.
func (n *Node) IsAttached() bool {
	_, ok := n.Parent()
	return ok
}

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int { return len(n.children) }

// ChildAt returns the child at index.
func (n *Node) ChildAt(index int) (*Node, error) {
	if index < 0 || index >= len(n.children) {
		return nil, &errors.IndexError{Node: string(n.id), Index: index, Len: len(n.children)}
	}
	return n.doc.nodes[n.children[index]], nil
}

// FirstChild returns the first child or nil.
func (n *Node) FirstChild() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.doc.nodes[n.children[0]]
}

// LastChild returns the last child or nil.
func (n *Node) LastChild() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.doc.nodes[n.children[len(n.children)-1]]
}

// Children returns a snapshot of the direct children in order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	for i, id := range n.children {
		out[i] = n.doc.nodes[id]
	}
	return out
}

// IndexOf returns the position of child among n's children, or -1.
func (n *Node) IndexOf(child *Node) int {
	if child == nil {
		return -1
	}
	return slices.Index(n.children, child.id)
}

// AddChild appends child to n and makes n its owner.
func (n *Node) AddChild(child *Node) error {
	return n.InsertChild(len(n.children), child)
}

// InsertChild inserts child at index (0 through ChildCount) and makes n its
// owner. The child must be a detached node of the same document.
func (n *Node) InsertChild(index int, child *Node) error {
	if err := n.checkAttach(child); err != nil {
		return err
	}
	if index < 0 || index > len(n.children) {
		return &errors.IndexError{Node: string(n.id), Index: index, Len: len(n.children)}
	}
	n.children = slices.Insert(n.children, index, child.id)
	n.doc.parents[child.id] = n.id
	return nil
}

func (n *Node) checkAttach(child *Node) error {
	reject := func(reason string) error {
		ce := &errors.ChildError{Parent: string(n.id), Reason: reason}
		if child != nil {
			ce.Child = string(child.id)
		}
		return ce
	}
	switch {
	case child == nil:
		return reject("nil node")
	case n.doc == nil:
		return reject("parent has been discarded")
	case child.doc != n.doc:
		return reject("node belongs to another document")
	case child.id == n.doc.root:
		return reject("the document root cannot be a child")
	}
	if owner, ok := n.doc.parents[child.id]; ok {
		return reject("already attached to " + string(owner))
	}
	for cur := n; ; {
		if cur.id == child.id {
			return reject("would create a cycle")
		}
		p, ok := cur.Parent()
		if !ok {
			break
		}
		cur = p
	}
	if n.kind.IsReading() && len(n.children) > 0 {
		return reject("a reading owns exactly one sub-tree")
	}
	if child.kind == KindAlternativeGroup {
		if err := CheckApparatus(child); err != nil {
			return err
		}
	}
	return nil
}

// DetachChildAt removes the child at index and returns it, detached and
// owned by the caller, who must re-attach or Discard it.
func (n *Node) DetachChildAt(index int) (*Node, error) {
	if index < 0 || index >= len(n.children) {
		return nil, &errors.IndexError{Node: string(n.id), Index: index, Len: len(n.children)}
	}
	id := n.children[index]
	n.children = slices.Delete(n.children, index, index+1)
	delete(n.doc.parents, id)
	return n.doc.nodes[id], nil
}

// Detach removes n from its parent, if it has one.
func (n *Node) Detach() error {
	p, ok := n.Parent()
	if !ok {
		return nil
	}
	_, err := p.DetachChildAt(p.IndexOf(n))
	return err
}
