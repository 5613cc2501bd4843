package score

import (
	"github.com/FocuswithJustin/JuniperScore/core/errors"
)

// Copy deep-copies the subtree rooted at n, which may belong to any
// document, into d with freshly generated IDs. The copy is detached and
// owned by the caller; n is left untouched.
func (d *Document) Copy(n *Node) (*Node, error) {
	if n == nil || n.doc == nil {
		return nil, &errors.ChildError{Parent: string(d.root), Reason: "nil or discarded node"}
	}
	if n.kind == KindDocument {
		return nil, &errors.ChildError{Parent: string(d.root), Child: string(n.id), Reason: "cannot copy a document root"}
	}
	c := d.NewNode(n.kind)
	c.N = n.N
	c.Duration = n.Duration
	c.Pitch = n.Pitch
	c.Text = n.Text
	c.Scope = n.Scope
	c.Source = n.Source
	for _, child := range n.Children() {
		cc, err := d.Copy(child)
		if err != nil {
			_ = d.Discard(c)
			return nil, err
		}
		if err := c.AddChild(cc); err != nil {
			_ = d.Discard(cc)
			_ = d.Discard(c)
			return nil, err
		}
	}
	return c, nil
}
