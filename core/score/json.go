package score

import (
	"encoding/json"
	"fmt"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
)

// SnapshotVersion is the version written into JSON snapshots.
const SnapshotVersion = "1.0.0"

// jsonMarshal is a variable to allow testing of marshal errors.
var jsonMarshal = json.Marshal

type nodeJSON struct {
	ID       NodeID      `json:"id"`
	Kind     Kind        `json:"kind"`
	N        int         `json:"n,omitempty"`
	Duration *Duration   `json:"dur,omitempty"`
	Pitch    *Pitch      `json:"pitch,omitempty"`
	Text     string      `json:"text,omitempty"`
	Scope    Scope       `json:"scope,omitempty"`
	Source   string      `json:"source,omitempty"`
	Children []*nodeJSON `json:"children,omitempty"`
}

type documentJSON struct {
	Version    string     `json:"version"`
	Title      string     `json:"title,omitempty"`
	StaffGroup StaffGroup `json:"staff_group"`
	Root       *nodeJSON  `json:"root"`
}

// MarshalJSON encodes the attached tree as a nested snapshot. Detached
// nodes still in the arena are not written.
func (d *Document) MarshalJSON() ([]byte, error) {
	return jsonMarshal(documentJSON{
		Version:    SnapshotVersion,
		Title:      d.Title,
		StaffGroup: d.StaffGroup,
		Root:       toJSON(d.Root()),
	})
}

func toJSON(n *Node) *nodeJSON {
	out := &nodeJSON{
		ID:     n.id,
		Kind:   n.kind,
		N:      n.N,
		Text:   n.Text,
		Scope:  n.Scope,
		Source: n.Source,
	}
	if !n.Duration.IsZero() {
		dur := n.Duration
		out.Duration = &dur
	}
	if !n.Pitch.IsZero() {
		p := n.Pitch
		out.Pitch = &p
	}
	for _, c := range n.Children() {
		out.Children = append(out.Children, toJSON(c))
	}
	return out
}

// UnmarshalJSON rebuilds the document from a snapshot, replacing any
// previous content.
func (d *Document) UnmarshalJSON(data []byte) error {
	var in documentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return &errors.ParseError{Format: "JSON", Message: err.Error(), Err: errors.ErrInvalidInput}
	}
	if in.Root == nil || in.Root.Kind != KindDocument || in.Root.ID == "" {
		return errors.NewParse("JSON", "root", "snapshot root must be a document node")
	}

	d.nodes = make(map[NodeID]*Node)
	d.parents = make(map[NodeID]NodeID)
	d.Title = in.Title
	d.StaffGroup = in.StaffGroup
	root := d.alloc(KindDocument, in.Root.ID)
	d.root = root.id

	for i, c := range in.Root.Children {
		child, err := d.fromJSON(c, fmt.Sprintf("root.children[%d]", i))
		if err != nil {
			return err
		}
		if err := root.AddChild(child); err != nil {
			return &errors.ParseError{Format: "JSON", Path: fmt.Sprintf("root.children[%d]", i), Message: err.Error(), Err: err}
		}
	}
	return nil
}

// fromJSON builds a subtree bottom-up so that alternative groups are
// complete before they are attached.
func (d *Document) fromJSON(in *nodeJSON, path string) (*Node, error) {
	if in == nil {
		return nil, errors.NewParse("JSON", path, "null node")
	}
	n, err := d.NewNodeWithID(in.Kind, in.ID)
	if err != nil {
		return nil, &errors.ParseError{Format: "JSON", Path: path, Message: err.Error(), Err: err}
	}
	n.N = in.N
	n.Text = in.Text
	n.Scope = in.Scope
	n.Source = in.Source
	if in.Duration != nil {
		n.Duration = *in.Duration
	}
	if in.Pitch != nil {
		n.Pitch = *in.Pitch
	}
	for i, c := range in.Children {
		cpath := fmt.Sprintf("%s.children[%d]", path, i)
		child, err := d.fromJSON(c, cpath)
		if err != nil {
			return nil, err
		}
		if err := n.AddChild(child); err != nil {
			return nil, &errors.ParseError{Format: "JSON", Path: cpath, Message: err.Error(), Err: err}
		}
	}
	return n, nil
}
