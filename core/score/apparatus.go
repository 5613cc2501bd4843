package score

import (
	"iter"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
)

// Scope tags what kind of content an alternative group substitutes for.
type Scope string

// Scope constants.
const (
	ScopeNote    Scope = "note"
	ScopeLayer   Scope = "layer"
	ScopeStaff   Scope = "staff"
	ScopeMeasure Scope = "measure"
)

// ReadingKind selects between the two reading node kinds.
type ReadingKind int

// Reading kinds.
const (
	ReadingPreferred ReadingKind = iota
	ReadingAlternate
)

// Kind returns the node kind used for readings of this kind.
func (r ReadingKind) Kind() Kind {
	if r == ReadingPreferred {
		return KindPreferredReading
	}
	return KindAlternateReading
}

func (r ReadingKind) String() string {
	return string(r.Kind())
}

// CreateAlternativeGroup allocates an empty, detached alternative group.
// It cannot be attached until CheckApparatus passes.
func (d *Document) CreateAlternativeGroup(scope Scope) *Node {
	g := d.NewNode(KindAlternativeGroup)
	g.Scope = scope
	return g
}

// AddReading wraps content in a new reading of the given kind and appends
// it to group. content must already be detached from its previous owner.
func (d *Document) AddReading(group *Node, kind ReadingKind, content *Node) (*Node, error) {
	if group == nil || group.doc != d || group.kind != KindAlternativeGroup {
		return nil, &errors.ChildError{Parent: idOf(group), Child: idOf(content), Reason: "not an alternative group of this document"}
	}
	if content == nil || content.doc != d {
		return nil, &errors.ChildError{Parent: string(group.id), Child: idOf(content), Reason: "content does not belong to this document"}
	}
	if owner, ok := d.parents[content.id]; ok {
		return nil, &errors.OwnershipError{Node: string(content.id), Owner: string(owner)}
	}

	reading := d.NewNode(kind.Kind())
	if err := reading.AddChild(content); err != nil {
		_ = d.Discard(reading)
		return nil, err
	}
	if err := group.AddChild(reading); err != nil {
		_, _ = reading.DetachChildAt(0)
		_ = d.Discard(reading)
		return nil, err
	}
	return reading, nil
}

// CheckApparatus reports whether group holds at least one preferred and one
// alternate reading.
func CheckApparatus(group *Node) error {
	if group == nil || group.kind != KindAlternativeGroup {
		return &errors.ChildError{Parent: idOf(group), Reason: "not an alternative group"}
	}
	var lem, rdg int
	for _, c := range group.Children() {
		switch c.kind {
		case KindPreferredReading:
			lem++
		case KindAlternateReading:
			rdg++
		}
	}
	if lem == 0 || rdg == 0 {
		return &errors.ApparatusError{Group: string(group.id), Preferred: lem, Alternate: rdg}
	}
	return nil
}

// PreferredReading returns the group's first preferred reading.
func PreferredReading(group *Node) (*Node, bool) {
	return group.FirstChildOfKind(KindPreferredReading)
}

// AlternateReadings yields the group's alternate readings in order.
func AlternateReadings(group *Node) iter.Seq[*Node] {
	return group.ChildrenOfKind(KindAlternateReading)
}

// ReadingContent returns the single sub-tree owned by a reading.
func ReadingContent(reading *Node) (*Node, bool) {
	c := reading.FirstChild()
	return c, c != nil
}

func idOf(n *Node) string {
	if n == nil {
		return ""
	}
	return string(n.id)
}
