package score

import (
	"fmt"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// newValidationError creates a new ValidationError.
func newValidationError(path, message string) error {
	return &ValidationError{Path: path, Message: message}
}

// allowedChildren is the containment contract producers must honour.
var allowedChildren = map[Kind]map[Kind]bool{
	KindDocument:         {KindPage: true},
	KindPage:             {KindSystem: true},
	KindSystem:           {KindMeasure: true},
	KindMeasure:          {KindStaff: true},
	KindStaff:            {KindLayer: true},
	KindLayer:            {KindNote: true, KindRest: true, KindBeam: true, KindAlternativeGroup: true},
	KindBeam:             {KindNote: true, KindRest: true, KindBeam: true},
	KindNote:             {KindVerse: true, KindAlternativeGroup: true},
	KindAlternativeGroup: {KindPreferredReading: true, KindAlternateReading: true},
}

// readingContent lists what a reading may wrap.
var readingContent = map[Kind]bool{
	KindVerse: true,
	KindNote:  true,
	KindRest:  true,
	KindBeam:  true,
	KindLayer: true,
	KindStaff: true,
}

// ValidateDocument checks the tree reachable from the root and returns all
// validation errors.
func ValidateDocument(d *Document) []error {
	var errs []error
	if d == nil || d.Root() == nil {
		return []error{newValidationError("document", "document has no root")}
	}

	seen := make(map[NodeID]bool)
	var visit func(n *Node, path string)
	visit = func(n *Node, path string) {
		seen[n.id] = true
		errs = append(errs, validateNode(d, n, path)...)
		for i, cid := range n.children {
			c, ok := d.nodes[cid]
			cpath := fmt.Sprintf("%s/%s[%d]", path, kindOf(c), i)
			if !ok {
				errs = append(errs, newValidationError(cpath, fmt.Sprintf("child %s is not in the arena", cid)))
				continue
			}
			if seen[cid] {
				errs = append(errs, newValidationError(cpath, fmt.Sprintf("%s is reachable more than once", cid)))
				continue
			}
			if owner := d.parents[cid]; owner != n.id {
				errs = append(errs, newValidationError(cpath,
					fmt.Sprintf("parent index says %q, child list says %q", owner, n.id)))
			}
			if !childAllowed(n.kind, c.kind) {
				errs = append(errs, newValidationError(cpath,
					fmt.Sprintf("%s is not allowed inside %s", c.kind, n.kind)))
			}
			visit(c, cpath)
		}
	}
	visit(d.Root(), "document")

	for cid, pid := range d.parents {
		p, ok := d.nodes[pid]
		if !ok {
			errs = append(errs, newValidationError(string(cid), fmt.Sprintf("parent %s is not in the arena", pid)))
			continue
		}
		count := 0
		for _, id := range p.children {
			if id == cid {
				count++
			}
		}
		if count != 1 {
			errs = append(errs, newValidationError(string(cid),
				fmt.Sprintf("listed %d times by its parent %s", count, pid)))
		}
	}

	return errs
}

func childAllowed(parent, child Kind) bool {
	if parent.IsReading() {
		return readingContent[child]
	}
	return allowedChildren[parent][child]
}

func validateNode(d *Document, n *Node, path string) []error {
	var errs []error
	switch n.kind {
	case KindNote:
		if n.Pitch.IsZero() {
			errs = append(errs, newValidationError(path, "note has no pitch"))
		}
		if !n.Pitch.Accid.IsValid() {
			errs = append(errs, newValidationError(path, fmt.Sprintf("invalid accidental %q", n.Pitch.Accid)))
		}
		if n.Duration.IsZero() {
			errs = append(errs, newValidationError(path, "note has no duration"))
		}
	case KindRest:
		if n.Duration.IsZero() {
			errs = append(errs, newValidationError(path, "rest has no duration"))
		}
	case KindStaff:
		if d.StaffGroup.Len() > 0 {
			if _, ok := d.StaffGroup.Lookup(n.N); !ok {
				errs = append(errs, newValidationError(path, fmt.Sprintf("staff %d is not declared", n.N)))
			}
		}
	case KindAlternativeGroup:
		if err := CheckApparatus(n); err != nil {
			errs = append(errs, newValidationError(path, err.Error()))
		}
	case KindPreferredReading, KindAlternateReading:
		if len(n.children) != 1 {
			errs = append(errs, newValidationError(path,
				fmt.Sprintf("reading must own exactly one sub-tree, has %d", len(n.children))))
		}
	}
	return errs
}

func kindOf(n *Node) Kind {
	if n == nil {
		return "missing"
	}
	return n.kind
}
