package score

import (
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
)

// StaffDef declares one staff of the score.
type StaffDef struct {
	N     int    `json:"n"`
	Label string `json:"label,omitempty"`
	Lines int    `json:"lines,omitempty"`
	Clef  string `json:"clef,omitempty"` // shape and line, e.g. "G2"
}

// StaffGroup is the ordered list of staff declarations.
type StaffGroup struct {
	Defs []StaffDef `json:"staff_defs"`
}

// Len returns the number of declared staves.
func (g *StaffGroup) Len() int {
	return len(g.Defs)
}

// Add appends a declaration. Staff numbers must be positive and unique.
func (g *StaffGroup) Add(def StaffDef) error {
	if def.N <= 0 {
		return fmt.Errorf("%w: staff number must be positive, got %d", errors.ErrInvalidInput, def.N)
	}
	if _, ok := g.Lookup(def.N); ok {
		return fmt.Errorf("%w: staff %d already declared", errors.ErrInvalidInput, def.N)
	}
	g.Defs = append(g.Defs, def)
	return nil
}

// Lookup returns the declaration for staff n.
func (g *StaffGroup) Lookup(n int) (StaffDef, bool) {
	for _, d := range g.Defs {
		if d.N == n {
			return d, true
		}
	}
	return StaffDef{}, false
}

// Remove deletes the declaration for staff n.
func (g *StaffGroup) Remove(n int) error {
	for i, d := range g.Defs {
		if d.N == n {
			g.Defs = append(g.Defs[:i], g.Defs[i+1:]...)
			return nil
		}
	}
	return errors.NewNotFound("staff definition", strconv.Itoa(n))
}

// RemoveAt deletes the declaration at position i.
func (g *StaffGroup) RemoveAt(i int) error {
	if i < 0 || i >= len(g.Defs) {
		return &errors.IndexError{Node: "staffGrp", Index: i, Len: len(g.Defs)}
	}
	g.Defs = append(g.Defs[:i], g.Defs[i+1:]...)
	return nil
}
