package merge

import (
	"fmt"
	"strings"
)

// MismatchKind classifies a divergence between the two voices.
type MismatchKind string

// Mismatch kinds.
const (
	MismatchStaffCount    MismatchKind = "staff-count"
	MismatchMissingLayer  MismatchKind = "missing-layer"
	MismatchElementCount  MismatchKind = "element-count"
	MismatchNestedBeam    MismatchKind = "nested-beam"
	MismatchShape         MismatchKind = "shape"
	MismatchDuration      MismatchKind = "duration"
	MismatchPitch         MismatchKind = "pitch"
	MismatchMissingVerse  MismatchKind = "missing-verse"
	MismatchRestDuration  MismatchKind = "rest-duration"
	MismatchMeasureCount  MismatchKind = "measure-count"
	MismatchTransferAbort MismatchKind = "transfer-aborted"
)

// Mismatch records one place where the voices could not be merged. It is
// diagnostic data; a mismatch never aborts the merge.
type Mismatch struct {
	Kind     MismatchKind `json:"kind"`
	Path     string       `json:"path"`
	Measure  int          `json:"measure"`
	Position int          `json:"position"`
	First    string       `json:"first,omitempty"`
	Second   string       `json:"second,omitempty"`
	Detail   string       `json:"detail,omitempty"`
}

func (m Mismatch) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s (measure %d, position %d)", m.Kind, m.Path, m.Measure, m.Position)
	if m.First != "" || m.Second != "" {
		fmt.Fprintf(&b, ": %s vs %s", m.First, m.Second)
	}
	if m.Detail != "" {
		b.WriteString(": ")
		b.WriteString(m.Detail)
	}
	return b.String()
}

// Report is the result of a merge. Success is true for every completed
// traversal, whatever the number of mismatches.
type Report struct {
	Success         bool       `json:"success"`
	Groups          int        `json:"groups"`
	StavesRemoved   int        `json:"staves_removed"`
	StaffDefRemoved bool       `json:"staff_def_removed"`
	Mismatches      []Mismatch `json:"mismatches,omitempty"`
}

// Count returns the number of mismatches of the given kind.
func (r *Report) Count(kind MismatchKind) int {
	n := 0
	for _, m := range r.Mismatches {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

// Summary returns a one-line description of the report.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d apparatus groups, %d staves removed, %d mismatches",
		r.Groups, r.StavesRemoved, len(r.Mismatches))
}
