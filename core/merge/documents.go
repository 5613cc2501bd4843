package merge

import (
	"fmt"
	"strconv"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/score"
)

// MergeDocuments merges two separately encoded voices. The first staff of
// each measure of b is moved into the measure at the same position in a as
// its second staff, then a is merged as a two-voice document. b is consumed:
// its staves end up in a or are discarded with the second voice.
func (e *Engine) MergeDocuments(a, b *score.Document) (*Report, error) {
	if a == nil || b == nil || a.Root() == nil || b.Root() == nil {
		return nil, fmt.Errorf("%w: nil document", errors.ErrInvalidInput)
	}
	pagesA, err := e.selectPages(a)
	if err != nil {
		return nil, err
	}
	pagesB, err := e.selectPages(b)
	if err != nil {
		return nil, err
	}

	r := e.newRun()
	measuresA, measuresB := measuresOf(pagesA), measuresOf(pagesB)
	n := min(len(measuresA), len(measuresB))
	if len(measuresA) != len(measuresB) {
		r.record(Mismatch{
			Kind:     MismatchMeasureCount,
			Path:     "document",
			Position: n,
			First:    strconv.Itoa(len(measuresA)),
			Second:   strconv.Itoa(len(measuresB)),
			Detail:   fmt.Sprintf("only the first %d measures are paired", n),
		})
	}

	secondN := nextStaffN(a)
	for i := 0; i < n; i++ {
		mA, mB := measuresA[i], measuresB[i]
		r.measure = mA.N
		staffB, ok := mB.FirstChildOfKind(score.KindStaff)
		if !ok {
			r.record(Mismatch{Kind: MismatchStaffCount, Path: mB.Path(), Position: i,
				Detail: "second source measure has no staff"})
			continue
		}
		if _, err := mB.DetachChildAt(mB.IndexOf(staffB)); err != nil {
			return nil, err
		}
		moved, err := graft(a, staffB)
		if err != nil {
			return nil, err
		}
		moved.N = secondN
		if err := mA.AddChild(moved); err != nil {
			return nil, err
		}
	}
	declareSecondStaff(a, b, secondN)

	merged, err := e.Merge(a)
	if err != nil {
		return nil, err
	}
	merged.Mismatches = append(r.report.Mismatches, merged.Mismatches...)
	return merged, nil
}

// graft moves a detached staff into doc, copying it with fresh IDs when its
// IDs collide with doc's.
func graft(doc *score.Document, staff *score.Node) (*score.Node, error) {
	if err := doc.Adopt(staff); err == nil {
		return staff, nil
	}
	cp, err := doc.Copy(staff)
	if err != nil {
		return nil, err
	}
	_ = staff.Document().Discard(staff)
	return cp, nil
}

func measuresOf(pages []*score.Node) []*score.Node {
	var out []*score.Node
	for _, p := range pages {
		for s := range p.ChildrenOfKind(score.KindSystem) {
			out = append(out, collect(s, score.KindMeasure)...)
		}
	}
	return out
}

// nextStaffN returns a staff number not used by doc's declarations or by
// the first staff of any measure.
func nextStaffN(doc *score.Document) int {
	n := 1
	for _, def := range doc.StaffGroup.Defs {
		n = max(n, def.N+1)
	}
	for m := range doc.Measures() {
		for s := range m.ChildrenOfKind(score.KindStaff) {
			n = max(n, s.N+1)
		}
	}
	return n
}

func declareSecondStaff(a, b *score.Document, n int) {
	def := score.StaffDef{N: n}
	if len(b.StaffGroup.Defs) > 0 {
		def = b.StaffGroup.Defs[0]
		def.N = n
	}
	_ = a.StaffGroup.Add(def)
}
