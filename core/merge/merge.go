// Package merge folds two parallel encodings of the same music into one
// score.
//
// A two-voice document carries both voices as the first and second staff of
// every measure. The engine keeps the first staff, pairs the events of the
// two layers by position, and where two equivalent notes carry different
// verses it moves both verses into an alternative group (app) on the kept
// note: the first verse as the preferred reading (lem), the second as the
// alternate reading (rdg). The second staff is then removed from each
// measure and its declaration from the staff group.
//
// Pairing is strictly positional. A divergence at one position is recorded
// in the Report and the walk carries on; nothing is re-aligned.
package merge

import (
	"fmt"
	"strconv"
	"time"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/score"
	"github.com/FocuswithJustin/JuniperScore/internal/logging"
)

// Engine merges parallel voices. An Engine holds configuration only and may
// be reused; each call owns the documents it is given until it returns.
type Engine struct {
	scope    score.Scope
	page     int
	sources  [2]string
	observer func(Mismatch)
}

// Option configures an Engine.
type Option func(*Engine)

// WithScope sets the scope tag of the alternative groups the engine
// creates. The default is score.ScopeNote.
func WithScope(scope score.Scope) Option {
	return func(e *Engine) { e.scope = scope }
}

// WithPage restricts the merge to one page, counted from 1. Zero merges
// every page.
func WithPage(page int) Option {
	return func(e *Engine) { e.page = page }
}

// WithSources labels the preferred and alternate readings with the
// witnesses they come from, e.g. "#A" and "#B".
func WithSources(first, second string) Option {
	return func(e *Engine) { e.sources = [2]string{first, second} }
}

// WithObserver registers a callback invoked for every mismatch as it is
// found.
func WithObserver(fn func(Mismatch)) Option {
	return func(e *Engine) { e.observer = fn }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{scope: score.ScopeNote}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the state of one merge call.
type run struct {
	e        *Engine
	report   *Report
	measure  int
	removedN int
}

func (e *Engine) newRun() *run {
	return &run{e: e, report: &Report{Success: true}}
}

func (r *run) record(m Mismatch) {
	if m.Measure == 0 {
		m.Measure = r.measure
	}
	r.report.Mismatches = append(r.report.Mismatches, m)
	logging.MergeMismatch(string(m.Kind), m.Path, m.Measure, m.Position,
		"first", m.First, "second", m.Second)
	if r.e.observer != nil {
		r.e.observer(m)
	}
}

// Merge merges the two staves of every measure of doc in place.
func (e *Engine) Merge(doc *score.Document) (*Report, error) {
	if doc == nil || doc.Root() == nil {
		return nil, fmt.Errorf("%w: nil document", errors.ErrInvalidInput)
	}
	pages, err := e.selectPages(doc)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	r := e.newRun()
	for _, page := range pages {
		for system := range page.ChildrenOfKind(score.KindSystem) {
			for _, m := range collect(system, score.KindMeasure) {
				r.mergeMeasure(m)
			}
		}
	}
	r.removeStaffDef(doc)

	logging.MergeSummary(r.report.Groups, r.report.StavesRemoved, len(r.report.Mismatches),
		time.Since(start), "page", e.page)
	return r.report, nil
}

func (e *Engine) selectPages(doc *score.Document) ([]*score.Node, error) {
	pages := collect(doc.Root(), score.KindPage)
	if e.page == 0 {
		return pages, nil
	}
	if e.page < 0 || e.page > len(pages) {
		return nil, errors.NewNotFound("page", strconv.Itoa(e.page))
	}
	return pages[e.page-1 : e.page], nil
}

func (r *run) mergeMeasure(m *score.Node) {
	r.measure = m.N
	if r.measure == 0 {
		if p, ok := m.Parent(); ok {
			r.measure = p.IndexOf(m) + 1
		}
	}

	staves := collect(m, score.KindStaff)
	if len(staves) != 2 {
		r.record(Mismatch{
			Kind:   MismatchStaffCount,
			Path:   m.Path(),
			Detail: fmt.Sprintf("expected 2 staves, found %d", len(staves)),
		})
		return
	}
	staff1, staff2 := staves[0], staves[1]

	layer1, ok1 := staff1.FirstChildOfKind(score.KindLayer)
	layer2, ok2 := staff2.FirstChildOfKind(score.KindLayer)
	if ok1 && ok2 {
		r.mergeSequence(layer1, layer2, false)
	} else {
		r.record(Mismatch{
			Kind:   MismatchMissingLayer,
			Path:   m.Path(),
			First:  strconv.FormatBool(ok1),
			Second: strconv.FormatBool(ok2),
			Detail: "staff without a layer, positional walk skipped",
		})
	}

	if _, err := m.DetachChildAt(m.IndexOf(staff2)); err != nil {
		r.record(Mismatch{Kind: MismatchTransferAbort, Path: staff2.Path(), Detail: err.Error()})
		return
	}
	if r.removedN == 0 {
		r.removedN = staff2.N
	}
	_ = m.Document().Discard(staff2)
	r.report.StavesRemoved++
}

// mergeSequence pairs the children of two layers, or of two beams when
// inBeam is set, by position.
func (r *run) mergeSequence(c1, c2 *score.Node, inBeam bool) {
	events1, events2 := c1.Children(), c2.Children()
	n := min(len(events1), len(events2))
	if len(events1) != len(events2) {
		r.record(Mismatch{
			Kind:     MismatchElementCount,
			Path:     c1.Path(),
			Position: n,
			First:    strconv.Itoa(len(events1)),
			Second:   strconv.Itoa(len(events2)),
			Detail:   fmt.Sprintf("only the first %d positions are compared", n),
		})
	}

	for k := 0; k < n; k++ {
		a, b := events1[k], events2[k]
		switch {
		case a.Kind() == score.KindBeam && b.Kind() == score.KindBeam:
			if inBeam {
				r.record(Mismatch{Kind: MismatchNestedBeam, Path: a.Path(), Position: k,
					First: describe(a), Second: describe(b)})
				continue
			}
			r.mergeSequence(a, b, true)
		case a.Kind() == score.KindNote && b.Kind() == score.KindNote:
			r.mergeNotes(a, b, k)
		case a.Kind() == score.KindRest && b.Kind() == score.KindRest:
			r.mergeRests(a, b, k)
		default:
			r.record(Mismatch{Kind: MismatchShape, Path: a.Path(), Position: k,
				First: describe(a), Second: describe(b)})
		}
	}
}

// mergeRests changes nothing; rests carry no mergeable content.
func (r *run) mergeRests(r1, r2 *score.Node, pos int) {
	if r1.Duration != r2.Duration {
		r.record(Mismatch{Kind: MismatchRestDuration, Path: r1.Path(), Position: pos,
			First: describe(r1), Second: describe(r2)})
	}
}

func (r *run) mergeNotes(n1, n2 *score.Node, pos int) {
	if !score.Equivalent(n1, n2) {
		kind := MismatchPitch
		if n1.Duration != n2.Duration {
			kind = MismatchDuration
		}
		r.record(Mismatch{Kind: kind, Path: n1.Path(), Position: pos,
			First: describe(n1), Second: describe(n2)})
		return
	}

	v1, v2 := findVerse(n1), findVerse(n2)
	switch {
	case v1 == nil && v2 == nil:
		return
	case v1 == nil || v2 == nil:
		r.record(Mismatch{Kind: MismatchMissingVerse, Path: n1.Path(), Position: pos,
			First: verseText(v1), Second: verseText(v2)})
		return
	}

	if err := r.transfer(n1, v1, n2, v2); err != nil {
		r.record(Mismatch{Kind: MismatchTransferAbort, Path: n1.Path(), Position: pos,
			First: verseText(v1), Second: verseText(v2), Detail: err.Error()})
		return
	}
	r.report.Groups++
}

// findVerse returns the note's verse: the first child if it is one, else
// the last child if that is one. Producers attach verses in either order.
func findVerse(n *score.Node) *score.Node {
	if c := n.FirstChild(); c != nil && c.Kind() == score.KindVerse {
		return c
	}
	if c := n.LastChild(); c != nil && c.Kind() == score.KindVerse {
		return c
	}
	return nil
}

// transfer moves v1 and v2 into a new alternative group attached to n1 at
// v1's former position. On failure both verses are put back where they
// were and nothing else is left behind.
func (r *run) transfer(n1, v1, n2, v2 *score.Node) error {
	if n1 == n2 || v1 == v2 {
		return fmt.Errorf("%w: cannot merge a note with itself", errors.ErrInvalidInput)
	}
	doc := n1.Document()
	src := n2.Document()
	i1 := n1.IndexOf(v1)

	if _, err := n1.DetachChildAt(i1); err != nil {
		return err
	}
	i2 := n2.IndexOf(v2)
	got, err := n2.DetachChildAt(i2)
	if err != nil {
		_ = n1.InsertChild(i1, v1)
		return err
	}
	if got != v2 {
		_ = n2.InsertChild(i2, got)
		_ = n1.InsertChild(i1, v1)
		return fmt.Errorf("%w: detached %s instead of the second verse", errors.ErrOwnershipConflict, got.Path())
	}

	var group *score.Node
	rollback := func(cause error) error {
		_ = v1.Detach()
		_ = v2.Detach()
		if group != nil {
			_ = group.Detach()
			_ = doc.Discard(group)
		}
		if v2.Document() != src {
			_ = src.Adopt(v2)
		}
		_ = n1.InsertChild(i1, v1)
		_ = n2.InsertChild(i2, v2)
		return cause
	}

	if src != doc {
		if err := doc.Adopt(v2); err != nil {
			return rollback(err)
		}
	}

	group = doc.CreateAlternativeGroup(r.e.scope)
	lem, err := doc.AddReading(group, score.ReadingPreferred, v1)
	if err != nil {
		return rollback(err)
	}
	rdg, err := doc.AddReading(group, score.ReadingAlternate, v2)
	if err != nil {
		return rollback(err)
	}
	lem.Source, rdg.Source = r.e.sources[0], r.e.sources[1]

	if err := n1.InsertChild(i1, group); err != nil {
		return rollback(err)
	}
	return nil
}

// MergeNotes merges the verses of one note pair. The notes may live in
// different documents; the second verse then moves into n1's document.
func (e *Engine) MergeNotes(n1, n2 *score.Node) (*Report, error) {
	if n1 == nil || n2 == nil || n1.Kind() != score.KindNote || n2.Kind() != score.KindNote {
		return nil, fmt.Errorf("%w: MergeNotes needs two notes", errors.ErrInvalidInput)
	}
	if n1.Document() == nil || n2.Document() == nil {
		return nil, fmt.Errorf("%w: note has been discarded", errors.ErrInvalidInput)
	}
	if n1 == n2 {
		return nil, fmt.Errorf("%w: MergeNotes needs two different notes", errors.ErrInvalidInput)
	}
	r := e.newRun()
	r.mergeNotes(n1, n2, 0)
	return r.report, nil
}

// removeStaffDef drops the second staff's declaration once, by the number
// of the removed staff or else by position. The declaration stays while
// measures outside the merged pages still hold a second staff.
func (r *run) removeStaffDef(doc *score.Document) {
	if r.report.StavesRemoved == 0 || secondStaffRemains(doc) {
		return
	}
	if r.removedN > 0 && doc.StaffGroup.Remove(r.removedN) == nil {
		r.report.StaffDefRemoved = true
		return
	}
	if doc.StaffGroup.RemoveAt(1) == nil {
		r.report.StaffDefRemoved = true
	}
}

// secondStaffRemains reports whether any measure still has two or more
// staves.
func secondStaffRemains(doc *score.Document) bool {
	for m := range doc.Measures() {
		if len(collect(m, score.KindStaff)) > 1 {
			return true
		}
	}
	return false
}

func collect(n *score.Node, kind score.Kind) []*score.Node {
	var out []*score.Node
	for c := range n.ChildrenOfKind(kind) {
		out = append(out, c)
	}
	return out
}

func describe(n *score.Node) string {
	switch n.Kind() {
	case score.KindNote:
		return fmt.Sprintf("note %s %s", n.Pitch, n.Duration)
	case score.KindRest:
		return fmt.Sprintf("rest %s", n.Duration)
	case score.KindBeam:
		return fmt.Sprintf("beam(%d)", n.ChildCount())
	}
	return string(n.Kind())
}

func verseText(v *score.Node) string {
	if v == nil {
		return "none"
	}
	return strconv.Quote(v.Text)
}
