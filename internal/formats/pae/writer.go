package pae

import (
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/score"
)

// Write emits the first staff of doc as PAE. Alternative groups are
// written as their preferred reading; lyrics are dropped because PAE has no
// text underlay.
func Write(w io.Writer, doc *score.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", errors.ErrInvalidInput)
	}
	var out strings.Builder
	if len(doc.StaffGroup.Defs) > 0 {
		if clef := doc.StaffGroup.Defs[0].Clef; len(clef) == 2 {
			fmt.Fprintf(&out, "@clef:%c-%c\n", clef[0], clef[1])
		}
	}

	wr := &writer{octave: -1}
	var bars []string
	for m := range doc.Measures() {
		staff, ok := m.FirstChildOfKind(score.KindStaff)
		if !ok {
			continue
		}
		layer, ok := staff.FirstChildOfKind(score.KindLayer)
		if !ok {
			continue
		}
		wr.buf.Reset()
		for _, c := range layer.Children() {
			if err := wr.write(c); err != nil {
				return err
			}
		}
		bars = append(bars, wr.buf.String())
	}
	out.WriteString("@data:")
	out.WriteString(strings.Join(bars, "/"))
	out.WriteString("\n")

	if _, err := io.WriteString(w, out.String()); err != nil {
		return errors.NewIO("write", "", err)
	}
	return nil
}

// writer tracks the last octave and duration written so that marks are
// only emitted when they change.
type writer struct {
	buf      strings.Builder
	octave   int
	duration score.Duration
}

func (wr *writer) write(n *score.Node) error {
	switch n.Kind() {
	case score.KindBeam:
		wr.buf.WriteString("{")
		for _, c := range n.Children() {
			if err := wr.write(c); err != nil {
				return err
			}
		}
		wr.buf.WriteString("}")
	case score.KindAlternativeGroup:
		lem, ok := score.PreferredReading(n)
		if !ok {
			return errors.Wrapf(score.CheckApparatus(n), "exporting %s", n.Path())
		}
		content, ok := score.ReadingContent(lem)
		if !ok {
			return nil
		}
		return wr.write(content)
	case score.KindNote:
		if err := wr.writeDuration(n); err != nil {
			return err
		}
		if n.Pitch.Octave != wr.octave {
			wr.buf.WriteString(octaveMark(n.Pitch.Octave))
			wr.octave = n.Pitch.Octave
		}
		for code, accid := range accidentals {
			if accid == n.Pitch.Accid {
				wr.buf.WriteString(code)
				break
			}
		}
		wr.buf.WriteString(strings.ToUpper(n.Pitch.Step.String()))
	case score.KindRest:
		if err := wr.writeDuration(n); err != nil {
			return err
		}
		wr.buf.WriteString("-")
	}
	return nil
}

func (wr *writer) writeDuration(n *score.Node) error {
	if n.Duration == wr.duration {
		return nil
	}
	for digit, base := range durationDigits {
		if base == n.Duration.Base {
			wr.buf.WriteString(digit)
			wr.buf.WriteString(strings.Repeat(".", n.Duration.Dots))
			wr.duration = n.Duration
			return nil
		}
	}
	return errors.NewUnsupported("PAE duration", fmt.Sprintf("%s at %s", n.Duration, n.Path()))
}

// octaveMark returns the mark for octave: ' is octave 4, ,, is octave 2.
func octaveMark(octave int) string {
	if octave >= 4 {
		return strings.Repeat("'", octave-3)
	}
	return strings.Repeat(",", max(4-octave, 1))
}
