package darms

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/score"
)

// Write emits the first staff of doc as DARMS. Alternative groups are
// written as their preferred reading, and a note's verse becomes its text
// underlay.
func Write(w io.Writer, doc *score.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", errors.ErrInvalidInput)
	}
	wr := &writer{clef: treble}
	var out strings.Builder
	if len(doc.StaffGroup.Defs) > 0 {
		if c := doc.StaffGroup.Defs[0].Clef; c != "" {
			parsed, err := clefFromDef(c)
			if err != nil {
				return err
			}
			wr.clef = parsed
			fmt.Fprintf(&out, "!%d%c ", parsed.space, parsed.sign)
		}
	}

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
		wr.codes = wr.codes[:0]
		for _, c := range layer.Children() {
			if err := wr.write(c); err != nil {
				return err
			}
		}
		bars = append(bars, strings.Join(wr.codes, " "))
	}
	out.WriteString(strings.Join(bars, " / "))
	out.WriteString(" //\n")

	if _, err := io.WriteString(w, out.String()); err != nil {
		return errors.NewIO("write", "", err)
	}
	return nil
}

// clefFromDef turns a staff def clef such as "F4" into a placed sign.
func clefFromDef(s string) (clef, error) {
	if len(s) < 2 || defaultSpaces[s[0]] == 0 {
		return clef{}, errors.NewUnsupported("DARMS clef", s)
	}
	line, err := strconv.Atoi(s[1:])
	if err != nil || line < 1 || line > 5 {
		return clef{}, errors.NewUnsupported("DARMS clef", s)
	}
	return clef{sign: s[0], space: 21 + (line-1)*2}, nil
}

type writer struct {
	clef  clef
	codes []string
}

func (wr *writer) write(n *score.Node) error {
	switch n.Kind() {
	case score.KindBeam:
		inner := &writer{clef: wr.clef}
		for _, c := range n.Children() {
			if err := inner.write(c); err != nil {
				return err
			}
		}
		wr.codes = append(wr.codes, "("+strings.Join(inner.codes, " ")+")")
	case score.KindAlternativeGroup:
		content, err := preferred(n)
		if err != nil || content == nil {
			return err
		}
		return wr.write(content)
	case score.KindNote:
		space := wr.clef.space + n.Pitch.Diatonic() - wr.clef.reference()
		if n.Pitch.IsZero() || space < 0 || space > 99 {
			return errors.NewUnsupported("DARMS pitch", fmt.Sprintf("%s at %s", n.Pitch, n.Path()))
		}
		var code strings.Builder
		fmt.Fprintf(&code, "%02d", space)
		for sym, accid := range accidentals {
			if accid == n.Pitch.Accid {
				code.WriteString(sym)
				break
			}
		}
		if err := writeDuration(&code, n); err != nil {
			return err
		}
		text, err := verseText(n)
		if err != nil {
			return err
		}
		if text != "" {
			code.WriteString("@" + text + "$")
		}
		wr.codes = append(wr.codes, code.String())
	case score.KindRest:
		var code strings.Builder
		code.WriteString("R")
		if err := writeDuration(&code, n); err != nil {
			return err
		}
		wr.codes = append(wr.codes, code.String())
	}
	return nil
}

func writeDuration(b *strings.Builder, n *score.Node) error {
	for letter, base := range durationCodes {
		if base == n.Duration.Base {
			b.WriteString(letter)
			b.WriteString(strings.Repeat(".", n.Duration.Dots))
			return nil
		}
	}
	return errors.NewUnsupported("DARMS duration", fmt.Sprintf("%s at %s", n.Duration, n.Path()))
}

// preferred returns the content of a group's preferred reading, or nil
// for an empty reading.
func preferred(group *score.Node) (*score.Node, error) {
	lem, ok := score.PreferredReading(group)
	if !ok {
		return nil, errors.Wrapf(score.CheckApparatus(group), "exporting %s", group.Path())
	}
	content, _ := score.ReadingContent(lem)
	return content, nil
}

// verseText returns the text of the note's first verse, looking through
// alternative groups to their preferred reading.
func verseText(n *score.Node) (string, error) {
	for _, c := range n.Children() {
		if c.Kind() == score.KindAlternativeGroup {
			content, err := preferred(c)
			if err != nil {
				return "", err
			}
			if content == nil || content.Kind() != score.KindVerse {
				continue
			}
			c = content
		}
		if c.Kind() != score.KindVerse || c.Text == "" {
			continue
		}
		if strings.Contains(c.Text, "$") {
			return "", errors.NewUnsupported("DARMS text", strconv.Quote(c.Text))
		}
		return c.Text, nil
	}
	return "", nil
}
