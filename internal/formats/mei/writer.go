package mei

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/FocuswithJustin/JuniperScore/core/encoding"
	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/score"
	"github.com/FocuswithJustin/JuniperScore/core/xml"
)

// Namespace is the MEI namespace URI.
const Namespace = "http://www.music-encoding.org/ns/mei"

// Version is written to @meiversion.
const Version = "5.0"

// Write emits doc as score-based MEI. Every node keeps its ID as xml:id.
func Write(w io.Writer, doc *score.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", errors.ErrInvalidInput)
	}
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintf(&buf, `<mei xmlns="%s" meiversion="%s">`, Namespace, Version)
	buf.WriteString("<meiHead><fileDesc><titleStmt><title>")
	buf.WriteString(encoding.EscapeXMLText(doc.Title))
	buf.WriteString("</title></titleStmt><pubStmt/></fileDesc></meiHead>")
	buf.WriteString("<music><body><mdiv><score>")

	buf.WriteString("<scoreDef><staffGrp>")
	for _, def := range doc.StaffGroup.Defs {
		buf.WriteString("<staffDef")
		attr(&buf, "n", strconv.Itoa(def.N))
		if def.Lines > 0 {
			attr(&buf, "lines", strconv.Itoa(def.Lines))
		}
		if def.Clef != "" {
			attr(&buf, "clef.shape", def.Clef[:1])
			attr(&buf, "clef.line", def.Clef[1:])
		}
		attr(&buf, "label", def.Label)
		buf.WriteString("/>")
	}
	buf.WriteString("</staffGrp></scoreDef>")

	buf.WriteString("<section>")
	for page := range doc.Pages() {
		open(&buf, "pb", page)
		buf.WriteString("/>")
		for system := range page.ChildrenOfKind(score.KindSystem) {
			open(&buf, "sb", system)
			buf.WriteString("/>")
			for m := range system.ChildrenOfKind(score.KindMeasure) {
				writeNode(&buf, m)
			}
		}
	}
	buf.WriteString("</section>")
	buf.WriteString("</score></mdiv></body></music></mei>")

	out, err := xml.Format(buf.Bytes(), xml.FormatOptions{Indent: "  "})
	if err != nil {
		return errors.Wrap(err, "formatting MEI")
	}
	if _, err := w.Write(out); err != nil {
		return errors.NewIO("write", "", err)
	}
	return nil
}

// writeNode emits n and its subtree. Readings become lem and rdg and the
// group becomes app, following the MEI critical apparatus module.
func writeNode(buf *bytes.Buffer, n *score.Node) {
	name := string(n.Kind())
	open(buf, name, n)
	switch n.Kind() {
	case score.KindMeasure, score.KindStaff, score.KindLayer:
		if n.N > 0 {
			attr(buf, "n", strconv.Itoa(n.N))
		}
	case score.KindNote:
		attr(buf, "pname", n.Pitch.Step.String())
		attr(buf, "oct", strconv.Itoa(n.Pitch.Octave))
		attr(buf, "accid", string(n.Pitch.Accid))
		writeDuration(buf, n.Duration)
	case score.KindRest:
		writeDuration(buf, n.Duration)
	case score.KindAlternativeGroup:
		attr(buf, "type", string(n.Scope))
	case score.KindPreferredReading, score.KindAlternateReading:
		attr(buf, "source", n.Source)
	case score.KindVerse:
		if n.N > 0 {
			attr(buf, "n", strconv.Itoa(n.N))
		}
		buf.WriteString("><syl>")
		buf.WriteString(encoding.EscapeXMLText(n.Text))
		buf.WriteString("</syl></verse>")
		return
	}

	if n.ChildCount() == 0 {
		buf.WriteString("/>")
		return
	}
	buf.WriteString(">")
	for _, c := range n.Children() {
		writeNode(buf, c)
	}
	fmt.Fprintf(buf, "</%s>", name)
}

func writeDuration(buf *bytes.Buffer, d score.Duration) {
	if !d.IsZero() {
		attr(buf, "dur", d.Base.String())
	}
	if d.Dots > 0 {
		attr(buf, "dots", strconv.Itoa(d.Dots))
	}
}

func open(buf *bytes.Buffer, name string, n *score.Node) {
	buf.WriteString("<")
	buf.WriteString(name)
	attr(buf, "xml:id", string(n.ID()))
}

// attr writes name="value", skipping empty values.
func attr(buf *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(buf, ` %s="%s"`, name, encoding.EscapeXMLAttr(value))
}
