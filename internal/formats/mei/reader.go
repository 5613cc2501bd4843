package mei

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/score"
	"github.com/FocuswithJustin/JuniperScore/core/xml"
	"github.com/FocuswithJustin/JuniperScore/internal/logging"
)

// reader builds a document from a score-based MEI file.
type reader struct {
	doc    *score.Document
	page   *score.Node
	system *score.Node
}

// Read parses score-based MEI.
func Read(r io.Reader) (*score.Document, error) {
	x, err := xml.Parse(r)
	if err != nil {
		return nil, &errors.ParseError{Format: "MEI", Message: err.Error(), Err: errors.ErrInvalidInput}
	}
	scoreEl, err := x.XPathFirst("//*[local-name()='score']")
	if err != nil {
		return nil, err
	}
	if scoreEl == nil {
		return nil, errors.NewParse("MEI", "", "no <score> element")
	}

	rd := &reader{doc: score.NewDocument()}
	if title, _ := x.XPathFirst("//*[local-name()='titleStmt']/*[local-name()='title']"); title != nil {
		rd.doc.Title = strings.TrimSpace(title.Text())
	}
	if err := rd.readStaffDefs(scoreEl); err != nil {
		return nil, err
	}
	for _, el := range scoreEl.Children() {
		if el.Name() == "section" {
			if err := rd.readSection(el); err != nil {
				return nil, err
			}
		}
	}
	return rd.doc, nil
}

func (rd *reader) readStaffDefs(scoreEl *xml.Node) error {
	defs, err := scoreEl.XPath(".//*[local-name()='scoreDef']//*[local-name()='staffDef']")
	if err != nil {
		return err
	}
	for _, el := range defs {
		def := score.StaffDef{
			N:     atoi(el.Attr("n")),
			Label: el.Attr("label"),
			Lines: atoi(el.Attr("lines")),
		}
		if def.Label == "" {
			for _, c := range el.Children() {
				if c.Name() == "label" {
					def.Label = strings.TrimSpace(c.Text())
				}
			}
		}
		if shape := el.Attr("clef.shape"); shape != "" {
			def.Clef = shape + el.Attr("clef.line")
		}
		if err := rd.doc.StaffGroup.Add(def); err != nil {
			return &errors.ParseError{Format: "MEI", Path: "staffDef " + el.Attr("n"), Message: err.Error(), Err: err}
		}
	}
	return nil
}

// readSection walks measures and the page and system milestones between
// them. Nested sections and endings are flattened in document order.
func (rd *reader) readSection(section *xml.Node) error {
	for _, el := range section.Children() {
		switch el.Name() {
		case "pb":
			rd.page, rd.system = nil, nil
			if err := rd.ensurePage(el); err != nil {
				return err
			}
		case "sb":
			if err := rd.ensurePage(nil); err != nil {
				return err
			}
			rd.system = nil
			if err := rd.ensureSystem(el); err != nil {
				return err
			}
		case "section", "ending":
			if err := rd.readSection(el); err != nil {
				return err
			}
		case "measure":
			if err := rd.ensureSystem(nil); err != nil {
				return err
			}
			m, err := rd.readMeasure(el)
			if err != nil {
				return err
			}
			if err := rd.system.AddChild(m); err != nil {
				return parseErr(el, err)
			}
		default:
			logging.Debug("mei: skipping element", "element", el.Name())
		}
	}
	return nil
}

func (rd *reader) ensurePage(el *xml.Node) error {
	if rd.page != nil {
		return nil
	}
	page, err := rd.newNode(score.KindPage, el)
	if err != nil {
		return err
	}
	if err := rd.doc.Root().AddChild(page); err != nil {
		return parseErr(el, err)
	}
	rd.page = page
	return nil
}

func (rd *reader) ensureSystem(el *xml.Node) error {
	if err := rd.ensurePage(nil); err != nil {
		return err
	}
	if rd.system != nil {
		return nil
	}
	system, err := rd.newNode(score.KindSystem, el)
	if err != nil {
		return err
	}
	if err := rd.page.AddChild(system); err != nil {
		return parseErr(el, err)
	}
	rd.system = system
	return nil
}

func (rd *reader) readMeasure(el *xml.Node) (*score.Node, error) {
	m, err := rd.newNode(score.KindMeasure, el)
	if err != nil {
		return nil, err
	}
	m.N = atoi(el.Attr("n"))
	for _, c := range el.Children() {
		if c.Name() != "staff" {
			logging.Debug("mei: skipping element", "element", c.Name(), "parent", "measure")
			continue
		}
		if err := rd.attach(m, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// attach reads el and appends the result to parent. Unsupported elements
// are skipped.
func (rd *reader) attach(parent *score.Node, el *xml.Node) error {
	n, err := rd.readElement(el)
	if err != nil || n == nil {
		return err
	}
	if err := parent.AddChild(n); err != nil {
		return parseErr(el, err)
	}
	return nil
}

// readElement builds the subtree for one staff-level or lower element.
// It returns nil for elements the model does not represent.
func (rd *reader) readElement(el *xml.Node) (*score.Node, error) {
	switch el.Name() {
	case "staff", "layer":
		kind := score.KindStaff
		if el.Name() == "layer" {
			kind = score.KindLayer
		}
		n, err := rd.newNode(kind, el)
		if err != nil {
			return nil, err
		}
		n.N = atoi(el.Attr("n"))
		return n, rd.readChildren(n, el)

	case "beam":
		n, err := rd.newNode(score.KindBeam, el)
		if err != nil {
			return nil, err
		}
		return n, rd.readChildren(n, el)

	case "note":
		return rd.readNote(el)

	case "rest", "mRest":
		n, err := rd.newNode(score.KindRest, el)
		if err != nil {
			return nil, err
		}
		if el.Name() == "mRest" {
			n.Duration = score.Duration{Base: score.DurWhole}
			return n, nil
		}
		n.Duration, err = readDuration(el)
		return n, err

	case "verse":
		n, err := rd.newNode(score.KindVerse, el)
		if err != nil {
			return nil, err
		}
		n.N = atoi(el.Attr("n"))
		var parts []string
		for _, c := range el.Children() {
			if c.Name() == "syl" {
				parts = append(parts, strings.TrimSpace(c.Text()))
			}
		}
		n.Text = strings.Join(parts, " ")
		return n, nil

	case "app":
		return rd.readApp(el)
	}
	logging.Debug("mei: skipping element", "element", el.Name())
	return nil, nil
}

func (rd *reader) readChildren(parent *score.Node, el *xml.Node) error {
	for _, c := range el.Children() {
		if err := rd.attach(parent, c); err != nil {
			return err
		}
	}
	return nil
}

func (rd *reader) readNote(el *xml.Node) (*score.Node, error) {
	n, err := rd.newNode(score.KindNote, el)
	if err != nil {
		return nil, err
	}
	step, err := score.ParseStep(el.Attr("pname"))
	if err != nil {
		return nil, parseErr(el, err)
	}
	oct, err := strconv.Atoi(el.Attr("oct"))
	if err != nil {
		return nil, parseErr(el, fmt.Errorf("invalid oct %q", el.Attr("oct")))
	}
	n.Pitch = score.Pitch{Step: step, Octave: oct, Accid: score.Accidental(el.Attr("accid"))}
	if n.Duration, err = readDuration(el); err != nil {
		return nil, err
	}

	for _, c := range el.Children() {
		if c.Name() == "accid" {
			if a := c.Attr("accid"); a != "" {
				n.Pitch.Accid = score.Accidental(a)
			}
			continue
		}
		if err := rd.attach(n, c); err != nil {
			return nil, err
		}
	}
	if !n.Pitch.Accid.IsValid() {
		return nil, parseErr(el, fmt.Errorf("invalid accid %q", n.Pitch.Accid))
	}
	return n, nil
}

// readApp builds an alternative group. Each reading must wrap exactly one
// supported element, and the group needs both reading kinds before it can
// be attached.
func (rd *reader) readApp(el *xml.Node) (*score.Node, error) {
	group, err := rd.newNode(score.KindAlternativeGroup, el)
	if err != nil {
		return nil, err
	}
	group.Scope = score.Scope(el.Attr("type"))
	if group.Scope == "" {
		group.Scope = score.ScopeNote
	}

	for _, r := range el.Children() {
		var kind score.ReadingKind
		switch r.Name() {
		case "lem":
			kind = score.ReadingPreferred
		case "rdg":
			kind = score.ReadingAlternate
		default:
			logging.Debug("mei: skipping element", "element", r.Name(), "parent", "app")
			continue
		}
		children := r.Children()
		if len(children) != 1 {
			return nil, parseErr(r, fmt.Errorf("reading must wrap exactly one element, found %d", len(children)))
		}
		content, err := rd.readElement(children[0])
		if err != nil {
			return nil, err
		}
		if content == nil {
			return nil, parseErr(children[0], fmt.Errorf("unsupported reading content <%s>", children[0].Name()))
		}
		reading, err := rd.doc.AddReading(group, kind, content)
		if err != nil {
			return nil, parseErr(r, err)
		}
		reading.Source = r.Attr("source")
	}
	return group, nil
}

// newNode allocates a node, keeping the element's xml:id when it has one.
func (rd *reader) newNode(kind score.Kind, el *xml.Node) (*score.Node, error) {
	if el == nil || el.ID() == "" {
		return rd.doc.NewNode(kind), nil
	}
	n, err := rd.doc.NewNodeWithID(kind, score.NodeID(el.ID()))
	if err != nil {
		return nil, parseErr(el, err)
	}
	return n, nil
}

func readDuration(el *xml.Node) (score.Duration, error) {
	var d score.Duration
	if s := el.Attr("dur"); s != "" {
		base, err := score.ParseDurationBase(s)
		if err != nil {
			return d, parseErr(el, err)
		}
		d.Base = base
	}
	d.Dots = atoi(el.Attr("dots"))
	return d, nil
}

func parseErr(el *xml.Node, err error) error {
	path := ""
	if el != nil {
		path = el.Name()
		if id := el.ID(); id != "" {
			path += "#" + id
		} else if n := el.Attr("n"); n != "" {
			path += "[n=" + n + "]"
		}
	}
	pe := &errors.ParseError{Format: "MEI", Path: path, Message: err.Error()}
	if errors.Unwrap(err) != nil {
		pe.Err = err
	}
	return pe
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
