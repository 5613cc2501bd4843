// Package darms provides the handler for DARMS (Digital Alternate
// Representation of Musical Scores), the keypunch code used for early
// repertory encodings.
//
// A source is one staff of space-separated codes:
//
//	!G !M4:4 21Q@Ky-$ 23Q@ri-$ (25E 26E) / RH 28#H.@e$ //
//
// Notes are written as a staff position (21 is the bottom line, 29 the
// top line, single digits abbreviate 21-29), an optional accidental and a
// duration letter. Text between '@' and '$' is the syllable sung to the
// note. Key signatures, meters and instrument codes are accepted and
// ignored.
package darms

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/score"
	"github.com/FocuswithJustin/JuniperScore/internal/formats"
	"github.com/FocuswithJustin/JuniperScore/internal/logging"
)

// Handler implements formats.Handler for DARMS.
type Handler struct{}

// Register registers this handler with the formats registry.
func Register() {
	formats.Register(&Handler{})
}

func init() {
	Register()
}

// Name returns the registry key.
func (h *Handler) Name() string { return "darms" }

// Extensions returns the file extensions claimed by DARMS.
func (h *Handler) Extensions() []string { return []string{".darms", ".drm"} }

// Detect reports whether head opens with a DARMS global code.
func (h *Handler) Detect(head []byte) bool {
	s := strings.TrimLeft(string(head), " \t\r\n")
	return len(s) > 1 && s[0] == '!' && strings.ContainsRune("GFCIKM0123456789", rune(s[1]))
}

// Parse reads a DARMS source.
func (h *Handler) Parse(r io.Reader) (*score.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("read", "", err)
	}
	return Read(string(data))
}

// Export writes the first staff of doc as DARMS.
func (h *Handler) Export(w io.Writer, doc *score.Document) error {
	return Write(w, doc)
}

// durationCodes maps DARMS duration letters to duration bases.
var durationCodes = map[string]score.DurationBase{
	"W": score.DurWhole,
	"H": score.DurHalf,
	"Q": score.DurQuarter,
	"E": score.DurEighth,
	"S": score.Dur16th,
	"T": score.Dur32nd,
	"X": score.Dur64th,
	"Y": score.Dur128th,
}

// accidentals maps DARMS accidentals to MEI @accid values.
var accidentals = map[string]score.Accidental{
	"#":  score.AccidSharp,
	"##": score.AccidDoubleSharp,
	"-":  score.AccidFlat,
	"--": score.AccidDoubleFlat,
	"*":  score.AccidNatural,
}

// clef is a clef sign placed on a staff position.
type clef struct {
	sign  byte
	space int
}

// defaultSpaces are the usual positions of the three clef signs: G on the
// second line, C on the third, F on the fourth.
var defaultSpaces = map[byte]int{'G': 23, 'C': 25, 'F': 27}

// reference returns the diatonic number of the pitch the sign names.
func (c clef) reference() int {
	switch c.sign {
	case 'F':
		return score.Pitch{Step: score.StepF, Octave: 3}.Diatonic()
	case 'C':
		return score.Pitch{Step: score.StepC, Octave: 4}.Diatonic()
	}
	return score.Pitch{Step: score.StepG, Octave: 4}.Diatonic()
}

// line returns the staff def clef, e.g. "G2".
func (c clef) line() string {
	return string(c.sign) + strconv.Itoa((c.space-21)/2+1)
}

var treble = clef{sign: 'G', space: 23}

// parseClef reads "!G", "!F" or "!27F".
func parseClef(tok string) (clef, error) {
	c := clef{sign: tok[len(tok)-1]}
	switch digits := tok[1 : len(tok)-1]; digits {
	case "":
		c.space = defaultSpaces[c.sign]
	default:
		c.space = spaceCode(digits)
	}
	if c.space < 21 || c.space > 29 || c.space%2 == 0 {
		return clef{}, errors.NewParse("DARMS", tok, "clef must sit on a staff line")
	}
	return c, nil
}

// spaceCode expands a staff position; a single digit abbreviates 21-29.
func spaceCode(digits string) int {
	n, _ := strconv.Atoi(digits)
	if len(digits) == 1 {
		n += 20
	}
	return n
}

// state carries the clef and duration in force between events.
type state struct {
	clef     clef
	duration score.Duration
}

// Read parses a DARMS source into a one-staff document: one page, one
// system, and a measure per bar.
func Read(src string) (*score.Document, error) {
	parsed, err := codeParser.ParseString("", src)
	if err != nil {
		pe := &errors.ParseError{Format: "DARMS", Message: err.Error()}
		var perr participle.Error
		if errors.As(err, &perr) {
			pe.Path = fmt.Sprintf("offset %d", perr.Position().Offset)
			pe.Message = perr.Message()
		}
		return nil, pe
	}

	doc := score.NewDocument()
	def := score.StaffDef{N: 1, Lines: 5}
	page := doc.NewNode(score.KindPage)
	system := doc.NewNode(score.KindSystem)
	if err := doc.Root().AddChild(page); err != nil {
		return nil, err
	}
	if err := page.AddChild(system); err != nil {
		return nil, err
	}

	st := &state{clef: treble, duration: score.Duration{Base: score.DurQuarter}}
	var layer *score.Node
	newMeasure := func() error {
		m := doc.NewNode(score.KindMeasure)
		m.N = system.ChildCount() + 1
		staff := doc.NewNode(score.KindStaff)
		staff.N = 1
		layer = doc.NewNode(score.KindLayer)
		layer.N = 1
		if err := staff.AddChild(layer); err != nil {
			return err
		}
		if err := m.AddChild(staff); err != nil {
			return err
		}
		return system.AddChild(m)
	}

	var events int
	for _, it := range parsed.Items {
		switch {
		case it.Clef != "":
			c, err := parseClef(it.Clef)
			if err != nil {
				return nil, err
			}
			st.clef = c
			if events == 0 {
				def.Clef = c.line()
			}
			continue
		case it.Global != "":
			logging.Debug("darms: ignoring global code", "code", it.Global)
			continue
		case it.Bar != "":
			layer = nil
			continue
		}
		if layer == nil {
			if err := newMeasure(); err != nil {
				return nil, err
			}
		}
		switch {
		case it.Beam != nil:
			beam := doc.NewNode(score.KindBeam)
			for _, ev := range it.Beam.Events {
				n, err := st.build(doc, ev)
				if err != nil {
					return nil, err
				}
				if err := beam.AddChild(n); err != nil {
					return nil, err
				}
			}
			if err := layer.AddChild(beam); err != nil {
				return nil, err
			}
			events += len(it.Beam.Events)
		case it.Event != nil:
			n, err := st.build(doc, it.Event)
			if err != nil {
				return nil, err
			}
			if err := layer.AddChild(n); err != nil {
				return nil, err
			}
			events++
		}
	}
	if err := doc.StaffGroup.Add(def); err != nil {
		return nil, err
	}
	return doc, nil
}

// build applies ev's duration to the running state and creates the event,
// with a verse when ev carries text.
func (st *state) build(doc *score.Document, ev *event) (*score.Node, error) {
	at := fmt.Sprintf("offset %d", ev.Pos.Offset)
	if ev.Dur != "" {
		st.duration = score.Duration{Base: durationCodes[ev.Dur], Dots: len(ev.Dots)}
	} else if ev.Dots != "" {
		return nil, errors.NewParse("DARMS", at, "dots without a duration")
	}

	if ev.Head.Rest {
		if ev.Text != "" {
			return nil, errors.NewParse("DARMS", at, "text on a rest")
		}
		n := doc.NewNode(score.KindRest)
		n.Duration = st.duration
		return n, nil
	}

	d := st.clef.reference() + spaceCode(ev.Head.Space) - st.clef.space
	if d < 0 {
		return nil, errors.NewParse("DARMS", at, "staff position below the lowest octave")
	}
	n := doc.NewNode(score.KindNote)
	n.Duration = st.duration
	n.Pitch = score.Pitch{Step: score.StepC + score.Step(d%7), Octave: d / 7, Accid: accidentals[ev.Head.Accid]}

	if text := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(ev.Text, "@"), "$")); text != "" {
		v := doc.NewNode(score.KindVerse)
		v.N, v.Text = 1, text
		if err := n.AddChild(v); err != nil {
			return nil, err
		}
	}
	return n, nil
}
