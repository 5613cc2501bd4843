// Package pae provides the handler for Plaine & Easie (PAE) incipits, the
// compact music code used by RISM catalogues.
//
// A source is a set of header lines:
//
//	@clef:G-2
//	@keysig:xF
//	@timesig:3/4
//	@data:'4C8DE{FG}/2A-//
//
// Only @clef and @data take part in the model. A source without any
// header line is read as bare @data.
package pae

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/score"
	"github.com/FocuswithJustin/JuniperScore/internal/formats"
	"github.com/FocuswithJustin/JuniperScore/internal/logging"
)

// Handler implements formats.Handler for PAE.
type Handler struct{}

// Register registers this handler with the formats registry.
func Register() {
	formats.Register(&Handler{})
}

// init automatically registers this handler when the package is imported.
func init() {
	Register()
}

// Name returns the registry key.
func (h *Handler) Name() string { return "pae" }

// Extensions returns the file extensions claimed by PAE.
func (h *Handler) Extensions() []string { return []string{".pae"} }

// Detect reports whether head starts with a PAE header line.
func (h *Handler) Detect(head []byte) bool {
	for _, key := range []string{"@clef", "@keysig", "@timesig", "@data"} {
		if bytes.HasPrefix(head, []byte(key)) {
			return true
		}
	}
	return false
}

// Parse reads a PAE incipit.
func (h *Handler) Parse(r io.Reader) (*score.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("read", "", err)
	}
	return Read(string(data))
}

// Export writes the first staff of doc as PAE.
func (h *Handler) Export(w io.Writer, doc *score.Document) error {
	return Write(w, doc)
}

// durationDigits maps PAE duration digits to duration bases.
var durationDigits = map[string]score.DurationBase{
	"0": score.DurLong,
	"9": score.DurBreve,
	"1": score.DurWhole,
	"2": score.DurHalf,
	"4": score.DurQuarter,
	"8": score.DurEighth,
	"6": score.Dur16th,
	"3": score.Dur32nd,
	"5": score.Dur64th,
	"7": score.Dur128th,
}

// accidentals maps PAE accidentals to MEI @accid values.
var accidentals = map[string]score.Accidental{
	"x":  score.AccidSharp,
	"xx": score.AccidDoubleSharp,
	"b":  score.AccidFlat,
	"bb": score.AccidDoubleFlat,
	"n":  score.AccidNatural,
}

// state carries the marks that stay in force between events.
type state struct {
	octave   int
	duration score.Duration
}

// Read parses a PAE source into a one-staff document: one page, one
// system, and a measure per bar.
func Read(src string) (*score.Document, error) {
	header := map[string]string{}
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "@") {
			continue
		}
		key, value, ok := strings.Cut(line[1:], ":")
		if !ok {
			return nil, errors.NewParse("PAE", line, "header line without ':'")
		}
		header[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	data, ok := header["data"]
	if !ok {
		if len(header) > 0 {
			return nil, errors.NewParse("PAE", "", "no @data line")
		}
		data = strings.TrimSpace(src)
	}
	for key := range header {
		switch key {
		case "data", "clef":
		default:
			logging.Debug("pae: ignoring header", "key", key, "value", header[key])
		}
	}

	def := score.StaffDef{N: 1, Lines: 5}
	if clef := header["clef"]; clef != "" {
		c, err := parseClef(clef)
		if err != nil {
			return nil, err
		}
		def.Clef = c
	}

	parsed, err := dataParser.ParseString("", data)
	if err != nil {
		pe := &errors.ParseError{Format: "PAE", Message: err.Error()}
		var perr participle.Error
		if errors.As(err, &perr) {
			pe.Path = fmt.Sprintf("offset %d", perr.Position().Offset)
			pe.Message = perr.Message()
		}
		return nil, pe
	}

	doc := score.NewDocument()
	if err := doc.StaffGroup.Add(def); err != nil {
		return nil, err
	}
	page := doc.NewNode(score.KindPage)
	system := doc.NewNode(score.KindSystem)
	if err := doc.Root().AddChild(page); err != nil {
		return nil, err
	}
	if err := page.AddChild(system); err != nil {
		return nil, err
	}

	st := &state{octave: 4, duration: score.Duration{Base: score.DurQuarter}}
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

	for _, it := range parsed.Items {
		if it.Bar != "" {
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
		case it.Event != nil:
			n, err := st.build(doc, it.Event)
			if err != nil {
				return nil, err
			}
			if err := layer.AddChild(n); err != nil {
				return nil, err
			}
		}
	}
	return doc, nil
}

// build applies ev's marks to the running state and creates the event.
func (st *state) build(doc *score.Document, ev *event) (*score.Node, error) {
	for _, m := range ev.Marks {
		switch {
		case strings.HasPrefix(m.Octave, "'"):
			st.octave = 3 + len(m.Octave)
		case strings.HasPrefix(m.Octave, ","):
			st.octave = 4 - len(m.Octave)
		case m.Digit != "":
			st.duration = score.Duration{Base: durationDigits[m.Digit], Dots: len(m.Dots)}
		}
	}

	if ev.Rest {
		if ev.Accid != "" {
			return nil, errors.NewParse("PAE", fmt.Sprintf("offset %d", ev.Pos.Offset), "accidental on a rest")
		}
		n := doc.NewNode(score.KindRest)
		n.Duration = st.duration
		return n, nil
	}

	step, err := score.ParseStep(ev.Step)
	if err != nil {
		return nil, errors.NewParse("PAE", fmt.Sprintf("offset %d", ev.Pos.Offset), err.Error())
	}
	n := doc.NewNode(score.KindNote)
	n.Duration = st.duration
	n.Pitch = score.Pitch{Step: step, Octave: st.octave, Accid: accidentals[ev.Accid]}
	return n, nil
}

// parseClef turns "G-2" (modern) or "C+3" (mensural) into "G2" / "C3".
func parseClef(s string) (string, error) {
	if len(s) != 3 || !strings.ContainsAny(s[:1], "GCFgcf") || !strings.ContainsAny(s[1:2], "-+") ||
		s[2] < '1' || s[2] > '5' {
		return "", errors.NewParse("PAE", "@clef", fmt.Sprintf("invalid clef %q", s))
	}
	return strings.ToUpper(s[:1]) + s[2:], nil
}
