package score

import (
	"fmt"
	"strconv"
	"strings"
)

// DurationBase is the undotted written duration of an event.
type DurationBase int

// Duration base constants, longest first.
const (
	DurUnknown DurationBase = iota
	DurLong
	DurBreve
	DurWhole
	DurHalf
	DurQuarter
	DurEighth
	Dur16th
	Dur32nd
	Dur64th
	Dur128th
)

// durationNames maps duration bases to their MEI @dur values.
var durationNames = map[DurationBase]string{
	DurLong:    "long",
	DurBreve:   "breve",
	DurWhole:   "1",
	DurHalf:    "2",
	DurQuarter: "4",
	DurEighth:  "8",
	Dur16th:    "16",
	Dur32nd:    "32",
	Dur64th:    "64",
	Dur128th:   "128",
}

func (b DurationBase) String() string {
	if s, ok := durationNames[b]; ok {
		return s
	}
	return "unknown"
}

// ParseDurationBase parses an MEI @dur value.
func ParseDurationBase(s string) (DurationBase, error) {
	s = strings.TrimSpace(s)
	for b, name := range durationNames {
		if name == s {
			return b, nil
		}
	}
	return DurUnknown, fmt.Errorf("unknown duration %q", s)
}

// Duration is a duration code: a base value plus augmentation dots.
type Duration struct {
	Base DurationBase `json:"base"`
	Dots int          `json:"dots,omitempty"`
}

// IsZero reports whether no duration has been set.
func (d Duration) IsZero() bool {
	return d.Base == DurUnknown
}

func (d Duration) String() string {
	return d.Base.String() + strings.Repeat(".", d.Dots)
}

// Step is a diatonic pitch name.
type Step int

// Step constants; the zero value means unset.
const (
	StepUnknown Step = iota
	StepC
	StepD
	StepE
	StepF
	StepG
	StepA
	StepB
)

const stepLetters = "cdefgab"

func (s Step) String() string {
	if s < StepC || s > StepB {
		return "?"
	}
	return string(stepLetters[s-StepC])
}

// ParseStep parses a pitch letter in either case.
func ParseStep(s string) (Step, error) {
	if len(s) != 1 {
		return StepUnknown, fmt.Errorf("invalid pitch name %q", s)
	}
	i := strings.IndexByte(stepLetters, strings.ToLower(s)[0])
	if i < 0 {
		return StepUnknown, fmt.Errorf("invalid pitch name %q", s)
	}
	return StepC + Step(i), nil
}

// Accidental is a written accidental using MEI @accid values ("s", "f",
// "n", "ss", "ff"). The empty string means none.
type Accidental string

// Accidental constants.
const (
	AccidNone        Accidental = ""
	AccidSharp       Accidental = "s"
	AccidFlat        Accidental = "f"
	AccidNatural     Accidental = "n"
	AccidDoubleSharp Accidental = "ss"
	AccidDoubleFlat  Accidental = "ff"
)

// IsValid returns true for the accidentals understood by the model.
func (a Accidental) IsValid() bool {
	switch a {
	case AccidNone, AccidSharp, AccidFlat, AccidNatural, AccidDoubleSharp, AccidDoubleFlat:
		return true
	}
	return false
}

// Pitch is a written pitch.
type Pitch struct {
	Step   Step       `json:"step"`
	Octave int        `json:"oct"`
	Accid  Accidental `json:"accid,omitempty"`
}

// IsZero reports whether no pitch has been set.
func (p Pitch) IsZero() bool {
	return p.Step == StepUnknown
}

// Diatonic returns the diatonic step number (seven per octave, C4 = 28).
// Accidentals do not take part.
func (p Pitch) Diatonic() int {
	return p.Octave*7 + int(p.Step-StepC)
}

func (p Pitch) String() string {
	return p.Step.String() + string(p.Accid) + strconv.Itoa(p.Octave)
}

// Equivalent reports whether two notes match for merge purposes: equal
// duration and equal diatonic pitch. A note without a pitch matches nothing.
func Equivalent(a, b *Node) bool {
	if a == nil || b == nil || a.kind != KindNote || b.kind != KindNote {
		return false
	}
	if a.Pitch.IsZero() || b.Pitch.IsZero() {
		return false
	}
	return a.Duration == b.Duration && a.Pitch.Diatonic() == b.Pitch.Diatonic()
}

// MarshalText encodes the base as its MEI @dur value.
func (b DurationBase) MarshalText() ([]byte, error) {
	if b == DurUnknown {
		return []byte{}, nil
	}
	return []byte(b.String()), nil
}

// UnmarshalText decodes an MEI @dur value; empty means unknown.
func (b *DurationBase) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*b = DurUnknown
		return nil
	}
	v, err := ParseDurationBase(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalText encodes the step as a lowercase letter.
func (s Step) MarshalText() ([]byte, error) {
	if s == StepUnknown {
		return []byte{}, nil
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a pitch letter; empty means unknown.
func (s *Step) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = StepUnknown
		return nil
	}
	v, err := ParseStep(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
