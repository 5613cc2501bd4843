package pae

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// dataGrammar is the participle grammar for the @data field.
// Example: "'4C8DE{FG}/2A-//"
//
//nolint:govet // participle grammar tags are not standard struct tags
type dataGrammar struct {
	Items []*item `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type item struct {
	Beam  *beamGroup `  "{" @@ "}"`
	Bar   string     `| @Bar`
	Event *event     `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type beamGroup struct {
	Events []*event `@@*`
}

// event is one note or rest. Octave and duration marks stay in force
// until the next mark of the same kind.
//
//nolint:govet // participle grammar tags are not standard struct tags
type event struct {
	Pos   lexer.Position
	Marks []*mark `@@*`
	Accid string  `@Accid?`
	Step  string  `( @Step`
	Rest  bool    `| @Rest )`
}

//nolint:govet // participle grammar tags are not standard struct tags
type mark struct {
	Octave string `  @Octave`
	Digit  string `| @Digit`
	Dots   string `  @Dots?`
}

// dataLexer tokenises incipit data. Accidentals are lower case and pitch
// names upper case, so "b" (flat) and "B" never collide.
var dataLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Octave", Pattern: `'+|,+`},
	{Name: "Digit", Pattern: `[0-9]`},
	{Name: "Dots", Pattern: `\.+`},
	{Name: "Accid", Pattern: `xx|x|bb|b|n`},
	{Name: "Step", Pattern: `[A-G]`},
	{Name: "Rest", Pattern: `-`},
	{Name: "Bar", Pattern: `//|/`},
	{Name: "Punct", Pattern: `[{}]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// dataParser is the participle parser for incipit data.
var dataParser = participle.MustBuild[dataGrammar](
	participle.Lexer(dataLexer),
	participle.Elide("Whitespace"),
)
