package darms

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// codeGrammar is the participle grammar for a DARMS code stream.
// Example: "!G !M3:4 21Q@Glo-$ (22E 23E) / RH 25H."
//
//nolint:govet // participle grammar tags are not standard struct tags
type codeGrammar struct {
	Items []*item `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type item struct {
	Clef   string     `  @Clef`
	Global string     `| @Global`
	Beam   *beamGroup `| "(" @@ ")"`
	Bar    string     `| @Bar`
	Event  *event     `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type beamGroup struct {
	Events []*event `@@+`
}

// event is one note or rest. A duration letter stays in force until the
// next one.
//
//nolint:govet // participle grammar tags are not standard struct tags
type event struct {
	Pos  lexer.Position
	Head *head  `@@`
	Dur  string `@Dur?`
	Dots string `@Dots?`
	Text string `@Text?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type head struct {
	Rest  bool   `  @Rest`
	Space string `| @Space`
	Accid string `  @Accid?`
}

// codeLexer tokenises DARMS. Global codes start with '!'; text
// underlay runs from '@' to '$'.
var codeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Clef", Pattern: `![0-9]{0,2}[GFC]`},
	{Name: "Global", Pattern: `![IKM][^\s]*`},
	{Name: "Text", Pattern: `@[^$]*\$`},
	{Name: "Space", Pattern: `[0-9]{1,2}`},
	{Name: "Accid", Pattern: `##|#|--|-|\*`},
	{Name: "Dur", Pattern: `[WHQESTXY]`},
	{Name: "Rest", Pattern: `R`},
	{Name: "Dots", Pattern: `\.+`},
	{Name: "Bar", Pattern: `//|/`},
	{Name: "Punct", Pattern: `[()]`},
	{Name: "Whitespace", Pattern: `[\s,]+`},
})

// codeParser is the participle parser for DARMS code.
var codeParser = participle.MustBuild[codeGrammar](
	participle.Lexer(codeLexer),
	participle.Elide("Whitespace"),
)
