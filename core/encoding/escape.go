// Package encoding provides the text escaping used by the XML writers.
package encoding

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// EscapeXML escapes every character xml.EscapeText escapes, including
// quotes and control whitespace.
func EscapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

var textReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// EscapeXMLText escapes the basic XML entities for element content.
// Lyric syllables keep their quotes and apostrophes readable.
func EscapeXMLText(s string) string {
	return textReplacer.Replace(s)
}

var attrReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"\n", "&#10;",
	"\r", "&#13;",
	"\t", "&#9;",
)

// EscapeXMLAttr escapes text for a double-quoted attribute value. Line
// breaks and tabs are written as character references so that attribute
// value normalisation does not turn them into spaces.
func EscapeXMLAttr(s string) string {
	return attrReplacer.Replace(s)
}
