// Package mei provides the handler for score-based MEI (Music Encoding
// Initiative) files, including the critical apparatus elements app, lem
// and rdg.
package mei

import (
	"bytes"
	"io"

	"github.com/FocuswithJustin/JuniperScore/core/score"
	"github.com/FocuswithJustin/JuniperScore/internal/formats"
)

// Handler implements formats.Handler for MEI.
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
func (h *Handler) Name() string { return "mei" }

// Extensions returns the file extensions claimed by MEI.
func (h *Handler) Extensions() []string { return []string{".mei", ".xml"} }

// Detect reports whether head looks like an MEI document.
func (h *Handler) Detect(head []byte) bool {
	return bytes.Contains(head, []byte("<mei")) || bytes.Contains(head, []byte(Namespace))
}

// Parse reads score-based MEI.
func (h *Handler) Parse(r io.Reader) (*score.Document, error) {
	return Read(r)
}

// Export writes score-based MEI.
func (h *Handler) Export(w io.Writer, doc *score.Document) error {
	return Write(w, doc)
}
