// Package json provides the handler for JSON snapshots of a score tree.
// Snapshots keep every node ID, so a snapshot round trip is lossless.
package json

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/score"
	"github.com/FocuswithJustin/JuniperScore/internal/formats"
)

// Handler implements formats.Handler for JSON snapshots.
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
func (h *Handler) Name() string { return "json" }

// Extensions returns the file extensions claimed by snapshots.
func (h *Handler) Extensions() []string { return []string{".json"} }

// Detect reports whether head looks like a snapshot object.
func (h *Handler) Detect(head []byte) bool {
	return bytes.HasPrefix(head, []byte("{")) &&
		(bytes.Contains(head, []byte(`"staff_group"`)) || bytes.Contains(head, []byte(`"root"`)))
}

// Parse reads a snapshot.
func (h *Handler) Parse(r io.Reader) (*score.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("read", "", err)
	}
	doc := score.NewDocument()
	if err := doc.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return doc, nil
}

// Export writes an indented snapshot.
func (h *Handler) Export(w io.Writer, doc *score.Document) error {
	if doc == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil document")
	}
	data, err := doc.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return errors.Wrap(err, "indenting snapshot")
	}
	buf.WriteByte('\n')
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.NewIO("write", "", err)
	}
	return nil
}
