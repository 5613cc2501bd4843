// Package formats holds the registry of notation format handlers. Handlers
// live in sub-packages and register themselves from init; importing
// internal/embedded pulls in all of them.
package formats

import (
	"bytes"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/score"
)

// Handler reads and writes one notation format.
type Handler interface {
	// Name is the registry key, e.g. "mei".
	Name() string

	// Extensions lists file extensions claimed by the format, with the dot.
	Extensions() []string

	// Detect reports whether head, the first bytes of a source, looks like
	// this format.
	Detect(head []byte) bool

	// Parse reads a whole document.
	Parse(r io.Reader) (*score.Document, error)

	// Export writes doc. Handlers that cannot write return an
	// *errors.UnsupportedError.
	Export(w io.Writer, doc *score.Document) error
}

// Info describes a registered handler for listings.
type Info struct {
	Name       string   `json:"name"`
	Extensions []string `json:"extensions"`
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Handler)
)

// Register adds a handler, replacing any handler of the same name.
func Register(h Handler) {
	if h == nil || h.Name() == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[h.Name()] = h
}

// Get returns the handler registered under name.
func Get(name string) (Handler, error) {
	mu.RLock()
	defer mu.RUnlock()
	h, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, errors.NewNotFound("format", name)
	}
	return h, nil
}

// Has reports whether a handler is registered under name.
func Has(name string) bool {
	_, err := Get(name)
	return err == nil
}

// List returns all handlers sorted by name.
func List() []Info {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Info, 0, len(registry))
	for _, h := range registry {
		out = append(out, Info{Name: h.Name(), Extensions: h.Extensions()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clear removes every handler (for testing).
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]Handler)
}

// Detect picks a handler for a source. The file extension wins when it is
// claimed by exactly one handler; otherwise handlers are asked to
// recognise head, in name order.
func Detect(path string, head []byte) (Handler, error) {
	mu.RLock()
	handlers := make([]Handler, 0, len(registry))
	for _, h := range registry {
		handlers = append(handlers, h)
	}
	mu.RUnlock()
	sort.Slice(handlers, func(i, j int) bool { return handlers[i].Name() < handlers[j].Name() })

	if ext := strings.ToLower(extOf(path)); ext != "" {
		var byExt []Handler
		for _, h := range handlers {
			for _, e := range h.Extensions() {
				if strings.EqualFold(e, ext) {
					byExt = append(byExt, h)
				}
			}
		}
		if len(byExt) == 1 {
			return byExt[0], nil
		}
	}

	head = bytes.TrimLeft(head, "\ufeff \t\r\n")
	for _, h := range handlers {
		if h.Detect(head) {
			return h, nil
		}
	}
	return nil, errors.NewUnsupported("format detection", "no handler recognises "+filepath.Base(path))
}

// extOf returns the extension of path, ignoring a trailing .xz.
func extOf(path string) string {
	path = strings.TrimSuffix(strings.ToLower(path), ".xz")
	return filepath.Ext(path)
}
