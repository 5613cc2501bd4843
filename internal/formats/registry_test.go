package formats

import (
	"bytes"
	"errors"
	"io"
	"testing"

	scoreerrors "github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/score"
)

type fakeHandler struct {
	name  string
	exts  []string
	magic string
}

func (f *fakeHandler) Name() string { return f.name }
func (f *fakeHandler) Extensions() []string { return f.exts }
func (f *fakeHandler) Detect(head []byte) bool { return bytes.HasPrefix(head, []byte(f.magic)) }
func (f *fakeHandler) Parse(io.Reader) (*score.Document, error) { return score.NewDocument(), nil }
func (f *fakeHandler) Export(io.Writer, *score.Document) error {
	return scoreerrors.NewUnsupported("export", f.name)
}

func TestRegistry(t *testing.T) {
	Clear()
	defer Clear()

	Register(&fakeHandler{name: "beta", exts: []string{".b", ".shared"}, magic: "B"})
	Register(&fakeHandler{name: "alpha", exts: []string{".a", ".shared"}, magic: "A"})
	Register(nil)
	Register(&fakeHandler{})

	list := List()
	if len(list) != 2 || list[0].Name != "alpha" || list[1].Name != "beta" {
		t.Fatalf("List() = %v", list)
	}
	if !Has("ALPHA") {
		t.Error("Get should be case insensitive")
	}
	if _, err := Get("gamma"); !errors.Is(err, scoreerrors.ErrNotFound) {
		t.Errorf("Get(gamma) error = %v", err)
	}

	tests := []struct {
		name string
		path string
		head string
		want string
	}{
		{"extension", "x.b", "A", "beta"},
		{"extension ignores xz", "x.A.xz", "", "alpha"},
		{"shared extension falls back to content", "x.shared", "B...", "beta"},
		{"content after bom", "upload", "\ufeff\n A", "alpha"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Detect(tt.path, []byte(tt.head))
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if h.Name() != tt.want {
				t.Errorf("Detect = %s, want %s", h.Name(), tt.want)
			}
		})
	}

	if _, err := Detect("x.shared", []byte("?")); !errors.Is(err, scoreerrors.ErrUnsupported) {
		t.Errorf("undetectable source error = %v", err)
	}
}

func TestRegisterReplaces(t *testing.T) {
	Clear()
	defer Clear()

	Register(&fakeHandler{name: "alpha", exts: []string{".a"}})
	Register(&fakeHandler{name: "alpha", exts: []string{".z"}})
	h, err := Get("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if h.Extensions()[0] != ".z" {
		t.Errorf("Extensions() = %v, want the later registration", h.Extensions())
	}
}
