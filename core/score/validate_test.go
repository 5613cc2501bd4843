package score

import (
	"strings"
	"testing"
)

func TestValidateDocumentValid(t *testing.T) {
	doc := buildScore(t, 2)
	if errs := ValidateDocument(doc); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestValidateDocumentErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, doc *Document)
		want   string
	}{
		{
			name: "note without pitch",
			mutate: func(t *testing.T, doc *Document) {
				n, _ := doc.Root().FindDescendantByKind(KindNote)
				n.Pitch = Pitch{}
			},
			want: "note has no pitch",
		},
		{
			name: "note without duration",
			mutate: func(t *testing.T, doc *Document) {
				n, _ := doc.Root().FindDescendantByKind(KindNote)
				n.Duration = Duration{}
			},
			want: "note has no duration",
		},
		{
			name: "bad accidental",
			mutate: func(t *testing.T, doc *Document) {
				n, _ := doc.Root().FindDescendantByKind(KindNote)
				n.Pitch.Accid = "x"
			},
			want: "invalid accidental",
		},
		{
			name: "undeclared staff",
			mutate: func(t *testing.T, doc *Document) {
				s, _ := doc.Root().FindDescendantByKind(KindStaff)
				s.N = 7
			},
			want: "staff 7 is not declared",
		},
		{
			name: "misplaced child",
			mutate: func(t *testing.T, doc *Document) {
				m, _ := doc.Root().FindDescendantByKind(KindMeasure)
				mustAdd(t, m, doc.NewNode(KindNote))
			},
			want: "note is not allowed inside measure",
		},
		{
			name: "rest without duration",
			mutate: func(t *testing.T, doc *Document) {
				l, _ := doc.Root().FindDescendantByKind(KindLayer)
				mustAdd(t, l, doc.NewNode(KindRest))
			},
			want: "rest has no duration",
		},
		{
			name: "empty reading",
			mutate: func(t *testing.T, doc *Document) {
				n, _ := doc.Root().FindDescendantByKind(KindNote)
				app := doc.CreateAlternativeGroup(ScopeNote)
				if _, err := doc.AddReading(app, ReadingPreferred, doc.NewNode(KindVerse)); err != nil {
					t.Fatal(err)
				}
				rdg, err := doc.AddReading(app, ReadingAlternate, doc.NewNode(KindVerse))
				if err != nil {
					t.Fatal(err)
				}
				mustAdd(t, n, app)
				if _, err := rdg.DetachChildAt(0); err != nil {
					t.Fatal(err)
				}
			},
			want: "reading must own exactly one sub-tree",
		},
		{
			name: "group loses its alternate",
			mutate: func(t *testing.T, doc *Document) {
				n, _ := doc.Root().FindDescendantByKind(KindNote)
				app := doc.CreateAlternativeGroup(ScopeNote)
				doc.AddReading(app, ReadingPreferred, doc.NewNode(KindVerse))
				doc.AddReading(app, ReadingAlternate, doc.NewNode(KindVerse))
				mustAdd(t, n, app)
				if _, err := app.DetachChildAt(1); err != nil {
					t.Fatal(err)
				}
			},
			want: "0 alternate readings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := buildScore(t, 1)
			tt.mutate(t, doc)
			errs := ValidateDocument(doc)
			if len(errs) == 0 {
				t.Fatal("expected validation errors")
			}
			found := false
			for _, err := range errs {
				if strings.Contains(err.Error(), tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not mention %q", errs, tt.want)
			}
		})
	}
}

func TestValidateDetectsCorruptIndex(t *testing.T) {
	doc := buildScore(t, 1)
	layer, _ := doc.Root().FindDescendantByKind(KindLayer)
	note := layer.FirstChild()
	// simulate a corrupted arena: the note is listed twice
	layer.children = append(layer.children, note.id)

	errs := ValidateDocument(doc)
	if len(errs) < 2 {
		t.Fatalf("got %d errors, want at least 2: %v", len(errs), errs)
	}
}

func TestValidationErrorFormat(t *testing.T) {
	e := &ValidationError{Path: "document/page[0]", Message: "bad"}
	if e.Error() != "document/page[0]: bad" {
		t.Errorf("Error() = %q", e.Error())
	}
	e = &ValidationError{Message: "bad"}
	if e.Error() != "bad" {
		t.Errorf("Error() = %q", e.Error())
	}
}
