package score

import (
	"errors"
	"testing"

	scoreerrors "github.com/FocuswithJustin/JuniperScore/core/errors"
)

func TestAlternativeGroupLifecycle(t *testing.T) {
	doc := NewDocument()
	note := doc.NewNode(KindNote)
	v1 := doc.NewNode(KindVerse)
	v1.Text = "Glo-"
	v2 := doc.NewNode(KindVerse)
	v2.Text = "Ave"

	app := doc.CreateAlternativeGroup(ScopeNote)
	if app.Scope != ScopeNote {
		t.Errorf("Scope = %q, want %q", app.Scope, ScopeNote)
	}
	if err := note.AddChild(app); !errors.Is(err, scoreerrors.ErrIncompleteApparatus) {
		t.Fatalf("attach empty group error = %v, want ErrIncompleteApparatus", err)
	}

	lem, err := doc.AddReading(app, ReadingPreferred, v1)
	if err != nil {
		t.Fatalf("AddReading(lem): %v", err)
	}
	if lem.Kind() != KindPreferredReading {
		t.Errorf("lem kind = %q", lem.Kind())
	}
	if err := note.AddChild(app); !errors.Is(err, scoreerrors.ErrIncompleteApparatus) {
		t.Fatalf("attach lem-only group error = %v, want ErrIncompleteApparatus", err)
	}

	rdg, err := doc.AddReading(app, ReadingAlternate, v2)
	if err != nil {
		t.Fatalf("AddReading(rdg): %v", err)
	}
	if err := CheckApparatus(app); err != nil {
		t.Fatalf("CheckApparatus: %v", err)
	}
	if err := note.AddChild(app); err != nil {
		t.Fatalf("attach complete group: %v", err)
	}

	got, ok := PreferredReading(app)
	if !ok || got != lem {
		t.Error("PreferredReading returned the wrong node")
	}
	var alts []*Node
	for r := range AlternateReadings(app) {
		alts = append(alts, r)
	}
	if len(alts) != 1 || alts[0] != rdg {
		t.Errorf("AlternateReadings = %v", alts)
	}
	if c, ok := ReadingContent(lem); !ok || c.Text != "Glo-" {
		t.Error("lem does not own the first verse")
	}
	if c, ok := ReadingContent(rdg); !ok || c.Text != "Ave" {
		t.Error("rdg does not own the second verse")
	}
	if p, _ := v1.Parent(); p != lem {
		t.Error("verse parent is not the reading")
	}
}

func TestAddReadingRejections(t *testing.T) {
	doc := NewDocument()
	other := NewDocument()
	app := doc.CreateAlternativeGroup(ScopeNote)
	note := doc.NewNode(KindNote)
	attached := doc.NewNode(KindVerse)
	mustAdd(t, note, attached)

	tests := []struct {
		name    string
		group   *Node
		content *Node
		want    error
	}{
		{"not a group", note, doc.NewNode(KindVerse), scoreerrors.ErrInvalidChild},
		{"nil content", app, nil, scoreerrors.ErrInvalidChild},
		{"foreign content", app, other.NewNode(KindVerse), scoreerrors.ErrInvalidChild},
		{"still owned", app, attached, scoreerrors.ErrOwnershipConflict},
		{"incomplete group as content", app, app, scoreerrors.ErrIncompleteApparatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := doc.Len()
			if _, err := doc.AddReading(tt.group, ReadingPreferred, tt.content); !errors.Is(err, tt.want) {
				t.Fatalf("AddReading error = %v, want %v", err, tt.want)
			}
			if doc.Len() != before {
				t.Errorf("failed AddReading leaked nodes: %d -> %d", before, doc.Len())
			}
		})
	}
	if p, _ := attached.Parent(); p != note {
		t.Error("ownership of attached content changed")
	}
	if app.ChildCount() != 0 {
		t.Error("failed AddReading left a reading in the group")
	}
}

func TestCheckApparatus(t *testing.T) {
	doc := NewDocument()
	if err := CheckApparatus(doc.NewNode(KindNote)); !errors.Is(err, scoreerrors.ErrInvalidChild) {
		t.Errorf("CheckApparatus(note) = %v, want ErrInvalidChild", err)
	}

	app := doc.CreateAlternativeGroup(ScopeLayer)
	if _, err := doc.AddReading(app, ReadingAlternate, doc.NewNode(KindLayer)); err != nil {
		t.Fatal(err)
	}
	if _, err := doc.AddReading(app, ReadingAlternate, doc.NewNode(KindLayer)); err != nil {
		t.Fatal(err)
	}
	err := CheckApparatus(app)
	var ae *scoreerrors.ApparatusError
	if !errors.As(err, &ae) {
		t.Fatalf("CheckApparatus = %v, want *ApparatusError", err)
	}
	if ae.Preferred != 0 || ae.Alternate != 2 {
		t.Errorf("counts = %d/%d, want 0/2", ae.Preferred, ae.Alternate)
	}
}

func TestReadingKind(t *testing.T) {
	if ReadingPreferred.Kind() != KindPreferredReading || ReadingPreferred.String() != "lem" {
		t.Error("preferred reading kind mismatch")
	}
	if ReadingAlternate.Kind() != KindAlternateReading || ReadingAlternate.String() != "rdg" {
		t.Error("alternate reading kind mismatch")
	}
}
