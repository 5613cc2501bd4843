package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/JuniperScore/core/cas"
	scoreerrors "github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/merge"
	"github.com/FocuswithJustin/JuniperScore/internal/store"

	_ "github.com/FocuswithJustin/JuniperScore/internal/embedded"
)

const twoVoices = `<?xml version="1.0" encoding="UTF-8"?>
<mei xmlns="http://www.music-encoding.org/ns/mei" meiversion="5.0">
  <music><body><mdiv><score>
    <scoreDef><staffGrp><staffDef n="1" label="A"/><staffDef n="2" label="B"/></staffGrp></scoreDef>
    <section>
      <measure n="1">
        <staff n="1"><layer n="1">
          <note pname="c" oct="4" dur="2"><verse n="1"><syl>Glo-</syl></verse></note>
          <note pname="d" oct="4" dur="2"><verse n="1"><syl>ri-</syl></verse></note>
        </layer></staff>
        <staff n="2"><layer n="1">
          <note pname="c" oct="4" dur="2"><verse n="1"><syl>A-</syl></verse></note>
          <note pname="e" oct="4" dur="2"><verse n="1"><syl>ve</syl></verse></note>
        </layer></staff>
      </measure>
    </section>
  </score></mdiv></body></music>
</mei>`

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	blobs, err := cas.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runs, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { runs.Close() })
	return &Pipeline{Blobs: blobs, Runs: runs}
}

func TestRunTwoVoiceSource(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	var seen []merge.Mismatch
	outcome, err := p.Run(ctx, Request{
		Primary:  Source{Name: "gloria.mei", Data: []byte(twoVoices)},
		Sources:  [2]string{"#A", "#B"},
		Observer: func(m merge.Mismatch) { seen = append(seen, m) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Format != "mei" || outcome.Report.Groups != 1 || outcome.Report.StavesRemoved != 1 {
		t.Errorf("outcome = %+v, report = %+v", outcome, outcome.Report)
	}
	if len(seen) != 1 || seen[0].Kind != merge.MismatchPitch {
		t.Errorf("observer saw %v", seen)
	}
	if !bytes.Contains(outcome.Output, []byte(`<rdg xml:id=`)) || !bytes.Contains(outcome.Output, []byte(`source="#B"`)) {
		t.Errorf("output lacks the apparatus:\n%s", outcome.Output)
	}

	stored, err := p.Blobs.Get(outcome.OutputRef.SHA256)
	if err != nil || !bytes.Equal(stored, outcome.Output) {
		t.Errorf("output blob = %v", err)
	}
	run, err := p.Runs.Get(ctx, outcome.RunID)
	if err != nil {
		t.Fatalf("run not catalogued: %v", err)
	}
	if run.Primary != "gloria.mei" || run.Format != "mei" || run.Groups != 1 || len(run.Mismatches) != 1 {
		t.Errorf("run = %+v", run)
	}
	if run.PrimarySHA256 != cas.Hash([]byte(twoVoices)) || run.OutputBLAKE3 != outcome.OutputRef.BLAKE3 {
		t.Errorf("run blobs = %s / %s", run.PrimarySHA256, run.OutputBLAKE3)
	}
}

func TestRunTwoSources(t *testing.T) {
	p := &Pipeline{}
	outcome, err := p.Run(context.Background(), Request{
		Primary:   Source{Name: "a.pae", Data: []byte("@clef:G-2\n@data:4CDEF/1G")},
		Secondary: &Source{Name: "b.pae", Data: []byte("@clef:G-2\n@data:4CDEF/1A")},
		Export:    "json",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Format != "json" || outcome.RunID != "" {
		t.Errorf("outcome = %+v", outcome)
	}
	if outcome.Report.StavesRemoved != 2 || outcome.Report.Count(merge.MismatchPitch) != 1 {
		t.Errorf("report = %+v", outcome.Report)
	}
	if !strings.Contains(string(outcome.Output), `"version": "1.0.0"`) {
		t.Errorf("output is not a snapshot:\n%s", outcome.Output)
	}
}

func TestRunPage(t *testing.T) {
	_, err := (&Pipeline{}).Run(context.Background(), Request{
		Primary: Source{Format: "mei", Data: []byte(twoVoices)},
		Page:    2,
	})
	if !errors.Is(err, scoreerrors.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

const twoPages = `<?xml version="1.0" encoding="UTF-8"?>
<mei xmlns="http://www.music-encoding.org/ns/mei" meiversion="5.0">
  <music><body><mdiv><score>
    <scoreDef><staffGrp><staffDef n="1"/><staffDef n="2"/></staffGrp></scoreDef>
    <section>
      <measure n="1">
        <staff n="1"><layer n="1"><note pname="c" oct="4" dur="1"><verse n="1"><syl>Ky-</syl></verse></note></layer></staff>
        <staff n="2"><layer n="1"><note pname="c" oct="4" dur="1"><verse n="1"><syl>Chri-</syl></verse></note></layer></staff>
      </measure>
      <pb/>
      <measure n="2">
        <staff n="1"><layer n="1"><note pname="d" oct="4" dur="1"><verse n="1"><syl>ri-</syl></verse></note></layer></staff>
        <staff n="2"><layer n="1"><note pname="d" oct="4" dur="1"><verse n="1"><syl>ste</syl></verse></note></layer></staff>
      </measure>
    </section>
  </score></mdiv></body></music>
</mei>`

func TestRunOnePageOfTwo(t *testing.T) {
	for _, page := range []int{1, 2} {
		outcome, err := (&Pipeline{}).Run(context.Background(), Request{
			Primary: Source{Name: "kyrie.mei", Data: []byte(twoPages)},
			Page:    page,
		})
		if err != nil {
			t.Fatalf("page %d: Run: %v", page, err)
		}
		r := outcome.Report
		if r.Groups != 1 || r.StavesRemoved != 1 || r.StaffDefRemoved {
			t.Errorf("page %d: report = %+v", page, r)
		}
		if got := strings.Count(string(outcome.Output), "<staffDef "); got != 2 {
			t.Errorf("page %d: output declares %d staves, want 2", page, got)
		}
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"undetectable", Request{Primary: Source{Name: "x.txt", Data: []byte("hello")}}, scoreerrors.ErrUnsupported},
		{"unknown format", Request{Primary: Source{Format: "musicxml", Data: []byte("<x/>")}}, scoreerrors.ErrNotFound},
		{"parse failure", Request{Primary: Source{Format: "mei", Data: []byte("<mei>")}}, scoreerrors.ErrInvalidInput},
		{"bad secondary", Request{Primary: Source{Format: "pae", Data: []byte("4C")},
			Secondary: &Source{Format: "pae", Data: []byte("4Q")}}, scoreerrors.ErrInvalidInput},
		{"unknown export", Request{Primary: Source{Format: "mei", Data: []byte(twoVoices)}, Export: "midi"}, scoreerrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&Pipeline{}).Run(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	p := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, Request{Primary: Source{Format: "mei", Data: []byte(twoVoices)}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	runs, _ := p.Runs.List(context.Background(), 0)
	if len(runs) != 0 {
		t.Errorf("cancelled run was recorded: %v", runs)
	}
}

func TestBundle(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	outcome, err := p.Run(ctx, Request{
		Primary:   Source{Name: "a.pae", Data: []byte("@clef:G-2\n@data:4CDEF/1G")},
		Secondary: &Source{Name: "b.pae", Data: []byte("@clef:G-2\n@data:4CDEF/1A")},
		Export:    "mei",
	})
	if err != nil {
		t.Fatal(err)
	}
	run, entries, err := p.Bundle(ctx, outcome.RunID)
	if err != nil {
		t.Fatalf("Bundle: %v", err)
	}
	if run.ID != outcome.RunID {
		t.Errorf("run = %+v", run)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{"run.json", "primary-a.pae", "secondary-b.pae", "output.mei"}
	if strings.Join(names, " ") != strings.Join(want, " ") {
		t.Fatalf("entries = %v, want %v", names, want)
	}
	if !bytes.Equal(entries[3].Data, outcome.Output) || !bytes.Contains(entries[0].Data, []byte(outcome.RunID)) {
		t.Error("bundle content does not match the run")
	}

	if _, _, err := p.Bundle(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, scoreerrors.ErrNotFound) {
		t.Errorf("missing run error = %v", err)
	}
	if _, _, err := (&Pipeline{}).Bundle(ctx, outcome.RunID); !errors.Is(err, scoreerrors.ErrUnsupported) {
		t.Errorf("bare pipeline error = %v", err)
	}
}

func TestParseRejectsBadSource(t *testing.T) {
	_, _, err := Parse(Source{Name: "gloria.mei", Data: []byte(`{"version":"1.0.0"}`)})
	if !errors.Is(err, scoreerrors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}
