// Package pipeline runs a complete merge: parse the sources, merge them,
// validate the result, export it, keep the blobs and catalogue the run.
// The CLI and the HTTP API both drive merges through a Pipeline.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/FocuswithJustin/JuniperScore/core/cas"
	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/merge"
	"github.com/FocuswithJustin/JuniperScore/core/score"
	"github.com/FocuswithJustin/JuniperScore/internal/formats"
	"github.com/FocuswithJustin/JuniperScore/internal/logging"
	"github.com/FocuswithJustin/JuniperScore/internal/store"
	"github.com/FocuswithJustin/JuniperScore/internal/validation"
)

// Source is one input encoding.
type Source struct {
	// Name is a file name or label, used for format detection by
	// extension and recorded in the run catalogue.
	Name string
	// Format names the handler; empty means detect.
	Format string
	Data   []byte
}

// Request describes one merge.
type Request struct {
	// Primary is a two-voice source, or the first voice when Secondary is set.
	Primary Source
	// Secondary, when set, holds the second voice as its own document.
	Secondary *Source
	// Page restricts the merge to one page, counted from 1. Zero merges all.
	Page int
	// Export names the output format; empty means the primary's format.
	Export string
	// Sources labels the preferred and alternate readings.
	Sources [2]string
	// Observer receives each mismatch as it is found.
	Observer func(merge.Mismatch)
}

// Outcome is the result of a successful Run.
type Outcome struct {
	RunID     string        `json:"run_id,omitempty"`
	Format    string        `json:"format"`
	Report    *merge.Report `json:"report"`
	Output    []byte        `json:"-"`
	OutputRef cas.Ref       `json:"output_ref"`
	Hash      string        `json:"content_hash"`
	Duration  time.Duration `json:"duration_ns"`
}

// Pipeline holds the optional stores a run writes to. A zero Pipeline
// merges and exports without keeping anything.
type Pipeline struct {
	Blobs *cas.Store
	Runs  *store.RunStore
	Scope score.Scope
}

// Run executes req. Cancellation is checked between stages; a cancelled
// run records nothing.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()

	primary, primaryHandler, err := Parse(req.Primary)
	if err != nil {
		return nil, err
	}
	var secondary *score.Document
	if req.Secondary != nil {
		if secondary, _, err = Parse(*req.Secondary); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := []merge.Option{merge.WithPage(req.Page), merge.WithSources(req.Sources[0], req.Sources[1])}
	if p.Scope != "" {
		opts = append(opts, merge.WithScope(p.Scope))
	}
	if req.Observer != nil {
		opts = append(opts, merge.WithObserver(req.Observer))
	}
	engine := merge.New(opts...)

	var report *merge.Report
	if secondary != nil {
		report, err = engine.MergeDocuments(primary, secondary)
	} else {
		report, err = engine.Merge(primary)
	}
	if err != nil {
		return nil, err
	}
	if errs := score.ValidateDocument(primary); len(errs) > 0 {
		return nil, fmt.Errorf("%w: merged document is invalid: %v", errors.ErrInvalidInput, errs[0])
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exporter := primaryHandler
	if req.Export != "" {
		if exporter, err = formats.Get(req.Export); err != nil {
			return nil, err
		}
	}
	var out bytes.Buffer
	if err := exporter.Export(&out, primary); err != nil {
		logging.FormatError(exporter.Name(), "export", err)
		return nil, err
	}

	outcome := &Outcome{
		Format: exporter.Name(),
		Report: report,
		Output: out.Bytes(),
		Hash:   score.ContentHash(primary.Root()),
	}
	outcome.Duration = time.Since(start)
	if err := p.keep(ctx, req, outcome, primaryHandler.Name()); err != nil {
		return nil, err
	}
	logging.InfoContext(ctx, "merge run complete", "run_id", outcome.RunID, "format", outcome.Format,
		"groups", report.Groups, "mismatches", len(report.Mismatches))
	return outcome, nil
}

// keep stores the blobs and records the run when the stores are set.
func (p *Pipeline) keep(ctx context.Context, req Request, outcome *Outcome, inputFormat string) error {
	run := &store.Run{
		Format:          inputFormat,
		Primary:         req.Primary.Name,
		Groups:          outcome.Report.Groups,
		StavesRemoved:   outcome.Report.StavesRemoved,
		StaffDefRemoved: outcome.Report.StaffDefRemoved,
		Mismatches:      outcome.Report.Mismatches,
		Duration:        outcome.Duration,
	}
	if run.Primary == "" {
		run.Primary = "-"
	}
	if p.Blobs != nil {
		ref, err := p.Blobs.Put(req.Primary.Data)
		if err != nil {
			return err
		}
		run.PrimarySHA256 = ref.SHA256
		if req.Secondary != nil {
			ref, err := p.Blobs.Put(req.Secondary.Data)
			if err != nil {
				return err
			}
			run.Secondary, run.SecondarySHA256 = req.Secondary.Name, ref.SHA256
		}
		if outcome.OutputRef, err = p.Blobs.Put(outcome.Output); err != nil {
			return err
		}
		run.OutputSHA256, run.OutputBLAKE3 = outcome.OutputRef.SHA256, outcome.OutputRef.BLAKE3
	} else if req.Secondary != nil {
		run.Secondary = req.Secondary.Name
	}

	if p.Runs == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Runs.Record(ctx, run); err != nil {
		return err
	}
	outcome.RunID = run.ID
	return nil
}

// Parse checks one source and reads it with its named handler or by
// detection.
func Parse(src Source) (*score.Document, formats.Handler, error) {
	if err := validation.CheckSource(src.Name, src.Data); err != nil {
		return nil, nil, err
	}
	var h formats.Handler
	var err error
	if src.Format != "" {
		h, err = formats.Get(src.Format)
	} else {
		head := src.Data
		if len(head) > 512 {
			head = head[:512]
		}
		h, err = formats.Detect(src.Name, head)
	}
	if err != nil {
		return nil, nil, err
	}
	doc, err := h.Parse(bytes.NewReader(src.Data))
	if err != nil {
		logging.FormatError(h.Name(), "parse", err, "source", src.Name)
		return nil, nil, err
	}
	return doc, h, nil
}
