package pipeline

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/internal/archive"
	"github.com/FocuswithJustin/JuniperScore/internal/logging"
	"github.com/FocuswithJustin/JuniperScore/internal/store"
	"github.com/FocuswithJustin/JuniperScore/internal/validation"
)

// outputExt names the output entry of a bundle by what the output looks like.
var outputExt = map[validation.ContentType]string{
	validation.ContentXML:  ".mei",
	validation.ContentJSON: ".json",
	validation.ContentText: ".pae",
}

// Bundle gathers a catalogued run into archive entries: run.json with the
// report, then the stored sources and the merged output. Blobs missing
// from the store are skipped with a warning.
func (p *Pipeline) Bundle(ctx context.Context, id string) (*store.Run, []archive.Entry, error) {
	if p.Runs == nil || p.Blobs == nil {
		return nil, nil, errors.NewUnsupported("run bundle", "no blob store or run catalogue")
	}
	run, err := p.Runs.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	meta, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	entries := []archive.Entry{{Name: "run.json", Data: append(meta, '\n')}}

	add := func(prefix, source, sha string) {
		if sha == "" {
			return
		}
		data, err := p.Blobs.Get(sha)
		if err != nil {
			logging.WarnContext(ctx, "bundle blob missing", "run_id", run.ID, "sha256", sha, "error", err)
			return
		}
		name := prefix
		if source != "" {
			if s, err := validation.SanitizeFilename(source); err == nil {
				name = prefix + "-" + s
			}
		}
		if name == prefix {
			ext := outputExt[validation.Sniff(data)]
			if ext == ".pae" && bytes.HasPrefix(data, []byte("!")) {
				ext = ".darms"
			}
			name += ext
		}
		entries = append(entries, archive.Entry{Name: name, Data: data})
	}
	add("primary", run.Primary, run.PrimarySHA256)
	add("secondary", run.Secondary, run.SecondarySHA256)
	add("output", "", run.OutputSHA256)
	return run, entries, nil
}
