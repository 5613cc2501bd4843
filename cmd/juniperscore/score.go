package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/JuniperScore/core/score"
	"github.com/FocuswithJustin/JuniperScore/internal/fileutil"
	"github.com/FocuswithJustin/JuniperScore/internal/formats"
	"github.com/FocuswithJustin/JuniperScore/internal/pipeline"
)

// readSource loads path ("-" for stdin) as a pipeline source.
func readSource(path, format string) (pipeline.Source, error) {
	data, err := fileutil.ReadSource(path)
	if err != nil {
		return pipeline.Source{}, err
	}
	name := path
	if path != "-" {
		name = filepath.Base(path)
	}
	return pipeline.Source{Name: name, Format: format, Data: data}, nil
}

// writeOutput writes data to path, or to env.Stdout for "-".
func writeOutput(env *Env, path string, data []byte) error {
	if path == "-" {
		_, err := env.Stdout.Write(data)
		return err
	}
	return fileutil.WriteOutput(path, data)
}

// MergeCmd merges the two voices of a score, or two single-voice scores.
type MergeCmd struct {
	Primary   string   `arg:"" help:"Two-voice score, or the first voice with --secondary (- for stdin)"`
	Secondary string   `short:"s" help:"Second voice as its own score"`
	Format    string   `short:"f" help:"Input format (default: detect)"`
	Export    string   `short:"e" help:"Output format (default: the input format)"`
	Page      int      `help:"Merge only this page, counted from 1" default:"0"`
	Source    []string `help:"Source labels for the preferred and alternate readings" placeholder:"LABEL"`
	Out       string   `short:"o" help:"Output file (- for stdout, .xz compresses)" default:"-"`
	Report    string   `help:"Write the merge report as JSON to this file"`
	Quiet     bool     `short:"q" help:"Do not list mismatches"`
}

func (c *MergeCmd) Run(g *Globals, env *Env) error {
	if len(c.Source) > 2 {
		return fmt.Errorf("at most two --source labels")
	}
	primary, err := readSource(c.Primary, c.Format)
	if err != nil {
		return err
	}
	req := pipeline.Request{Primary: primary, Page: c.Page, Export: c.Export}
	copy(req.Sources[:], c.Source)
	if c.Secondary != "" {
		src, err := readSource(c.Secondary, c.Format)
		if err != nil {
			return err
		}
		req.Secondary = &src
	}

	p, closeFn, err := openPipeline(env.Ctx, g.DataDir)
	if err != nil {
		return err
	}
	defer closeFn()

	outcome, err := p.Run(env.Ctx, req)
	if err != nil {
		return err
	}
	if err := writeOutput(env, c.Out, outcome.Output); err != nil {
		return err
	}

	if c.Report != "" {
		data, err := json.MarshalIndent(outcome.Report, "", "  ")
		if err != nil {
			return err
		}
		if err := writeOutput(env, c.Report, append(data, '\n')); err != nil {
			return err
		}
	}

	fmt.Fprintln(env.Stderr, outcome.Report.Summary())
	if !c.Quiet {
		for _, m := range outcome.Report.Mismatches {
			fmt.Fprintf(env.Stderr, "  %s\n", m)
		}
	}
	if outcome.RunID != "" {
		fmt.Fprintf(env.Stderr, "run %s\n", outcome.RunID)
	}
	return nil
}

// ValidateCmd checks a score's structure and apparatus.
type ValidateCmd struct {
	Path   string `arg:"" help:"Score to check (- for stdin)"`
	Format string `short:"f" help:"Input format (default: detect)"`
}

func (c *ValidateCmd) Run(env *Env) error {
	src, err := readSource(c.Path, c.Format)
	if err != nil {
		return err
	}
	doc, _, err := pipeline.Parse(src)
	if err != nil {
		return err
	}
	errs := score.ValidateDocument(doc)
	for _, e := range errs {
		fmt.Fprintf(env.Stdout, "%s\n", e)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s: %d problems", src.Name, len(errs))
	}
	fmt.Fprintf(env.Stdout, "%s: ok\n", src.Name)
	return nil
}

// InfoCmd prints a summary of a score.
type InfoCmd struct {
	Path   string `arg:"" help:"Score to summarise (- for stdin)"`
	Format string `short:"f" help:"Input format (default: detect)"`
	JSON   bool   `help:"Print the summary as JSON"`
}

// ScoreInfo is the summary printed by "info".
type ScoreInfo struct {
	Name       string           `json:"name"`
	Format     string           `json:"format"`
	Title      string           `json:"title,omitempty"`
	Staves     []score.StaffDef `json:"staves"`
	Counts     map[string]int   `json:"counts"`
	Hash       string           `json:"content_hash"`
	Validation int              `json:"validation_errors"`
}

func (c *InfoCmd) Run(env *Env) error {
	src, err := readSource(c.Path, c.Format)
	if err != nil {
		return err
	}
	doc, h, err := pipeline.Parse(src)
	if err != nil {
		return err
	}
	info := ScoreInfo{
		Name:       src.Name,
		Format:     h.Name(),
		Title:      doc.Title,
		Staves:     doc.StaffGroup.Defs,
		Counts:     map[string]int{},
		Hash:       score.ContentHash(doc.Root()),
		Validation: len(score.ValidateDocument(doc)),
	}
	for n := range doc.Root().Descendants() {
		if n.Kind() != score.KindDocument {
			info.Counts[string(n.Kind())]++
		}
	}

	if c.JSON {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintf(env.Stdout, "Name:     %s\n", info.Name)
	fmt.Fprintf(env.Stdout, "Format:   %s\n", info.Format)
	if info.Title != "" {
		fmt.Fprintf(env.Stdout, "Title:    %s\n", info.Title)
	}
	for _, def := range info.Staves {
		label := def.Label
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(env.Stdout, "Staff %d:  %s clef=%s\n", def.N, label, def.Clef)
	}
	for _, kind := range []score.Kind{score.KindPage, score.KindSystem, score.KindMeasure, score.KindStaff,
		score.KindNote, score.KindRest, score.KindVerse, score.KindAlternativeGroup} {
		fmt.Fprintf(env.Stdout, "%-9s %d\n", string(kind)+":", info.Counts[string(kind)])
	}
	fmt.Fprintf(env.Stdout, "Hash:     %s\n", info.Hash)
	if info.Validation > 0 {
		fmt.Fprintf(env.Stdout, "Problems: %d (run validate)\n", info.Validation)
	}
	return nil
}

// ConvertCmd re-encodes a score without merging it.
type ConvertCmd struct {
	Path   string `arg:"" help:"Score to convert (- for stdin)"`
	To     string `short:"t" required:"" help:"Output format"`
	Format string `short:"f" help:"Input format (default: detect)"`
	Out    string `short:"o" help:"Output file (- for stdout, .xz compresses)" default:"-"`
}

func (c *ConvertCmd) Run(env *Env) error {
	exporter, err := formats.Get(c.To)
	if err != nil {
		return err
	}
	src, err := readSource(c.Path, c.Format)
	if err != nil {
		return err
	}
	doc, _, err := pipeline.Parse(src)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := exporter.Export(&buf, doc); err != nil {
		return err
	}
	return writeOutput(env, c.Out, buf.Bytes())
}

// FormatsCmd lists the registered format handlers.
type FormatsCmd struct{}

func (c *FormatsCmd) Run(env *Env) error {
	for _, f := range formats.List() {
		fmt.Fprintf(env.Stdout, "%-6s %s\n", f.Name, strings.Join(f.Extensions, " "))
	}
	return nil
}
