package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/internal/archive"
	"github.com/FocuswithJustin/JuniperScore/internal/store"
)

// RunsGroup browses the run catalogue under --data-dir.
type RunsGroup struct {
	List   RunsListCmd   `cmd:"" default:"withargs" help:"List recent runs"`
	Show   RunsShowCmd   `cmd:"" help:"Show one run with its mismatches"`
	Export RunsExportCmd `cmd:"" help:"Write a run, its sources and its output as a bundle"`
}

func openRuns(g *Globals, env *Env) (*store.RunStore, error) {
	if g.DataDir == "" {
		return nil, errors.NewUnsupported("run catalogue", "no --data-dir given")
	}
	return store.Open(env.Ctx, filepath.Join(g.DataDir, "runs.db"))
}

// RunsListCmd lists catalogued runs, newest first.
type RunsListCmd struct {
	Limit int  `short:"n" help:"Maximum number of runs" default:"20"`
	JSON  bool `help:"Print as JSON"`
}

func (c *RunsListCmd) Run(g *Globals, env *Env) error {
	runs, err := openRuns(g, env)
	if err != nil {
		return err
	}
	defer runs.Close()

	list, err := runs.List(env.Ctx, c.Limit)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(env.Stdout, "no runs")
		return nil
	}
	tw := tabwriter.NewWriter(env.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tFORMAT\tPRIMARY\tGROUPS\tMISMATCHES")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Format, r.Primary, r.Groups, r.MismatchCount)
	}
	return tw.Flush()
}

// RunsShowCmd prints one run.
type RunsShowCmd struct {
	ID   string `arg:"" help:"Run ID"`
	JSON bool   `help:"Print as JSON"`
}

func (c *RunsShowCmd) Run(g *Globals, env *Env) error {
	runs, err := openRuns(g, env)
	if err != nil {
		return err
	}
	defer runs.Close()

	r, err := runs.Get(env.Ctx, c.ID)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(env.Stdout, "Run:      %s\n", r.ID)
	fmt.Fprintf(env.Stdout, "Created:  %s\n", r.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(env.Stdout, "Format:   %s\n", r.Format)
	fmt.Fprintf(env.Stdout, "Primary:  %s %s\n", r.Primary, r.PrimarySHA256)
	if r.Secondary != "" {
		fmt.Fprintf(env.Stdout, "Second:   %s %s\n", r.Secondary, r.SecondarySHA256)
	}
	if r.OutputSHA256 != "" {
		fmt.Fprintf(env.Stdout, "Output:   %s (blake3 %s)\n", r.OutputSHA256, r.OutputBLAKE3)
	}
	fmt.Fprintf(env.Stdout, "Groups:   %d\n", r.Groups)
	fmt.Fprintf(env.Stdout, "Removed:  %d staves (staff def removed: %t)\n", r.StavesRemoved, r.StaffDefRemoved)
	fmt.Fprintf(env.Stdout, "Duration: %s\n", r.Duration)
	fmt.Fprintf(env.Stdout, "Mismatches: %d\n", r.MismatchCount)
	for _, m := range r.Mismatches {
		fmt.Fprintf(env.Stdout, "  %s\n", m)
	}
	return nil
}

// RunsExportCmd writes a run bundle.
type RunsExportCmd struct {
	ID  string `arg:"" help:"Run ID"`
	Out string `short:"o" help:"Bundle path (.tar.xz or .tar.gz, default <id>.tar.xz)"`
}

func (c *RunsExportCmd) Run(g *Globals, env *Env) error {
	if g.DataDir == "" {
		return errors.NewUnsupported("run bundle", "no --data-dir given")
	}
	p, closeFn, err := openPipeline(env.Ctx, g.DataDir)
	if err != nil {
		return err
	}
	defer closeFn()

	run, entries, err := p.Bundle(env.Ctx, c.ID)
	if err != nil {
		return err
	}
	out := c.Out
	if out == "" {
		out = run.ID + ".tar.xz"
	}
	if err := archive.WriteFile(out, entries, run.CreatedAt); err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "%s: %d files\n", out, len(entries))
	return nil
}
