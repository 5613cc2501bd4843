// Command juniperscore merges two-voice scores into a critical apparatus,
// converts between score encodings, and serves merges over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/JuniperScore/core/cas"
	"github.com/FocuswithJustin/JuniperScore/internal/logging"
	"github.com/FocuswithJustin/JuniperScore/internal/pipeline"
	"github.com/FocuswithJustin/JuniperScore/internal/store"

	// Register the embedded format handlers.
	_ "github.com/FocuswithJustin/JuniperScore/internal/embedded"
)

var version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	LogLevel  string          `name:"log-level" help:"Log level (debug, info, warn, error)" default:"warn" enum:"debug,info,warn,error"`
	LogFormat string          `name:"log-format" help:"Log format (text, json)" default:"text" enum:"text,json"`
	Config    kong.ConfigFlag `help:"JSON configuration file with flag values"`
	DataDir   string          `name:"data-dir" help:"Directory holding blobs and the run catalogue" env:"JUNIPERSCORE_DATA" type:"path"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Merge    MergeCmd    `cmd:"" help:"Merge the voices of a score into an apparatus"`
	Validate ValidateCmd `cmd:"" help:"Check that a score is structurally valid"`
	Info     InfoCmd     `cmd:"" help:"Summarise a score"`
	Convert  ConvertCmd  `cmd:"" help:"Convert a score to another format"`
	Formats  FormatsCmd  `cmd:"" help:"List supported formats"`
	Runs     RunsGroup   `cmd:"" help:"Browse the run catalogue"`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP API server"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// Env carries what commands need from the process.
type Env struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
}

// run parses args and runs the selected command.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("juniperscore"),
		kong.Description("JuniperScore - merge parallel voices into a critical apparatus"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Configuration(kong.JSON),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cli.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cli.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)

	env := &Env{Ctx: ctx, Stdout: stdout, Stderr: stderr}
	return kctx.Run(&cli.Globals, env)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "juniperscore: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// openPipeline builds a pipeline keeping blobs and runs under dataDir. An
// empty dataDir gives a pipeline that keeps nothing.
func openPipeline(ctx context.Context, dataDir string) (*pipeline.Pipeline, func(), error) {
	if dataDir == "" {
		return &pipeline.Pipeline{}, func() {}, nil
	}
	blobs, err := cas.NewStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening blob store: %w", err)
	}
	runs, err := store.Open(ctx, filepath.Join(dataDir, "runs.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening run catalogue: %w", err)
	}
	closeFn := func() {
		if err := runs.Close(); err != nil {
			logging.Warn("closing run catalogue", "error", err)
		}
	}
	return &pipeline.Pipeline{Blobs: blobs, Runs: runs}, closeFn, nil
}
