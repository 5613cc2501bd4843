package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	scoreerrors "github.com/FocuswithJustin/JuniperScore/core/errors"
	"github.com/FocuswithJustin/JuniperScore/core/score"
	"github.com/FocuswithJustin/JuniperScore/internal/archive"
)

const twoVoices = `<mei xmlns="http://www.music-encoding.org/ns/mei"><music><body><mdiv><score>
<scoreDef><staffGrp><staffDef n="1"/><staffDef n="2"/></staffGrp></scoreDef>
<section><measure n="1">
<staff n="1"><layer n="1"><note pname="c" oct="4" dur="2"><verse n="1"><syl>Glo-</syl></verse></note><note pname="d" oct="4" dur="2"/></layer></staff>
<staff n="2"><layer n="1"><note pname="c" oct="4" dur="2"><verse n="1"><syl>A-</syl></verse></note><note pname="e" oct="4" dur="2"/></layer></staff>
</measure></section></score></mdiv></body></music></mei>`

// Test helper functions

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

// runCLI runs the command line and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestVersionCmd_Run(t *testing.T) {
	out, _, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "juniperscore version "+version+"\n" {
		t.Errorf("output = %q", out)
	}
}

func TestFormatsCmd_Run(t *testing.T) {
	out, _, err := runCLI(t, "formats")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"darms", "json", "mei", "pae"} {
		if !strings.Contains(out, name) {
			t.Errorf("formats output missing %s:\n%s", name, out)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, _, err := runCLI(t, "transpose"); err == nil {
		t.Error("expected a parse error")
	}
}

func TestMergeCmd_Run(t *testing.T) {
	dir := t.TempDir()
	in := createTestFile(t, dir, "gloria.mei", twoVoices)
	out := filepath.Join(dir, "merged.mei")
	dataDir := filepath.Join(dir, "data")

	_, stderr, err := runCLI(t, "--data-dir", dataDir, "merge", in, "-o", out, "--source", "#A", "--source", "#B")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !strings.Contains(stderr, "1 apparatus groups, 1 staves removed, 1 mismatches") {
		t.Errorf("stderr = %q", stderr)
	}
	if !strings.Contains(stderr, "pitch") {
		t.Errorf("mismatch not listed: %q", stderr)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<rdg") || !strings.Contains(string(data), `source="#B"`) {
		t.Errorf("merged output:\n%s", data)
	}

	idx := strings.Index(stderr, "run ")
	if idx < 0 {
		t.Fatalf("no run id in %q", stderr)
	}
	id := strings.TrimSpace(stderr[idx+len("run "):])

	list, _, err := runCLI(t, "--data-dir", dataDir, "runs", "list")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	if !strings.Contains(list, id) || !strings.Contains(list, "gloria.mei") {
		t.Errorf("runs list:\n%s", list)
	}

	show, _, err := runCLI(t, "--data-dir", dataDir, "runs", "show", id, "--json")
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	var r struct {
		ID         string `json:"id"`
		Groups     int    `json:"groups"`
		Mismatches []any  `json:"mismatches"`
	}
	if err := json.Unmarshal([]byte(show), &r); err != nil {
		t.Fatalf("decoding run: %v\n%s", err, show)
	}
	if r.ID != id || r.Groups != 1 || len(r.Mismatches) != 1 {
		t.Errorf("run = %+v", r)
	}

	bundle := filepath.Join(dir, "run.tar.xz")
	if _, _, err := runCLI(t, "--data-dir", dataDir, "runs", "export", id, "-o", bundle); err != nil {
		t.Fatalf("runs export: %v", err)
	}
	entries, err := archive.ReadAll(bundle)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[1].Name != "primary-gloria.mei" || entries[2].Name != "output.mei" {
		t.Errorf("bundle entries = %d", len(entries))
	}
	if !bytes.Equal(entries[2].Data, data) {
		t.Error("bundled output differs from the written output")
	}

	if _, _, err := runCLI(t, "--data-dir", dataDir, "runs", "show", "00000000-0000-0000-0000-000000000000"); !errors.Is(err, scoreerrors.ErrNotFound) {
		t.Errorf("missing run error = %v, want ErrNotFound", err)
	}
}

func TestMergeCmd_DARMS(t *testing.T) {
	dir := t.TempDir()
	a := createTestFile(t, dir, "a.darms", "!G 21Q@Ky-$ 23Q@ri-$ / 25H@e$\n")
	b := createTestFile(t, dir, "b.darms", "!G 21Q@Chri-$ 23Q@ste$ / 25H@e$\n")

	out, stderr, err := runCLI(t, "merge", a, "-s", b, "--source", "#A", "--source", "#B")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if out != "!23G 21Q@Ky-$ 23Q@ri-$ / 25H@e$ //\n" {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(stderr, "3 apparatus groups, 2 staves removed, 0 mismatches") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestMergeCmd_TwoSources(t *testing.T) {
	dir := t.TempDir()
	a := createTestFile(t, dir, "a.pae", "@clef:G-2\n@data:4CDEF/1G\n")
	b := createTestFile(t, dir, "b.pae", "@clef:G-2\n@data:4CDEF/1A\n")
	report := filepath.Join(dir, "report.json")

	out, stderr, err := runCLI(t, "merge", a, "--secondary", b, "--export", "json", "--report", report, "-q")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !strings.Contains(out, `"version": "1.0.0"`) {
		t.Errorf("json output:\n%s", out)
	}
	if strings.Contains(stderr, "run ") {
		t.Errorf("run recorded without a data dir: %q", stderr)
	}
	if strings.Contains(stderr, "measure 2") {
		t.Errorf("-q still listed mismatches: %q", stderr)
	}

	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatal(err)
	}
	var rep struct {
		StavesRemoved int `json:"staves_removed"`
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatal(err)
	}
	if rep.StavesRemoved != 2 {
		t.Errorf("staves_removed = %d, want 2", rep.StavesRemoved)
	}
}

func TestMergeCmd_Errors(t *testing.T) {
	dir := t.TempDir()
	in := createTestFile(t, dir, "gloria.mei", twoVoices)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"missing file", []string{"merge", filepath.Join(dir, "nope.mei")}, scoreerrors.ErrNotFound},
		{"page out of range", []string{"merge", in, "--page", "3"}, scoreerrors.ErrNotFound},
		{"unknown export", []string{"merge", in, "--export", "midi"}, scoreerrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, _, err := runCLI(t, "merge", in, "--source", "A", "--source", "B", "--source", "C"); err == nil {
		t.Error("three source labels accepted")
	}
}

func TestValidateCmd_Run(t *testing.T) {
	dir := t.TempDir()
	in := createTestFile(t, dir, "gloria.mei", twoVoices)
	out, _, err := runCLI(t, "validate", in)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out != "gloria.mei: ok\n" {
		t.Errorf("output = %q", out)
	}

	bad := createTestFile(t, dir, "bad.pae", "@data:4CQ")
	if _, _, err := runCLI(t, "validate", bad); !errors.Is(err, scoreerrors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestInfoCmd_Run(t *testing.T) {
	dir := t.TempDir()
	in := createTestFile(t, dir, "gloria.mei", twoVoices)
	out, _, err := runCLI(t, "info", in, "--json")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	var info ScoreInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decoding info: %v\n%s", err, out)
	}
	if info.Format != "mei" || len(info.Staves) != 2 {
		t.Errorf("info = %+v", info)
	}
	if info.Counts[string(score.KindNote)] != 4 || info.Counts[string(score.KindVerse)] != 2 {
		t.Errorf("counts = %v", info.Counts)
	}
	if info.Hash == "" || info.Validation != 0 {
		t.Errorf("hash %q, validation errors %d", info.Hash, info.Validation)
	}

	text, _, err := runCLI(t, "info", in)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Format:   mei") || !strings.Contains(text, "Hash:     "+info.Hash) {
		t.Errorf("text output:\n%s", text)
	}
}

func TestConvertCmd_Run(t *testing.T) {
	dir := t.TempDir()
	in := createTestFile(t, dir, "gloria.mei", twoVoices)
	out, _, err := runCLI(t, "convert", in, "--to", "pae")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if out != "@data:2'CD\n" {
		t.Errorf("pae output = %q", out)
	}

	compressed := filepath.Join(dir, "gloria.json.xz")
	if _, _, err := runCLI(t, "convert", in, "--to", "json", "-o", compressed); err != nil {
		t.Fatal(err)
	}
	info, _, err := runCLI(t, "info", compressed, "--json")
	if err != nil {
		t.Fatalf("info on compressed output: %v", err)
	}
	if !strings.Contains(info, `"format": "json"`) {
		t.Errorf("info:\n%s", info)
	}

	if _, _, err := runCLI(t, "convert", in, "--to", "midi"); !errors.Is(err, scoreerrors.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestRunsRequireDataDir(t *testing.T) {
	t.Setenv("JUNIPERSCORE_DATA", "")
	os.Unsetenv("JUNIPERSCORE_DATA")
	_, _, err := runCLI(t, "runs", "list")
	if !errors.Is(err, scoreerrors.ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestServeCmd_Config(t *testing.T) {
	cmd := &ServeCmd{
		Addr:          "127.0.0.1:9000",
		AllowedOrigin: []string{"*.example.org"},
		APIKey:        "0123456789abcdef",
		RateLimit:     60,
		RateBurst:     5,
		MaxBody:       1024,
		Scope:         "measure",
	}
	cfg := cmd.config(&Globals{})
	if cfg.Addr != "127.0.0.1:9000" || cfg.DataDir != "data" || cfg.Scope != score.ScopeMeasure {
		t.Errorf("config = %+v", cfg)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "0123456789abcdef" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.RateLimitRequests != 60 || cfg.RateLimitBurst != 5 || cfg.MaxBodyBytes != 1024 {
		t.Errorf("limits = %+v", cfg)
	}
	if cfg.TLS.Enabled {
		t.Error("TLS enabled without files")
	}

	cmd.TLSKey = "key.pem"
	cfg = cmd.config(&Globals{DataDir: "/srv/scores"})
	if cfg.DataDir != "/srv/scores" || !cfg.TLS.Enabled || cfg.TLS.CertFile != "" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestServeCmd_RejectsShortKey(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runCLI(t, "--data-dir", dir, "serve", "--addr", "127.0.0.1:0", "--api-key", "short")
	if err == nil || !strings.Contains(err.Error(), "auth") {
		t.Errorf("error = %v, want an auth config error", err)
	}
}
