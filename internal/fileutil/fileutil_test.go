package fileutil

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"

	scoreerrors "github.com/FocuswithJustin/JuniperScore/core/errors"
)

const meiSource = `<mei xmlns="http://www.music-encoding.org/ns/mei"><music/></mei>`

func TestReadSourcePlainAndCompressed(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "score.mei")
	os.WriteFile(plain, []byte(meiSource), 0644)

	compressed, err := Compress([]byte(meiSource))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !IsXZ(compressed) {
		t.Fatal("Compress output lacks xz magic")
	}
	// No .xz suffix: detection is by content.
	packed := filepath.Join(dir, "packed.mei")
	os.WriteFile(packed, compressed, 0644)

	for _, path := range []string{plain, packed} {
		got, err := ReadSource(path)
		if err != nil {
			t.Fatalf("ReadSource(%s): %v", path, err)
		}
		if string(got) != meiSource {
			t.Errorf("ReadSource(%s) = %q", path, got)
		}
	}
}

func TestReadSourceStdin(t *testing.T) {
	orig := stdin
	defer func() { stdin = orig }()
	stdin = strings.NewReader("@data:4C")

	got, err := ReadSource("-")
	if err != nil || string(got) != "@data:4C" {
		t.Errorf("ReadSource(-) = %q, %v", got, err)
	}
}

func TestReadSourceErrors(t *testing.T) {
	if _, err := ReadSource(filepath.Join(t.TempDir(), "missing.mei")); !errors.Is(err, scoreerrors.ErrNotFound) {
		t.Errorf("missing file error = %v", err)
	}

	corrupt := filepath.Join(t.TempDir(), "corrupt.xz")
	os.WriteFile(corrupt, append(append([]byte{}, xzMagic...), "garbage"...), 0644)
	var ioErr *scoreerrors.IOError
	if _, err := ReadSource(corrupt); !errors.As(err, &ioErr) || ioErr.Operation != "decompress" {
		t.Errorf("corrupt xz error = %v", err)
	}

	orig := xzNewReader
	defer func() { xzNewReader = orig }()
	xzNewReader = func(io.Reader) (*xz.Reader, error) { return nil, io.ErrUnexpectedEOF }
	if _, err := Decompress(xzMagic); !errors.As(err, &ioErr) {
		t.Errorf("reader failure = %v", err)
	}
}

func TestWriteOutput(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "out", "merged.mei")
	if err := WriteOutput(plain, []byte(meiSource)); err != nil {
		t.Fatalf("WriteOutput: %v", err)
	}
	if got, _ := os.ReadFile(plain); string(got) != meiSource {
		t.Errorf("plain output = %q", got)
	}

	packed := filepath.Join(dir, "merged.mei.xz")
	if err := WriteOutput(packed, []byte(meiSource)); err != nil {
		t.Fatal(err)
	}
	raw, _ := os.ReadFile(packed)
	if !IsXZ(raw) {
		t.Error(".xz output not compressed")
	}
	if got, err := ReadSource(packed); err != nil || string(got) != meiSource {
		t.Errorf("compressed round trip = %q, %v", got, err)
	}

	entries, _ := filepath.Glob(filepath.Join(dir, ".*"))
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestWriteOutputStdout(t *testing.T) {
	orig := stdout
	defer func() { stdout = orig }()
	var buf bytes.Buffer
	stdout = &buf

	if err := WriteOutput("-", []byte("x")); err != nil || buf.String() != "x" {
		t.Errorf("WriteOutput(-) wrote %q, %v", buf.String(), err)
	}
}

func TestWriteOutputRenameFailure(t *testing.T) {
	orig := osRename
	defer func() { osRename = orig }()
	osRename = func(string, string) error { return os.ErrPermission }

	dir := t.TempDir()
	err := WriteOutput(filepath.Join(dir, "merged.mei"), []byte("x"))
	if !errors.Is(err, os.ErrPermission) {
		t.Errorf("error = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("files left behind: %v", entries)
	}
}
