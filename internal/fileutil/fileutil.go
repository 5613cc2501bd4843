// Package fileutil reads score sources and writes outputs, transparently
// handling xz compression and "-" for stdin/stdout.
package fileutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
)

// Injectable functions for testing.
var (
	xzNewReader = xz.NewReader
	xzNewWriter = xz.NewWriter
	osRename    = os.Rename

	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

// xzMagic starts every xz stream.
var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// IsXZ reports whether data starts with the xz magic bytes.
func IsXZ(data []byte) bool {
	return bytes.HasPrefix(data, xzMagic)
}

// ReadSource reads path, or stdin for "-", decompressing xz content.
// Detection uses the magic bytes, so a compressed file without the .xz
// suffix is still read.
func ReadSource(path string) ([]byte, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("file", path)
		}
		return nil, errors.NewIO("read", path, err)
	}
	if !IsXZ(data) {
		return data, nil
	}
	return Decompress(data)
}

// Decompress inflates an xz stream.
func Decompress(data []byte) ([]byte, error) {
	r, err := xzNewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewIO("decompress", "", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("decompress", "", err)
	}
	return out, nil
}

// Compress deflates data into an xz stream.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xzNewWriter(&buf)
	if err != nil {
		return nil, errors.NewIO("compress", "", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, errors.NewIO("compress", "", err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.NewIO("compress", "", err)
	}
	return buf.Bytes(), nil
}

// WriteOutput writes data to path, or stdout for "-". A path ending in
// .xz is compressed. Files are written through a temp file and rename so a
// failed write never leaves a truncated output.
func WriteOutput(path string, data []byte) error {
	if path == "-" {
		if _, err := stdout.Write(data); err != nil {
			return errors.NewIO("write", "stdout", err)
		}
		return nil
	}
	if strings.HasSuffix(strings.ToLower(path), ".xz") {
		compressed, err := Compress(data)
		if err != nil {
			return err
		}
		data = compressed
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewIO("create", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return errors.NewIO("create", dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewIO("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewIO("close", path, err)
	}
	if err := osRename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.NewIO("rename", path, err)
	}
	return nil
}
