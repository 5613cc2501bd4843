package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
)

// Entry is one file of a bundle.
type Entry struct {
	Name string
	Data []byte
}

// Write writes entries as a tar stream under baseDir. Every entry gets
// modTime so that the same run always gives the same archive bytes.
func Write(w io.Writer, baseDir string, entries []Entry, modTime time.Time) error {
	tw := tar.NewWriter(w)
	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     baseDir + "/",
		Mode:     0755,
		ModTime:  modTime,
	}); err != nil {
		return err
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Name == "" || strings.ContainsAny(e.Name, "/\\") || seen[e.Name] {
			return errors.Wrapf(errors.ErrInvalidInput, "bundle entry name %q", e.Name)
		}
		seen[e.Name] = true
		if err := tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     baseDir + "/" + e.Name,
			Mode:     0644,
			Size:     int64(len(e.Data)),
			ModTime:  modTime,
		}); err != nil {
			return err
		}
		if _, err := tw.Write(e.Data); err != nil {
			return err
		}
	}
	return tw.Close()
}

// WriteXZ writes entries to w as a tar.xz stream.
func WriteXZ(w io.Writer, baseDir string, entries []Entry, modTime time.Time) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return err
	}
	if err := Write(xw, baseDir, entries, modTime); err != nil {
		return err
	}
	return xw.Close()
}

// WriteFile writes a bundle to dstPath, compressed with xz for .tar.xz and
// gzip for .tar.gz. The base directory inside the archive is the file name
// without those suffixes.
func WriteFile(dstPath string, entries []Entry, modTime time.Time) error {
	base := filepath.Base(dstPath)
	var compress func(io.Writer) (io.WriteCloser, error)
	switch {
	case strings.HasSuffix(base, ".tar.xz"):
		base = strings.TrimSuffix(base, ".tar.xz")
		compress = func(w io.Writer) (io.WriteCloser, error) { return xz.NewWriter(w) }
	case strings.HasSuffix(base, ".tar.gz"):
		base = strings.TrimSuffix(base, ".tar.gz")
		compress = func(w io.Writer) (io.WriteCloser, error) { return gzip.NewWriter(w), nil }
	default:
		return errors.NewUnsupported("bundle format", dstPath)
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return errors.NewIO("create", filepath.Dir(dstPath), err)
	}
	out, err := os.Create(dstPath)
	if err != nil {
		return errors.NewIO("create", dstPath, err)
	}
	cw, err := compress(out)
	if err != nil {
		out.Close()
		return err
	}
	if err := Write(cw, base, entries, modTime); err != nil {
		cw.Close()
		out.Close()
		os.Remove(dstPath)
		return errors.Wrap(err, "writing bundle")
	}
	if err := cw.Close(); err != nil {
		out.Close()
		return errors.NewIO("write", dstPath, err)
	}
	return out.Close()
}
