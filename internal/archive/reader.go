// Package archive reads and writes run bundles: compressed tar archives
// holding the sources, the merged output and the report of one run.
// Bundles are tar.xz by default; tar.gz is also accepted.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
)

// Reader wraps a tar.Reader with automatic decompression handling.
type Reader struct {
	*tar.Reader
	file         *os.File
	decompressor io.Closer
}

// NewReader opens the bundle at path, choosing the decompressor by suffix.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("bundle", path)
		}
		return nil, errors.NewIO("open", path, err)
	}

	var reader io.Reader
	var decompressor io.Closer
	switch {
	case strings.HasSuffix(path, ".tar.xz"):
		xzr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.NewParse("tar.xz", path, err.Error())
		}
		reader = xzr
	case strings.HasSuffix(path, ".tar.gz"):
		gzr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.NewParse("tar.gz", path, err.Error())
		}
		reader, decompressor = gzr, gzr
	default:
		f.Close()
		return nil, errors.NewUnsupported("bundle format", path)
	}

	return &Reader{
		Reader:       tar.NewReader(reader),
		file:         f,
		decompressor: decompressor,
	}, nil
}

// Close closes the archive reader and any underlying decompressors.
func (r *Reader) Close() error {
	var first error
	if r.decompressor != nil {
		first = r.decompressor.Close()
	}
	if err := r.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Visitor is called for each archive entry.
// Return true to stop iteration, false to continue.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks through all entries in the archive, calling the visitor for each.
func (r *Reader) Iterate(visitor Visitor) error {
	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading bundle header")
		}

		stop, err := visitor(header, r)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// entryName strips the bundle's base directory from a header name.
func entryName(name string) string {
	if i := strings.Index(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ReadAll returns every regular file of the bundle in archive order, named
// without the base directory.
func ReadAll(path string) ([]Entry, error) {
	r, err := NewReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var entries []Entry
	err = r.Iterate(func(h *tar.Header, content io.Reader) (bool, error) {
		if h.Typeflag != tar.TypeReg {
			return false, nil
		}
		data, err := io.ReadAll(content)
		if err != nil {
			return true, errors.NewIO("read", h.Name, err)
		}
		entries = append(entries, Entry{Name: entryName(h.Name), Data: data})
		return false, nil
	})
	return entries, err
}

// ReadFile reads one file from the bundle.
func ReadFile(archivePath, filename string) ([]byte, error) {
	r, err := NewReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var content []byte
	err = r.Iterate(func(h *tar.Header, c io.Reader) (bool, error) {
		if h.Typeflag != tar.TypeReg || (entryName(h.Name) != filename && h.Name != filename) {
			return false, nil
		}
		var err error
		content, err = io.ReadAll(c)
		return true, err
	})
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, errors.NewNotFound("bundle entry", filename)
	}
	return content, nil
}
