// Package cas provides content-addressed storage for source encodings and
// merged outputs. Blobs are stored by their SHA-256 hash; a BLAKE3 pointer
// file per blob lets callers resolve the hash the score model reports.
//
// Layout:
//
//	<root>/blobs/sha256/<first2>/<sha256>
//	<root>/blobs/blake3/<first2>/<blake3>.json
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// tempFileWrite is a function variable for writing to temp files (for testing).
var tempFileWrite = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

// ErrInvalidHash is returned when a hash string is not 64 lowercase hex digits.
var ErrInvalidHash = fmt.Errorf("%w: invalid hash format", errors.ErrInvalidInput)

// hashPattern matches a lowercase 256-bit hex digest.
var hashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Ref identifies a stored blob.
type Ref struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
	Size   int64  `json:"size"`
}

// pointer is the body of a BLAKE3 pointer file.
type pointer struct {
	SHA256 string `json:"sha256"`
}

// Store is a directory of content-addressed blobs.
type Store struct {
	root string
}

// NewStore opens (creating if needed) a store rooted at root.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{"sha256", "blake3"} {
		if err := os.MkdirAll(filepath.Join(root, "blobs", dir), 0755); err != nil {
			return nil, errors.NewIO("create", filepath.Join(root, "blobs", dir), err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Put stores data and its BLAKE3 pointer. Storing the same bytes twice is
// a no-op that returns the same Ref.
func (s *Store) Put(data []byte) (Ref, error) {
	ref := Ref{SHA256: Hash(data), BLAKE3: Blake3Hash(data), Size: int64(len(data))}

	if err := s.writeOnce(s.blobPath(ref.SHA256), data); err != nil {
		return Ref{}, err
	}
	body, err := json.Marshal(pointer{SHA256: ref.SHA256})
	if err != nil {
		return Ref{}, errors.Wrap(err, "encoding pointer")
	}
	if err := s.writeOnce(s.pointerPath(ref.BLAKE3), body); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

// PutReader stores everything read from r.
func (s *Store) PutReader(r io.Reader) (Ref, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Ref{}, errors.NewIO("read", "", err)
	}
	return s.Put(data)
}

// Get returns the blob with the given SHA-256 hash.
func (s *Store) Get(sha string) ([]byte, error) {
	if !isValidHash(sha) {
		return nil, ErrInvalidHash
	}
	data, err := os.ReadFile(s.blobPath(sha))
	if os.IsNotExist(err) {
		return nil, errors.NewNotFound("blob", sha)
	}
	if err != nil {
		return nil, errors.NewIO("read", s.blobPath(sha), err)
	}
	return data, nil
}

// Has reports whether a blob with the given SHA-256 hash is stored.
func (s *Store) Has(sha string) bool {
	if !isValidHash(sha) {
		return false
	}
	_, err := os.Stat(s.blobPath(sha))
	return err == nil
}

// ResolveBlake3 maps a BLAKE3 hash to the SHA-256 hash of the same blob.
func (s *Store) ResolveBlake3(b3 string) (string, error) {
	if !isValidHash(b3) {
		return "", ErrInvalidHash
	}
	data, err := os.ReadFile(s.pointerPath(b3))
	if os.IsNotExist(err) {
		return "", errors.NewNotFound("blake3 pointer", b3)
	}
	if err != nil {
		return "", errors.NewIO("read", s.pointerPath(b3), err)
	}
	var p pointer
	if err := json.Unmarshal(data, &p); err != nil || !isValidHash(p.SHA256) {
		return "", errors.NewParse("JSON", s.pointerPath(b3), "corrupt pointer file")
	}
	return p.SHA256, nil
}

// GetByBlake3 returns a blob by its BLAKE3 hash.
func (s *Store) GetByBlake3(b3 string) ([]byte, error) {
	sha, err := s.ResolveBlake3(b3)
	if err != nil {
		return nil, err
	}
	return s.Get(sha)
}

// writeOnce writes data to path through a temp file and rename, unless
// path already exists.
func (s *Store) writeOnce(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewIO("create", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.NewIO("create", dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tempFileWrite(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewIO("write", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewIO("close", tmpPath, err)
	}
	if err := osRename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.NewIO("rename", path, err)
	}
	return nil
}

func (s *Store) blobPath(sha string) string {
	return filepath.Join(s.root, "blobs", "sha256", sha[:2], sha)
}

func (s *Store) pointerPath(b3 string) string {
	return filepath.Join(s.root, "blobs", "blake3", b3[:2], b3+".json")
}

func isValidHash(hash string) bool {
	return hashPattern.MatchString(hash)
}

// Hash computes the SHA-256 hash of data without storing it.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Blake3Hash computes the BLAKE3 hash of data without storing it.
func Blake3Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}
