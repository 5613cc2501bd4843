// Package validation checks untrusted score sources before they reach a
// format handler: source names recorded in the run catalogue and bundle
// entry names, size limits, and a sniff of the content against the name.
package validation

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/FocuswithJustin/JuniperScore/core/errors"
)

// Limits on untrusted input (CWE-400).
const (
	// MaxSourceSize is the largest source accepted, after decompression.
	MaxSourceSize = 64 << 20
	// MaxFilenameLength is the maximum allowed source name length.
	MaxFilenameLength = 255
)

// invalid returns an error wrapping errors.ErrInvalidInput.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errors.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ValidateSourceName checks a source name as recorded in the run catalogue
// and used for extension detection. "-" names standard input.
func ValidateSourceName(name string) error {
	if name == "" {
		return invalid("source name cannot be empty")
	}
	if name == "-" {
		return nil
	}
	if len(name) > MaxFilenameLength {
		return invalid("source name too long (%d bytes)", len(name))
	}
	if name == "." || name == ".." {
		return invalid("source name %q is reserved", name)
	}
	if strings.ContainsAny(name, "/\\") {
		return invalid("source name %q contains a path separator", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return invalid("source name contains a control character")
		}
	}
	if strings.HasPrefix(name, "-") {
		return invalid("source name %q starts with a hyphen", name)
	}
	return nil
}

// SanitizeFilename turns a source name into a safe file name, replacing
// separators and dropping control characters.
func SanitizeFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return "", invalid("nothing left of the name after sanitising")
	}
	if err := ValidateSourceName(name); err != nil {
		return "", err
	}
	return name, nil
}

// ContentType is what the first bytes of a source look like.
type ContentType string

// Content types.
const (
	ContentXML    ContentType = "xml"
	ContentJSON   ContentType = "json"
	ContentText   ContentType = "text"
	ContentBinary ContentType = "binary"
)

// Sniff classifies head, ignoring a byte order mark and leading space.
func Sniff(head []byte) ContentType {
	if bytes.IndexByte(head, 0) >= 0 {
		return ContentBinary
	}
	head = bytes.TrimLeft(head, "\ufeff \t\r\n")
	switch {
	case bytes.HasPrefix(head, []byte("<")):
		return ContentXML
	case bytes.HasPrefix(head, []byte("{")):
		return ContentJSON
	case isLikelyText(head):
		return ContentText
	}
	return ContentBinary
}

// expectedContent maps a name's extension to the content it promises.
func expectedContent(name string) (ContentType, bool) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSuffix(strings.ToLower(name), ".xz")))
	switch ext {
	case ".mei", ".xml", ".musicxml":
		return ContentXML, true
	case ".json":
		return ContentJSON, true
	case ".pae", ".darms", ".drm", ".txt":
		return ContentText, true
	}
	return "", false
}

// CheckSource validates a source before parsing: its name when given, its
// size, that it is text, and that an extension agrees with the content.
func CheckSource(name string, data []byte) error {
	if name != "" {
		if err := ValidateSourceName(name); err != nil {
			return err
		}
	}
	if len(data) == 0 {
		return invalid("source %s is empty", displayName(name))
	}
	if len(data) > MaxSourceSize {
		return invalid("source %s is %d bytes, limit is %d", displayName(name), len(data), MaxSourceSize)
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	got := Sniff(head)
	if got == ContentBinary {
		return invalid("source %s is not text", displayName(name))
	}
	if want, ok := expectedContent(name); ok && want != got && !(want == ContentText && got != ContentBinary) {
		return invalid("source %s: extension suggests %s but content is %s", displayName(name), want, got)
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "-"
	}
	return name
}

// isLikelyText reports whether more than 95% of buf is printable ASCII or
// whitespace. UTF-8 continuation and start bytes count as neither.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}
	printable, control := 0, 0
	for _, b := range buf {
		switch {
		case b >= 0x20 && b <= 0x7e, b == '\t', b == '\n', b == '\r':
			printable++
		case b < 0x20:
			control++
		}
	}
	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
