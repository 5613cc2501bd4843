// Package errors provides the error taxonomy shared by the score model,
// the merge engine and the format handlers.
//
// Every typed error unwraps to one of the sentinels below, so callers test
// categories with errors.Is and inspect details with errors.As.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrInvalidChild indicates an attach that would break tree ownership
	ErrInvalidChild = errors.New("invalid child")
	// ErrIndexOutOfRange indicates a child index outside the child list
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrOwnershipConflict indicates a node that is still owned by a parent
	ErrOwnershipConflict = errors.New("ownership conflict")
	// ErrNotFound indicates a lookup miss
	ErrNotFound = errors.New("not found")
	// ErrIncompleteApparatus indicates an alternative group without both readings
	ErrIncompleteApparatus = errors.New("incomplete apparatus")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// ChildError reports a refused AddChild or InsertChild.
type ChildError struct {
	Parent string // ID of the node receiving the child
	Child  string // ID of the rejected child, empty for nil
	Reason string
}

func (e *ChildError) Error() string {
	if e.Child == "" {
		return fmt.Sprintf("cannot attach to %s: %s", e.Parent, e.Reason)
	}
	return fmt.Sprintf("cannot attach %s to %s: %s", e.Child, e.Parent, e.Reason)
}

func (e *ChildError) Unwrap() error { return ErrInvalidChild }

// IndexError reports a child index outside [0, Len) (or [0, Len] for inserts).
type IndexError struct {
	Node  string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range for %s with %d children", e.Index, e.Node, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }

// OwnershipError reports content that still has an owner when it must be free.
type OwnershipError struct {
	Node  string // ID of the node being moved
	Owner string // ID of its current parent
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("%s is still owned by %s", e.Node, e.Owner)
}

func (e *OwnershipError) Unwrap() error { return ErrOwnershipConflict }

// NotFoundError represents a lookup miss with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "node", "staff definition", "format")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ApparatusError reports an alternative group that lacks a preferred or an
// alternate reading.
type ApparatusError struct {
	Group     string
	Preferred int
	Alternate int
}

func (e *ApparatusError) Error() string {
	return fmt.Sprintf("alternative group %s has %d preferred and %d alternate readings",
		e.Group, e.Preferred, e.Alternate)
}

func (e *ApparatusError) Unwrap() error { return ErrIncompleteApparatus }

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a failure to read a notation encoding
type ParseError struct {
	Format  string // Format being parsed (e.g., "MEI", "PAE", "JSON")
	Path    string // Location inside the source, if known
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap wraps errors.Unwrap for convenience
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
