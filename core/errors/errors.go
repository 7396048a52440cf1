// Package errors provides the error taxonomy for document comparison.
//
// Input problems are ordinary returned errors: UnsupportedContentError for
// constructs the engine refuses to compare, FormatError for packages that
// are structurally broken, ValidationError for bad settings. Defects in the
// engine itself are InvariantError values raised with panic; they are never
// recovered inside this module.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates the input contains a construct that cannot be compared
	ErrUnsupported = errors.New("unsupported content")
	// ErrInvalidFormat indicates a structurally invalid document package
	ErrInvalidFormat = errors.New("invalid format")
	// ErrInternal indicates a broken internal invariant
	ErrInternal = errors.New("internal error")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "part", "relationship")
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

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

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

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "XML", "TOML")
	Path    string // File or part path, if applicable
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

// UnsupportedContentError reports a document construct the comparison
// engine rejects before doing any work.
type UnsupportedContentError struct {
	Construct string // Qualified element name, e.g. "w:altChunk"
	Part      string // Part in which it was found
}

func (e *UnsupportedContentError) Error() string {
	if e.Part != "" {
		return fmt.Sprintf("unsupported content: %s in %s", e.Construct, e.Part)
	}
	return fmt.Sprintf("unsupported content: %s", e.Construct)
}

func (e *UnsupportedContentError) Unwrap() error {
	return ErrUnsupported
}

// FormatError reports a structurally invalid package: a missing part or
// relationship, malformed XML, or an impossible document shape.
type FormatError struct {
	Part    string // Part involved, if any
	Message string // What is wrong
	Err     error  // Underlying error, if any
}

func (e *FormatError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Part != "" {
		return fmt.Sprintf("invalid format in %s: %s", e.Part, msg)
	}
	return fmt.Sprintf("invalid format: %s", msg)
}

func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidFormat, e.Err}
	}
	return []error{ErrInvalidFormat}
}

// InvariantError is the panic value used when the engine detects a state
// that valid input can never produce.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string {
	return "internal invariant violated: " + e.Message
}

func (e *InvariantError) Unwrap() error {
	return ErrInternal
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
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

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupportedContent creates an UnsupportedContentError
func NewUnsupportedContent(construct, part string) *UnsupportedContentError {
	return &UnsupportedContentError{
		Construct: construct,
		Part:      part,
	}
}

// NewFormat creates a FormatError
func NewFormat(part, message string, err error) *FormatError {
	return &FormatError{
		Part:    part,
		Message: message,
		Err:     err,
	}
}

// Invariantf panics with an InvariantError. It is reserved for states that
// indicate a bug in the engine, never for bad input.
func Invariantf(format string, args ...interface{}) {
	panic(&InvariantError{Message: fmt.Sprintf(format, args...)})
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
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
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
