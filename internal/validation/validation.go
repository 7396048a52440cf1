// Package validation checks command-line inputs before they reach the
// comparison engine: path sanity, size limits and container magic.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Security limits to prevent resource exhaustion (CWE-400).
const (
	// MaxFileSize is the maximum accepted document size (256 MB).
	MaxFileSize = 256 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrFileTooLarge     = errors.New("file too large")
	ErrNotDocument      = errors.New("not a zip or xz-compressed document package")
)

// ValidatePath checks a path for length limits and control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// Container is the outer encoding of a document package.
type Container string

const (
	ContainerZip     Container = "zip"
	ContainerXZ      Container = "xz"
	ContainerUnknown Container = "unknown"
)

var magicBytes = []struct {
	container Container
	magic     []byte
}{
	{ContainerZip, []byte{0x50, 0x4b, 0x03, 0x04}},
	{ContainerXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
}

// DetectContainer identifies a package from its leading bytes.
func DetectContainer(data []byte) Container {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.container
		}
	}
	return ContainerUnknown
}

// ValidateDocument checks that data looks like a document package. The
// name is only used in messages.
func ValidateDocument(data []byte, name string) (Container, error) {
	if len(data) > MaxFileSize {
		return ContainerUnknown, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, name, len(data))
	}
	c := DetectContainer(data)
	if c == ContainerUnknown {
		return c, fmt.Errorf("%w: %s", ErrNotDocument, name)
	}
	return c, nil
}

// ReadDocument validates path, enforces MaxFileSize before reading and
// checks the container magic of the content.
func ReadDocument(path string) ([]byte, error) {
	if err := ValidatePath(path); err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if _, err := ValidateDocument(data, filepath.Base(path)); err != nil {
		return nil, err
	}
	return data, nil
}
