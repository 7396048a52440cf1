package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "part", ID: "word/media/image1.png"},
			wantMsg:  "part not found: word/media/image1.png",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "main document part"},
			wantMsg:  "main document part not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("zip error")
		err := &NotFoundError{Resource: "part", ID: "x.xml", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ValidationError
		wantMsg string
	}{
		{
			name:    "with field",
			err:     &ValidationError{Field: "detail_threshold", Message: "must be within [0,1]"},
			wantMsg: "validation failed for detail_threshold: must be within [0,1]",
		},
		{
			name:    "without field",
			err:     &ValidationError{Message: "empty settings"},
			wantMsg: "validation failed: empty settings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Errorf("expected %v to wrap ErrInvalidInput", tt.err)
			}
		})
	}
}

func TestIOError(t *testing.T) {
	base := fmt.Errorf("permission denied")
	err := NewIO("read", "/tmp/a.docx", base)
	if got, want := err.Error(), "failed to read /tmp/a.docx: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, base) {
		t.Error("IOError should unwrap to its cause")
	}

	noPath := NewIO("write", "", base)
	if got, want := noPath.Error(), "failed to write: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestParseError(t *testing.T) {
	err := NewParse("TOML", "redline.toml", "unexpected key")
	if got, want := err.Error(), "failed to parse TOML at redline.toml: unexpected key"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ParseError should wrap ErrInvalidInput")
	}
}

func TestUnsupportedContentError(t *testing.T) {
	err := NewUnsupportedContent("w:altChunk", "word/document.xml")
	if got, want := err.Error(), "unsupported content: w:altChunk in word/document.xml"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("UnsupportedContentError should wrap ErrUnsupported")
	}

	var target *UnsupportedContentError
	wrapped := Wrap(err, "preflight")
	if !As(wrapped, &target) {
		t.Fatal("As failed to find UnsupportedContentError")
	}
	if target.Construct != "w:altChunk" {
		t.Errorf("Construct = %q", target.Construct)
	}
}

func TestFormatError(t *testing.T) {
	cause := fmt.Errorf("EOF")
	tests := []struct {
		name    string
		err     *FormatError
		wantMsg string
	}{
		{"with part", NewFormat("word/document.xml", "malformed XML", cause), "invalid format in word/document.xml: malformed XML: EOF"},
		{"without part", NewFormat("", "more than one body sectPr", nil), "invalid format: more than one body sectPr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrInvalidFormat) {
				t.Error("FormatError should wrap ErrInvalidFormat")
			}
		})
	}
	if !errors.Is(tests[0].err, cause) {
		t.Error("FormatError should also wrap its cause")
	}
}

func TestInvariantf(t *testing.T) {
	defer func() {
		r := recover()
		ie, ok := r.(*InvariantError)
		if !ok {
			t.Fatalf("recovered %T, want *InvariantError", r)
		}
		if !errors.Is(ie, ErrInternal) {
			t.Error("InvariantError should wrap ErrInternal")
		}
		if got, want := ie.Error(), "internal invariant violated: depth 3 has 2 kinds"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	}()
	Invariantf("depth %d has %d kinds", 3, 2)
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	base := errors.New("base")
	wrapped := Wrap(base, "context")
	if wrapped.Error() != "context: base" {
		t.Errorf("Wrap() = %q", wrapped.Error())
	}
	if !Is(wrapped, base) {
		t.Error("wrapped error should match base")
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
	wrapped := Wrapf(errors.New("base"), "part %s", "a.xml")
	if wrapped.Error() != "part a.xml: base" {
		t.Errorf("Wrapf() = %q", wrapped.Error())
	}
}
