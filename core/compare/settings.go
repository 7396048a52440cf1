package compare

import (
	"log/slog"
	"strconv"
	"time"
	"unicode"

	"github.com/FocuswithJustin/redline/core/correlate"
	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/hash"
	"github.com/FocuswithJustin/redline/core/opc"
	"github.com/FocuswithJustin/redline/core/unit"
)

// DefaultAuthor is the revision author used when none is configured.
const DefaultAuthor = "redline"

// Transformer rewrites a package in place before it is decomposed, for
// example to strip comments or accept earlier revisions.
type Transformer interface {
	Transform(pkg *opc.Package) error
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(pkg *opc.Package) error

// Transform calls f(pkg).
func (f TransformerFunc) Transform(pkg *opc.Package) error {
	return f(pkg)
}

// Settings controls one comparison.
type Settings struct {
	// WordSeparators are characters that form one-character words.
	WordSeparators string
	// Author is written to every revision element.
	Author string
	// Date is the ISO-8601 revision timestamp.
	Date string
	// DetailThreshold is the minimum fraction of the compared length a
	// match must cover, in [0, 1]. Higher values give coarser output.
	// Nil selects the default of 0.15.
	DetailThreshold *float64
	// HashAlgorithm is sha1, sha256 or blake3.
	HashAlgorithm string
	// Transformers run on both packages, in order, before decomposition.
	Transformers []Transformer
	// Logger receives the per-comparison trace. Nil discards it.
	Logger *slog.Logger
}

// DefaultSettings returns settings with every field at its default and the
// date set to the current time.
func DefaultSettings() Settings {
	return Settings{
		WordSeparators:  unit.DefaultSeparators,
		Author:          DefaultAuthor,
		Date:            time.Now().UTC().Format(time.RFC3339),
		DetailThreshold: Threshold(correlate.DefaultThreshold),
		HashAlgorithm:   string(hash.SHA1),
	}
}

// Threshold returns a pointer to v for Settings.DetailThreshold.
func Threshold(v float64) *float64 {
	return &v
}

// withDefaults fills the fields left empty.
func (s Settings) withDefaults() Settings {
	if s.DetailThreshold == nil {
		s.DetailThreshold = Threshold(correlate.DefaultThreshold)
	}
	if s.WordSeparators == "" {
		s.WordSeparators = unit.DefaultSeparators
	}
	if s.Author == "" {
		s.Author = DefaultAuthor
	}
	if s.Date == "" {
		s.Date = time.Now().UTC().Format(time.RFC3339)
	}
	if s.HashAlgorithm == "" {
		s.HashAlgorithm = string(hash.SHA1)
	}
	return s
}

// Validate checks the settings and returns a *errors.ValidationError for
// the first invalid field.
func (s Settings) Validate() error {
	if t := s.DetailThreshold; t != nil && !(*t >= 0 && *t <= 1) {
		return &errors.ValidationError{
			Field:   "detail_threshold",
			Value:   strconv.FormatFloat(*t, 'g', -1, 64),
			Message: "must be between 0 and 1",
		}
	}
	if s.Date != "" {
		if _, err := time.Parse(time.RFC3339, s.Date); err != nil {
			return &errors.ValidationError{
				Field:   "date",
				Value:   s.Date,
				Message: "must be an ISO-8601 timestamp such as 2026-01-02T15:04:05Z",
				Err:     err,
			}
		}
	}
	for _, r := range s.WordSeparators {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return &errors.ValidationError{
				Field:   "word_separators",
				Value:   s.WordSeparators,
				Message: "letters and digits cannot separate words",
			}
		}
	}
	if _, err := hash.ParseAlgorithm(s.HashAlgorithm); err != nil {
		return err
	}
	for i, t := range s.Transformers {
		if t == nil {
			return &errors.ValidationError{
				Field:   "transformers",
				Value:   strconv.Itoa(i),
				Message: "transformer is nil",
			}
		}
	}
	return nil
}
