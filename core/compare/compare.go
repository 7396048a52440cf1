// Package compare is the entry point of the comparison engine.
//
// Compare opens two WordprocessingML packages, decomposes their main
// document parts into comparison units, correlates the units and writes
// the differences into a copy of the after package as tracked revisions.
package compare

import (
	"strconv"
	"time"

	"github.com/FocuswithJustin/redline/core/correlate"
	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/hash"
	"github.com/FocuswithJustin/redline/core/opc"
	"github.com/FocuswithJustin/redline/core/reconstruct"
	"github.com/FocuswithJustin/redline/core/unit"
	"github.com/FocuswithJustin/redline/internal/logging"
)

// Result is the outcome of one comparison.
type Result struct {
	// Document is the comparison document as zip bytes.
	Document []byte
	// Sequences is the correlation the document was built from.
	Sequences []*correlate.Sequence
	// ComparisonID tags the trace of this call.
	ComparisonID string

	Equal     int // atoms present in both documents
	Inserted  int // atoms only in the after document
	Deleted   int // atoms only in the before document
	Revisions int // revision elements written
}

// Compare returns a document equal to after in which every difference from
// before is marked as an insertion or deletion. Inputs are zip bytes,
// optionally xz-compressed.
func Compare(before, after []byte, s Settings) ([]byte, error) {
	res, err := CompareWithResult(before, after, s)
	if err != nil {
		return nil, err
	}
	return res.Document, nil
}

// CompareWithResult is Compare returning the correlation and counts too.
func CompareWithResult(before, after []byte, s Settings) (*Result, error) {
	s = s.withDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	alg, err := hash.ParseAlgorithm(s.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	base := s.Logger
	if base == nil {
		base = logging.Discard()
	}
	id := logging.NewComparisonID()
	logger := logging.ForComparison(base, id)
	start := time.Now()

	bpkg, err := prepare(before, unit.Before, s.Transformers)
	if err != nil {
		return nil, err
	}
	apkg, err := prepare(after, unit.After, s.Transformers)
	if err != nil {
		return nil, err
	}

	left, err := unit.Decompose(bpkg, unit.Before, alg, s.WordSeparators)
	if err != nil {
		return nil, errors.Wrap(err, "before document")
	}
	right, err := unit.Decompose(apkg, unit.After, alg, s.WordSeparators)
	if err != nil {
		return nil, errors.Wrap(err, "after document")
	}
	logger.Debug("decomposed", "before_units", len(left), "after_units", len(right))

	seqs := correlate.New(*s.DetailThreshold, logger).Correlate(left, right)
	logger.Debug("correlated", "sequences", len(seqs))

	dest := apkg.Clone()
	rc, err := reconstruct.New(dest, reconstruct.Options{
		Author: s.Author,
		Date:   s.Date,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	stats, err := rc.Reconstruct(seqs)
	if err != nil {
		return nil, err
	}
	doc, err := dest.Save()
	if err != nil {
		return nil, err
	}

	logging.ComparisonDone(logger, stats.Inserted, stats.Deleted, stats.Equal, time.Since(start),
		"revisions", stats.Revisions, "hash", string(alg))
	return &Result{
		Document:     doc,
		Sequences:    seqs,
		ComparisonID: id,
		Equal:        stats.Equal,
		Inserted:     stats.Inserted,
		Deleted:      stats.Deleted,
		Revisions:    stats.Revisions,
	}, nil
}

func prepare(data []byte, side unit.Side, transformers []Transformer) (*opc.Package, error) {
	pkg, err := opc.Open(data)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s document", side)
	}
	for _, t := range transformers {
		if err := t.Transform(pkg); err != nil {
			return nil, errors.Wrapf(err, "transform %s document", side)
		}
	}
	return pkg, nil
}

// Summary renders sequence statuses with the text they cover, for traces
// and the units command.
func Summary(seqs []*correlate.Sequence) []string {
	out := make([]string, len(seqs))
	for i, s := range seqs {
		units := s.Right
		if s.Status == correlate.Deleted {
			units = s.Left
		}
		out[i] = s.Status.String() + " " + quote(unit.Text(units))
	}
	return out
}

func quote(s string) string {
	const limit = 60
	r := []rune(s)
	if len(r) > limit {
		s = string(r[:limit]) + "…"
	}
	return strconv.Quote(s)
}
