// Package correlate partitions two unit sequences into equal, inserted and
// deleted regions.
//
// Correlate keeps a list of sequences and repeatedly resolves the first one
// whose status is still Unknown. Each resolution step either finds matching
// units (at the edges, or as the longest contiguous block) or falls back to
// structural alignment of tables, rows and cells. Every step replaces one
// Unknown sequence with strictly smaller ones, so the loop terminates.
package correlate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/unit"
)

// DefaultThreshold is the minimum fraction of the compared length a match
// must cover to be kept.
const DefaultThreshold = 0.15

// Status is the resolution state of a sequence.
type Status int

const (
	// Unknown sequences still need resolving.
	Unknown Status = iota
	// Equal sequences hold pairwise digest-equal units.
	Equal
	// Inserted sequences exist only on the right (after) side.
	Inserted
	// Deleted sequences exist only on the left (before) side.
	Deleted
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Equal:
		return "equal"
	case Inserted:
		return "inserted"
	case Deleted:
		return "deleted"
	}
	return "invalid"
}

// Sequence is a pair of unit arrays with a status.
type Sequence struct {
	Status Status
	Left   []unit.Unit
	Right  []unit.Unit
}

// Correlator holds the settings and trace sink of one comparison.
type Correlator struct {
	threshold float64
	log       *slog.Logger
}

// New creates a Correlator. A nil logger discards the trace.
func New(threshold float64, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Correlator{threshold: threshold, log: logger}
}

// Correlate resolves left against right and returns terminal sequences in
// document order. Concatenating the Left arrays reproduces left, and the
// Right arrays reproduce right.
func (c *Correlator) Correlate(left, right []unit.Unit) []*Sequence {
	seqs := classify(left, right)
	for {
		i := firstUnknown(seqs)
		if i < 0 {
			return seqs
		}
		replacement := c.resolve(seqs[i])
		next := make([]*Sequence, 0, len(seqs)-1+len(replacement))
		next = append(next, seqs[:i]...)
		next = append(next, replacement...)
		next = append(next, seqs[i+1:]...)
		seqs = next
	}
}

func firstUnknown(seqs []*Sequence) int {
	for i, s := range seqs {
		if s.Status == Unknown {
			return i
		}
	}
	return -1
}

// classify wraps two arrays into at most one sequence whose status follows
// from which sides are empty.
func classify(left, right []unit.Unit) []*Sequence {
	switch {
	case len(left) == 0 && len(right) == 0:
		return nil
	case len(left) == 0:
		return []*Sequence{{Status: Inserted, Right: right}}
	case len(right) == 0:
		return []*Sequence{{Status: Deleted, Left: left}}
	}
	return []*Sequence{{Status: Unknown, Left: left, Right: right}}
}

func equal(left, right []unit.Unit) *Sequence {
	return &Sequence{Status: Equal, Left: left, Right: right}
}

func (c *Correlator) resolve(s *Sequence) []*Sequence {
	if c.log.Enabled(context.Background(), slog.LevelDebug) {
		c.log.Debug("resolve", "left", describe(s.Left), "right", describe(s.Right))
	}
	if len(s.Left) == 0 || len(s.Right) == 0 {
		return classify(s.Left, s.Right)
	}
	if out, ok := c.edgeMatch(s.Left, s.Right); ok {
		return out
	}
	if out, ok := c.longestBlock(s.Left, s.Right); ok {
		return out
	}
	return c.fallback(s.Left, s.Right)
}

func sameDigest(a, b unit.Unit) bool {
	return a.Digest() == b.Digest()
}

func below(n, of int, threshold float64) bool {
	return of > 0 && float64(n)/float64(of) < threshold
}

// edgeMatch matches a run at the start and, on the remainder, a run at the
// end of the two arrays.
func (c *Correlator) edgeMatch(left, right []unit.Unit) ([]*Sequence, bool) {
	shorter := min(len(left), len(right))

	lead := 0
	for lead < shorter && sameDigest(left[lead], right[lead]) {
		lead++
	}
	if lead > 0 && !(lead == 1 && unit.IsParagraphMark(left[0])) && below(lead, shorter, c.threshold) {
		c.log.Debug("leading match below threshold", "length", lead, "of", shorter)
		lead = 0
	}

	restL, restR := left[lead:], right[lead:]
	remaining := min(len(restL), len(restR))
	trail := 0
	for trail < remaining && sameDigest(restL[len(restL)-1-trail], restR[len(restR)-1-trail]) {
		trail++
	}
	// A trailing match never starts with a lone paragraph mark unless the
	// mark is the whole match.
	if trail > 1 && unit.IsParagraphMark(restL[len(restL)-trail]) {
		trail--
	}
	if trail > 0 && !(trail == 1 && unit.IsParagraphMark(restL[len(restL)-1])) && below(trail, shorter, c.threshold) {
		c.log.Debug("trailing match below threshold", "length", trail, "of", shorter)
		trail = 0
	}

	if lead == 0 && trail == 0 {
		return nil, false
	}
	c.log.Debug("edge match", "leading", lead, "trailing", trail)

	var out []*Sequence
	if lead > 0 {
		out = append(out, equal(left[:lead], right[:lead]))
	}
	out = append(out, classify(restL[:len(restL)-trail], restR[:len(restR)-trail])...)
	if trail > 0 {
		out = append(out, equal(restL[len(restL)-trail:], restR[len(restR)-trail:]))
	}
	return out, true
}

// longestBlock finds the longest contiguous run of pairwise equal units.
// Ties go to the first run found scanning left then right.
func (c *Correlator) longestBlock(left, right []unit.Unit) ([]*Sequence, bool) {
	bestI, bestJ, bestLen := 0, 0, 0
	for i := range left {
		for j := range right {
			if i > 0 && j > 0 && sameDigest(left[i-1], right[j-1]) {
				// Not the start of a maximal run.
				continue
			}
			k := 0
			for i+k < len(left) && j+k < len(right) && sameDigest(left[i+k], right[j+k]) {
				k++
			}
			if k > bestLen {
				bestI, bestJ, bestLen = i, j, k
			}
		}
	}
	if bestLen == 0 {
		return nil, false
	}

	for bestLen > 1 && unit.IsParagraphMark(left[bestI]) {
		bestI++
		bestJ++
		bestLen--
	}
	for bestLen > 1 && unit.IsParagraphMark(left[bestI+bestLen-1]) {
		bestLen--
	}

	if bestLen == 1 && isLoneSpace(left[bestI]) {
		c.log.Debug("block is a lone space")
		return nil, false
	}
	if allWords(left) && allWords(right) &&
		!(bestLen == 1 && unit.IsParagraphMark(left[bestI])) &&
		below(bestLen, max(len(left), len(right)), c.threshold) {
		c.log.Debug("block below threshold", "length", bestLen, "of", max(len(left), len(right)))
		return nil, false
	}
	c.log.Debug("block match", "left", bestI, "right", bestJ, "length", bestLen)

	var out []*Sequence
	out = append(out, classify(left[:bestI], right[:bestJ])...)
	out = append(out, equal(left[bestI:bestI+bestLen], right[bestJ:bestJ+bestLen]))
	out = append(out, classify(left[bestI+bestLen:], right[bestJ+bestLen:])...)
	return out, true
}

func isLoneSpace(u unit.Unit) bool {
	w, ok := u.(*unit.Word)
	return ok && len(w.Atoms) == 1 && w.Atoms[0].Kind == unit.Char && w.Atoms[0].Char == ' '
}

func allWords(units []unit.Unit) bool {
	for _, u := range units {
		if _, ok := u.(*unit.Word); !ok {
			return false
		}
	}
	return true
}

// describe renders a short trace of a unit array.
func describe(units []unit.Unit) string {
	const limit = 8
	parts := make([]string, 0, min(len(units), limit)+1)
	for i, u := range units {
		if i == limit {
			parts = append(parts, "…")
			break
		}
		switch v := u.(type) {
		case *unit.Word:
			parts = append(parts, v.String())
		case *unit.Group:
			parts = append(parts, v.Kind.String()+":"+v.Ancestor.ID)
		case *unit.Atom:
			parts = append(parts, v.String())
		default:
			errors.Invariantf("unexpected unit type %T", u)
		}
	}
	return strings.Join(parts, " ")
}
