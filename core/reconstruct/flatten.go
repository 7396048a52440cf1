package reconstruct

import (
	"github.com/FocuswithJustin/redline/core/correlate"
	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/unit"
)

// merged is one atom of the output stream.
type merged struct {
	atom   *unit.Atom // the after atom of an equal pair, else the atom itself
	before *unit.Atom // before partner of an equal pair
	status unit.Status
	chain  []*unit.Ancestor // working ancestor chain, rewritten by the passes below
}

func (m *merged) isMark() bool {
	return m.atom.Kind == unit.ParagraphMark
}

// flatten turns terminal sequences into the merged atom stream and records
// the rows that were inserted or deleted as a whole.
func (r *Reconstructor) flatten(seqs []*correlate.Sequence) []*merged {
	var out []*merged
	for _, s := range seqs {
		switch s.Status {
		case correlate.Equal:
			left, right := unit.AtomsOf(s.Left), unit.AtomsOf(s.Right)
			if len(left) != len(right) {
				r.log.Debug("equal sequence atom counts differ", "left", len(left), "right", len(right))
				out = r.appendSide(out, s.Left, unit.Deleted)
				out = r.appendSide(out, s.Right, unit.Inserted)
				continue
			}
			for k, a := range right {
				out = append(out, &merged{atom: a, before: left[k], status: a.Status, chain: a.Ancestors})
				r.stats.Equal++
			}
		case correlate.Deleted:
			out = r.appendSide(out, s.Left, unit.Deleted)
		case correlate.Inserted:
			out = r.appendSide(out, s.Right, unit.Inserted)
		default:
			errors.Invariantf("%v sequence reached reconstruction", s.Status)
		}
	}
	return out
}

func (r *Reconstructor) appendSide(out []*merged, units []unit.Unit, status unit.Status) []*merged {
	r.markRows(units, status)
	for _, a := range unit.AtomsOf(units) {
		st := status
		if a.Status == unit.Deleted {
			// Text already deleted in the source stays deleted.
			st = unit.Deleted
		}
		out = append(out, &merged{atom: a, status: st, chain: a.Ancestors})
		if st == unit.Deleted {
			r.stats.Deleted++
		} else {
			r.stats.Inserted++
		}
	}
	return out
}

func (r *Reconstructor) markRows(units []unit.Unit, status unit.Status) {
	for _, u := range units {
		g, ok := u.(*unit.Group)
		if !ok {
			continue
		}
		if g.Kind == unit.Row {
			r.rows[g.Ancestor.ID] = status
		}
		r.markRows(g.Children, status)
	}
}

// remap rewrites the chains of before-side atoms onto the after elements
// their equal neighbours were matched with. The first mapping of a before
// id wins. A deleted paragraph mark keeps its own paragraph and everything
// below it.
func remap(items []*merged) {
	table := make(map[string]*unit.Ancestor)
	for _, m := range items {
		if m.before == nil {
			continue
		}
		b, a := m.before.Ancestors, m.atom.Ancestors
		for k := 0; k < min(len(b), len(a)); k++ {
			if b[k].Name != a[k].Name {
				continue
			}
			if _, seen := table[b[k].ID]; !seen {
				table[b[k].ID] = a[k]
			}
		}
	}

	apply := func(chain []*unit.Ancestor) []*unit.Ancestor {
		out := make([]*unit.Ancestor, len(chain))
		for i, anc := range chain {
			if to, ok := table[anc.ID]; ok {
				out[i] = to
			} else {
				out[i] = anc
			}
		}
		return out
	}
	for _, m := range items {
		if m.before != nil || m.atom.Source.Side != unit.Before {
			continue
		}
		if m.isMark() {
			p := paragraphIndex(m.chain)
			m.chain = append(apply(m.chain[:p]), m.chain[p:]...)
			continue
		}
		m.chain = apply(m.chain)
	}
}

// paragraphIndex returns the index of the innermost w:p in chain, or -1.
func paragraphIndex(chain []*unit.Ancestor) int {
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].Name == "p" {
			return i
		}
	}
	return -1
}

// adoptMarks walks backwards so every atom joins the paragraph of the mark
// that follows it. The part of an atom's chain below its paragraph is kept.
func adoptMarks(items []*merged) {
	var owner []*unit.Ancestor
	for i := len(items) - 1; i >= 0; i-- {
		m := items[i]
		p := paragraphIndex(m.chain)
		if m.isMark() {
			owner = m.chain[:p+1]
			continue
		}
		if p < 0 || owner == nil {
			continue
		}
		chain := make([]*unit.Ancestor, 0, len(owner)+len(m.chain)-p-1)
		chain = append(chain, owner...)
		m.chain = append(chain, m.chain[p+1:]...)
	}
}
