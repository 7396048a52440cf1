package correlate

import (
	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/unit"
)

// fallback aligns two arrays structurally when no match was accepted.
// The cases are tried in a fixed order.
func (c *Correlator) fallback(left, right []unit.Unit) []*Sequence {
	if mixesWordsAndRows(left, right) {
		c.log.Debug("fallback: words and rows")
		return alignKinds(left, right)
	}
	if onlyBlocks(left) && onlyBlocks(right) {
		c.log.Debug("fallback: unwrap paragraphs and tables")
		return classify(unwrap(left), unwrap(right))
	}
	if gl, gr, ok := firstGroups(left, right, unit.Row); ok {
		c.log.Debug("fallback: align cells", "left", gl.Ancestor.ID, "right", gr.Ancestor.ID)
		out := alignCells(gl.Children, gr.Children)
		return append(out, classify(left[1:], right[1:])...)
	}
	if gl, gr, ok := firstGroups(left, right, unit.Cell); ok {
		c.log.Debug("fallback: cell contents", "left", gl.Ancestor.ID, "right", gr.Ancestor.ID)
		out := classify(gl.Children, gr.Children)
		return append(out, classify(left[1:], right[1:])...)
	}
	c.log.Debug("fallback: delete and insert")
	return []*Sequence{
		{Status: Deleted, Left: left},
		{Status: Inserted, Right: right},
	}
}

func isRow(u unit.Unit) bool {
	g, ok := u.(*unit.Group)
	return ok && g.Kind == unit.Row
}

func isWord(u unit.Unit) bool {
	_, ok := u.(*unit.Word)
	return ok
}

// mixesWordsAndRows reports whether both arrays hold only words and rows,
// with at least one of each kind between them.
func mixesWordsAndRows(left, right []unit.Unit) bool {
	words, rows := false, false
	for _, side := range [][]unit.Unit{left, right} {
		for _, u := range side {
			switch {
			case isWord(u):
				words = true
			case isRow(u):
				rows = true
			default:
				return false
			}
		}
	}
	return words && rows
}

// kindRuns splits units into maximal runs of words or rows.
func kindRuns(units []unit.Unit) [][]unit.Unit {
	var runs [][]unit.Unit
	start := 0
	for i := 1; i <= len(units); i++ {
		if i == len(units) || isRow(units[i]) != isRow(units[start]) {
			runs = append(runs, units[start:i])
			start = i
		}
	}
	return runs
}

// alignKinds pairs runs of the same kind as Unknown and emits mismatched
// runs wholesale, left side first.
func alignKinds(left, right []unit.Unit) []*Sequence {
	runsL, runsR := kindRuns(left), kindRuns(right)
	var out []*Sequence
	i, j := 0, 0
	for i < len(runsL) && j < len(runsR) {
		if isRow(runsL[i][0]) == isRow(runsR[j][0]) {
			out = append(out, classify(runsL[i], runsR[j])...)
			i++
			j++
			continue
		}
		if isWord(runsL[i][0]) {
			out = append(out, classify(runsL[i], nil)...)
			i++
		} else {
			out = append(out, classify(nil, runsR[j])...)
			j++
		}
	}
	for ; i < len(runsL); i++ {
		out = append(out, classify(runsL[i], nil)...)
	}
	for ; j < len(runsR); j++ {
		out = append(out, classify(nil, runsR[j])...)
	}
	return out
}

func onlyBlocks(units []unit.Unit) bool {
	for _, u := range units {
		g, ok := u.(*unit.Group)
		if !ok || (g.Kind != unit.Paragraph && g.Kind != unit.Table) {
			return false
		}
	}
	return true
}

// unwrap replaces every group with its children.
func unwrap(units []unit.Unit) []unit.Unit {
	var out []unit.Unit
	for _, u := range units {
		g, ok := u.(*unit.Group)
		if !ok {
			errors.Invariantf("unwrap of %T", u)
		}
		out = append(out, g.Children...)
	}
	return out
}

func firstGroups(left, right []unit.Unit, kind unit.GroupKind) (*unit.Group, *unit.Group, bool) {
	gl, okL := left[0].(*unit.Group)
	gr, okR := right[0].(*unit.Group)
	if !okL || !okR || gl.Kind != kind || gr.Kind != kind {
		return nil, nil, false
	}
	return gl, gr, true
}

// alignCells pairs cells by position. Paired cells have their contents
// correlated; a cell without a partner is wholly deleted or inserted.
func alignCells(left, right []unit.Unit) []*Sequence {
	var out []*Sequence
	for k := 0; k < max(len(left), len(right)); k++ {
		switch {
		case k >= len(left):
			out = append(out, classify(nil, right[k:k+1])...)
		case k >= len(right):
			out = append(out, classify(left[k:k+1], nil)...)
		default:
			cl, okL := left[k].(*unit.Group)
			cr, okR := right[k].(*unit.Group)
			if !okL || !okR || cl.Kind != unit.Cell || cr.Kind != unit.Cell {
				errors.Invariantf("row child is not a cell: %T, %T", left[k], right[k])
			}
			if cl.Digest() == cr.Digest() {
				out = append(out, equal(left[k:k+1], right[k:k+1]))
				continue
			}
			out = append(out, classify(cl.Children, cr.Children)...)
		}
	}
	return out
}
