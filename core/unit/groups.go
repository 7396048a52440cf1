package unit

import (
	"github.com/FocuswithJustin/redline/core/errors"
)

// Groups folds words into nested paragraph, table, row and cell groups.
// Adjacent words sharing the grouping ancestor at a depth form one group of
// that ancestor's kind.
func Groups(words []*Word) []Unit {
	return groupAt(words, 0)
}

func groupAt(words []*Word, depth int) []Unit {
	var out []Unit
	for i := 0; i < len(words); {
		chain := words[i].chain
		if len(chain) <= depth {
			out = append(out, words[i])
			i++
			continue
		}
		anc := chain[depth]
		j := i + 1
		for j < len(words) && len(words[j].chain) > depth && words[j].chain[depth].ID == anc.ID {
			j++
		}
		kind := groupKind(anc)
		if kind != Paragraph {
			for _, w := range words[i:j] {
				if len(w.chain) == depth+1 {
					errors.Invariantf("%s %s holds a bare word at depth %d", kind, anc.ID, depth)
				}
			}
		}
		out = append(out, &Group{
			Kind:     kind,
			Ancestor: anc,
			Children: groupAt(words[i:j], depth+1),
		})
		i = j
	}
	return out
}

func groupKind(anc *Ancestor) GroupKind {
	switch anc.Name {
	case "p":
		return Paragraph
	case "tbl":
		return Table
	case "tr":
		return Row
	case "tc":
		return Cell
	}
	errors.Invariantf("ancestor %s (%s) cannot form a group", anc.ID, anc.Name)
	return 0
}
