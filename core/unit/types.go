// Package unit decomposes a WordprocessingML body into comparison units.
//
// A document becomes an ordered list of atoms (one character, one paragraph
// mark, or one atomic element), each carrying the chain of structural
// ancestors it came from. Atoms are folded into words, and words into
// paragraph, table, row and cell groups mirroring the source. All values are
// immutable once built.
package unit

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/opc"
)

// Side identifies which input a unit came from.
type Side int

const (
	// Before is the original document.
	Before Side = iota
	// After is the revised document.
	After
)

// Prefix is prepended to element ids so the two sides never collide.
func (s Side) Prefix() string {
	if s == Before {
		return "b"
	}
	return "a"
}

func (s Side) String() string {
	if s == Before {
		return "before"
	}
	return "after"
}

// Source names the package part an atom was read from.
type Source struct {
	Side    Side
	Package *opc.Package
	Part    string
}

// Status is the revision state an atom inherited from the source markup.
type Status int

const (
	// Normal content carries no revision wrapper.
	Normal Status = iota
	// Inserted content sat inside w:ins or w:moveTo.
	Inserted
	// Deleted content sat inside w:del or w:moveFrom.
	Deleted
)

// AtomKind distinguishes the three kinds of atom.
type AtomKind int

const (
	// Char is one character of run text or field instruction text.
	Char AtomKind = iota
	// ParagraphMark ends every paragraph.
	ParagraphMark
	// Element is one atomic non-text element such as a break or drawing.
	Element
)

// Ancestor is one structural element above an atom.
type Ancestor struct {
	Elem   *xmlquery.Node // read-only source element
	Name   string         // local name, e.g. "p", "tbl", "r"
	ID     string         // side-prefixed id, unique per comparison
	Digest string         // set for p, tbl, tr, tc and sdt
	Source *Source
}

// IsGrouping reports whether the ancestor delimits words and groups.
func (a *Ancestor) IsGrouping() bool {
	switch a.Name {
	case "p", "tbl", "tr", "tc":
		return true
	}
	return false
}

// Unit is the tagged union of Atom, Word and Group.
type Unit interface {
	Digest() string
	isUnit()
}

// Atom is one indivisible content item.
type Atom struct {
	Kind      AtomKind
	Char      rune
	Elem      *xmlquery.Node // text container for chars, pPr for marks, the element itself otherwise
	Ancestors []*Ancestor
	Source    *Source
	Status    Status
	digest    string
}

func (a *Atom) Digest() string { return a.digest }
func (*Atom) isUnit()          {}

// IsInstruction reports whether a character atom is field instruction text.
func (a *Atom) IsInstruction() bool {
	return a.Kind == Char && a.Elem != nil && (a.Elem.Data == "instrText" || a.Elem.Data == "delInstrText")
}

// GroupingChain returns the p/tbl/tr/tc ancestors of the atom.
func (a *Atom) GroupingChain() []*Ancestor {
	var chain []*Ancestor
	for _, anc := range a.Ancestors {
		if anc.IsGrouping() {
			chain = append(chain, anc)
		}
	}
	return chain
}

func chainKey(chain []*Ancestor) string {
	ids := make([]string, len(chain))
	for i, anc := range chain {
		ids[i] = anc.ID
	}
	return strings.Join(ids, "/")
}

// String renders the atom for traces and test output.
func (a *Atom) String() string {
	switch a.Kind {
	case Char:
		return string(a.Char)
	case ParagraphMark:
		return "¶"
	default:
		return "<" + a.Elem.Data + ">"
	}
}

// Word is a run of atoms without an internal separator.
type Word struct {
	Atoms  []*Atom
	chain  []*Ancestor
	digest string
}

func (w *Word) Digest() string { return w.digest }
func (*Word) isUnit()          {}

// GroupingChain returns the grouping chain shared by every atom of the word.
func (w *Word) GroupingChain() []*Ancestor {
	return w.chain
}

// IsParagraphMark reports whether the word is a lone paragraph mark.
func (w *Word) IsParagraphMark() bool {
	return len(w.Atoms) == 1 && w.Atoms[0].Kind == ParagraphMark
}

func (w *Word) String() string {
	var b strings.Builder
	for _, a := range w.Atoms {
		b.WriteString(a.String())
	}
	return b.String()
}

// GroupKind is the structural element a group mirrors.
type GroupKind int

const (
	// Paragraph mirrors w:p.
	Paragraph GroupKind = iota
	// Table mirrors w:tbl.
	Table
	// Row mirrors w:tr.
	Row
	// Cell mirrors w:tc.
	Cell
)

func (k GroupKind) String() string {
	switch k {
	case Paragraph:
		return "paragraph"
	case Table:
		return "table"
	case Row:
		return "row"
	case Cell:
		return "cell"
	}
	return "unknown"
}

// Group is a structural aggregation of words and groups.
type Group struct {
	Kind     GroupKind
	Ancestor *Ancestor
	Children []Unit
}

func (g *Group) Digest() string { return g.Ancestor.Digest }
func (*Group) isUnit()          {}

// Atoms returns every atom below u in document order.
func Atoms(u Unit) []*Atom {
	var out []*Atom
	collectAtoms(u, &out)
	return out
}

func collectAtoms(u Unit, out *[]*Atom) {
	switch v := u.(type) {
	case *Atom:
		*out = append(*out, v)
	case *Word:
		*out = append(*out, v.Atoms...)
	case *Group:
		for _, child := range v.Children {
			collectAtoms(child, out)
		}
	default:
		errors.Invariantf("unexpected unit type %T", u)
	}
}

// AtomsOf flattens a unit slice.
func AtomsOf(units []Unit) []*Atom {
	var out []*Atom
	for _, u := range units {
		collectAtoms(u, &out)
	}
	return out
}

// IsParagraphMark reports whether u is a word holding only a paragraph mark.
func IsParagraphMark(u Unit) bool {
	w, ok := u.(*Word)
	return ok && w.IsParagraphMark()
}

// Text renders the visible text of units, with ¶ for paragraph marks.
func Text(units []Unit) string {
	var b strings.Builder
	for _, a := range AtomsOf(units) {
		if a.IsInstruction() {
			continue
		}
		b.WriteString(a.String())
	}
	return b.String()
}
