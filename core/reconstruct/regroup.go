package reconstruct

import (
	"strconv"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/unit"
	redxml "github.com/FocuswithJustin/redline/core/xml"
)

// properties lists, in schema order, the property children copied from a
// template element before its content.
var properties = map[string][]string{
	"p":          {"pPr"},
	"r":          {"rPr"},
	"tbl":        {"tblPr", "tblGrid"},
	"tr":         {"tblPrEx", "trPr"},
	"tc":         {"tcPr"},
	"sdt":        {"sdtPr", "sdtEndPr"},
	"smartTag":   {"smartTagPr"},
	"customXml":  {"customXmlPr"},
	"fldSimple":  {"fldData"},
	"hyperlink":  nil,
	"sdtContent": nil,
	"bdo":        nil,
	"dir":        nil,
}

// built is an output node with the revision status it should be wrapped in.
type built struct {
	node   *xmlquery.Node
	status unit.Status
}

// build regroups items whose chains share the ancestors above depth.
// Adjacent items with the same ancestor id at depth become one element;
// runs are also split by status. Items whose chain ends above depth are
// leaf content of the enclosing element.
func (r *Reconstructor) build(items []*merged, depth int) ([]built, error) {
	var out []built
	for i := 0; i < len(items); {
		if len(items[i].chain) <= depth {
			j := i + 1
			for j < len(items) && len(items[j].chain) <= depth {
				j++
			}
			leaves, err := r.leaves(items[i:j])
			if err != nil {
				return nil, err
			}
			out = append(out, leaves...)
			i = j
			continue
		}
		j := i + 1
		for j < len(items) && sameElement(items[i], items[j], depth) {
			j++
		}
		b, err := r.element(items[i].chain[depth], items[i:j], depth)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
		i = j
	}
	return out, nil
}

func sameElement(a, b *merged, depth int) bool {
	if len(b.chain) <= depth || b.chain[depth].ID != a.chain[depth].ID {
		return false
	}
	return a.chain[depth].Name != "r" || a.status == b.status
}

// element rebuilds one ancestor from its template.
func (r *Reconstructor) element(anc *unit.Ancestor, items []*merged, depth int) (built, error) {
	names, ok := properties[anc.Name]
	if !ok {
		errors.Invariantf("cannot rebuild element %s (%s)", anc.Name, anc.ID)
	}
	n := redxml.ShallowClone(anc.Elem)
	if err := r.adoptFrom(n, anc.Source); err != nil {
		return built{}, err
	}
	for _, name := range names {
		prop := redxml.Child(anc.Elem, redxml.NSW, name)
		if prop == nil {
			continue
		}
		c := redxml.Clone(prop)
		if err := r.adoptFrom(c, anc.Source); err != nil {
			return built{}, err
		}
		redxml.Append(n, c)
	}

	switch anc.Name {
	case "p":
		r.markParagraph(n, items, depth)
	case "tr":
		if st, ok := r.rows[anc.ID]; ok {
			r.markRow(n, st)
		}
	}

	children, err := r.build(items, depth+1)
	if err != nil {
		return built{}, err
	}
	// A run holds items of one status; the revision wraps the run itself.
	if anc.Name == "r" {
		for _, c := range children {
			redxml.Append(n, c.node)
		}
		return built{node: n, status: items[0].status}, nil
	}
	for _, c := range r.wrap(children) {
		redxml.Append(n, c)
	}
	return built{node: n, status: unit.Normal}, nil
}

// leaves renders atoms that sit directly in the element above them.
// Paragraph marks render nothing; consecutive characters share one text
// element.
func (r *Reconstructor) leaves(items []*merged) ([]built, error) {
	var out []built
	for i := 0; i < len(items); {
		m := items[i]
		switch m.atom.Kind {
		case unit.ParagraphMark:
			i++
		case unit.Char:
			name := textElement(m)
			j := i + 1
			for j < len(items) && items[j].atom.Kind == unit.Char && textElement(items[j]) == name {
				j++
			}
			var text []rune
			for _, c := range items[i:j] {
				text = append(text, c.atom.Char)
			}
			t := redxml.NewW(name)
			redxml.SetAttr(t, redxml.NSXML, "space", "preserve")
			redxml.Append(t, redxml.NewText(string(text)))
			out = append(out, built{node: t, status: m.status})
			i = j
		case unit.Element:
			c := redxml.Clone(m.atom.Elem)
			if err := r.adoptFrom(c, m.atom.Source); err != nil {
				return nil, err
			}
			out = append(out, built{node: c, status: m.status})
			i++
		default:
			errors.Invariantf("unexpected atom kind %d", m.atom.Kind)
		}
	}
	return out, nil
}

func textElement(m *merged) string {
	deleted := m.status == unit.Deleted
	switch {
	case m.atom.IsInstruction() && deleted:
		return "delInstrText"
	case m.atom.IsInstruction():
		return "instrText"
	case deleted:
		return "delText"
	}
	return "t"
}

// wrap encloses maximal runs of inserted or deleted children in w:ins or
// w:del.
func (r *Reconstructor) wrap(children []built) []*xmlquery.Node {
	var out []*xmlquery.Node
	for i := 0; i < len(children); {
		st := children[i].status
		if st == unit.Normal {
			out = append(out, children[i].node)
			i++
			continue
		}
		w := r.revision(revisionName(st))
		j := i
		for ; j < len(children) && children[j].status == st; j++ {
			redxml.Append(w, children[j].node)
		}
		out = append(out, w)
		i = j
	}
	return out
}

func revisionName(st unit.Status) string {
	if st == unit.Deleted {
		return "del"
	}
	return "ins"
}

// revision creates a w:ins or w:del carrying a fresh id, the author and the
// date. Ids are made dense later by renumber.
func (r *Reconstructor) revision(name string) *xmlquery.Node {
	r.nextID++
	r.stats.Revisions++
	n := redxml.NewW(name)
	redxml.SetAttrW(n, "id", strconv.Itoa(r.nextID))
	redxml.SetAttrW(n, "author", r.opts.Author)
	if r.opts.Date != "" {
		redxml.SetAttrW(n, "date", r.opts.Date)
	}
	return n
}

// markParagraph records an inserted or deleted paragraph mark in
// w:pPr/w:rPr. A paragraph holding both an inserted and a deleted mark
// gets no marker.
func (r *Reconstructor) markParagraph(p *xmlquery.Node, items []*merged, depth int) {
	var ins, del bool
	for _, m := range items {
		if !m.isMark() || len(m.chain) != depth+1 {
			continue
		}
		switch m.status {
		case unit.Inserted:
			ins = true
		case unit.Deleted:
			del = true
		}
	}
	if ins == del {
		return
	}
	name := "ins"
	if del {
		name = "del"
	}

	pPr := redxml.Child(p, redxml.NSW, "pPr")
	if pPr == nil {
		pPr = redxml.NewW("pPr")
		redxml.Prepend(p, pPr)
	}
	rPr := redxml.Child(pPr, redxml.NSW, "rPr")
	if rPr == nil {
		rPr = redxml.NewW("rPr")
		if ref := firstChild(pPr, "sectPr", "pPrChange"); ref != nil {
			redxml.InsertBefore(ref, rPr)
		} else {
			redxml.Append(pPr, rPr)
		}
	}
	if redxml.Child(rPr, redxml.NSW, name) != nil {
		return
	}
	redxml.Prepend(rPr, r.revision(name))
}

// markRow records a wholly inserted or deleted row in w:trPr.
func (r *Reconstructor) markRow(tr *xmlquery.Node, st unit.Status) {
	name := revisionName(st)
	trPr := redxml.Child(tr, redxml.NSW, "trPr")
	if trPr == nil {
		trPr = redxml.NewW("trPr")
		redxml.Append(tr, trPr)
	}
	if redxml.Child(trPr, redxml.NSW, name) != nil {
		return
	}
	if ref := firstChild(trPr, "trPrChange"); ref != nil {
		redxml.InsertBefore(ref, r.revision(name))
		return
	}
	redxml.Append(trPr, r.revision(name))
}

func firstChild(n *xmlquery.Node, names ...string) *xmlquery.Node {
	for _, c := range redxml.Children(n) {
		for _, name := range names {
			if redxml.IsW(c, name) {
				return c
			}
		}
	}
	return nil
}
