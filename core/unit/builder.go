package unit

import (
	"fmt"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/hash"
	redxml "github.com/FocuswithJustin/redline/core/xml"
)

// Element classification for the body walk.
var (
	// containers get an id and are recursed into.
	containers = map[string]bool{
		"p": true, "r": true, "tbl": true, "tr": true, "tc": true,
		"fldSimple": true, "hyperlink": true, "smartTag": true,
		"sdt": true, "sdtContent": true, "customXml": true, "bdo": true, "dir": true,
	}

	// digested containers carry a block digest on their ancestor entry.
	digested = map[string]bool{
		"p": true, "tbl": true, "tr": true, "tc": true, "sdt": true,
	}

	// revision wrappers are transparent and set the atom status.
	revisionWrappers = map[string]Status{
		"ins": Inserted, "moveTo": Inserted,
		"del": Deleted, "moveFrom": Deleted,
	}

	// textElements are decomposed into one atom per character.
	textElements = map[string]bool{
		"t": true, "delText": true, "instrText": true, "delInstrText": true,
	}

	// atomicElements each become a single atom.
	atomicElements = map[string]bool{
		"br": true, "cr": true, "tab": true, "ptab": true, "sym": true,
		"drawing": true, "pict": true, "object": true, "fldChar": true,
		"noBreakHyphen": true, "softHyphen": true,
		"footnoteReference": true, "endnoteReference": true,
		"footnoteRef": true, "endnoteRef": true, "annotationRef": true,
		"separator": true, "continuationSeparator": true,
		"dayShort": true, "dayLong": true, "monthShort": true, "monthLong": true,
		"yearShort": true, "yearLong": true, "pgNum": true,
		"ruby": true, "contentPart": true,
	}

	// skipped elements hold properties or noise and emit nothing.
	skipped = map[string]bool{
		"sectPr": true, "customXmlPr": true, "smartTagPr": true, "fldData": true,
	}
)

// Builder turns one document body into atoms. A Builder is used for a
// single Build call.
type Builder struct {
	src    *Source
	hasher *hash.Hasher
	next   int
	atoms  []*Atom
}

// NewBuilder creates a builder for the given source. Block and element
// digests come from h, which must resolve resources of src.Package.
func NewBuilder(src *Source, h *hash.Hasher) *Builder {
	return &Builder{src: src, hasher: h}
}

// Build walks the body once and returns its atoms in document order.
// Unrecognized elements panic with an InvariantError; Preflight must have
// accepted the part.
func (b *Builder) Build(body *xmlquery.Node) ([]*Atom, error) {
	b.atoms = nil
	if err := b.walkChildren(body, nil, Normal); err != nil {
		return nil, err
	}
	return b.atoms, nil
}

func (b *Builder) newID() string {
	b.next++
	return fmt.Sprintf("%s%d", b.src.Side.Prefix(), b.next)
}

func (b *Builder) walkChildren(n *xmlquery.Node, chain []*Ancestor, status Status) error {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		if err := b.walk(child, chain, status); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) walk(n *xmlquery.Node, chain []*Ancestor, status Status) error {
	switch n.NamespaceURI {
	case redxml.NSW:
		return b.walkW(n, chain, status)
	case redxml.NSMC:
		if n.Data == "AlternateContent" {
			return b.element(n, chain, status)
		}
	case redxml.NSM:
		if n.Data == "oMath" || n.Data == "oMathPara" {
			return b.element(n, chain, status)
		}
	}
	errors.Invariantf("unrecognized element %s in %s", redxml.QName(n), b.src.Part)
	return nil
}

func (b *Builder) walkW(n *xmlquery.Node, chain []*Ancestor, status Status) error {
	name := n.Data
	switch {
	case hash.IsPropertyBlock(n), hash.IsNoise(n), skipped[name]:
		return nil
	case revisionWrappers[name] != Normal:
		return b.walkChildren(n, chain, revisionWrappers[name])
	case textElements[name]:
		return b.text(n, chain, status)
	case atomicElements[name]:
		return b.element(n, chain, status)
	case containers[name]:
		anc, err := b.ancestor(n)
		if err != nil {
			return err
		}
		inner := append(chain[:len(chain):len(chain)], anc)
		if err := b.walkChildren(n, inner, status); err != nil {
			return err
		}
		if name == "p" {
			b.mark(n, inner)
		}
		return nil
	}
	errors.Invariantf("unrecognized element %s in %s", redxml.QName(n), b.src.Part)
	return nil
}

func (b *Builder) ancestor(n *xmlquery.Node) (*Ancestor, error) {
	anc := &Ancestor{Elem: n, Name: n.Data, ID: b.newID(), Source: b.src}
	if digested[n.Data] {
		d, err := b.hasher.Digest(n, b.src.Part)
		if err != nil {
			return nil, err
		}
		anc.Digest = d
	}
	return anc, nil
}

func (b *Builder) text(n *xmlquery.Node, chain []*Ancestor, status Status) error {
	prefix := "c"
	if n.Data == "instrText" || n.Data == "delInstrText" {
		prefix = "i"
	}
	alg := b.hasher.Algorithm()
	for _, r := range n.InnerText() {
		b.atoms = append(b.atoms, &Atom{
			Kind:      Char,
			Char:      r,
			Elem:      n,
			Ancestors: chain,
			Source:    b.src,
			Status:    status,
			digest:    alg.SumStrings(prefix, string(r)),
		})
	}
	return nil
}

func (b *Builder) element(n *xmlquery.Node, chain []*Ancestor, status Status) error {
	d, err := b.hasher.Digest(n, b.src.Part)
	if err != nil {
		return err
	}
	b.atoms = append(b.atoms, &Atom{
		Kind:      Element,
		Elem:      n,
		Ancestors: chain,
		Source:    b.src,
		Status:    status,
		digest:    d,
	})
	return nil
}

// mark appends the paragraph mark atom. Its status comes from the
// revision markers in w:pPr/w:rPr, not from enclosing wrappers.
func (b *Builder) mark(p *xmlquery.Node, chain []*Ancestor) {
	pPr := redxml.Child(p, redxml.NSW, "pPr")
	markStatus := Normal
	if rPr := redxml.Child(pPr, redxml.NSW, "rPr"); rPr != nil {
		switch {
		case redxml.Child(rPr, redxml.NSW, "ins") != nil, redxml.Child(rPr, redxml.NSW, "moveTo") != nil:
			markStatus = Inserted
		case redxml.Child(rPr, redxml.NSW, "del") != nil, redxml.Child(rPr, redxml.NSW, "moveFrom") != nil:
			markStatus = Deleted
		}
	}
	b.atoms = append(b.atoms, &Atom{
		Kind:      ParagraphMark,
		Elem:      pPr,
		Ancestors: chain,
		Source:    b.src,
		Status:    markStatus,
		digest:    b.hasher.Algorithm().SumStrings("mark"),
	})
}
