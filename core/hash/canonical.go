package hash

import (
	"bytes"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/opc"
	redxml "github.com/FocuswithJustin/redline/core/xml"
)

// Resolver resolves relationships and resources of a package.
// *opc.Package satisfies it.
type Resolver interface {
	Relationship(source, id string) (*opc.Relationship, error)
	RelatedPart(source, relType string) (string, bool)
	Data(name string) ([]byte, error)
	XML(name string) (*xmlquery.Node, error)
	IsXMLPart(name string) bool
}

// propertyBlocks are excluded from every digest.
var propertyBlocks = map[string]bool{
	"pPr": true, "rPr": true, "tblPr": true, "tblGrid": true, "trPr": true,
	"tblPrEx": true, "tcPr": true, "sdtPr": true, "sdtEndPr": true,
}

// noiseElements carry no visible content.
var noiseElements = map[string]bool{
	"bookmarkStart": true, "bookmarkEnd": true,
	"commentRangeStart": true, "commentRangeEnd": true, "commentReference": true,
	"proofErr": true, "permStart": true, "permEnd": true,
	"lastRenderedPageBreak": true,
}

// revisionElements lose their id, author and date.
var revisionElements = map[string]bool{
	"ins": true, "del": true, "moveFrom": true, "moveTo": true,
	"rPrChange": true, "pPrChange": true, "tblPrChange": true, "trPrChange": true,
	"tcPrChange": true, "sectPrChange": true, "numberingChange": true,
}

// blockElements are digested separately and referenced by digest from
// their parent's canonical form.
var blockElements = map[string]bool{
	"p": true, "tbl": true, "tr": true, "tc": true, "sdt": true,
	"drawing": true, "pict": true, "object": true, "txbxContent": true,
}

// IsPropertyBlock reports whether n is a formatting property container.
func IsPropertyBlock(n *xmlquery.Node) bool {
	return n.NamespaceURI == redxml.NSW && propertyBlocks[n.Data]
}

// IsNoise reports whether n is an element without visible content.
func IsNoise(n *xmlquery.Node) bool {
	return n.NamespaceURI == redxml.NSW && noiseElements[n.Data]
}

// IsVolatileAttr reports whether the attribute a on element n is an
// identifier that changes without any visible edit.
func IsVolatileAttr(n *xmlquery.Node, a xmlquery.Attr) bool {
	if redxml.IsNamespaceDecl(a) {
		return true
	}
	ns := a.NamespaceURI
	switch {
	case ns == redxml.NSW && strings.HasPrefix(a.Name.Local, "rsid"):
		return true
	case ns == redxml.NSW14 && (a.Name.Local == "paraId" || a.Name.Local == "textId"):
		return true
	case ns == redxml.NSWP14:
		return true
	case ns == "" && a.Name.Local == "id" && (redxml.Is(n, redxml.NSWP, "docPr") || redxml.Is(n, redxml.NSPic, "cNvPr")):
		return true
	case ns == redxml.NSW && n.NamespaceURI == redxml.NSW && revisionElements[n.Data]:
		return a.Name.Local == "id" || a.Name.Local == "author" || a.Name.Local == "date"
	}
	return false
}

// Hasher computes memoized digests for the blocks and resources of one
// package. It is not safe for concurrent use.
type Hasher struct {
	alg       Algorithm
	res       Resolver
	blocks    map[*xmlquery.Node]string
	resources map[string]string
	active    map[string]bool
}

// NewHasher creates a Hasher over the resources of res.
func NewHasher(alg Algorithm, res Resolver) *Hasher {
	return &Hasher{
		alg:       alg,
		res:       res,
		blocks:    make(map[*xmlquery.Node]string),
		resources: make(map[string]string),
		active:    make(map[string]bool),
	}
}

// Algorithm returns the digest algorithm in use.
func (h *Hasher) Algorithm() Algorithm {
	return h.alg
}

// Digest returns the digest of element n, which lives in the given part.
func (h *Hasher) Digest(n *xmlquery.Node, part string) (string, error) {
	if d, ok := h.blocks[n]; ok {
		return d, nil
	}
	data, err := h.Canonical(n, part)
	if err != nil {
		return "", err
	}
	d := h.alg.Sum(data)
	h.blocks[n] = d
	return d, nil
}

// Canonical returns the canonical serialization of element n.
func (h *Hasher) Canonical(n *xmlquery.Node, part string) ([]byte, error) {
	c := &canonicalizer{h: h, part: part}
	if err := c.element(n, true); err != nil {
		return nil, err
	}
	c.flush()
	return c.buf.Bytes(), nil
}

// Resource returns the digest of a part: raw bytes for binary parts, the
// canonical form of the root element for XML parts.
func (h *Hasher) Resource(part string) (string, error) {
	if d, ok := h.resources[part]; ok {
		return d, nil
	}
	if h.active[part] {
		// A part reachable from itself contributes a fixed token.
		return "cycle", nil
	}
	h.active[part] = true
	defer delete(h.active, part)

	var d string
	if h.res.IsXMLPart(part) {
		doc, err := h.res.XML(part)
		if err != nil {
			return "", err
		}
		root := redxml.Root(doc)
		if root == nil {
			return "", errors.NewFormat(part, "empty XML part", nil)
		}
		data, err := h.Canonical(root, part)
		if err != nil {
			return "", err
		}
		d = h.alg.Sum(data)
	} else {
		data, err := h.res.Data(part)
		if err != nil {
			return "", err
		}
		d = h.alg.Sum(data)
	}
	h.resources[part] = d
	return d, nil
}

func (h *Hasher) relationship(part, id string) (string, error) {
	rel, err := h.res.Relationship(part, id)
	if err != nil {
		return "", err
	}
	if rel.IsExternal() {
		return "ext:" + rel.Target, nil
	}
	return h.Resource(opc.ResolveTarget(part, rel.Target))
}

// note resolves a footnote or endnote reference to the digest of the note body.
func (h *Hasher) note(ref *xmlquery.Node, part string) (string, error) {
	relType, noteName := opc.RelFootnotes, "footnote"
	if ref.Data == "endnoteReference" {
		relType, noteName = opc.RelEndnotes, "endnote"
	}
	id := redxml.AttrW(ref, "id")
	notesPart, ok := h.res.RelatedPart(part, relType)
	if !ok {
		return "", errors.NewFormat(part, noteName+"s part is missing", nil)
	}
	doc, err := h.res.XML(notesPart)
	if err != nil {
		return "", err
	}
	for _, note := range redxml.Children(redxml.Root(doc)) {
		if redxml.IsW(note, noteName) && redxml.AttrW(note, "id") == id {
			return h.Digest(note, notesPart)
		}
	}
	return "", errors.NewFormat(notesPart, noteName+" "+id+" is missing", nil)
}

type canonicalizer struct {
	h    *Hasher
	part string
	buf  bytes.Buffer
	text strings.Builder
}

func (c *canonicalizer) flush() {
	if c.text.Len() == 0 {
		return
	}
	c.buf.WriteString("text:")
	c.buf.WriteString(strconv.Quote(c.text.String()))
	c.buf.WriteByte('\n')
	c.text.Reset()
}

func (c *canonicalizer) token(s string) {
	c.flush()
	c.buf.WriteString(s)
	c.buf.WriteByte('\n')
}

func qualified(n *xmlquery.Node) string {
	return "{" + n.NamespaceURI + "}" + n.Data
}

func (c *canonicalizer) element(n *xmlquery.Node, top bool) error {
	if n.NamespaceURI == redxml.NSW {
		switch {
		case propertyBlocks[n.Data], noiseElements[n.Data]:
			return nil
		case n.Data == "t" || n.Data == "delText":
			c.text.WriteString(n.InnerText())
			return nil
		case n.Data == "r":
			// Runs are transparent so run splitting does not change a digest.
			return c.children(n)
		case n.Data == "footnoteReference" || n.Data == "endnoteReference":
			d, err := c.h.note(n, c.part)
			if err != nil {
				return err
			}
			c.token(qualified(n) + "#" + d)
			return nil
		}
	}
	if !top && n.NamespaceURI == redxml.NSW && blockElements[n.Data] {
		d, err := c.h.Digest(n, c.part)
		if err != nil {
			return err
		}
		c.token(qualified(n) + "#" + d)
		return nil
	}
	if !top && redxml.Is(n, redxml.NSMC, "AlternateContent") {
		d, err := c.h.Digest(n, c.part)
		if err != nil {
			return err
		}
		c.token(qualified(n) + "#" + d)
		return nil
	}

	attrs, err := c.attributes(n)
	if err != nil {
		return err
	}
	c.token("<" + qualified(n) + attrs + ">")
	if err := c.children(n); err != nil {
		return err
	}
	c.token("</>")
	return nil
}

func (c *canonicalizer) attributes(n *xmlquery.Node) (string, error) {
	var parts []string
	for _, a := range n.Attr {
		if IsVolatileAttr(n, a) {
			continue
		}
		value := strconv.Quote(a.Value)
		if a.NamespaceURI == redxml.NSR {
			d, err := c.h.relationship(c.part, a.Value)
			if err != nil {
				return "", err
			}
			value = "#" + d
		}
		parts = append(parts, " {"+a.NamespaceURI+"}"+a.Name.Local+"="+value)
	}
	sort.Strings(parts)
	return strings.Join(parts, ""), nil
}

func (c *canonicalizer) children(n *xmlquery.Node) error {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode:
			if err := c.element(child, false); err != nil {
				return err
			}
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if strings.TrimSpace(child.Data) != "" {
				c.token("chars:" + strconv.Quote(child.Data))
			}
		}
	}
	return nil
}
