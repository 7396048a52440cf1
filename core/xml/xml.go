// Package xml provides the XML tree model used for WordprocessingML parts.
//
// Parts are parsed into github.com/antchfx/xmlquery node trees. The helpers
// here match elements and attributes by namespace URI rather than by prefix,
// create new nodes with the conventional prefixes, clone subtrees, and run
// namespace-aware XPath queries.
//
// Security Notes:
//   - XXE (External Entity) attacks are mitigated because xmlquery parses with
//     Go's encoding/xml decoder, which never fetches external entities.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/redline/core/errors"
)

// Namespace URIs used across the comparison engine.
const (
	NSW       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	NSR       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	NSM       = "http://schemas.openxmlformats.org/officeDocument/2006/math"
	NSMC      = "http://schemas.openxmlformats.org/markup-compatibility/2006"
	NSWP      = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	NSPic     = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	NSW14     = "http://schemas.microsoft.com/office/word/2010/wordml"
	NSWP14    = "http://schemas.microsoft.com/office/word/2010/wordprocessingDrawing"
	NSXML     = "http://www.w3.org/XML/1998/namespace"
	NSRedline = "http://schemas.focuswithjustin.dev/redline/2026"
)

// Prefixes maps the namespaces above to the prefixes used for new nodes.
var Prefixes = map[string]string{
	NSW:       "w",
	NSR:       "r",
	NSM:       "m",
	NSMC:      "mc",
	NSWP:      "wp",
	NSPic:     "pic",
	NSW14:     "w14",
	NSWP14:    "wp14",
	NSXML:     "xml",
	NSRedline: "rl",
}

// Parse parses XML data and returns the document node.
func Parse(data []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		pe := errors.NewParse("XML", "", err.Error())
		pe.Err = err
		return nil, pe
	}
	return doc, nil
}

// Serialize converts a document node back to XML bytes, including the
// declaration when the parsed document carried one.
func Serialize(doc *xmlquery.Node) []byte {
	if doc == nil {
		return nil
	}
	var buf bytes.Buffer
	opts := []xmlquery.OutputOption{xmlquery.WithPreserveSpace()}
	if doc.Type != xmlquery.DocumentNode {
		opts = append(opts, xmlquery.WithOutputSelf())
	}
	_ = doc.WriteWithOptions(&buf, opts...)
	return buf.Bytes()
}

// Root returns the document element.
func Root(doc *xmlquery.Node) *xmlquery.Node {
	if doc == nil {
		return nil
	}
	if doc.Type == xmlquery.ElementNode {
		return doc
	}
	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}

// Is reports whether n is an element with the given namespace and local name.
func Is(n *xmlquery.Node, ns, local string) bool {
	return n != nil && n.Type == xmlquery.ElementNode && n.Data == local && n.NamespaceURI == ns
}

// IsW reports whether n is a WordprocessingML element with the given local name.
func IsW(n *xmlquery.Node, local string) bool {
	return Is(n, NSW, local)
}

// QName returns the prefixed name of an element, for messages.
func QName(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	prefix := n.Prefix
	if prefix == "" {
		prefix = Prefixes[n.NamespaceURI]
	}
	if prefix == "" {
		return n.Data
	}
	return prefix + ":" + n.Data
}

// Children returns the element children of n.
func Children(n *xmlquery.Node) []*xmlquery.Node {
	if n == nil {
		return nil
	}
	var children []*xmlquery.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			children = append(children, child)
		}
	}
	return children
}

// Child returns the first element child with the given name, or nil.
func Child(n *xmlquery.Node, ns, local string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if Is(child, ns, local) {
			return child
		}
	}
	return nil
}

// attrMatches handles both parsed attributes, whose NamespaceURI carries the
// resolved namespace, and attributes built without one.
func attrMatches(a xmlquery.Attr, ns, local string) bool {
	if a.Name.Local != local {
		return false
	}
	if a.NamespaceURI != "" {
		return a.NamespaceURI == ns
	}
	if ns == "" {
		return a.Name.Space == ""
	}
	return a.Name.Space == Prefixes[ns]
}

// Attr returns the value of the attribute ns:local.
func Attr(n *xmlquery.Node, ns, local string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if attrMatches(a, ns, local) {
			return a.Value, true
		}
	}
	return "", false
}

// AttrW returns the value of the w:local attribute or "".
func AttrW(n *xmlquery.Node, local string) string {
	v, _ := Attr(n, NSW, local)
	return v
}

// SetAttr sets or creates the attribute ns:local.
func SetAttr(n *xmlquery.Node, ns, local, value string) {
	for i, a := range n.Attr {
		if attrMatches(a, ns, local) {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xmlquery.Attr{
		Name:         xml.Name{Space: Prefixes[ns], Local: local},
		Value:        value,
		NamespaceURI: ns,
	})
}

// SetAttrW sets a w:local attribute.
func SetAttrW(n *xmlquery.Node, local, value string) {
	SetAttr(n, NSW, local, value)
}

// RemoveAttr removes the attribute ns:local if present.
func RemoveAttr(n *xmlquery.Node, ns, local string) {
	for i, a := range n.Attr {
		if attrMatches(a, ns, local) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// IsNamespaceDecl reports whether a is an xmlns or xmlns:* declaration.
func IsNamespaceDecl(a xmlquery.Attr) bool {
	return a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns")
}

// DeclareNamespace adds xmlns:prefix to n unless a declaration for the
// prefix already exists.
func DeclareNamespace(n *xmlquery.Node, prefix, uri string) {
	for _, a := range n.Attr {
		if a.Name.Space == "xmlns" && a.Name.Local == prefix {
			return
		}
	}
	n.Attr = append(n.Attr, xmlquery.Attr{
		Name:         xml.Name{Space: "xmlns", Local: prefix},
		Value:        uri,
		NamespaceURI: "xmlns",
	})
}

// NewElement creates a detached element in the given namespace.
func NewElement(ns, local string) *xmlquery.Node {
	return &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         local,
		Prefix:       Prefixes[ns],
		NamespaceURI: ns,
	}
}

// NewW creates a detached WordprocessingML element.
func NewW(local string) *xmlquery.Node {
	return NewElement(NSW, local)
}

// NewText creates a detached text node.
func NewText(s string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.TextNode, Data: s}
}

// Append adds child as the last child of parent.
func Append(parent, child *xmlquery.Node) {
	xmlquery.AddChild(parent, child)
}

// Prepend adds child as the first child of parent.
func Prepend(parent, child *xmlquery.Node) {
	if parent.FirstChild == nil {
		xmlquery.AddChild(parent, child)
		return
	}
	first := parent.FirstChild
	child.Parent = parent
	child.PrevSibling = nil
	child.NextSibling = first
	first.PrevSibling = child
	parent.FirstChild = child
}

// InsertBefore inserts child immediately before ref.
func InsertBefore(ref, child *xmlquery.Node) {
	if ref.PrevSibling == nil {
		Prepend(ref.Parent, child)
		return
	}
	xmlquery.AddImmediateSibling(ref.PrevSibling, child)
}

// Remove detaches n from its tree.
func Remove(n *xmlquery.Node) {
	xmlquery.RemoveFromTree(n)
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *xmlquery.Node) {
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		child.Parent, child.PrevSibling, child.NextSibling = nil, nil, nil
		child = next
	}
	n.FirstChild = nil
	n.LastChild = nil
}

// ShallowClone copies an element with its attributes but no children.
func ShallowClone(n *xmlquery.Node) *xmlquery.Node {
	c := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]xmlquery.Attr, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	if n.ProcInst != nil {
		pi := *n.ProcInst
		c.ProcInst = &pi
	}
	return c
}

// Clone deep-copies a subtree. The copy is detached.
func Clone(n *xmlquery.Node) *xmlquery.Node {
	if n == nil {
		return nil
	}
	c := ShallowClone(n)
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		xmlquery.AddChild(c, Clone(child))
	}
	return c
}

// Text returns the concatenated text content of n.
func Text(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return n.InnerText()
}

// Walk visits n and its element descendants in document order. Returning
// false from fn skips the children of the visited node.
func Walk(n *xmlquery.Node, fn func(*xmlquery.Node) bool) {
	if n == nil {
		return
	}
	if n.Type == xmlquery.ElementNode && !fn(n) {
		return
	}
	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		Walk(child, fn)
		child = next
	}
}

// Compile compiles a namespace-aware XPath expression. The prefixes w, r,
// m, mc, wp, pic and w14 are bound to their WordprocessingML namespaces.
func Compile(expr string) (*xpath.Expr, error) {
	ns := make(map[string]string, len(Prefixes))
	for uri, prefix := range Prefixes {
		ns[prefix] = uri
	}
	e, err := xpath.CompileWithNS(expr, ns)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	return e, nil
}

// MustCompile is Compile for package-level expressions.
func MustCompile(expr string) *xpath.Expr {
	e, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return e
}

// QueryAll returns every node under top matched by expr.
func QueryAll(top *xmlquery.Node, expr *xpath.Expr) []*xmlquery.Node {
	return xmlquery.QuerySelectorAll(top, expr)
}

// QueryOne returns the first node under top matched by expr, or nil.
func QueryOne(top *xmlquery.Node, expr *xpath.Expr) *xmlquery.Node {
	return xmlquery.QuerySelector(top, expr)
}

// LocalNames renders a list of element names, for diagnostics.
func LocalNames(nodes []*xmlquery.Node) string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = QName(n)
	}
	return strings.Join(names, ",")
}
