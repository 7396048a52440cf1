package xml

import (
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/redline/core/errors"
)

const sampleDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<x:document xmlns:x="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:rel="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><x:body><x:p x:rsidR="00A1"><x:r><x:t xml:space="preserve">Hello </x:t></x:r><x:r><x:drawing rel:embed="rId4"/></x:r></x:p></x:body></x:document>`

// TestParseInvalidXML verifies error handling for malformed XML.
func TestParseInvalidXML(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"unclosed tag", "<root><element></root>"},
		{"mismatched tags", "<root></other>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.xml))
			var pe *errors.ParseError
			if !errors.As(err, &pe) || pe.Format != "XML" {
				t.Errorf("Parse() error = %v, want XML ParseError", err)
			}
		})
	}
}

// TestNamespaceMatching verifies elements and attributes are matched by URI,
// not by the prefix the document happens to use.
func TestNamespaceMatching(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root := Root(doc)
	if !IsW(root, "document") {
		t.Fatalf("Root = %s, want w:document", QName(root))
	}
	body := Child(root, NSW, "body")
	p := Child(body, NSW, "p")
	if p == nil {
		t.Fatal("paragraph not found")
	}
	if got := AttrW(p, "rsidR"); got != "00A1" {
		t.Errorf("AttrW(rsidR) = %q, want %q", got, "00A1")
	}

	drawings := QueryAll(doc, MustCompile("//w:drawing"))
	if len(drawings) != 1 {
		t.Fatalf("QueryAll(//w:drawing) = %d nodes, want 1", len(drawings))
	}
	if v, ok := Attr(drawings[0], NSR, "embed"); !ok || v != "rId4" {
		t.Errorf("Attr(r:embed) = %q, %v", v, ok)
	}
	tnode := QueryOne(doc, MustCompile("//w:t"))
	if v, ok := Attr(tnode, NSXML, "space"); !ok || v != "preserve" {
		t.Errorf("Attr(xml:space) = %q, %v", v, ok)
	}
}

// TestCloneIsDeep verifies clones share no nodes with the source.
func TestCloneIsDeep(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	p := QueryOne(doc, MustCompile("//w:p"))
	c := Clone(p)
	if c.Parent != nil {
		t.Error("clone should be detached")
	}
	SetAttrW(c, "rsidR", "FFFF")
	if AttrW(p, "rsidR") != "00A1" {
		t.Error("attribute change on clone leaked into source")
	}
	Remove(c.FirstChild)
	if len(Children(p)) != 2 {
		t.Error("child removal on clone leaked into source")
	}
	if Text(c) != "" {
		t.Errorf("Text(clone) = %q, want empty after removing text run", Text(c))
	}
}

// TestBuildAndSerialize verifies new nodes serialize with conventional prefixes.
func TestBuildAndSerialize(t *testing.T) {
	ins := NewW("ins")
	SetAttrW(ins, "id", "1")
	SetAttrW(ins, "author", "redline")
	r := NewW("r")
	tnode := NewW("t")
	SetAttr(tnode, NSXML, "space", "preserve")
	Append(tnode, NewText("a < b"))
	Append(r, tnode)
	Append(ins, r)
	Prepend(ins, NewW("rPr"))

	out := string(Serialize(ins))
	for _, want := range []string{`<w:ins w:id="1" w:author="redline">`, `<w:rPr></w:rPr>`, `xml:space="preserve"`, `a &lt; b`} {
		if !strings.Contains(out, want) {
			t.Errorf("Serialize() = %s, missing %s", out, want)
		}
	}
	if strings.Index(out, "rPr") > strings.Index(out, "<w:r>") {
		t.Errorf("Prepend did not place rPr first: %s", out)
	}
}

// TestInsertBefore verifies sibling insertion at the head and middle of a list.
func TestInsertBefore(t *testing.T) {
	parent := NewW("body")
	a, b := NewW("p"), NewW("tbl")
	Append(parent, a)
	Append(parent, b)
	InsertBefore(a, NewW("sdt"))
	InsertBefore(b, NewW("bookmarkStart"))
	if got := LocalNames(Children(parent)); got != "w:sdt,w:p,w:bookmarkStart,w:tbl" {
		t.Errorf("children = %s", got)
	}
	RemoveChildren(parent)
	if parent.FirstChild != nil || parent.LastChild != nil {
		t.Error("RemoveChildren left children behind")
	}
}

// TestDeclareNamespace verifies declarations are added once.
func TestDeclareNamespace(t *testing.T) {
	root := NewW("document")
	DeclareNamespace(root, "rl", NSRedline)
	DeclareNamespace(root, "rl", NSRedline)
	count := 0
	for _, a := range root.Attr {
		if IsNamespaceDecl(a) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("namespace declarations = %d, want 1", count)
	}
}

// TestWalkSkipsSubtree verifies returning false prunes descent.
func TestWalkSkipsSubtree(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	var seen []string
	Walk(doc, func(n *xmlquery.Node) bool {
		seen = append(seen, n.Data)
		return n.Data != "p"
	})
	if got := strings.Join(seen, ","); got != "document,body,p" {
		t.Errorf("Walk visited %s", got)
	}
}
