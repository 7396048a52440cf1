package opc

import (
	"bytes"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/redline/core/errors"
	redxml "github.com/FocuswithJustin/redline/core/xml"
)

const minimalDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Hello</w:t></w:r></w:p></w:body></w:document>`

func TestNewDocumentRoundTrip(t *testing.T) {
	p := NewDocument([]byte(minimalDocument))
	p.AddPart("word/media/image1.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	p.AddRelationshipWithID("word/document.xml", "rId5", RelImage, "word/media/image1.png", "")

	data, err := p.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	q, err := Open(data)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	main, err := q.MainDocumentPart()
	if err != nil {
		t.Fatalf("MainDocumentPart() error = %v", err)
	}
	if main != "word/document.xml" {
		t.Errorf("MainDocumentPart() = %q, want %q", main, "word/document.xml")
	}
	if got := q.ContentType("word/document.xml"); got != ContentTypeDocument {
		t.Errorf("ContentType(document) = %q", got)
	}
	if got := q.ContentType("word/media/image1.png"); got != "image/png" {
		t.Errorf("ContentType(image) = %q", got)
	}

	rel, err := q.Relationship("word/document.xml", "rId5")
	if err != nil {
		t.Fatalf("Relationship() error = %v", err)
	}
	if rel.Target != "media/image1.png" {
		t.Errorf("Target = %q, want relative target", rel.Target)
	}
	if got := ResolveTarget("word/document.xml", rel.Target); got != "word/media/image1.png" {
		t.Errorf("ResolveTarget() = %q", got)
	}
	img, err := q.Data("word/media/image1.png")
	if err != nil {
		t.Fatalf("Data() error = %v", err)
	}
	if !bytes.Equal(img, []byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("image bytes = %v", img)
	}
}

func TestOpenXZ(t *testing.T) {
	raw, err := NewDocument([]byte(minimalDocument)).Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	compressed, err := CompressXZ(raw)
	if err != nil {
		t.Fatalf("CompressXZ() error = %v", err)
	}
	if !IsXZ(compressed) {
		t.Fatal("IsXZ() = false for xz stream")
	}
	if IsXZ(raw) {
		t.Fatal("IsXZ() = true for zip stream")
	}
	p, err := Open(compressed)
	if err != nil {
		t.Fatalf("Open(xz) error = %v", err)
	}
	if !p.Has("word/document.xml") {
		t.Error("document part missing after xz round trip")
	}
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not zip", []byte("plain text")},
		{"bad xz", append([]byte{0xFD, '7', 'z', 'X', 'Z', 0x00}, 1, 2, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.data)
			if !errors.Is(err, errors.ErrInvalidFormat) {
				t.Errorf("Open() error = %v, want ErrInvalidFormat", err)
			}
		})
	}
}

func TestMissingRelationship(t *testing.T) {
	p := NewDocument([]byte(minimalDocument))
	_, err := p.Relationship("word/document.xml", "rId99")
	var fe *errors.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("Relationship() error = %v, want FormatError", err)
	}
	if !strings.Contains(fe.Message, "rId99") {
		t.Errorf("Message = %q, want relationship id", fe.Message)
	}
	var nf *errors.NotFoundError
	if !errors.As(err, &nf) || nf.Resource != "relationship" || nf.ID != "rId99" {
		t.Errorf("Relationship() error = %v, want NotFoundError for rId99", err)
	}
}

func TestPartErrors(t *testing.T) {
	p := NewDocument([]byte(minimalDocument))
	p.AddPart("word/broken.xml", "application/xml", []byte("<w:root><w:open></w:root>"))

	if _, err := p.Data("word/none.xml"); !errors.Is(err, errors.ErrNotFound) || !errors.Is(err, errors.ErrInvalidFormat) {
		t.Errorf("Data() error = %v, want missing part", err)
	}
	if _, err := p.XML("word/none.xml"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("XML() error = %v, want missing part", err)
	}

	_, err := p.XML("word/broken.xml")
	var pe *errors.ParseError
	if !errors.As(err, &pe) || pe.Format != "XML" {
		t.Errorf("XML(broken) error = %v, want XML ParseError", err)
	}
	if !errors.Is(err, errors.ErrInvalidFormat) {
		t.Errorf("XML(broken) error = %v, want ErrInvalidFormat", err)
	}
}

func TestRelsNames(t *testing.T) {
	tests := []struct {
		source string
		rels   string
	}{
		{"", "_rels/.rels"},
		{"word/document.xml", "word/_rels/document.xml.rels"},
		{"word/charts/chart1.xml", "word/charts/_rels/chart1.xml.rels"},
	}
	for _, tt := range tests {
		if got := RelsName(tt.source); got != tt.rels {
			t.Errorf("RelsName(%q) = %q, want %q", tt.source, got, tt.rels)
		}
		if got := relsSource(tt.rels); got != tt.source {
			t.Errorf("relsSource(%q) = %q, want %q", tt.rels, got, tt.source)
		}
	}
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		source, target, want string
	}{
		{"word/document.xml", "media/a.png", "word/media/a.png"},
		{"word/document.xml", "../customXml/item1.xml", "customXml/item1.xml"},
		{"word/document.xml", "/word/media/b.png", "word/media/b.png"},
		{"", "word/document.xml", "word/document.xml"},
	}
	for _, tt := range tests {
		if got := ResolveTarget(tt.source, tt.target); got != tt.want {
			t.Errorf("ResolveTarget(%q, %q) = %q, want %q", tt.source, tt.target, got, tt.want)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p := NewDocument([]byte(minimalDocument))
	c := p.Clone()
	c.AddPart("word/media/x.png", "image/png", []byte("x"))
	c.AddRelationship("word/document.xml", RelImage, "word/media/x.png", "")
	if p.Has("word/media/x.png") {
		t.Error("part added to clone leaked into original")
	}
	if len(p.Relationships("word/document.xml")) != 0 {
		t.Error("relationship added to clone leaked into original")
	}
}

func TestXMLEditsAreSaved(t *testing.T) {
	p := NewDocument([]byte(minimalDocument))
	doc, err := p.XML("word/document.xml")
	if err != nil {
		t.Fatalf("XML() error = %v", err)
	}
	redxml.Walk(doc, func(n *xmlquery.Node) bool {
		if redxml.IsW(n, "t") {
			n.FirstChild.Data = "Goodbye"
		}
		return true
	})
	data, err := p.Data("word/document.xml")
	if err != nil {
		t.Fatalf("Data() error = %v", err)
	}
	if !strings.Contains(string(data), "Goodbye") {
		t.Errorf("edited tree not serialized: %s", data)
	}
}

func TestNewPartNameUnique(t *testing.T) {
	p := New()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		name := p.NewPartName("word/media", ".png")
		if !strings.HasPrefix(name, "word/media/") || !strings.HasSuffix(name, ".png") {
			t.Fatalf("NewPartName() = %q", name)
		}
		if seen[name] {
			t.Fatalf("duplicate part name %q", name)
		}
		seen[name] = true
		p.AddPart(name, "image/png", nil)
	}
	id := p.NewRelationshipID("word/document.xml")
	if !strings.HasPrefix(id, "R") {
		t.Errorf("NewRelationshipID() = %q, want R prefix", id)
	}
}
