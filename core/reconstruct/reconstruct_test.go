package reconstruct

import (
	"bytes"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"
	"github.com/google/go-cmp/cmp"

	"github.com/FocuswithJustin/redline/core/correlate"
	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/hash"
	"github.com/FocuswithJustin/redline/core/opc"
	"github.com/FocuswithJustin/redline/core/unit"
	redxml "github.com/FocuswithJustin/redline/core/xml"
)

const (
	testAuthor = "Reviewer"
	testDate   = "2026-01-02T03:04:05Z"
	mainPart   = "word/document.xml"
)

func testPackage(body string) *opc.Package {
	return opc.NewDocument([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"` +
		` xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"` +
		` xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"` +
		` xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"` +
		` xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
		`<w:body>` + body + `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/></w:sectPr></w:body></w:document>`))
}

func para(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

// reconstruct compares two packages and returns the destination package.
func reconstruct(t *testing.T, before, after *opc.Package) (*opc.Package, *Stats) {
	t.Helper()
	left, err := unit.Decompose(before, unit.Before, hash.SHA1, unit.DefaultSeparators)
	if err != nil {
		t.Fatalf("Decompose(before) error = %v", err)
	}
	right, err := unit.Decompose(after, unit.After, hash.SHA1, unit.DefaultSeparators)
	if err != nil {
		t.Fatalf("Decompose(after) error = %v", err)
	}
	seqs := correlate.New(correlate.DefaultThreshold, nil).Correlate(left, right)

	dest := after.Clone()
	rc, err := New(dest, Options{Author: testAuthor, Date: testDate})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stats, err := rc.Reconstruct(seqs)
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	return dest, stats
}

func document(t *testing.T, pkg *opc.Package) *xmlquery.Node {
	t.Helper()
	doc, err := pkg.XML(mainPart)
	if err != nil {
		t.Fatalf("XML() error = %v", err)
	}
	return doc
}

func findAll(n *xmlquery.Node, local string) []*xmlquery.Node {
	var out []*xmlquery.Node
	redxml.Walk(n, func(e *xmlquery.Node) bool {
		if e.Data == local {
			out = append(out, e)
		}
		return true
	})
	return out
}

func insideW(n *xmlquery.Node, local string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if redxml.IsW(p, local) {
			return true
		}
	}
	return false
}

// texts returns the content of every w:t and w:delText in document order.
func texts(n *xmlquery.Node) (visible, deleted string) {
	var v, d strings.Builder
	redxml.Walk(n, func(e *xmlquery.Node) bool {
		switch {
		case redxml.IsW(e, "t"):
			v.WriteString(e.InnerText())
		case redxml.IsW(e, "delText"):
			d.WriteString(e.InnerText())
		}
		return true
	})
	return v.String(), d.String()
}

func TestInsertedWord(t *testing.T) {
	dest, stats := reconstruct(t, testPackage(para("The quick fox jumps")), testPackage(para("The quick brown fox jumps")))
	doc := document(t, dest)

	ins := findAll(doc, "ins")
	if len(ins) != 1 {
		t.Fatalf("found %d w:ins, want 1", len(ins))
	}
	if got := redxml.Text(ins[0]); got != "brown " {
		t.Errorf("inserted text = %q, want %q", got, "brown ")
	}
	if got := redxml.AttrW(ins[0], "author"); got != testAuthor {
		t.Errorf("author = %q, want %q", got, testAuthor)
	}
	if got := redxml.AttrW(ins[0], "date"); got != testDate {
		t.Errorf("date = %q, want %q", got, testDate)
	}
	if got := redxml.AttrW(ins[0], "id"); got != "1" {
		t.Errorf("id = %q, want 1", got)
	}
	if len(findAll(doc, "del")) != 0 {
		t.Error("unexpected w:del")
	}
	if visible, _ := texts(doc); visible != "The quick brown fox jumps" {
		t.Errorf("visible text = %q", visible)
	}
	if stats.Inserted != 6 || stats.Deleted != 0 || stats.Revisions != 1 {
		t.Errorf("stats = %+v", *stats)
	}
	if len(findAll(doc, "sectPr")) != 1 {
		t.Error("final section properties were not kept")
	}
}

func TestRevisionsWrapWholeRuns(t *testing.T) {
	tests := []struct {
		name   string
		before string
		after  string
	}{
		{"inserted word", para("The quick fox jumps"), para("The quick brown fox jumps")},
		{"deleted word", para("The quick brown fox"), para("The quick fox")},
		{"replaced word", para("one two three"), para("one 2 three")},
		{"inserted paragraph", para("a"), para("a") + para("b c")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest, stats := reconstruct(t, testPackage(tt.before), testPackage(tt.after))
			doc := document(t, dest)
			revisions := 0
			redxml.Walk(doc, func(e *xmlquery.Node) bool {
				if !redxml.IsW(e, "ins") && !redxml.IsW(e, "del") {
					return true
				}
				revisions++
				if insideW(e, "r") {
					t.Errorf("w:%s nested inside w:r", e.Data)
				}
				if redxml.IsW(e.Parent, "rPr") || redxml.IsW(e.Parent, "trPr") {
					return true
				}
				for c := e.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == xmlquery.ElementNode && !redxml.IsW(c, "r") {
						t.Errorf("w:%s holds w:%s, want only runs", e.Data, c.Data)
					}
				}
				return true
			})
			if revisions != stats.Revisions {
				t.Errorf("found %d revision elements, Revisions = %d", revisions, stats.Revisions)
			}
		})
	}
}

func TestDeletedWord(t *testing.T) {
	dest, _ := reconstruct(t, testPackage(para("The quick brown fox")), testPackage(para("The quick fox")))
	doc := document(t, dest)

	visible, deleted := texts(doc)
	if visible != "The quick fox" {
		t.Errorf("visible text = %q, want %q", visible, "The quick fox")
	}
	if deleted != "brown " {
		t.Errorf("deleted text = %q, want %q", deleted, "brown ")
	}
	for _, d := range findAll(doc, "delText") {
		if !insideW(d, "del") {
			t.Error("w:delText outside w:del")
		}
	}
	for _, tx := range findAll(doc, "t") {
		if insideW(tx, "del") {
			t.Error("w:t inside w:del")
		}
	}
}

func TestDeletedParagraphMark(t *testing.T) {
	dest, _ := reconstruct(t, testPackage(para("a")+para("b")), testPackage(para("a")))
	doc := document(t, dest)

	paras := findAll(doc, "p")
	if len(paras) != 2 {
		t.Fatalf("found %d paragraphs, want 2", len(paras))
	}
	if redxml.Child(redxml.Child(redxml.Child(paras[0], redxml.NSW, "pPr"), redxml.NSW, "rPr"), redxml.NSW, "del") != nil {
		t.Error("kept paragraph has a deleted mark")
	}
	marker := redxml.Child(redxml.Child(redxml.Child(paras[1], redxml.NSW, "pPr"), redxml.NSW, "rPr"), redxml.NSW, "del")
	if marker == nil {
		t.Fatal("deleted paragraph has no w:pPr/w:rPr/w:del")
	}
	if redxml.AttrW(marker, "author") != testAuthor {
		t.Errorf("marker author = %q", redxml.AttrW(marker, "author"))
	}
	if _, deleted := texts(paras[1]); deleted != "b" {
		t.Errorf("deleted text = %q, want %q", deleted, "b")
	}
}

func TestInsertedRowMarker(t *testing.T) {
	row := func(s string) string { return `<w:tr><w:tc>` + para(s) + `</w:tc></w:tr>` }
	table := func(rows ...string) string {
		return `<w:tbl><w:tblPr/><w:tblGrid><w:gridCol w:w="100"/></w:tblGrid>` + strings.Join(rows, "") + `</w:tbl>`
	}
	before := testPackage(table(row("first"), row("last")))
	after := testPackage(table(row("first"), row("new"), row("last")))
	dest, _ := reconstruct(t, before, after)
	doc := document(t, dest)

	rows := findAll(doc, "tr")
	if len(rows) != 3 {
		t.Fatalf("found %d rows, want 3", len(rows))
	}
	for i, tr := range rows {
		marker := redxml.Child(redxml.Child(tr, redxml.NSW, "trPr"), redxml.NSW, "ins")
		if (marker != nil) != (i == 1) {
			t.Errorf("row %d has insertion marker = %v", i, marker != nil)
		}
	}
	if visible, _ := texts(rows[1]); visible != "new" {
		t.Errorf("inserted row text = %q", visible)
	}
	if len(findAll(doc, "tbl")) != 1 {
		t.Error("rows were not kept in one table")
	}
}

func TestDenseRevisionIDs(t *testing.T) {
	dest, stats := reconstruct(t, testPackage(para("one two three")), testPackage(para("one 2 three")))
	doc := document(t, dest)

	var ids, names []string
	redxml.Walk(doc, func(e *xmlquery.Node) bool {
		if isRevision(e) {
			ids = append(ids, redxml.AttrW(e, "id"))
			names = append(names, e.Data)
		}
		return true
	})
	if diff := cmp.Diff([]string{"del", "ins"}, names); diff != "" {
		t.Errorf("revision elements mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "2"}, ids); diff != "" {
		t.Errorf("revision ids mismatch (-want +got):\n%s", diff)
	}
	if stats.Revisions != 2 {
		t.Errorf("Revisions = %d, want 2", stats.Revisions)
	}
}

func TestImageCarryOver(t *testing.T) {
	image := []byte("\x89PNG fake image bytes")
	drawing := `<w:p><w:r><w:drawing><wp:inline><wp:docPr id="7" name="Picture"/><a:graphic><a:graphicData>` +
		`<pic:pic><pic:blipFill><a:blip r:embed="rId5"/></pic:blipFill></pic:pic>` +
		`</a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`
	before := testPackage(para("keep") + drawing)
	before.AddPart("word/media/image1.png", "image/png", image)
	before.AddRelationshipWithID(mainPart, "rId5", opc.RelImage, "word/media/image1.png", "")
	after := testPackage(para("keep"))

	dest, _ := reconstruct(t, before, after)
	doc := document(t, dest)

	blips := findAll(doc, "blip")
	if len(blips) != 1 {
		t.Fatalf("found %d blips, want 1", len(blips))
	}
	if !insideW(blips[0], "del") {
		t.Error("carried drawing is not inside w:del")
	}
	id, _ := redxml.Attr(blips[0], redxml.NSR, "embed")
	rel, err := dest.Relationship(mainPart, id)
	if err != nil {
		t.Fatalf("Relationship(%q) error = %v", id, err)
	}
	if rel.Type != opc.RelImage {
		t.Errorf("relationship type = %q", rel.Type)
	}
	name := opc.ResolveTarget(mainPart, rel.Target)
	data, err := dest.Data(name)
	if err != nil {
		t.Fatalf("Data(%q) error = %v", name, err)
	}
	if !bytes.Equal(data, image) {
		t.Error("copied image bytes differ")
	}
	if !strings.HasPrefix(name, "word/media/") || !strings.HasSuffix(name, ".png") {
		t.Errorf("copied part name = %q", name)
	}

	docPr := findAll(doc, "docPr")
	if v, _ := redxml.Attr(docPr[0], "", "id"); v != "1" {
		t.Errorf("docPr id = %q, want 1", v)
	}

	// The destination must still open after saving.
	saved, err := dest.Save()
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := opc.Open(saved); err != nil {
		t.Fatalf("Open(saved) error = %v", err)
	}
}

func TestFootnoteCarryOver(t *testing.T) {
	before := testPackage(para("keep") +
		`<w:p><w:r><w:t>x</w:t></w:r><w:r><w:footnoteReference w:id="2"/></w:r></w:p>`)
	before.AddPart("word/footnotes.xml", opc.ContentTypeFootnotes, []byte(
		`<w:footnotes xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">`+
			`<w:footnote w:id="2"><w:p><w:r><w:t>note text</w:t></w:r></w:p></w:footnote></w:footnotes>`))
	before.AddRelationshipWithID(mainPart, "rId9", opc.RelFootnotes, "word/footnotes.xml", "")
	after := testPackage(para("keep"))

	dest, _ := reconstruct(t, before, after)

	notesPart, ok := dest.RelatedPart(mainPart, opc.RelFootnotes)
	if !ok {
		t.Fatal("destination has no footnotes part")
	}
	notes, err := dest.XML(notesPart)
	if err != nil {
		t.Fatalf("XML(%q) error = %v", notesPart, err)
	}
	footnotes := findAll(notes, "footnote")
	if len(footnotes) != 1 {
		t.Fatalf("found %d footnotes, want 1", len(footnotes))
	}
	if got := redxml.Text(footnotes[0]); got != "note text" {
		t.Errorf("note text = %q", got)
	}
	refs := findAll(document(t, dest), "footnoteReference")
	if len(refs) != 1 {
		t.Fatalf("found %d references, want 1", len(refs))
	}
	if got, want := redxml.AttrW(refs[0], "id"), redxml.AttrW(footnotes[0], "id"); got != want {
		t.Errorf("reference id = %q, note id = %q", got, want)
	}
}

func TestGeneratorStamp(t *testing.T) {
	dest, _ := reconstruct(t, testPackage(para("same")), testPackage(para("same")))
	root := redxml.Root(document(t, dest))
	if v, _ := redxml.Attr(root, redxml.NSRedline, "generator"); v != Generator {
		t.Errorf("generator = %q, want %q", v, Generator)
	}
	ignorable, _ := redxml.Attr(root, redxml.NSMC, "Ignorable")
	if !strings.Contains(ignorable, "rl") {
		t.Errorf("mc:Ignorable = %q, want rl listed", ignorable)
	}
	if len(findAll(root, "ins"))+len(findAll(root, "del")) != 0 {
		t.Error("identical documents produced revisions")
	}
}

func TestUnknownSequencePanics(t *testing.T) {
	rc, err := New(testPackage(para("x")), Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() {
		if _, ok := recover().(*errors.InvariantError); !ok {
			t.Fatal("Unknown sequence should panic with InvariantError")
		}
	}()
	_, _ = rc.Reconstruct([]*correlate.Sequence{{Status: correlate.Unknown}})
}

func TestDeletedFieldInstruction(t *testing.T) {
	field := `<w:p><w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText xml:space="preserve"> PAGE </w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r>` +
		`<w:r><w:t>old</w:t></w:r></w:p>`
	dest, _ := reconstruct(t, testPackage(para("keep")+field), testPackage(para("keep")))
	doc := document(t, dest)

	instr := findAll(doc, "delInstrText")
	if len(instr) != 1 {
		t.Fatalf("found %d w:delInstrText, want 1", len(instr))
	}
	if got := instr[0].InnerText(); got != " PAGE " {
		t.Errorf("deleted instruction = %q, want %q", got, " PAGE ")
	}
	if !insideW(instr[0], "del") {
		t.Error("w:delInstrText is not inside w:del")
	}
	if n := len(findAll(doc, "instrText")); n != 0 {
		t.Errorf("found %d w:instrText, want 0", n)
	}
	if visible, deleted := texts(doc); visible != "keep" || deleted != "old" {
		t.Errorf("visible = %q, deleted = %q; want keep and old", visible, deleted)
	}
}
