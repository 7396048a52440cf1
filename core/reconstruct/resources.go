package reconstruct

import (
	"path"
	"strconv"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/opc"
	"github.com/FocuswithJustin/redline/core/unit"
	redxml "github.com/FocuswithJustin/redline/core/xml"
)

// adoptFrom makes a fresh clone valid in the destination main part. Clones
// of after-side elements already are; before-side clones get their
// relationships and note references carried over.
func (r *Reconstructor) adoptFrom(n *xmlquery.Node, src *unit.Source) error {
	if src == nil || src.Side == unit.After {
		return nil
	}
	return r.adopt(n, src.Package, src.Part, r.part)
}

// adopt rewrites every relationship attribute under n, which was cloned
// from srcPart of pkg, to point at copies owned by destPart.
func (r *Reconstructor) adopt(n *xmlquery.Node, pkg *opc.Package, srcPart, destPart string) error {
	if err := r.declareNamespaces(pkg, srcPart, destPart); err != nil {
		return err
	}
	var err error
	redxml.Walk(n, func(e *xmlquery.Node) bool {
		if err != nil {
			return false
		}
		for i, a := range e.Attr {
			if a.NamespaceURI != redxml.NSR || a.Value == "" {
				continue
			}
			var id string
			if id, err = r.copyRelationship(pkg, srcPart, a.Value, destPart); err != nil {
				return false
			}
			e.Attr[i].Value = id
		}
		if redxml.IsW(e, "footnoteReference") || redxml.IsW(e, "endnoteReference") {
			err = r.copyNote(e, pkg, srcPart, destPart)
			return false
		}
		return true
	})
	return err
}

// copyRelationship copies relationship id of srcPart into destPart and
// returns the new id. Internal targets are copied with copyPart.
func (r *Reconstructor) copyRelationship(pkg *opc.Package, srcPart, id, destPart string) (string, error) {
	key := srcPart + "\x00" + id + "\x00" + destPart
	if newID, ok := r.rels[key]; ok {
		return newID, nil
	}
	rel, err := pkg.Relationship(srcPart, id)
	if err != nil {
		return "", err
	}
	var newID string
	if rel.IsExternal() {
		newID = r.dest.AddRelationship(destPart, rel.Type, rel.Target, opc.TargetModeExternal)
	} else {
		name, err := r.copyPart(pkg, opc.ResolveTarget(srcPart, rel.Target))
		if err != nil {
			return "", err
		}
		newID = r.dest.AddRelationship(destPart, rel.Type, name, "")
	}
	r.log.Debug("copied relationship", "part", srcPart, "id", id, "new_id", newID)
	r.rels[key] = newID
	return newID, nil
}

// copyPart copies a part under a fresh name in the same directory, together
// with everything it references. Relationship ids inside the copy are kept,
// so its content needs no rewriting.
func (r *Reconstructor) copyPart(pkg *opc.Package, name string) (string, error) {
	if copied, ok := r.parts[name]; ok {
		return copied, nil
	}
	data, err := pkg.Data(name)
	if err != nil {
		return "", err
	}
	copied := r.dest.NewPartName(path.Dir(name), path.Ext(name))
	r.parts[name] = copied
	r.dest.AddPart(copied, pkg.ContentType(name), data)
	r.log.Debug("copied part", "part", name, "new_part", copied)

	for _, rel := range pkg.Relationships(name) {
		if rel.IsExternal() {
			r.dest.AddRelationshipWithID(copied, rel.ID, rel.Type, rel.Target, opc.TargetModeExternal)
			continue
		}
		target, err := r.copyPart(pkg, opc.ResolveTarget(name, rel.Target))
		if err != nil {
			return "", err
		}
		r.dest.AddRelationshipWithID(copied, rel.ID, rel.Type, target, "")
	}
	return copied, nil
}

// noteKind describes the footnote or endnote flavour of a reference.
type noteKind struct {
	relType     string
	contentType string
	element     string
	root        string
	defaultPart string
}

var (
	footnotes = noteKind{opc.RelFootnotes, opc.ContentTypeFootnotes, "footnote", "footnotes", "word/footnotes.xml"}
	endnotes  = noteKind{opc.RelEndnotes, opc.ContentTypeEndnotes, "endnote", "endnotes", "word/endnotes.xml"}
)

// copyNote copies the note a before-side reference points at into the
// destination notes part and renumbers the reference.
func (r *Reconstructor) copyNote(ref *xmlquery.Node, pkg *opc.Package, srcPart, destPart string) error {
	kind := footnotes
	if ref.Data == "endnoteReference" {
		kind = endnotes
	}
	id := redxml.AttrW(ref, "id")

	srcNotes, ok := pkg.RelatedPart(srcPart, kind.relType)
	if !ok {
		return errors.NewFormat(srcPart, kind.root+" part is missing", nil)
	}
	key := srcNotes + "\x00" + id
	if newID, ok := r.notes[key]; ok {
		redxml.SetAttrW(ref, "id", newID)
		return nil
	}

	doc, err := pkg.XML(srcNotes)
	if err != nil {
		return err
	}
	var note *xmlquery.Node
	for _, c := range redxml.Children(redxml.Root(doc)) {
		if redxml.IsW(c, kind.element) && redxml.AttrW(c, "id") == id {
			note = c
			break
		}
	}
	if note == nil {
		return errors.NewFormat(srcNotes, kind.element+" "+id+" is missing", nil)
	}

	destNotes, err := r.notesPart(destPart, kind)
	if err != nil {
		return err
	}
	destDoc, err := r.dest.XML(destNotes)
	if err != nil {
		return err
	}
	root := redxml.Root(destDoc)
	newID := strconv.Itoa(nextNoteID(root, kind.element))
	r.notes[key] = newID

	c := redxml.Clone(note)
	redxml.SetAttrW(c, "id", newID)
	if err := r.adopt(c, pkg, srcNotes, destNotes); err != nil {
		return err
	}
	redxml.Append(root, c)
	redxml.SetAttrW(ref, "id", newID)
	r.log.Debug("copied note", "kind", kind.element, "id", id, "new_id", newID)
	return nil
}

// notesPart returns the destination notes part related to destPart,
// creating an empty one when the after document has none.
func (r *Reconstructor) notesPart(destPart string, kind noteKind) (string, error) {
	if name, ok := r.dest.RelatedPart(destPart, kind.relType); ok {
		return name, nil
	}
	name := kind.defaultPart
	if r.dest.Has(name) {
		name = r.dest.NewPartName(path.Dir(name), ".xml")
	}
	r.dest.AddPart(name, kind.contentType, []byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<w:`+kind.root+` xmlns:w="`+redxml.NSW+`"></w:`+kind.root+`>`))
	r.dest.AddRelationship(destPart, kind.relType, name, "")
	r.log.Debug("created notes part", "part", name)
	return name, nil
}

func nextNoteID(root *xmlquery.Node, element string) int {
	next := 1
	for _, c := range redxml.Children(root) {
		if !redxml.IsW(c, element) {
			continue
		}
		if n, err := strconv.Atoi(redxml.AttrW(c, "id")); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}

// declareNamespaces copies the namespace declarations of the source part's
// root onto the destination part's root, once per pair, so cloned elements
// keep resolvable prefixes. Prefixes already declared are left alone.
func (r *Reconstructor) declareNamespaces(pkg *opc.Package, srcPart, destPart string) error {
	key := srcPart + "\x00" + destPart
	if r.namespaces[key] {
		return nil
	}
	r.namespaces[key] = true
	src, err := pkg.XML(srcPart)
	if err != nil {
		return err
	}
	dest, err := r.dest.XML(destPart)
	if err != nil {
		return err
	}
	destRoot := redxml.Root(dest)
	for _, a := range redxml.Root(src).Attr {
		if a.Name.Space == "xmlns" {
			redxml.DeclareNamespace(destRoot, a.Name.Local, a.Value)
		}
	}
	return nil
}
