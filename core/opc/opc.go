// Package opc reads and writes Open Packaging Convention containers.
//
// A Package holds its parts in memory together with the content-type table
// and every part's relationships. XML parts are parsed lazily into xmlquery
// trees; Save serializes any parsed tree back before zipping.
//
// Inputs may be a plain zip stream or a zip stream compressed with xz.
// Mutating methods take the package mutex so that several writers can copy
// resources into one destination package.
package opc

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/redline/core/errors"
	redxml "github.com/FocuswithJustin/redline/core/xml"
)

// Relationship types used by the comparison engine.
const (
	RelOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	RelImage          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
	RelFootnotes      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/footnotes"
	RelEndnotes       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/endnotes"
	RelHyperlink      = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink"
)

// Content types used by the comparison engine.
const (
	ContentTypeDocument      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	ContentTypeFootnotes     = "application/vnd.openxmlformats-officedocument.wordprocessingml.footnotes+xml"
	ContentTypeEndnotes      = "application/vnd.openxmlformats-officedocument.wordprocessingml.endnotes+xml"
	ContentTypeRelationships = "application/vnd.openxmlformats-package.relationships+xml"
	ContentTypeXML           = "application/xml"
)

const contentTypesName = "[Content_Types].xml"

// TargetModeExternal marks a relationship whose target lies outside the package.
const TargetModeExternal = "External"

var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// Relationship is one entry of a part's relationship list.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// IsExternal reports whether the relationship targets a URI outside the package.
func (r *Relationship) IsExternal() bool {
	return r.TargetMode == TargetModeExternal
}

type relationshipsXML struct {
	XMLName       xml.Name        `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Relationships []*Relationship `xml:"Relationship"`
}

type contentTypesXML struct {
	XMLName   xml.Name      `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []defaultXML  `xml:"Default"`
	Overrides []overrideXML `xml:"Override"`
}

type defaultXML struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

type overrideXML struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// Part is a named byte stream inside the package.
type Part struct {
	Name string
	Data []byte
	doc  *xmlquery.Node
}

type relationshipSet struct {
	list []*Relationship
	byID map[string]*Relationship
}

func (s *relationshipSet) add(rel *Relationship) {
	s.list = append(s.list, rel)
	s.byID[rel.ID] = rel
}

// Package is an in-memory OPC container.
type Package struct {
	mu        sync.Mutex
	parts     map[string]*Part
	order     []string
	defaults  map[string]string
	overrides map[string]string
	rels      map[string]*relationshipSet
}

func newPackage() *Package {
	return &Package{
		parts:     make(map[string]*Part),
		defaults:  make(map[string]string),
		overrides: make(map[string]string),
		rels:      make(map[string]*relationshipSet),
	}
}

// IsXZ reports whether data starts with the xz stream magic.
func IsXZ(data []byte) bool {
	return bytes.HasPrefix(data, xzMagic)
}

// CompressXZ compresses a package stream with xz.
func CompressXZ(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("xz writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("xz write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("xz close: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressXZ(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xz reader: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("xz read: %w", err)
	}
	return out, nil
}

// Open reads a package from zip bytes, decompressing xz input first.
func Open(data []byte) (*Package, error) {
	if IsXZ(data) {
		raw, err := decompressXZ(data)
		if err != nil {
			return nil, errors.NewFormat("", "cannot decompress package", err)
		}
		data = raw
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.NewFormat("", "not a zip package", err)
	}

	p := newPackage()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.TrimPrefix(f.Name, "/")
		content, err := readZipFile(f)
		if err != nil {
			return nil, errors.NewFormat(name, "cannot read part", err)
		}
		switch {
		case name == contentTypesName:
			if err := p.parseContentTypes(content); err != nil {
				return nil, err
			}
		case strings.HasSuffix(name, ".rels"):
			if err := p.parseRelationships(name, content); err != nil {
				return nil, err
			}
		default:
			p.parts[name] = &Part{Name: name, Data: content}
			p.order = append(p.order, name)
		}
	}
	if _, ok := p.rels[""]; !ok {
		return nil, errors.NewFormat("", "package has no root relationships", nil)
	}
	return p, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (p *Package) parseContentTypes(data []byte) error {
	var ct contentTypesXML
	if err := xml.Unmarshal(data, &ct); err != nil {
		return errors.NewFormat(contentTypesName, "malformed content types", err)
	}
	for _, d := range ct.Defaults {
		p.defaults[strings.ToLower(d.Extension)] = d.ContentType
	}
	for _, o := range ct.Overrides {
		p.overrides[strings.TrimPrefix(o.PartName, "/")] = o.ContentType
	}
	return nil
}

func (p *Package) parseRelationships(name string, data []byte) error {
	var rx relationshipsXML
	if err := xml.Unmarshal(data, &rx); err != nil {
		return errors.NewFormat(name, "malformed relationships", err)
	}
	set := &relationshipSet{byID: make(map[string]*Relationship)}
	for _, rel := range rx.Relationships {
		set.add(rel)
	}
	p.rels[relsSource(name)] = set
	return nil
}

// relsSource maps "word/_rels/document.xml.rels" to "word/document.xml" and
// "_rels/.rels" to the package root "".
func relsSource(relsName string) string {
	dir, file := path.Split(relsName)
	dir = strings.TrimSuffix(strings.TrimSuffix(dir, "/"), "_rels")
	file = strings.TrimSuffix(file, ".rels")
	return strings.TrimPrefix(path.Join(dir, file), "/")
}

// RelsName returns the relationships part name for a source part.
func RelsName(source string) string {
	if source == "" {
		return "_rels/.rels"
	}
	dir, file := path.Split(source)
	return dir + "_rels/" + file + ".rels"
}

// ResolveTarget resolves a relationship target against its source part.
func ResolveTarget(source, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return strings.TrimPrefix(path.Join(path.Dir(source), target), "/")
}

// relativeTarget expresses a part name relative to the source part.
func relativeTarget(source, partName string) string {
	dir := path.Dir(source)
	if dir == "." || dir == "" {
		return partName
	}
	if strings.HasPrefix(partName, dir+"/") {
		return strings.TrimPrefix(partName, dir+"/")
	}
	return "/" + partName
}

// New creates an empty package with the standard default content types.
func New() *Package {
	p := newPackage()
	p.defaults["rels"] = ContentTypeRelationships
	p.defaults["xml"] = ContentTypeXML
	p.rels[""] = &relationshipSet{byID: make(map[string]*Relationship)}
	return p
}

// NewDocument creates a minimal wordprocessing package around the given
// main document XML.
func NewDocument(documentXML []byte) *Package {
	p := New()
	p.AddPart("word/document.xml", ContentTypeDocument, documentXML)
	p.AddRelationshipWithID("", "rId1", RelOfficeDocument, "word/document.xml", "")
	return p
}

// MainDocumentPart returns the name of the main document part.
func (p *Package) MainDocumentPart() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if set, ok := p.rels[""]; ok {
		for _, rel := range set.list {
			if rel.Type == RelOfficeDocument {
				name := ResolveTarget("", rel.Target)
				if _, ok := p.parts[name]; !ok {
					return "", errors.NewFormat(name, "main document part is missing", nil)
				}
				return name, nil
			}
		}
	}
	return "", errors.NewFormat("", "package has no main document relationship", nil)
}

// Part returns a part by name.
func (p *Package) Part(name string) (*Part, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	part, ok := p.parts[name]
	return part, ok
}

// Has reports whether the package contains the named part.
func (p *Package) Has(name string) bool {
	_, ok := p.Part(name)
	return ok
}

// PartNames returns the part names in package order.
func (p *Package) PartNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.order))
	copy(names, p.order)
	return names
}

// Data returns a part's bytes. A parsed tree is serialized first so the
// result reflects in-memory edits.
func (p *Package) Data(name string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	part, ok := p.parts[name]
	if !ok {
		return nil, errors.NewFormat(name, "part is missing", errors.NewNotFound("part", name))
	}
	if part.doc != nil {
		return redxml.Serialize(part.doc), nil
	}
	return part.Data, nil
}

// XML returns the parsed tree of an XML part. The tree is cached; edits to
// it are written back by Save.
func (p *Package) XML(name string) (*xmlquery.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	part, ok := p.parts[name]
	if !ok {
		return nil, errors.NewFormat(name, "part is missing", errors.NewNotFound("part", name))
	}
	if part.doc == nil {
		doc, err := redxml.Parse(part.Data)
		if err != nil {
			return nil, errors.NewFormat(name, "malformed XML", err)
		}
		part.doc = doc
	}
	return part.doc, nil
}

// IsXMLPart reports whether a part's content type is an XML type.
func (p *Package) IsXMLPart(name string) bool {
	ct := p.ContentType(name)
	return strings.HasSuffix(ct, "+xml") || strings.HasSuffix(ct, "/xml")
}

// ContentType returns the content type of a part.
func (p *Package) ContentType(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contentTypeLocked(name)
}

func (p *Package) contentTypeLocked(name string) string {
	if ct, ok := p.overrides[name]; ok {
		return ct
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	return p.defaults[ext]
}

// Relationships returns the relationships of a source part ("" for the package).
func (p *Package) Relationships(source string) []*Relationship {
	p.mu.Lock()
	defer p.mu.Unlock()
	set, ok := p.rels[source]
	if !ok {
		return nil
	}
	out := make([]*Relationship, len(set.list))
	copy(out, set.list)
	return out
}

// Relationship returns the relationship with the given id from a source part.
func (p *Package) Relationship(source, id string) (*Relationship, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if set, ok := p.rels[source]; ok {
		if rel, ok := set.byID[id]; ok {
			return rel, nil
		}
	}
	return nil, errors.NewFormat(source, fmt.Sprintf("relationship %q is missing", id), errors.NewNotFound("relationship", id))
}

// RelatedPart returns the first part related to source with the given type.
func (p *Package) RelatedPart(source, relType string) (string, bool) {
	for _, rel := range p.Relationships(source) {
		if rel.Type == relType && !rel.IsExternal() {
			return ResolveTarget(source, rel.Target), true
		}
	}
	return "", false
}

// AddPart adds or replaces a part. An empty content type falls back to the
// extension default.
func (p *Package) AddPart(name, contentType string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addPartLocked(name, contentType, data)
}

func (p *Package) addPartLocked(name, contentType string, data []byte) {
	if existing, ok := p.parts[name]; ok {
		existing.Data = data
		existing.doc = nil
	} else {
		p.parts[name] = &Part{Name: name, Data: data}
		p.order = append(p.order, name)
	}
	if contentType == "" {
		return
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	if ext != "" && p.defaults[ext] == "" {
		p.defaults[ext] = contentType
		return
	}
	if p.contentTypeLocked(name) != contentType {
		p.overrides[name] = contentType
	}
}

// NewPartName returns a fresh, unused part name in dir with the given extension.
func (p *Package) NewPartName(dir, ext string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		name := path.Join(dir, strings.ReplaceAll(uuid.NewString(), "-", "")+ext)
		if _, taken := p.parts[name]; !taken {
			return name
		}
	}
}

// NewRelationshipID returns a relationship id unused by source.
func (p *Package) NewRelationshipID(source string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.newRelationshipIDLocked(source)
}

func (p *Package) newRelationshipIDLocked(source string) string {
	set := p.rels[source]
	for {
		id := "R" + strings.ReplaceAll(uuid.NewString(), "-", "")
		if set == nil || set.byID[id] == nil {
			return id
		}
	}
}

// AddRelationship adds a relationship from source to a part name or, for
// external relationships, to a URI. It returns the fresh relationship id.
func (p *Package) AddRelationship(source, relType, target, targetMode string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.newRelationshipIDLocked(source)
	p.addRelationshipLocked(source, id, relType, target, targetMode)
	return id
}

// AddRelationshipWithID adds a relationship keeping a caller-chosen id.
// Internal targets are part names and are stored relative to source.
func (p *Package) AddRelationshipWithID(source, id, relType, target, targetMode string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addRelationshipLocked(source, id, relType, target, targetMode)
}

func (p *Package) addRelationshipLocked(source, id, relType, target, targetMode string) {
	set, ok := p.rels[source]
	if !ok {
		set = &relationshipSet{byID: make(map[string]*Relationship)}
		p.rels[source] = set
	}
	if targetMode != TargetModeExternal {
		target = relativeTarget(source, target)
	}
	set.add(&Relationship{ID: id, Type: relType, Target: target, TargetMode: targetMode})
}

// Clone returns an independent deep copy of the package. Parsed trees are
// serialized into the copy's parts.
func (p *Package) Clone() *Package {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := newPackage()
	for _, name := range p.order {
		part := p.parts[name]
		var data []byte
		if part.doc != nil {
			data = redxml.Serialize(part.doc)
		} else {
			data = make([]byte, len(part.Data))
			copy(data, part.Data)
		}
		c.parts[name] = &Part{Name: name, Data: data}
		c.order = append(c.order, name)
	}
	for k, v := range p.defaults {
		c.defaults[k] = v
	}
	for k, v := range p.overrides {
		c.overrides[k] = v
	}
	for source, set := range p.rels {
		cs := &relationshipSet{byID: make(map[string]*Relationship, len(set.list))}
		for _, rel := range set.list {
			r := *rel
			cs.add(&r)
		}
		c.rels[source] = cs
	}
	return c
}

// Save serializes the package to zip bytes. The content-type table is
// written first, then parts in package order, then relationship parts.
func (p *Package) Save() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	ct, err := p.marshalContentTypes()
	if err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, contentTypesName, ct); err != nil {
		return nil, err
	}

	for _, name := range p.order {
		part := p.parts[name]
		data := part.Data
		if part.doc != nil {
			data = redxml.Serialize(part.doc)
		}
		if err := writeZipEntry(zw, name, data); err != nil {
			return nil, err
		}
	}

	sources := make([]string, 0, len(p.rels))
	for source := range p.rels {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	for _, source := range sources {
		set := p.rels[source]
		if len(set.list) == 0 {
			continue
		}
		data, err := xml.Marshal(relationshipsXML{Relationships: set.list})
		if err != nil {
			return nil, errors.Wrapf(err, "marshal relationships of %q", source)
		}
		if err := writeZipEntry(zw, RelsName(source), append([]byte(xml.Header), data...)); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "close zip")
	}
	return buf.Bytes(), nil
}

func (p *Package) marshalContentTypes() ([]byte, error) {
	var ct contentTypesXML
	exts := make([]string, 0, len(p.defaults))
	for ext := range p.defaults {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		ct.Defaults = append(ct.Defaults, defaultXML{Extension: ext, ContentType: p.defaults[ext]})
	}
	names := make([]string, 0, len(p.overrides))
	for name := range p.overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ct.Overrides = append(ct.Overrides, overrideXML{PartName: "/" + name, ContentType: p.overrides[name]})
	}
	data, err := xml.Marshal(ct)
	if err != nil {
		return nil, errors.Wrap(err, "marshal content types")
	}
	return append([]byte(xml.Header), data...), nil
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return errors.Wrapf(err, "create %s", name)
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	return nil
}
