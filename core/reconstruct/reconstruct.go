// Package reconstruct writes correlated sequences back into a document as
// revision markup.
//
// The sequences are flattened into one atom stream. Atoms of the before
// document are then moved onto the after elements they were matched with,
// every atom joins the paragraph of the mark that follows it, and the
// stream is regrouped into elements cloned from the source templates.
// Inserted and deleted spans are wrapped in w:ins and w:del, paragraph marks
// and whole rows get their own markers, and resources referenced from the
// before document are copied into the destination package.
package reconstruct

import (
	"log/slog"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/redline/core/correlate"
	"github.com/FocuswithJustin/redline/core/opc"
	"github.com/FocuswithJustin/redline/core/unit"
	redxml "github.com/FocuswithJustin/redline/core/xml"
)

// Generator is written to the rl:generator attribute of the output root.
const Generator = "redline"

// Options configures the revision markup.
type Options struct {
	Author string
	Date   string // ISO-8601; empty omits w:date
	Logger *slog.Logger
}

// Stats counts what a reconstruction emitted.
type Stats struct {
	Equal     int // atoms
	Inserted  int // atoms
	Deleted   int // atoms
	Revisions int // w:ins, w:del and marker elements
}

// Reconstructor rebuilds the main document part of one destination package.
// It is used for a single Reconstruct call.
type Reconstructor struct {
	dest   *opc.Package
	part   string
	opts   Options
	log    *slog.Logger
	nextID int
	stats  Stats

	rows map[string]unit.Status // row ancestor id -> whole-row status

	parts      map[string]string // before part -> dest part
	rels       map[string]string // before source part, id, dest part -> dest id
	notes      map[string]string // before notes part, id -> dest note id
	namespaces map[string]bool   // before part, dest part
}

// New creates a Reconstructor writing into dest, which must be a copy of
// the after package.
func New(dest *opc.Package, opts Options) (*Reconstructor, error) {
	part, err := dest.MainDocumentPart()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconstructor{
		dest:       dest,
		part:       part,
		opts:       opts,
		log:        logger,
		rows:       make(map[string]unit.Status),
		parts:      make(map[string]string),
		rels:       make(map[string]string),
		notes:      make(map[string]string),
		namespaces: make(map[string]bool),
	}, nil
}

// Reconstruct replaces the body content of the destination main part with
// the merged content of seqs. The final section properties of the body are
// kept.
func (r *Reconstructor) Reconstruct(seqs []*correlate.Sequence) (*Stats, error) {
	doc, err := r.dest.XML(r.part)
	if err != nil {
		return nil, err
	}
	body, err := unit.Body(doc, r.part)
	if err != nil {
		return nil, err
	}

	items := r.flatten(seqs)
	remap(items)
	adoptMarks(items)
	r.log.Debug("flattened", "atoms", len(items), "equal", r.stats.Equal,
		"inserted", r.stats.Inserted, "deleted", r.stats.Deleted)

	built, err := r.build(items, 0)
	if err != nil {
		return nil, err
	}

	var sectPr *xmlquery.Node
	if last := lastElement(body); redxml.IsW(last, "sectPr") {
		sectPr = last
	}
	redxml.RemoveChildren(body)
	for _, b := range r.wrap(built) {
		redxml.Append(body, b)
	}
	if sectPr != nil {
		redxml.Append(body, sectPr)
	}

	if err := r.renumber(); err != nil {
		return nil, err
	}
	r.stamp(redxml.Root(doc))
	r.log.Debug("reconstructed", "revisions", r.stats.Revisions)
	stats := r.stats
	return &stats, nil
}

func lastElement(n *xmlquery.Node) *xmlquery.Node {
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

// stamp records the generator on the document root in a namespace that
// consumers may ignore.
func (r *Reconstructor) stamp(root *xmlquery.Node) {
	redxml.DeclareNamespace(root, "w", redxml.NSW)
	redxml.DeclareNamespace(root, "mc", redxml.NSMC)
	redxml.DeclareNamespace(root, "rl", redxml.NSRedline)
	redxml.SetAttr(root, redxml.NSRedline, "generator", Generator)

	ignorable, _ := redxml.Attr(root, redxml.NSMC, "Ignorable")
	for _, prefix := range strings.Fields(ignorable) {
		if prefix == "rl" {
			return
		}
	}
	redxml.SetAttr(root, redxml.NSMC, "Ignorable", strings.TrimSpace(ignorable+" rl"))
}
