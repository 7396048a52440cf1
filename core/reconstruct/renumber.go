package reconstruct

import (
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/redline/core/opc"
	redxml "github.com/FocuswithJustin/redline/core/xml"
)

var docPrQuery = redxml.MustCompile("//wp:docPr")

// isRevision reports whether n is a revision element whose w:id must be
// unique across the document.
func isRevision(n *xmlquery.Node) bool {
	if n.NamespaceURI != redxml.NSW {
		return false
	}
	switch n.Data {
	case "ins", "del", "moveFrom", "moveTo":
		return true
	}
	return strings.HasSuffix(n.Data, "Change")
}

// renumber assigns dense revision ids and drawing ids over the main part
// and its notes parts, in document order.
func (r *Reconstructor) renumber() error {
	parts := []string{r.part}
	for _, relType := range []string{opc.RelFootnotes, opc.RelEndnotes} {
		if name, ok := r.dest.RelatedPart(r.part, relType); ok {
			parts = append(parts, name)
		}
	}

	revisions, drawings := 0, 0
	for _, name := range parts {
		doc, err := r.dest.XML(name)
		if err != nil {
			return err
		}
		redxml.Walk(doc, func(n *xmlquery.Node) bool {
			if isRevision(n) {
				revisions++
				redxml.SetAttrW(n, "id", strconv.Itoa(revisions))
			}
			return true
		})
		for _, n := range redxml.QueryAll(doc, docPrQuery) {
			drawings++
			redxml.SetAttr(n, "", "id", strconv.Itoa(drawings))
		}
	}
	r.log.Debug("renumbered", "revisions", revisions, "drawings", drawings)
	return nil
}
