package unit

import (
	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/redline/core/errors"
	redxml "github.com/FocuswithJustin/redline/core/xml"
)

// unsupported lists the constructs rejected before comparison, in the order
// they are reported.
var unsupported = []string{
	"altChunk",
	"subDoc",
	"moveFromRangeStart",
	"moveFromRangeEnd",
	"moveToRangeStart",
	"moveToRangeEnd",
	"customXmlInsRangeStart",
	"customXmlInsRangeEnd",
	"customXmlDelRangeStart",
	"customXmlDelRangeEnd",
	"customXmlMoveFromRangeStart",
	"customXmlMoveFromRangeEnd",
	"customXmlMoveToRangeStart",
	"customXmlMoveToRangeEnd",
}

var unsupportedQueries = func() map[string]*xpath.Expr {
	m := make(map[string]*xpath.Expr, len(unsupported))
	for _, name := range unsupported {
		m[name] = redxml.MustCompile("//w:" + name)
	}
	return m
}()

var bodyQuery = redxml.MustCompile("/w:document/w:body")

// Preflight rejects documents the engine cannot compare. It must run
// before any other processing of the part.
func Preflight(doc *xmlquery.Node, part string) error {
	for _, name := range unsupported {
		if redxml.QueryOne(doc, unsupportedQueries[name]) != nil {
			return errors.NewUnsupportedContent("w:"+name, part)
		}
	}
	body := redxml.QueryOne(doc, bodyQuery)
	if body == nil {
		return errors.NewFormat(part, "document has no body", nil)
	}
	sections := 0
	for _, child := range redxml.Children(body) {
		if redxml.IsW(child, "sectPr") {
			sections++
		}
	}
	if sections > 1 {
		return errors.NewFormat(part, "more than one body-level sectPr", nil)
	}
	return nil
}

// Body returns the w:body element of a main document part.
func Body(doc *xmlquery.Node, part string) (*xmlquery.Node, error) {
	body := redxml.QueryOne(doc, bodyQuery)
	if body == nil {
		return nil, errors.NewFormat(part, "document has no body", nil)
	}
	return body, nil
}
