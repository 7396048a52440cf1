package unit

import (
	"github.com/FocuswithJustin/redline/core/hash"
	"github.com/FocuswithJustin/redline/core/opc"
)

// Decompose runs preflight, atom building and aggregation over the main
// document part of pkg.
func Decompose(pkg *opc.Package, side Side, alg hash.Algorithm, separators string) ([]Unit, error) {
	part, err := pkg.MainDocumentPart()
	if err != nil {
		return nil, err
	}
	doc, err := pkg.XML(part)
	if err != nil {
		return nil, err
	}
	if err := Preflight(doc, part); err != nil {
		return nil, err
	}
	body, err := Body(doc, part)
	if err != nil {
		return nil, err
	}
	src := &Source{Side: side, Package: pkg, Part: part}
	atoms, err := NewBuilder(src, hash.NewHasher(alg, pkg)).Build(body)
	if err != nil {
		return nil, err
	}
	return Groups(Words(atoms, separators, alg)), nil
}
