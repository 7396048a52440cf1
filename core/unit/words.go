package unit

import (
	"strings"
	"unicode"

	"github.com/FocuswithJustin/redline/core/errors"
	"github.com/FocuswithJustin/redline/core/hash"
)

// DefaultSeparators split words at spaces and hyphens.
const DefaultSeparators = " -"

// Words folds atoms into words. Every separator character and every
// non-character atom becomes a word of its own; a word also ends wherever
// the grouping chain changes. Period and comma separate unless a digit sits
// on both sides, so "3.14" stays whole.
func Words(atoms []*Atom, separators string, alg hash.Algorithm) []*Word {
	var (
		words []*Word
		cur   []*Atom
		key   string
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, newWord(cur, alg))
			cur = nil
		}
	}

	for i, a := range atoms {
		if a.Kind != Char {
			flush()
			words = append(words, newWord([]*Atom{a}, alg))
			continue
		}
		k := chainKey(a.GroupingChain())
		if len(cur) > 0 && k != key {
			flush()
		}
		if isSeparator(atoms, i, separators) {
			flush()
			words = append(words, newWord([]*Atom{a}, alg))
			continue
		}
		if len(cur) == 0 {
			key = k
		}
		cur = append(cur, a)
	}
	flush()
	return words
}

func isSeparator(atoms []*Atom, i int, separators string) bool {
	r := atoms[i].Char
	if strings.ContainsRune(separators, r) {
		return true
	}
	if r != '.' && r != ',' {
		return false
	}
	return !(isDigitAt(atoms, i-1) && isDigitAt(atoms, i+1))
}

func isDigitAt(atoms []*Atom, i int) bool {
	return i >= 0 && i < len(atoms) && atoms[i].Kind == Char && unicode.IsDigit(atoms[i].Char)
}

func newWord(atoms []*Atom, alg hash.Algorithm) *Word {
	chain := atoms[0].GroupingChain()
	key := chainKey(chain)
	digests := make([]string, len(atoms))
	for i, a := range atoms {
		if i > 0 && chainKey(a.GroupingChain()) != key {
			errors.Invariantf("word atoms disagree on grouping chain: %s vs %s", key, chainKey(a.GroupingChain()))
		}
		digests[i] = a.Digest()
	}
	return &Word{Atoms: atoms, chain: chain, digest: alg.SumStrings(digests...)}
}
