// Package hash computes content digests for WordprocessingML blocks.
//
// A digest is taken over a canonical serialization of the block: names are
// namespace-qualified, attributes are sorted, volatile identifiers and
// revision noise are dropped, property blocks are excluded, and adjacent text
// fragments are merged so run boundaries do not matter. Relationship
// attributes are replaced by the digest of the resource they point at.
package hash

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	gohash "hash"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/redline/core/errors"
)

// Algorithm names a digest function.
type Algorithm string

const (
	// SHA1 is the default algorithm.
	SHA1 Algorithm = "sha1"
	// SHA256 matches the content-addressed store hash.
	SHA256 Algorithm = "sha256"
	// BLAKE3 is the fast 256-bit alternative.
	BLAKE3 Algorithm = "blake3"
)

// ParseAlgorithm validates an algorithm name. The empty string selects SHA1.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(s)) {
	case "", SHA1:
		return SHA1, nil
	case SHA256:
		return SHA256, nil
	case BLAKE3:
		return BLAKE3, nil
	}
	return "", &errors.ValidationError{
		Field:   "hash_algorithm",
		Value:   s,
		Message: "must be one of sha1, sha256, blake3",
	}
}

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() gohash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case BLAKE3:
		return blake3.New()
	default:
		return sha1.New()
	}
}

// Sum returns the hex digest of data.
func (a Algorithm) Sum(data []byte) string {
	h := a.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SumStrings returns the hex digest of the concatenated strings.
func (a Algorithm) SumStrings(parts ...string) string {
	h := a.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
