package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key prefixes for the three derivation sources.
const (
	KeyPrefixDOI   = "doi:"
	KeyPrefixArxiv = "arxiv:"
	KeyPrefixHash  = "rec:"
)

// hashKeyLen is the number of hex digits kept from the content hash
// when no external identifier is available.
const hashKeyLen = 12

// DeriveKey returns the stable, replica-independent key for a record.
//
// Preference order: DOI, then arXiv id, then a hash of the folded title,
// first author, and year. The same logical record always yields the same
// key on either replica; local row ids never participate.
func DeriveKey(r Record) string {
	if doi := strings.ToLower(strings.TrimSpace(r.DOI)); doi != "" {
		return KeyPrefixDOI + doi
	}
	if id := strings.ToLower(strings.TrimSpace(r.ArxivID)); id != "" {
		return KeyPrefixArxiv + id
	}

	fingerprint := Fold(r.Title) + "|" + Fold(r.FirstAuthor()) + "|" + strconv.Itoa(r.Year)
	sum := sha256.Sum256([]byte(fingerprint))
	return KeyPrefixHash + hex.EncodeToString(sum[:])[:hashKeyLen]
}

// foldTransformer strips diacritics after NFKD decomposition.
var foldTransformer = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Fold normalizes free text for key derivation: Unicode decomposition,
// diacritic stripping, lower-casing, and whitespace collapsing. Folding
// keeps "Schrödinger" and "Schrodinger" on the same key.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Disambiguate returns a derived key for the losing version of a KeepBoth
// resolution. The suffix is a short hash of the losing snapshot, so the
// scheme is deterministic across runs; if the short form is already taken
// the suffix is widened before falling back to a numeric counter.
func Disambiguate(key, fingerprint string, taken func(string) bool) string {
	sum := sha256.Sum256([]byte(fingerprint))
	digest := hex.EncodeToString(sum[:])

	for _, n := range []int{8, 16, len(digest)} {
		candidate := key + "-" + digest[:n]
		if taken == nil || !taken(candidate) {
			return candidate
		}
	}
	for i := 2; ; i++ {
		candidate := key + "-" + digest[:8] + "-" + strconv.Itoa(i)
		if !taken(candidate) {
			return candidate
		}
	}
}

// SanitizeFilename maps an item key to a filesystem-safe base name.
// Keys may carry '/' (DOIs do), which must never create subdirectories.
func SanitizeFilename(key string) string {
	var sb strings.Builder
	sb.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
