package utils

import (
	"sort"
	"strings"
)

// genericStopwords are terms too common in radiology selections to carry
// any matching signal on their own.
var genericStopwords = map[string]bool{
	"cancer":    true,
	"carcinoma": true,
	"tumor":     true,
	"tumour":    true,
	"staging":   true,
	"stage":     true,
	"grade":     true,
	"grading":   true,
	"score":     true,
	"scoring":   true,
	"system":    true,
	"scale":     true,
	"lesion":    true,
	"finding":   true,
	"findings":  true,
	"normal":    true,
	"the":       true,
	"and":       true,
	"of":        true,
	"for":       true,
	"with":      true,
}

// stemSuffixes is an ordered list; only the first matching suffix is
// stripped, so "-omas" wins over "-s" for words like "lipomas".
var stemSuffixes = []string{
	"itis", "osis", "omas", "oma", "ing", "tion", "s", "es", "ic", "al", "ary", "atic",
}

const maxStemLength = 6

// NormalizeToken canonicalizes a free-text selection into a comparable token
// form: lowercase alphanumeric runs, generic stopwords dropped, suffixes
// stripped, stems truncated, deduplicated and sorted. The result is stable
// for any casing/punctuation variant of the same phrase, which the dedup
// hashing relies on.
func NormalizeToken(text string) string {
	raw := splitAlphanumeric(strings.ToLower(text))

	seen := make(map[string]bool)
	var stems []string
	for _, tok := range raw {
		if genericStopwords[tok] {
			continue
		}
		stem := stemToken(tok)
		if stem == "" || seen[stem] {
			continue
		}
		seen[stem] = true
		stems = append(stems, stem)
	}

	sort.Strings(stems)
	return strings.Join(stems, " ")
}

// NormalizeKey strips everything but alphanumerics, without stemming.
// Used for exact taxonomy-table lookups; kept separate from NormalizeToken
// because taxonomy matching needs exact keys while dedup wants fuzzy stems.
func NormalizeKey(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	var b strings.Builder
	for _, ch := range lowered {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// TokenStems returns the normalized token as a set of stems.
func TokenStems(text string) map[string]bool {
	stems := make(map[string]bool)
	for _, s := range strings.Fields(NormalizeToken(text)) {
		stems[s] = true
	}
	return stems
}

// StemsSubset reports whether every stem in a is present in b.
func StemsSubset(a, b map[string]bool) bool {
	if len(a) == 0 {
		return false
	}
	for s := range a {
		if !b[s] {
			return false
		}
	}
	return true
}

func splitAlphanumeric(text string) []string {
	var tokens []string
	var current strings.Builder
	for _, ch := range text {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			current.WriteRune(ch)
			continue
		}
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func stemToken(tok string) string {
	for _, suffix := range stemSuffixes {
		if strings.HasSuffix(tok, suffix) && len(tok)-len(suffix) >= 3 {
			tok = tok[:len(tok)-len(suffix)]
			break
		}
	}
	if len(tok) > maxStemLength {
		tok = tok[:maxStemLength]
	}
	return tok
}
