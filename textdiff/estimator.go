// Package textdiff implements the cheap local text-change estimator that
// gates the expensive remote change check. It compares two OCR snapshots
// with token-set similarity and subset heuristics.
package textdiff

import (
	"regexp"
	"strings"
)

var (
	digitRun    = regexp.MustCompile(`\d+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}#\s]+`)
	nonWord     = regexp.MustCompile(`[^a-z0-9\s]+`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Normalize produces the canonical ObservedText form of raw OCR output:
// case-folded, digit runs collapsed to a placeholder token, punctuation
// stripped, whitespace squeezed.
func Normalize(raw string) string {
	s := strings.ToLower(raw)
	s = digitRun.ReplaceAllString(s, "#")
	s = punctuation.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Similarity computes word-level Jaccard similarity between two snapshots:
// |A∩B| / |A∪B| over whitespace-split token sets. It returns 0 when either
// input is empty and is symmetric in its arguments.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	setA := tokenSet(strings.Fields(a))
	setB := tokenSet(strings.Fields(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// IsSubset reports whether child's tokens are (mostly) contained in parent.
// Both strings are cleaned first: lowercased, non-word characters stripped,
// tokens of length <= 2 dropped. A child with no tokens left after cleaning
// is trivially a subset. Otherwise the containment ratio must exceed 0.8.
//
// Called both ways by the controller: IsSubset(last, current) detects a
// cursor or overlay occluding part of the text, IsSubset(current, last)
// detects feedback appended after a question was answered. Either one
// suppresses a "changed" verdict.
func IsSubset(parent, child string) bool {
	childTokens := cleanTokens(child)
	if len(childTokens) == 0 {
		return true
	}

	parentSet := tokenSet(cleanTokens(parent))
	found := 0
	for _, tok := range childTokens {
		if _, ok := parentSet[tok]; ok {
			found++
		}
	}
	return float64(found)/float64(len(childTokens)) > 0.8
}

func cleanTokens(s string) []string {
	cleaned := nonWord.ReplaceAllString(strings.ToLower(s), " ")
	var out []string
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) > 2 {
			out = append(out, tok)
		}
	}
	return out
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}
