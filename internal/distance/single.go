// Package distance implements the two-level weighted Damerau-Levenshtein
// distance engine: a single-token edit distance with asymmetric penalties,
// and an outer assignment-problem solver that scores a multi-token query
// against a multi-token menu path.
package distance

import (
	"unicode"

	"github.com/jmylchreest/hudd/internal/menu"
	"github.com/jmylchreest/hudd/internal/settings"
)

// tableSize bounds the single-token DP table; both tokens are truncated to
// menu.MaxTokenRunes code points at ingestion.
const tableSize = menu.MaxTokenRunes + 1

func isStructural(r rune) bool {
	switch r {
	case ' ', '_', '-', '>':
		return true
	default:
		return false
	}
}

// substitutionCost returns the cost of turning haystack rune h into needle
// rune n, honouring the case-insensitive-match discount and the
// ignore-structural-punctuation rule.
func substitutionCost(h, n rune, s settings.Settings) uint32 {
	if h == n {
		return 0
	}
	if isStructural(h) || isStructural(n) {
		return 0
	}
	if unicode.ToLower(h) == unicode.ToLower(n) {
		return s.SwapPenaltyCase
	}
	return s.SwapPenalty
}

func deletionCost(h rune, s settings.Settings) uint32 {
	if isStructural(h) {
		return 0
	}
	return s.DropPenalty
}

func insertionCost(n rune, s settings.Settings) uint32 {
	if isStructural(n) {
		return 0
	}
	return s.AddPenalty
}

// SingleTokenDistance scores one haystack token against one needle token
// using a weighted Damerau-Levenshtein table, then applies the asymmetric
// "cheap to drop the tail" discount described in the specification: the
// result is the minimum, over every prefix of haystack, of the cost of
// matching that prefix against the full needle plus end_drop_penalty for
// each remaining haystack rune.
func SingleTokenDistance(haystack, needle menu.Token, s settings.Settings) uint32 {
	h := haystack.Normalised
	n := needle.Normalised
	if len(h) > menu.MaxTokenRunes {
		h = h[:menu.MaxTokenRunes]
	}
	if len(n) > menu.MaxTokenRunes {
		n = n[:menu.MaxTokenRunes]
	}

	var e [tableSize][tableSize]uint32
	for i := 1; i <= len(h); i++ {
		e[i][0] = e[i-1][0] + deletionCost(h[i-1], s)
	}
	for j := 1; j <= len(n); j++ {
		e[0][j] = e[0][j-1] + insertionCost(n[j-1], s)
	}
	for i := 1; i <= len(h); i++ {
		for j := 1; j <= len(n); j++ {
			best := e[i-1][j] + deletionCost(h[i-1], s)
			if v := e[i][j-1] + insertionCost(n[j-1], s); v < best {
				best = v
			}
			if v := e[i-1][j-1] + substitutionCost(h[i-1], n[j-1], s); v < best {
				best = v
			}
			if i >= 2 && j >= 2 && h[i-1] == n[j-2] && h[i-2] == n[j-1] {
				if v := e[i-2][j-2] + s.TransposePenalty; v < best {
					best = v
				}
			}
			e[i][j] = best
		}
	}

	best := e[len(h)][len(n)]
	for j := 0; j < len(h); j++ {
		tailDropped := uint32(len(h) - j)
		if v := e[j][len(n)] + tailDropped*s.DropPenaltyEnd; v < best {
			best = v
		}
	}
	return best
}
