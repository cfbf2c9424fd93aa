// Package tokenise converts label strings and StringList paths into the
// canonical TokenList form the distance engine consumes. The functions here
// are pure: no I/O, no state beyond golang.org/x/text's stateless Unicode
// tables.
package tokenise

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/jmylchreest/hudd/internal/menu"
)

// separators is the exact byte set the reference splits labels on.
const separators = " .->"

var fold = cases.Fold()

func isSeparator(r rune) bool {
	return strings.ContainsRune(separators, r)
}

// Tokenise normalises (NFKC), case-folds, and splits input on any rune in
// " .->", dropping empty segments and truncating each to the first 31 code
// points. It is deterministic and side-effect free.
func Tokenise(input string) menu.TokenList {
	raw := strings.FieldsFunc(input, isSeparator)
	tokens := make(menu.TokenList, 0, len(raw))
	for _, segment := range raw {
		normalised := fold.String(norm.NFKC.String(segment))
		runes := []rune(normalised)
		if len(runes) == 0 {
			continue
		}
		if len(runes) > menu.MaxTokenRunes {
			runes = runes[:menu.MaxTokenRunes]
		}
		tokens = append(tokens, menu.Token{
			Normalised: runes,
			Original:   segment,
		})
	}
	return tokens
}

// Path tokenises each segment of a StringList path and concatenates the
// results in root-to-leaf order.
func Path(path *menu.StringList) menu.TokenList {
	var all menu.TokenList
	for _, segment := range path.Segments() {
		all = append(all, Tokenise(segment)...)
	}
	return all
}
