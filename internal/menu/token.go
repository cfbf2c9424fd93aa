package menu

// MaxTokenRunes is the maximum number of Unicode code points kept from any
// single token; the distance engine's single-token table is sized to this
// bound plus one.
const MaxTokenRunes = 31

// Token is a normalised, case-folded, separator-split substring of a label.
// Normalised holds the code points the distance engine compares; Original
// holds the source bytes the token was cut from, for highlight rendering.
type Token struct {
	Normalised []rune
	Original   string
}

// TokenList is the ordered sequence of Tokens derived from a StringList or
// a query string. It is restartable and finite: plain iteration over the
// slice is the only traversal the engine performs.
type TokenList []Token

// Len is a convenience accessor mirroring the other list types in this
// package; it returns the number of tokens, not their combined rune count.
func (t TokenList) Len() int { return len(t) }
