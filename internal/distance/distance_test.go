package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hudd/internal/menu"
	"github.com/jmylchreest/hudd/internal/settings"
	"github.com/jmylchreest/hudd/internal/tokenise"
)

func defaults() settings.Settings { return settings.Default() }

func TestDistanceIdenticalTokenListsIsZero(t *testing.T) {
	tl := tokenise.Tokenise("File Print")
	d, _ := Distance(tl, tl, defaults())
	assert.Equal(t, uint32(0), d)
}

func TestDistanceDegeneratesToSingleToken(t *testing.T) {
	a := tokenise.Tokenise("print")
	b := tokenise.Tokenise("pront")
	d, _ := Distance(a, b, defaults())
	want := SingleTokenDistance(a[0], b[0], defaults())
	assert.Equal(t, want, d)
}

func TestDistanceQueryLongerThanPathIsSentinel(t *testing.T) {
	path := tokenise.Tokenise("print")
	query := tokenise.Tokenise("file print preview")
	d, _ := Distance(path, query, defaults())
	assert.Equal(t, menu.Sentinel, d)
}

func TestDistanceOverLongListsAreSentinel(t *testing.T) {
	long := make(menu.TokenList, MaxTokens+1)
	for i := range long {
		long[i] = menu.Token{Normalised: []rune{'a'}, Original: "a"}
	}
	short := menu.TokenList{{Normalised: []rune{'a'}, Original: "a"}}
	d, _ := Distance(long, short, defaults())
	assert.Equal(t, menu.Sentinel, d)
}

func TestDistancePrefixMatchDoesNotIncreaseOnLongerQuery(t *testing.T) {
	path := tokenise.Tokenise("File Print…")
	d1, _ := Distance(path, tokenise.Tokenise("pr"), defaults())
	d2, _ := Distance(path, tokenise.Tokenise("pri"), defaults())
	require.LessOrEqual(t, d1, uint32(30))
	assert.LessOrEqual(t, d2, d1)
}

func TestDistanceAccentedLabelToleratesOneDrop(t *testing.T) {
	path := tokenise.Tokenise("Edition préférences")
	d, matches := Distance(path, tokenise.Tokenise("pref"), defaults())
	require.NotEqual(t, menu.Sentinel, d)
	require.NotEmpty(t, matches)

	d2, _ := Distance(path, tokenise.Tokenise("prf"), defaults())
	assert.NotEqual(t, menu.Sentinel, d2)
}

func TestSingleTokenDistanceCheapEndDrop(t *testing.T) {
	s := defaults()
	haystack := tokenise.Tokenise("preferences")[0]
	prefix := tokenise.Tokenise("pref")[0]
	full := tokenise.Tokenise("preferencesx")[0]

	endDropped := SingleTokenDistance(haystack, prefix, s)
	midMismatch := SingleTokenDistance(full, prefix, s)
	assert.LessOrEqual(t, endDropped, midMismatch)
}

func TestSingleTokenDistanceIgnoresStructuralPunctuation(t *testing.T) {
	s := defaults()
	a := menu.Token{Normalised: []rune("a-b"), Original: "a-b"}
	b := menu.Token{Normalised: []rune("ab"), Original: "ab"}
	assert.Equal(t, uint32(0), SingleTokenDistance(a, b, s))
}
