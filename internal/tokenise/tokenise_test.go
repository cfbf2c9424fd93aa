package tokenise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hudd/internal/menu"
)

func TestTokeniseSplitsOnSeparators(t *testing.T) {
	tokens := Tokenise("File.Print->Preview")
	require.Len(t, tokens, 3)
	assert.Equal(t, "file", string(tokens[0].Normalised))
	assert.Equal(t, "print", string(tokens[1].Normalised))
	assert.Equal(t, "preview", string(tokens[2].Normalised))
}

func TestTokeniseCaseFolds(t *testing.T) {
	tokens := Tokenise("PRÉFÉRENCES")
	require.Len(t, tokens, 1)
	assert.Equal(t, "préférences", string(tokens[0].Normalised))
}

func TestTokeniseDropsEmptySegments(t *testing.T) {
	tokens := Tokenise("  a..b  ")
	require.Len(t, tokens, 2)
}

func TestTokeniseTruncatesLongTokens(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "a"
	}
	tokens := Tokenise(long)
	require.Len(t, tokens, 1)
	assert.Len(t, tokens[0].Normalised, menu.MaxTokenRunes)
}

func TestPathConcatenatesRootToLeaf(t *testing.T) {
	path := menu.Cons("Print...", menu.Cons("File", nil))
	tokens := Path(path)
	require.Len(t, tokens, 2)
	assert.Equal(t, "file", string(tokens[0].Normalised))
	assert.Equal(t, "print", string(tokens[1].Normalised))
}
