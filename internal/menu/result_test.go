package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderHTMLWrapsWholeSegmentMatch(t *testing.T) {
	path := Cons("Print…", Cons("File", nil))
	r := Result{
		Item:    &Item{Path: path},
		Matches: TokenList{{Original: "File"}},
	}
	assert.Equal(t, "<b>File</b> &gt; Print…", r.RenderHTML())
}

func TestRenderHTMLWrapsOnlyMatchedSubstringOfMultiTokenSegment(t *testing.T) {
	path := Cons("Print Preview", Cons("File", nil))
	r := Result{
		Item:    &Item{Path: path},
		Matches: TokenList{{Original: "Print"}},
	}
	assert.Equal(t, "File &gt; <b>Print</b> Preview", r.RenderHTML())
}

func TestRenderHTMLNoMatchesLeavesPathPlain(t *testing.T) {
	path := Cons("Preferences", Cons("Edit", nil))
	r := Result{Item: &Item{Path: path}}
	assert.Equal(t, "Edit &gt; Preferences", r.RenderHTML())
}

func TestRenderHTMLNilItemOrPathIsEmpty(t *testing.T) {
	var r Result
	assert.Equal(t, "", r.RenderHTML())

	r = Result{Item: &Item{}}
	assert.Equal(t, "", r.RenderHTML())
}
