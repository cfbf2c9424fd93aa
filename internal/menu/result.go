package menu

import "strings"

// Sentinel is the distance value u32::MAX in the reference uses to mean
// "refused to compute". It never appears on a returned Result; a Source
// silently omits a candidate whose distance is Sentinel.
const Sentinel uint32 = 1<<32 - 1

// Result pairs an Item with the query that produced it.
type Result struct {
	Item *Item

	// Distance is the raw match distance, always <= the settings
	// max-distance in force when the Result was produced.
	Distance uint32

	// Matches holds the path tokens chosen by the distance engine's
	// back-walk, in query-index order, for highlight rendering.
	Matches TokenList
}

// RenderHTML produces the pretty-printed path with matched substrings
// wrapped in <b>...</b> and the connector rendered as " &gt; ", per the
// bus surface's display_html contract.
func (r *Result) RenderHTML() string {
	if r.Item == nil || r.Item.Path == nil {
		return ""
	}
	segs := r.Item.Path.Segments()
	matched := make(map[string]bool, len(r.Matches))
	for _, tok := range r.Matches {
		matched[tok.Original] = true
	}
	rendered := make([]string, len(segs))
	for i, seg := range segs {
		rendered[i] = renderSegment(seg, matched)
	}
	return strings.Join(rendered, " &gt; ")
}

// segmentSeparators mirrors internal/tokenise's split set; menu cannot
// import that package (tokenise already imports menu), so the rule is
// duplicated here for exactly this one purpose: lining wrapped substrings
// up with the same tokens the distance engine matched against.
const segmentSeparators = " .->"

func isSegmentSeparator(r rune) bool {
	return strings.ContainsRune(segmentSeparators, r)
}

// renderSegment wraps every substring of seg equal to a matched token's
// Original text in <b>...</b>, splitting seg on the tokeniser's separator
// set so a multi-token label (e.g. "Print Preview" matched on "Print")
// gets per-substring highlighting rather than requiring the whole segment
// to match.
func renderSegment(seg string, matched map[string]bool) string {
	var out, word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if matched[w] {
			out.WriteString("<b>")
			out.WriteString(w)
			out.WriteString("</b>")
		} else {
			out.WriteString(w)
		}
		word.Reset()
	}
	for _, r := range seg {
		if isSegmentSeparator(r) {
			flush()
			out.WriteRune(r)
		} else {
			word.WriteRune(r)
		}
	}
	flush()
	return out.String()
}
