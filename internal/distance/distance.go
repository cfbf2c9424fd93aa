package distance

import (
	"github.com/jmylchreest/hudd/internal/menu"
	"github.com/jmylchreest/hudd/internal/settings"
)

// MaxTokens is the longest query or path TokenList the engine will score;
// anything longer is refused with the sentinel distance.
const MaxTokens = 32

// inf stands in for "unreachable" inside the assignment table. It is kept
// well below menu.Sentinel so additions never wrap.
const inf = 1 << 30

type cellChoice int

const (
	choiceInvalid cellChoice = iota
	choiceSkip
	choiceMap
)

// Distance scores query against path: a monotone, non-decreasing mapping
// from query-token index to path-token index that minimises the total
// single-token distance, with unchosen path tokens "skipped" at cost 1
// each. It returns menu.Sentinel if query is longer than path or either
// list exceeds MaxTokens tokens. When a mapping exists, the second return
// value holds the path tokens chosen for each query token, in query-index
// order.
func Distance(path, query menu.TokenList, s settings.Settings) (uint32, menu.TokenList) {
	nq, np := len(query), len(path)
	if nq > np {
		return menu.Sentinel, nil
	}
	if nq > MaxTokens || np > MaxTokens {
		return menu.Sentinel, nil
	}
	if nq == 0 {
		return menu.Sentinel, nil
	}

	d := make([][]uint32, nq)
	choice := make([][]cellChoice, nq)
	for i := range d {
		d[i] = make([]uint32, np)
		choice[i] = make([]cellChoice, np)
	}

	chosenK := make([]int, np)
	running := uint32(inf)
	for j := 0; j < np; j++ {
		cost := SingleTokenDistance(path[j], query[0], s) + uint32(j)
		if cost < running {
			running = cost
			chosenK[j] = j
		} else if j > 0 {
			chosenK[j] = chosenK[j-1]
		}
		d[0][j] = running
	}

	for i := 1; i < nq; i++ {
		for j := 0; j < np; j++ {
			best := uint32(inf)
			bc := choiceInvalid
			if j >= 1 {
				if d[i-1][j-1] < inf {
					if cost := d[i-1][j-1] + SingleTokenDistance(path[j], query[i], s); cost < best {
						best = cost
						bc = choiceMap
					}
				}
				if d[i][j-1] < inf {
					if cost := d[i][j-1] + 1; cost < best {
						best = cost
						bc = choiceSkip
					}
				}
			}
			d[i][j] = best
			choice[i][j] = bc
		}
	}

	final := d[nq-1][np-1]
	if final >= inf {
		return menu.Sentinel, nil
	}

	matches := make(menu.TokenList, nq)
	i, j := nq-1, np-1
	for i >= 1 {
		switch choice[i][j] {
		case choiceMap:
			matches[i] = path[j]
			i--
			j--
		case choiceSkip:
			j--
		default:
			return final, matches
		}
	}
	matches[0] = path[chosenK[j]]
	return final, matches
}
