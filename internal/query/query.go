// Package query implements Query (§4.7), the coordinator between a
// Source and an external caller: it owns the Source while the query is
// open, re-ranks on every upstream change, and dispatches activation.
package query

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/jmylchreest/hudd/internal/menu"
	"github.com/jmylchreest/hudd/internal/source"
	"github.com/jmylchreest/hudd/internal/usage"
)

// ErrUnknownKey is returned by Execute for a key that does not belong to
// the Query's current Result set, or for a Query already closed (§7:
// surfaced to the bus layer as com.canonical.Hud.Error.UnknownKey).
var ErrUnknownKey = errors.New("query: unknown key")

// ErrClosed names the state of a Query that has already released its
// Source. Neither Refresh nor Execute returns it: Refresh on a closed Query
// does nothing, and Execute reports ErrUnknownKey.
var ErrClosed = errors.New("query: closed")

// Query is one live search against a Source. Construction holds a use()
// reference on src for the Query's lifetime; Close (or a successful
// Execute) releases it.
type Query struct {
	mu sync.Mutex

	src        source.Source
	tracker    *usage.Tracker
	numResults int

	search     string
	generation uint64
	results    []menu.Result
	byKey      map[string]*menu.Result

	changed source.Changed
	unsub   func()
	closed  bool
}

// New opens a Query against src with the given initial search string and
// result cap, per §4.7's construction sequence: subscribe, use(), run
// the initial refresh.
func New(src source.Source, searchString string, numResults int, tracker *usage.Tracker) *Query {
	q := &Query{
		src:        src,
		tracker:    tracker,
		numResults: numResults,
	}
	q.unsub = src.OnChanged(q.Refresh)
	src.Use()
	q.search = searchString
	q.Refresh()
	return q
}

// Generation returns the current refresh generation, for tests and
// debug introspection.
func (q *Query) Generation() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generation
}

// SetSearch updates the search string and re-runs the pipeline. Per
// §9's resolution of the empty-query Open Question, an empty string
// yields an empty Result list without calling Search on the Source.
func (q *Query) SetSearch(searchString string) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.search = searchString
	q.mu.Unlock()
	q.Refresh()
}

// Refresh re-runs the search/rank/truncate pipeline of §4.7 and emits
// changed. It is the callback registered against the Source's changed
// notification, and is also called directly after SetSearch.
func (q *Query) Refresh() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.generation++
	searchStr := q.search
	q.mu.Unlock()

	var results []menu.Result
	if searchStr != "" {
		results = q.src.Search(make([]menu.Result, 0, 32), searchStr)
	}

	usages := make([]uint32, len(results))
	var maxUsage uint32
	for i, r := range results {
		u := q.usageFor(r.Item)
		usages[i] = u
		if u > maxUsage {
			maxUsage = u
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return rank(results[i].Distance, usages[i], maxUsage) < rank(results[j].Distance, usages[j], maxUsage)
	})

	if q.numResults > 0 && len(results) > q.numResults {
		results = results[:q.numResults]
	}

	byKey := make(map[string]*menu.Result, len(results))
	for i := range results {
		if results[i].Item == nil || results[i].Item.Activation == nil {
			continue
		}
		byKey[results[i].Item.Activation.Key()] = &results[i]
	}

	q.mu.Lock()
	if !q.closed {
		q.results = results
		q.byKey = byKey
	}
	q.mu.Unlock()

	q.changed.Emit()
}

// rank computes the composite rank distance of §4.7: raw distance for
// the most-used item, scaled up to 2x for an item never used relative
// to the current result set's maximum.
func rank(distance, usageCount, maxUsage uint32) uint64 {
	if maxUsage == 0 {
		return uint64(distance)
	}
	return uint64(distance) + uint64(distance)*uint64(maxUsage-usageCount)/uint64(maxUsage)
}

func (q *Query) usageFor(item *menu.Item) uint32 {
	if q.tracker == nil || item == nil {
		return 0
	}
	return q.tracker.GetUsage(item.ApplicationID, item.DisplayIdentifier())
}

// Results returns the current ranked, truncated Result list.
func (q *Query) Results() []menu.Result {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]menu.Result(nil), q.results...)
}

// OnChanged registers fn to be called after every Refresh.
func (q *Query) OnChanged(fn func()) func() { return q.changed.Subscribe(fn) }

// Execute dispatches the activation for key (§4.7): on success it marks
// usage and closes the Query, releasing its Source. An unknown key or a
// Query already closed returns ErrUnknownKey without side effects.
func (q *Query) Execute(ctx context.Context, key string, timestamp uint32) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrUnknownKey
	}
	r, ok := q.byKey[key]
	q.mu.Unlock()
	if !ok {
		return ErrUnknownKey
	}

	if err := r.Item.Activation.Activate(ctx, timestamp); err != nil {
		return err
	}

	if q.tracker != nil {
		q.tracker.MarkUsage(r.Item.ApplicationID, r.Item.DisplayIdentifier())
	}
	q.Close()
	return nil
}

// Close releases the Query's reference on its Source and unsubscribes
// from its changed notification. Idempotent.
func (q *Query) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	if q.unsub != nil {
		q.unsub()
	}
	q.src.Unuse()
}
