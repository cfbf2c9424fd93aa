package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hudd/internal/menu"
	"github.com/jmylchreest/hudd/internal/source"
	"github.com/jmylchreest/hudd/internal/tokenise"
	"github.com/jmylchreest/hudd/internal/usage"
)

type fakeActivation struct {
	key       string
	activated int
	fail      bool
}

func (a *fakeActivation) Key() string { return a.key }

func (a *fakeActivation) Activate(ctx context.Context, timestamp uint32) error {
	a.activated++
	if a.fail {
		return errAlwaysFails
	}
	return nil
}

var errAlwaysFails = assertError("activation failed")

type assertError string

func (e assertError) Error() string { return string(e) }

func newItem(label, appID string, act *fakeActivation) *menu.Item {
	path := menu.Cons(label, nil)
	return menu.NewItem(path, tokenise.Path(path), appID, act, true)
}

type stubSource struct {
	source.UseCounter
	source.Changed
	results []menu.Result
}

func (s *stubSource) OnChanged(fn func()) func() { return s.Changed.Subscribe(fn) }

func (s *stubSource) Search(out []menu.Result, query string) []menu.Result {
	return append(out, s.results...)
}

func TestQueryEmptySearchSkipsSourceSearch(t *testing.T) {
	called := false
	src := &probeSource{fn: func() { called = true }}
	q := New(src, "", 10, nil)
	defer q.Close()

	assert.Empty(t, q.Results())
	assert.False(t, called)
}

type probeSource struct {
	source.UseCounter
	source.Changed
	fn func()
}

func (s *probeSource) OnChanged(fn func()) func() { return s.Changed.Subscribe(fn) }
func (s *probeSource) Search(out []menu.Result, query string) []menu.Result {
	s.fn()
	return out
}

func TestQueryRanksUsedItemsAboveUnusedAtEqualDistance(t *testing.T) {
	printAct := &fakeActivation{key: "print"}
	prefAct := &fakeActivation{key: "pref"}
	src := &stubSource{results: []menu.Result{
		{Item: newItem("Print", "app1", printAct), Distance: 10},
		{Item: newItem("Preferences", "app2", prefAct), Distance: 10},
	}}

	tracker, err := usage.New(false, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		tracker.MarkUsage("app2", "Preferences")
	}

	q := New(src, "pre", 10, tracker)
	defer q.Close()

	results := q.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "app2", results[0].Item.ApplicationID)
	assert.Equal(t, "app1", results[1].Item.ApplicationID)
}

func TestQueryTruncatesToNumResults(t *testing.T) {
	src := &stubSource{results: []menu.Result{
		{Item: newItem("A", "app", &fakeActivation{key: "a"}), Distance: 1},
		{Item: newItem("B", "app", &fakeActivation{key: "b"}), Distance: 2},
		{Item: newItem("C", "app", &fakeActivation{key: "c"}), Distance: 3},
	}}

	q := New(src, "x", 2, nil)
	defer q.Close()

	assert.Len(t, q.Results(), 2)
}

func TestQueryExecuteUnknownKeyFails(t *testing.T) {
	src := &stubSource{}
	q := New(src, "x", 10, nil)
	defer q.Close()

	err := q.Execute(context.Background(), "nonexistent", 0)
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestQueryExecuteMarksUsageAndCloses(t *testing.T) {
	act := &fakeActivation{key: "k1"}
	src := &stubSource{results: []menu.Result{
		{Item: newItem("Item", "app", act), Distance: 5},
	}}

	tracker, err := usage.New(false, nil)
	require.NoError(t, err)

	q := New(src, "item", 10, tracker)
	require.NoError(t, q.Execute(context.Background(), "k1", 0))

	assert.Equal(t, 1, act.activated)
	assert.Equal(t, uint32(1), tracker.GetUsage("app", "Item"))

	err = q.Execute(context.Background(), "k1", 0)
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestQueryRefreshOnSourceChanged(t *testing.T) {
	src := &stubSource{}
	q := New(src, "x", 10, nil)
	defer q.Close()

	genBefore := q.Generation()
	src.results = []menu.Result{{Item: newItem("New", "app", &fakeActivation{key: "n"}), Distance: 1}}
	src.Changed.Emit()

	assert.Greater(t, q.Generation(), genBefore)
	assert.Len(t, q.Results(), 1)
}
