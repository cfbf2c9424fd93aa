package bus

import (
	"context"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hudd/internal/menu"
	"github.com/jmylchreest/hudd/internal/source"
	"github.com/jmylchreest/hudd/internal/tokenise"
)

func makeStringVariant(s string) dbus.Variant { return dbus.MakeVariant(s) }

type fakeActivation struct {
	key       string
	activated bool
}

func (a *fakeActivation) Key() string { return a.key }
func (a *fakeActivation) Activate(ctx context.Context, timestamp uint32) error {
	a.activated = true
	return nil
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

func newItem(label string, act *fakeActivation) *menu.Item {
	path := menu.Cons(label, nil)
	return menu.NewItem(path, tokenise.Path(path), "app", act, true)
}

func TestGetSuggestionsReturnsRankedKeys(t *testing.T) {
	act := &fakeActivation{key: "k1"}
	src := &stubSource{results: []menu.Result{{Item: newItem("Print", act), Distance: 5}}}

	svc := NewService(nil, src, nil, nil)
	_, suggestions, dErr := svc.GetSuggestions("print")
	require.Nil(t, dErr)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "k1", suggestions[0].Key)
}

func TestExecuteQueryUnknownKeyBeforeAnyQuery(t *testing.T) {
	svc := NewService(nil, &stubSource{}, nil, nil)
	dErr := svc.ExecuteQuery(makeStringVariant("nonexistent"), 0)
	require.NotNil(t, dErr)
	assert.Equal(t, ErrUnknownKey, dErr.Name)
}

func TestExecuteQueryDispatchesAndClosesLiveQuery(t *testing.T) {
	act := &fakeActivation{key: "k1"}
	src := &stubSource{results: []menu.Result{{Item: newItem("Print", act), Distance: 5}}}
	svc := NewService(nil, src, nil, nil)

	_, _, dErr := svc.GetSuggestions("print")
	require.Nil(t, dErr)

	dErr = svc.ExecuteQuery(makeStringVariant("k1"), 0)
	require.Nil(t, dErr)
	assert.True(t, act.activated)

	dErr = svc.ExecuteQuery(makeStringVariant("k1"), 0)
	require.NotNil(t, dErr)
	assert.Equal(t, ErrUnknownKey, dErr.Name)
}
