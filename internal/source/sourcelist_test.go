package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hudd/internal/menu"
)

type stubSource struct {
	UseCounter
	Changed
	label string
	order *[]string
}

func (s *stubSource) OnChanged(fn func()) func() { return s.Changed.Subscribe(fn) }

func (s *stubSource) Search(out []menu.Result, query string) []menu.Result {
	*s.order = append(*s.order, s.label)
	return out
}

func newStub(label string, order *[]string) *stubSource {
	return &stubSource{label: label, order: order}
}

func TestSourceListForwardsSearchInRegistrationOrder(t *testing.T) {
	sl := NewSourceList()
	var order []string
	a := newStub("a", &order)
	b := newStub("b", &order)
	sl.Add(a)
	sl.Add(b)

	sl.Search(nil, "query")
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestSourceListBroadcastsUseUnuse(t *testing.T) {
	sl := NewSourceList()
	var order []string
	a := newStub("a", &order)
	sl.Add(a)

	sl.Use()
	assert.True(t, a.InUse())
	sl.Unuse()
	assert.False(t, a.InUse())
}

func TestSourceListUsesChildAddedWhileInUse(t *testing.T) {
	sl := NewSourceList()
	sl.Use()

	var order []string
	a := newStub("a", &order)
	sl.Add(a)
	assert.True(t, a.InUse())
}

func TestSourceListForwardsChildChangedOnce(t *testing.T) {
	sl := NewSourceList()
	var order []string
	a := newStub("a", &order)
	sl.Add(a)

	fired := 0
	unsub := sl.OnChanged(func() { fired++ })
	defer unsub()

	a.Changed.Emit()
	require.Equal(t, 1, fired)
}
