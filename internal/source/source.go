// Package source defines the Source capability every searchable component
// in the HUD implements (§4.8), and SourceList, the identity composition
// that fans a search out across children.
package source

import (
	"sync"

	"github.com/jmylchreest/hudd/internal/menu"
)

// Source is the capability every searchable component implements: a
// reference-counted use/unuse lifecycle pair, a search operation, and a
// changed notification. Concrete implementations are DbusmenuCollector,
// MenuModelCollector, IndicatorSource, AppIndicatorSource, WindowSource,
// SourceList, and the debug source.
type Source interface {
	// Use is called on the 0->1 transition; it is forwarded to any
	// downstream Sources and may trigger a "HUD active" side-effect.
	Use()

	// Unuse is called on the 1->0 transition; the corresponding
	// deactivation is forwarded downstream.
	Unuse()

	// Search appends zero or more Results whose distance is at most the
	// caller's max-distance setting to out, and returns the extended
	// slice. At most one caller may be inside Search at a time.
	Search(out []menu.Result, query string) []menu.Result

	// OnChanged registers a callback invoked whenever a subsequent Search
	// for the same query could yield a different result. It returns an
	// unsubscribe function. Multiple upstream events may coalesce into a
	// single downstream call.
	OnChanged(func()) (unsubscribe func())
}

// Changed is an embeddable subscriber-fan-out helper shared by every
// concrete Source, mirroring the teacher's Store subscriber/changed-event
// plumbing (internal/store/store.go Subscribe/notifyChange) but inverted
// into a plain callback list instead of buffered channels, since Sources
// coalesce rather than queue.
type Changed struct {
	mu        sync.Mutex
	listeners map[int]func()
	nextID    int
}

// Subscribe registers fn and returns an unsubscribe function.
func (c *Changed) Subscribe(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listeners == nil {
		c.listeners = make(map[int]func())
	}
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Emit invokes every registered listener. Listeners are copied out under
// lock first so a listener may safely subscribe or unsubscribe from
// within its own callback.
func (c *Changed) Emit() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// UseCounter is an embeddable reference-counted use/unuse tracker.
type UseCounter struct {
	mu    sync.Mutex
	count int

	// OnActivate fires on the 0->1 transition, OnDeactivate on 1->0.
	OnActivate   func()
	OnDeactivate func()
}

func (u *UseCounter) Use() {
	u.mu.Lock()
	u.count++
	first := u.count == 1
	u.mu.Unlock()
	if first && u.OnActivate != nil {
		u.OnActivate()
	}
}

func (u *UseCounter) Unuse() {
	u.mu.Lock()
	last := false
	if u.count > 0 {
		u.count--
		last = u.count == 0
	}
	u.mu.Unlock()
	if last && u.OnDeactivate != nil {
		u.OnDeactivate()
	}
}

// InUse reports whether the use-count is currently above zero.
func (u *UseCounter) InUse() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.count > 0
}
