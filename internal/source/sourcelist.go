package source

import (
	"sync"

	"github.com/jmylchreest/hudd/internal/menu"
)

// SourceList is the identity composition: Search forwards to each child in
// registration order, Use/Unuse broadcast, and a changed from any child is
// forwarded once. It is itself a Source, so SourceLists nest.
type SourceList struct {
	mu       sync.RWMutex
	children []Source
	changed  Changed
	uses     UseCounter
	unsubs   map[Source]func()
}

// NewSourceList creates an empty SourceList.
func NewSourceList() *SourceList {
	sl := &SourceList{unsubs: make(map[Source]func())}
	sl.uses.OnActivate = sl.useChildren
	sl.uses.OnDeactivate = sl.unuseChildren
	return sl
}

func (sl *SourceList) useChildren() {
	sl.mu.RLock()
	children := append([]Source(nil), sl.children...)
	sl.mu.RUnlock()
	for _, c := range children {
		c.Use()
	}
}

func (sl *SourceList) unuseChildren() {
	sl.mu.RLock()
	children := append([]Source(nil), sl.children...)
	sl.mu.RUnlock()
	for _, c := range children {
		c.Unuse()
	}
}

// Add registers a new child. If the list is currently in use, the child is
// used before Add returns, per §4.8's "adding a child while sources are in
// use must use() the child before the add returns".
func (sl *SourceList) Add(child Source) {
	sl.mu.Lock()
	sl.children = append(sl.children, child)
	unsub := child.OnChanged(sl.changed.Emit)
	sl.unsubs[child] = unsub
	inUse := sl.uses.InUse()
	sl.mu.Unlock()

	if inUse {
		child.Use()
	}
}

// Remove unregisters child, unusing it first if the list is in use.
func (sl *SourceList) Remove(child Source) {
	sl.mu.Lock()
	inUse := sl.uses.InUse()
	unsub, ok := sl.unsubs[child]
	if ok {
		delete(sl.unsubs, child)
	}
	for i, c := range sl.children {
		if c == child {
			sl.children = append(sl.children[:i], sl.children[i+1:]...)
			break
		}
	}
	sl.mu.Unlock()

	if inUse {
		child.Unuse()
	}
	if unsub != nil {
		unsub()
	}
}

// Use implements Source.
func (sl *SourceList) Use() { sl.uses.Use() }

// Unuse implements Source.
func (sl *SourceList) Unuse() { sl.uses.Unuse() }

// OnChanged implements Source.
func (sl *SourceList) OnChanged(fn func()) func() { return sl.changed.Subscribe(fn) }

// Search implements Source: forward to each child in registration order.
func (sl *SourceList) Search(out []menu.Result, query string) []menu.Result {
	sl.mu.RLock()
	children := append([]Source(nil), sl.children...)
	sl.mu.RUnlock()
	for _, c := range children {
		out = c.Search(out, query)
	}
	return out
}
