// Package debugsource implements the HUD_DEBUG_SOURCE-gated synthetic
// Source (§6): a single Item carrying the current date/time, refreshed
// once a second while in use. Development-only, grounded in the
// reference's huddebugsource.c.
package debugsource

import (
	"context"
	"time"

	"github.com/jmylchreest/hudd/internal/menu"
	"github.com/jmylchreest/hudd/internal/source"
	"github.com/jmylchreest/hudd/internal/tokenise"
)

// Source emits exactly one Item, "hud-debug time: <now>", rebuilt every
// second while the use-count is above zero.
type Source struct {
	source.UseCounter
	changed source.Changed

	nowFn func() time.Time

	stop chan struct{}
}

// New builds a debug Source. nowFn defaults to time.Now; tests may
// override it.
func New(nowFn func() time.Time) *Source {
	if nowFn == nil {
		nowFn = time.Now
	}
	s := &Source{nowFn: nowFn}
	s.UseCounter.OnActivate = s.start
	s.UseCounter.OnDeactivate = s.stopTicking
	return s
}

func (s *Source) start() {
	s.stop = make(chan struct{})
	go s.tick(s.stop)
}

func (s *Source) stopTicking() {
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
}

func (s *Source) tick(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	s.changed.Emit()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.changed.Emit()
		}
	}
}

func (s *Source) currentItem() *menu.Item {
	label := "hud-debug time: " + s.nowFn().Local().Format("Mon Jan 2 15:04:05 2006")
	path := menu.Cons(label, nil)
	return menu.NewItem(path, tokenise.Path(path), "", debugActivation{}, true)
}

// debugActivation is a no-op ActivationHandle; the debug Item is never
// meaningfully "activated" by a remote menu.
type debugActivation struct{}

func (debugActivation) Key() string { return "debugsource" }
func (debugActivation) Activate(_ context.Context, _ uint32) error { return nil }

// Use implements Source.
func (s *Source) Use() { s.UseCounter.Use() }

// Unuse implements Source.
func (s *Source) Unuse() { s.UseCounter.Unuse() }

// OnChanged implements Source.
func (s *Source) OnChanged(fn func()) func() { return s.changed.Subscribe(fn) }

// Search implements Source: the debug Item matches any query.
func (s *Source) Search(out []menu.Result, query string) []menu.Result {
	qTokens := tokenise.Tokenise(query)
	if len(qTokens) == 0 {
		return out
	}
	item := s.currentItem()
	return append(out, menu.Result{Item: item, Distance: 0, Matches: item.Tokens})
}
