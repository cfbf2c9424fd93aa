// Package collector implements the Collector contract of §4.3: a Source
// variant that mirrors one remote menu endpoint into a flat, searchable
// list of menu.Item and routes activation back to it. DbusmenuCollector
// and MenuModelCollector share the lifecycle, search, and error-recovery
// machinery in this file; they differ only in how they fetch and decode
// the remote tree and how they dispatch an activation.
package collector

import (
	"log/slog"
	"sync"
	"weak"

	"github.com/jmylchreest/hudd/internal/distance"
	"github.com/jmylchreest/hudd/internal/menu"
	"github.com/jmylchreest/hudd/internal/settings"
	"github.com/jmylchreest/hudd/internal/source"
	"github.com/jmylchreest/hudd/internal/tokenise"
)

// OwnerRef is a weak back-reference from a Collector to the Source that
// holds it (a WindowSource entry, an indicator slot). It lets a Collector
// consult its owner without keeping the owner alive, breaking the cycle
// the owner's strong reference down to the Collector would otherwise
// create (spec.md §9, "cyclic ownership between source and collector").
//
// The reference implementation pulls in github.com/KarpelesLab/weak only
// transitively, with no call site anywhere in the retrieval pack to ground
// its API against; this module uses the standard library's weak package
// instead (added in the Go version this module already targets), which
// gives the identical capability without fabricating calls to an unseen
// third-party API. See DESIGN.md.
type OwnerRef[T any] struct {
	ptr weak.Pointer[T]
}

// NewOwnerRef captures a weak reference to owner.
func NewOwnerRef[T any](owner *T) OwnerRef[T] {
	return OwnerRef[T]{ptr: weak.Make(owner)}
}

// Get resolves the reference, or returns nil if owner has since been
// collected.
func (o OwnerRef[T]) Get() *T {
	return o.ptr.Value()
}

// Base holds the fields and lifecycle machinery every Collector variant
// shares: the mirrored Item list, the use-count and changed fan-out from
// internal/source, the prefix/penalty applied to every Result, and the
// sustained-error flag §7 says the Source layer surfaces as an observable
// property rather than a failed call.
type Base struct {
	source.UseCounter
	Changed source.Changed

	mu    sync.RWMutex
	items []*menu.Item

	erroring bool

	// BusName and ObjectPath identify the remote endpoint this Collector
	// mirrors. Prefix is prepended to every path emitted from this
	// endpoint (an indicator's visible name); Penalty is the percentage
	// added to every distance this Collector's Results carry (§4.5).
	BusName    string
	ObjectPath string
	Prefix     string
	Penalty    uint32

	Settings *settings.Snapshot
	Logger   *slog.Logger
}

// NewBase constructs a Base. logger defaults to slog.Default() if nil.
func NewBase(busName, objectPath, prefix string, penalty uint32, snap *settings.Snapshot, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{
		BusName:    busName,
		ObjectPath: objectPath,
		Prefix:     prefix,
		Penalty:    penalty,
		Settings:   snap,
		Logger:     logger,
	}
}

// SetItems atomically replaces the mirrored Item list and emits changed.
// Per §4.3.1's change-handling contract, subscribers must treat every Item
// from a previous generation as stale the moment this call returns.
func (b *Base) SetItems(items []*menu.Item) {
	b.mu.Lock()
	b.items = items
	b.mu.Unlock()
	b.Changed.Emit()
}

// Items returns the current mirrored Items, for debug introspection.
func (b *Base) Items() []*menu.Item {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]*menu.Item(nil), b.items...)
}

// SetErroring records the Collector's transport-error state (§7: a failed
// activation retried once and still failing surfaces as an observable
// property, not a failed Search). A successful round-trip clears it.
func (b *Base) SetErroring(v bool) {
	b.mu.Lock()
	changed := b.erroring != v
	b.erroring = v
	b.mu.Unlock()
	if changed {
		b.Changed.Emit()
	}
}

// Erroring reports whether the Collector is currently in the error state.
func (b *Base) Erroring() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.erroring
}

// OnChanged implements Source.
func (b *Base) OnChanged(fn func()) func() { return b.Changed.Subscribe(fn) }

// Search implements the shared half of Source.Search: tokenise query once,
// score every mirrored Item, apply Penalty, and append everything within
// the current max-distance. query is tokenised independently of path since
// it has no StringList; Collector variants just call this from their own
// Search wrapper.
func (b *Base) Search(out []menu.Result, query string) []menu.Result {
	qTokens := tokenise.Tokenise(query)
	if len(qTokens) == 0 {
		return out
	}

	snap := settings.Default()
	if b.Settings != nil {
		snap = b.Settings.Get()
	}

	b.mu.RLock()
	items := b.items
	b.mu.RUnlock()

	for _, item := range items {
		dist, matches := distance.Distance(item.Tokens, qTokens, snap)
		if dist == menu.Sentinel {
			continue
		}
		if b.Penalty > 0 {
			dist += dist * b.Penalty / 100
		}
		if dist > snap.MaxDistance {
			continue
		}
		out = append(out, menu.Result{Item: item, Distance: dist, Matches: matches})
	}
	return out
}
