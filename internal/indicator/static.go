// Package indicator implements the two sibling Sources covering the
// system tray: IndicatorSource, a fixed compile-time list of well-known
// system indicators, and AppIndicatorSource, the dynamic set driven by
// the application-indicator service (§4.5).
package indicator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/hudd/internal/collector"
	"github.com/jmylchreest/hudd/internal/menu"
	"github.com/jmylchreest/hudd/internal/settings"
	"github.com/jmylchreest/hudd/internal/source"
)

// info describes one well-known system indicator: the bus name it lives
// on, the object path of its dbusmenu, a display prefix, and an icon
// name. The icon name is not read anywhere: the bus surface returns empty
// icon fields. This list is the same five indicators the reference ships
// compiled in.
type info struct {
	busName   string
	menuPath  string
	prefix    string
	icon      string
}

var wellKnownIndicators = []info{
	{"com.canonical.indicator.datetime", "/com/canonical/indicator/datetime/menu", "Date", "office-calendar"},
	{"com.canonical.indicator.session", "/com/canonical/indicator/session/menu", "Device", "system-devices-panel"},
	{"com.canonical.indicator.session", "/com/canonical/indicator/users/menu", "Users", "avatar-default"},
	{"com.canonical.indicator.sound", "/com/canonical/indicator/sound/menu", "Sound", "audio-volume-high-panel"},
	{"com.canonical.indicator.messages", "/com/canonical/indicator/messages/menu", "Messages", "indicator-messages"},
}

// slot tracks one well-known indicator's live state: whether its bus name
// currently has an owner, and the Collector mirroring it while it does.
type slot struct {
	info      info
	collector *collector.DbusmenuCollector
	unsub     func()
	cancel    context.CancelFunc
}

// IndicatorSource is the fixed, compile-time list of well-known system
// indicators (§4.5). Each entry watches its bus name and instantiates a
// Collector only while the name has an owner.
type IndicatorSource struct {
	source.UseCounter
	changed source.Changed

	conn     *dbus.Conn
	snapshot *settings.Snapshot
	logger   *slog.Logger
	penalty  uint32

	mu    sync.Mutex
	slots []*slot
}

// New builds an IndicatorSource watching the built-in indicator list.
// penalty is the indicator-penalty percentage (§6) applied to every
// Result the source's collectors produce.
func New(conn *dbus.Conn, penalty uint32, snap *settings.Snapshot, logger *slog.Logger) *IndicatorSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &IndicatorSource{conn: conn, snapshot: snap, logger: logger, penalty: penalty}
	for _, in := range wellKnownIndicators {
		s.slots = append(s.slots, &slot{info: in})
	}
	s.UseCounter.OnActivate = s.useSlots
	s.UseCounter.OnDeactivate = s.unuseSlots
	return s
}

func (s *IndicatorSource) useSlots() {
	s.mu.Lock()
	slots := append([]*slot(nil), s.slots...)
	s.mu.Unlock()
	for _, sl := range slots {
		if sl.collector != nil {
			sl.collector.Use()
		}
	}
}

func (s *IndicatorSource) unuseSlots() {
	s.mu.Lock()
	slots := append([]*slot(nil), s.slots...)
	s.mu.Unlock()
	for _, sl := range slots {
		if sl.collector != nil {
			sl.collector.Unuse()
		}
	}
}

// Start begins watching every well-known indicator's bus name.
func (s *IndicatorSource) Start(ctx context.Context) {
	for _, sl := range s.slots {
		watchName(ctx, s.conn, sl.info.busName, s.logger,
			func() { s.nameAppeared(ctx, sl) },
			func() { s.nameVanished(sl) },
		)
	}
}

func (s *IndicatorSource) nameAppeared(ctx context.Context, sl *slot) {
	s.mu.Lock()
	if sl.collector != nil {
		s.mu.Unlock()
		return
	}
	cctx, cancel := context.WithCancel(ctx)
	c := collector.NewDbusmenuCollector(s.conn, sl.info.busName, sl.info.menuPath, sl.info.prefix, s.penalty, s.snapshot, s.logger)
	sl.collector = c
	sl.cancel = cancel
	sl.unsub = c.OnChanged(s.changed.Emit)
	inUse := s.UseCounter.InUse()
	s.mu.Unlock()

	go c.Start(cctx)
	if inUse {
		c.Use()
	}
	s.changed.Emit()
}

func (s *IndicatorSource) nameVanished(sl *slot) {
	s.mu.Lock()
	c := sl.collector
	unsub := sl.unsub
	cancel := sl.cancel
	sl.collector = nil
	sl.unsub = nil
	sl.cancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	if unsub != nil {
		unsub()
	}
	c.Close()
	if cancel != nil {
		cancel()
	}
	s.changed.Emit()
}

// Use implements Source.
func (s *IndicatorSource) Use() { s.UseCounter.Use() }

// Unuse implements Source.
func (s *IndicatorSource) Unuse() { s.UseCounter.Unuse() }

// OnChanged implements Source.
func (s *IndicatorSource) OnChanged(fn func()) func() { return s.changed.Subscribe(fn) }

// Search implements Source: forward to every currently live indicator's
// Collector.
func (s *IndicatorSource) Search(out []menu.Result, query string) []menu.Result {
	s.mu.Lock()
	slots := append([]*slot(nil), s.slots...)
	s.mu.Unlock()
	for _, sl := range slots {
		if sl.collector != nil {
			out = sl.collector.Search(out, query)
		}
	}
	return out
}
