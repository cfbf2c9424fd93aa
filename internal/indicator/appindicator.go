package indicator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/hudd/internal/collector"
	"github.com/jmylchreest/hudd/internal/menu"
	"github.com/jmylchreest/hudd/internal/settings"
	"github.com/jmylchreest/hudd/internal/source"
)

// Application-indicator service bus identifiers (§6), grounded in the
// reference's com.canonical.indicator.application service.
const (
	AppIndicatorServiceBusName    = "com.canonical.indicator.application"
	AppIndicatorServiceObjectPath = "/com/canonical/indicator/application/service"
	AppIndicatorServiceInterface  = "com.canonical.indicator.application.service"
)

// applicationDesc mirrors one tuple of GetApplications's
// "a(sisossssss)" reply: icon_name, position, bus_name, object_path,
// icon_theme_path, label, label_guide, a11y, hint_id, title.
type applicationDesc struct {
	IconName      string
	Position      int32
	BusName       string
	ObjectPath    dbus.ObjectPath
	IconThemePath string
	Label         string
	LabelGuide    string
	A11y          string
	HintID        string
	Title         string
}

func decodeApplicationDesc(raw interface{}) (applicationDesc, bool) {
	fields, ok := raw.([]interface{})
	if !ok || len(fields) != 10 {
		return applicationDesc{}, false
	}
	var d applicationDesc
	d.IconName, _ = fields[0].(string)
	d.Position, _ = fields[1].(int32)
	d.BusName, _ = fields[2].(string)
	d.ObjectPath, _ = fields[3].(dbus.ObjectPath)
	d.IconThemePath, _ = fields[4].(string)
	d.Label, _ = fields[5].(string)
	d.LabelGuide, _ = fields[6].(string)
	d.A11y, _ = fields[7].(string)
	d.HintID, _ = fields[8].(string)
	d.Title, _ = fields[9].(string)
	return d, true
}

// appEntry is one live application indicator, indexed by its reported
// position.
type appEntry struct {
	desc      applicationDesc
	collector *collector.DbusmenuCollector
	ctx       context.Context
	unsub     func()
	cancel    context.CancelFunc
}

func displayTitle(title, hintID string) string {
	if title != "" {
		return title
	}
	return fmt.Sprintf("Untitled Indicator (%s)", hintID)
}

// AppIndicatorSource is the dynamic half of §4.5: the set of application
// indicators reported by a single service on the bus, indexed by
// position and kept in sync via its signals.
type AppIndicatorSource struct {
	source.UseCounter
	changed source.Changed

	conn     *dbus.Conn
	snapshot *settings.Snapshot
	logger   *slog.Logger
	penalty  uint32

	ctx context.Context

	mu      sync.Mutex
	entries map[int32]*appEntry
}

// NewAppIndicatorSource builds an AppIndicatorSource. penalty is the
// indicator-penalty percentage (§6).
func NewAppIndicatorSource(conn *dbus.Conn, penalty uint32, snap *settings.Snapshot, logger *slog.Logger) *AppIndicatorSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &AppIndicatorSource{
		conn:     conn,
		snapshot: snap,
		logger:   logger,
		penalty:  penalty,
		entries:  make(map[int32]*appEntry),
	}
	forEach := func(fn func(*collector.DbusmenuCollector)) {
		s.mu.Lock()
		cs := make([]*collector.DbusmenuCollector, 0, len(s.entries))
		for _, e := range s.entries {
			cs = append(cs, e.collector)
		}
		s.mu.Unlock()
		for _, c := range cs {
			fn(c)
		}
	}
	s.UseCounter.OnActivate = func() { forEach(func(c *collector.DbusmenuCollector) { c.Use() }) }
	s.UseCounter.OnDeactivate = func() { forEach(func(c *collector.DbusmenuCollector) { c.Unuse() }) }
	return s
}

// Start watches the application-indicator service's bus name and
// resyncs whenever it appears (including an owner change, per spec.md
// §9's Open Questions resolution).
func (s *AppIndicatorSource) Start(ctx context.Context) {
	s.ctx = ctx
	watchName(ctx, s.conn, AppIndicatorServiceBusName, s.logger, s.resync, s.clear)
	s.subscribeSignals(ctx)
}

func (s *AppIndicatorSource) subscribeSignals(ctx context.Context) {
	rule := []dbus.MatchOption{
		dbus.WithMatchInterface(AppIndicatorServiceInterface),
		dbus.WithMatchObjectPath(dbus.ObjectPath(AppIndicatorServiceObjectPath)),
	}
	if err := s.conn.AddMatchSignal(rule...); err != nil {
		s.logger.Debug("appindicator: failed to subscribe to signals", "error", err)
	}
	ch := make(chan *dbus.Signal, 32)
	s.conn.Signal(ch)
	go s.watch(ctx, ch)
}

func (s *AppIndicatorSource) watch(ctx context.Context, ch chan *dbus.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			s.handleSignal(sig)
		}
	}
}

func (s *AppIndicatorSource) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case AppIndicatorServiceInterface + ".ApplicationAdded":
		if len(sig.Body) != 1 {
			return
		}
		desc, ok := decodeApplicationDesc(sig.Body[0])
		if !ok {
			s.resync()
			return
		}
		s.add(desc)
	case AppIndicatorServiceInterface + ".ApplicationRemoved":
		if len(sig.Body) != 1 {
			return
		}
		pos, ok := sig.Body[0].(int32)
		if !ok {
			s.resync()
			return
		}
		s.remove(pos)
	case AppIndicatorServiceInterface + ".ApplicationIconChanged":
		if len(sig.Body) != 3 {
			return
		}
		pos, _ := sig.Body[0].(int32)
		icon, _ := sig.Body[1].(string)
		a11y, _ := sig.Body[2].(string)
		s.mutate(pos, func(d *applicationDesc) { d.IconName = icon; d.A11y = a11y })
	case AppIndicatorServiceInterface + ".ApplicationTitleChanged":
		if len(sig.Body) != 2 {
			return
		}
		pos, _ := sig.Body[0].(int32)
		title, _ := sig.Body[1].(string)
		s.retitle(pos, title)
	case AppIndicatorServiceInterface + ".ApplicationLabelChanged":
		if len(sig.Body) != 3 {
			return
		}
		pos, _ := sig.Body[0].(int32)
		label, _ := sig.Body[1].(string)
		guide, _ := sig.Body[2].(string)
		// Cosmetic only; no re-render of matchable text is needed since
		// labels are not part of the menu path.
		s.mutate(pos, func(d *applicationDesc) { d.Label = label; d.LabelGuide = guide })
	case AppIndicatorServiceInterface + ".ApplicationIconThemePathChanged":
		if len(sig.Body) != 2 {
			return
		}
		pos, _ := sig.Body[0].(int32)
		path, _ := sig.Body[1].(string)
		s.mutate(pos, func(d *applicationDesc) { d.IconThemePath = path })
	}
}

func (s *AppIndicatorSource) mutate(pos int32, fn func(*applicationDesc)) {
	s.mu.Lock()
	e, ok := s.entries[pos]
	if ok {
		fn(&e.desc)
	}
	s.mu.Unlock()
	if ok {
		s.changed.Emit()
	} else {
		s.resync()
	}
}

// retitle updates an entry's title and pushes it down as the entry's
// Collector prefix, so every Result from it carries the new display name
// (§4.5: an indicator with no title shows as "Untitled Indicator
// (<hint-id>)").
func (s *AppIndicatorSource) retitle(pos int32, title string) {
	s.mu.Lock()
	e, ok := s.entries[pos]
	if ok {
		e.desc.Title = title
	}
	s.mu.Unlock()
	if !ok {
		s.resync()
		return
	}
	e.collector.SetPrefix(e.ctx, displayTitle(title, e.desc.HintID))
	s.changed.Emit()
}

// resync fully reloads the indicator set via GetApplications, per §4.5's
// "ApplicationRemoved out of range is a protocol error: resynchronise by
// re-issuing GetApplications" and this module's treatment of a name-owner
// change as a full resync.
func (s *AppIndicatorSource) resync() {
	if s.ctx == nil {
		return
	}
	obj := s.conn.Object(AppIndicatorServiceBusName, dbus.ObjectPath(AppIndicatorServiceObjectPath))
	var raw []interface{}
	if err := obj.CallWithContext(s.ctx, AppIndicatorServiceInterface+".GetApplications", 0).Store(&raw); err != nil {
		s.logger.Warn("appindicator: GetApplications failed", "error", err)
		return
	}

	s.clear()

	for _, r := range raw {
		desc, ok := decodeApplicationDesc(r)
		if !ok {
			continue
		}
		s.add(desc)
	}
}

func (s *AppIndicatorSource) add(desc applicationDesc) {
	cctx, cancel := context.WithCancel(s.ctx)
	prefix := displayTitle(desc.Title, desc.HintID)
	c := collector.NewDbusmenuCollector(s.conn, desc.BusName, string(desc.ObjectPath), prefix, s.penalty, s.snapshot, s.logger)

	e := &appEntry{desc: desc, collector: c, ctx: cctx, cancel: cancel}
	e.unsub = c.OnChanged(s.changed.Emit)

	s.mu.Lock()
	if old, exists := s.entries[desc.Position]; exists {
		s.removeEntryLocked(old)
	}
	s.entries[desc.Position] = e
	inUse := s.UseCounter.InUse()
	s.mu.Unlock()

	go c.Start(cctx)
	if inUse {
		c.Use()
	}
	s.changed.Emit()
}

func (s *AppIndicatorSource) remove(pos int32) {
	s.mu.Lock()
	e, ok := s.entries[pos]
	if ok {
		s.removeEntryLocked(e)
		delete(s.entries, pos)
	}
	s.mu.Unlock()
	if !ok {
		s.resync()
		return
	}
	s.changed.Emit()
}

func (s *AppIndicatorSource) removeEntryLocked(e *appEntry) {
	if e.unsub != nil {
		e.unsub()
	}
	e.collector.Close()
	if e.cancel != nil {
		e.cancel()
	}
}

func (s *AppIndicatorSource) clear() {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[int32]*appEntry)
	s.mu.Unlock()
	for _, e := range entries {
		s.removeEntryLocked(e)
	}
	s.changed.Emit()
}

// Use implements Source.
func (s *AppIndicatorSource) Use() { s.UseCounter.Use() }

// Unuse implements Source.
func (s *AppIndicatorSource) Unuse() { s.UseCounter.Unuse() }

// OnChanged implements Source.
func (s *AppIndicatorSource) OnChanged(fn func()) func() { return s.changed.Subscribe(fn) }

// Search implements Source: forward to every live application
// indicator's Collector, in position order.
func (s *AppIndicatorSource) Search(out []menu.Result, query string) []menu.Result {
	s.mu.Lock()
	positions := make([]int32, 0, len(s.entries))
	for p := range s.entries {
		positions = append(positions, p)
	}
	entries := s.entries
	s.mu.Unlock()

	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			if positions[j] < positions[i] {
				positions[i], positions[j] = positions[j], positions[i]
			}
		}
	}
	for _, p := range positions {
		out = entries[p].collector.Search(out, query)
	}
	return out
}
