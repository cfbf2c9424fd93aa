package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/hudd/internal/menu"
	"github.com/jmylchreest/hudd/internal/settings"
	"github.com/jmylchreest/hudd/internal/tokenise"
)

const dbusmenuInterface = "com.canonical.dbusmenu"

// dbusmenuLabelProperty maps an item's "type" property to the property
// holding its label, per the table in §4.3.1. An absent entry means the
// type is not on the allow-list and the node never matches.
var dbusmenuLabelProperty = map[string]string{
	"":                      "label",
	"standard":              "label",
	"application-item":      "label",
	"indicator-item":        "indicator-label",
	"appointment-item":      "appointment-label",
	"timezone-item":         "timezone-name",
	"sound-player-metadata": "player-name",
	"user-item":             "user-item-name",
}

// dbusmenuLayout mirrors one node of a GetLayout reply: the D-Bus
// signature "(ia{sv}av)" — a numeric id, a property bag, and an array of
// variants each wrapping another layout node.
type dbusmenuLayout struct {
	ID         int32
	Properties map[string]dbus.Variant
	Children   []dbusmenuLayout
}

func propString(props map[string]dbus.Variant, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

func propBoolDefault(props map[string]dbus.Variant, key string, def bool) bool {
	v, ok := props[key]
	if !ok {
		return def
	}
	b, ok := v.Value().(bool)
	if !ok {
		return def
	}
	return b
}

// decodeLayout converts the generic []interface{} godbus decodes a
// "(ia{sv}av)" struct variant into into a typed dbusmenuLayout, recursing
// through the children array.
func decodeLayout(raw interface{}) (dbusmenuLayout, error) {
	fields, ok := raw.([]interface{})
	if !ok || len(fields) != 3 {
		return dbusmenuLayout{}, fmt.Errorf("dbusmenu: malformed layout struct")
	}
	var l dbusmenuLayout
	id, ok := fields[0].(int32)
	if !ok {
		return dbusmenuLayout{}, fmt.Errorf("dbusmenu: layout id not int32")
	}
	l.ID = id

	props, ok := fields[1].(map[string]dbus.Variant)
	if !ok {
		return dbusmenuLayout{}, fmt.Errorf("dbusmenu: layout properties not a{sv}")
	}
	l.Properties = props

	children, ok := fields[2].([]dbus.Variant)
	if !ok {
		return dbusmenuLayout{}, fmt.Errorf("dbusmenu: layout children not av")
	}
	l.Children = make([]dbusmenuLayout, 0, len(children))
	for _, c := range children {
		child, err := decodeLayout(c.Value())
		if err != nil {
			return dbusmenuLayout{}, err
		}
		l.Children = append(l.Children, child)
	}
	return l, nil
}

// dbusmenuActivation is the ActivationHandle for a dbusmenu-backed Item.
type dbusmenuActivation struct {
	collector *DbusmenuCollector
	itemID    int32
}

func (a *dbusmenuActivation) Key() string {
	return dbusmenuKey(a.collector.BusName, a.collector.ObjectPath, a.itemID)
}

func (a *dbusmenuActivation) Activate(ctx context.Context, timestamp uint32) error {
	return a.collector.activate(ctx, a.itemID, timestamp)
}

// DbusmenuCollector mirrors a remote menu reached via the "dbusmenu"
// interface at (BusName, ObjectPath), per §4.3.1.
type DbusmenuCollector struct {
	*Base

	conn *dbus.Conn

	mu       sync.Mutex
	sigCh    chan *dbus.Signal
	stopSig  func()
	stopOnce sync.Once
}

// NewDbusmenuCollector constructs a collector for the dbusmenu endpoint at
// (busName, objectPath). Construction is infallible (§9 design note): the
// initial layout fetch and signal subscription run asynchronously via
// Start, and the Collector reports no Items until the first fetch
// completes and emits changed.
func NewDbusmenuCollector(conn *dbus.Conn, busName, objectPath, prefix string, penalty uint32, snap *settings.Snapshot, logger *slog.Logger) *DbusmenuCollector {
	c := &DbusmenuCollector{
		Base: NewBase(busName, objectPath, prefix, penalty, snap, logger),
		conn: conn,
	}
	c.UseCounter.OnActivate = c.aboutToShowRoot
	return c
}

// Start subscribes to LayoutUpdated and performs the initial fetch. The
// caller should run it in its own goroutine; Start blocks until the first
// fetch attempt (success or failure) completes, then returns, with any
// subsequent refresh driven by the signal subscription.
func (c *DbusmenuCollector) Start(ctx context.Context) {
	rule := []dbus.MatchOption{
		dbus.WithMatchInterface(dbusmenuInterface),
		dbus.WithMatchMember("LayoutUpdated"),
		dbus.WithMatchObjectPath(dbus.ObjectPath(c.ObjectPath)),
	}
	if err := c.conn.AddMatchSignal(rule...); err != nil {
		c.Logger.Warn("dbusmenu: failed to subscribe to LayoutUpdated", "bus", c.BusName, "path", c.ObjectPath, "error", err)
	}

	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)
	c.mu.Lock()
	c.sigCh = ch
	c.mu.Unlock()

	go c.watch(ctx, ch)

	c.refresh(ctx)
}

// Close cancels the signal subscription. Any in-flight bus call is
// cancelled through ctx by the caller.
func (c *DbusmenuCollector) Close() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		ch := c.sigCh
		c.mu.Unlock()
		if ch != nil {
			c.conn.RemoveSignal(ch)
			close(ch)
		}
	})
}

func (c *DbusmenuCollector) watch(ctx context.Context, ch chan *dbus.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			if sig.Name != dbusmenuInterface+".LayoutUpdated" {
				continue
			}
			if sig.Path != dbus.ObjectPath(c.ObjectPath) {
				continue
			}
			c.refresh(ctx)
		}
	}
}

// refresh re-fetches the whole tree and re-flattens it. Per §4.3.1,
// subscribers must assume every previously held Item from this Collector
// is stale once refresh completes: SetItems swaps the slice and emits
// changed in one step, so there is no window where a reader can observe a
// mix of old and new Items.
func (c *DbusmenuCollector) refresh(ctx context.Context) {
	obj := c.conn.Object(c.BusName, dbus.ObjectPath(c.ObjectPath))
	var revision uint32
	var rawLayout interface{}
	call := obj.CallWithContext(ctx, dbusmenuInterface+".GetLayout", 0, int32(0), int32(-1), []string{})
	if call.Err != nil {
		c.Logger.Warn("dbusmenu: GetLayout failed", "bus", c.BusName, "path", c.ObjectPath, "error", call.Err)
		c.SetErroring(true)
		return
	}
	if err := call.Store(&revision, &rawLayout); err != nil {
		c.Logger.Warn("dbusmenu: GetLayout decode failed", "bus", c.BusName, "path", c.ObjectPath, "error", err)
		c.SetErroring(true)
		return
	}
	root, err := decodeLayout(rawLayout)
	if err != nil {
		c.Logger.Warn("dbusmenu: layout decode failed", "bus", c.BusName, "path", c.ObjectPath, "error", err)
		c.SetErroring(true)
		return
	}
	c.SetErroring(false)

	items := make([]*menu.Item, 0, 32)
	items = flattenDbusmenu(c, &root, prefixTail(c), items)
	c.SetItems(items)
}

// SetPrefix updates the Collector's Prefix and re-flattens the mirrored
// tree so every Result picks up the new root segment, for owners whose
// display name can change after construction (an application indicator's
// title, per §4.5).
func (c *DbusmenuCollector) SetPrefix(ctx context.Context, prefix string) {
	c.Prefix = prefix
	c.refresh(ctx)
}

// prefixTail builds the single-node StringList tail a Collector's Prefix
// contributes as the root segment of every path it mirrors, or nil if it
// has none.
func prefixTail(c *DbusmenuCollector) *menu.StringList {
	if c.Prefix == "" {
		return nil
	}
	return menu.Cons(c.Prefix, nil)
}

// flattenDbusmenu walks the mirror in depth-first pre-order (§4.3.1),
// emitting one Item per allow-listed, labelled node.
//
// §4.3.1's flatten rule reads "default items require both enabled and
// visible" to appear at all, while §3 says a disabled Item stays indexed
// but marked as such. This module resolves the tension in §3's favor:
// visible gates emission (an invisible node never becomes a searchable
// Item), but enabled only feeds Item.Enabled for the caller to render as
// dimmed — it never excludes a node from the mirror. A node disabled at
// flatten time therefore still appears in search and can still be
// activated. Nodes that are invisible, whose type is not on the allow-list
// (separators), or that have no label are not emitted; their children are
// still walked.
func flattenDbusmenu(c *DbusmenuCollector, node *dbusmenuLayout, parent *menu.StringList, out []*menu.Item) []*menu.Item {
	typ, _ := propString(node.Properties, "type")
	labelProp, allowed := dbusmenuLabelProperty[typ]

	var path *menu.StringList
	enabled := propBoolDefault(node.Properties, "enabled", true)
	visible := propBoolDefault(node.Properties, "visible", true)

	if allowed && visible {
		if label, ok := propString(node.Properties, labelProp); ok && label != "" {
			path = menu.Cons(label, parent)
			out = append(out, menu.NewItem(
				path,
				tokenise.Path(path),
				c.BusName,
				&dbusmenuActivation{collector: c, itemID: node.ID},
				enabled,
			))
		}
	}

	childParent := parent
	if path != nil {
		childParent = path
	}
	for i := range node.Children {
		out = flattenDbusmenu(c, &node.Children[i], childParent, out)
	}
	return out
}

// activate invokes Event(id, "clicked", <>, timestamp) on the remote,
// retrying once after ~1s on failure (§4.3.1, §5). A second failure
// surfaces the Collector's error state; a clean call clears it.
func (c *DbusmenuCollector) activate(ctx context.Context, itemID int32, timestamp uint32) error {
	obj := c.conn.Object(c.BusName, dbus.ObjectPath(c.ObjectPath))
	call := func() error {
		return obj.CallWithContext(ctx, dbusmenuInterface+".Event", 0,
			itemID, "clicked", dbus.MakeVariant(""), timestamp).Err
	}

	if err := call(); err != nil {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := call(); err != nil {
			c.SetErroring(true)
			return fmt.Errorf("dbusmenu: activate %d: %w", itemID, err)
		}
	}
	c.SetErroring(false)
	return nil
}

// aboutToShowRoot notifies the remote the HUD is now active so it may
// populate lazily-built submenus, per §4.3's use-count invariant.
func (c *DbusmenuCollector) aboutToShowRoot() {
	obj := c.conn.Object(c.BusName, dbus.ObjectPath(c.ObjectPath))
	var needUpdate bool
	if err := obj.Call(dbusmenuInterface+".AboutToShow", 0, int32(0)).Store(&needUpdate); err != nil {
		c.Logger.Debug("dbusmenu: AboutToShow failed", "bus", c.BusName, "path", c.ObjectPath, "error", err)
		return
	}
	if needUpdate {
		c.refresh(context.Background())
	}
}
