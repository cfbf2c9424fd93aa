package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/hudd/internal/menu"
	"github.com/jmylchreest/hudd/internal/settings"
	"github.com/jmylchreest/hudd/internal/tokenise"
)

const (
	menuModelInterface   = "org.gtk.Menus"
	actionGroupInterface = "org.gtk.Actions"
)

// ActionGroup names the bus endpoint backing one action-group prefix
// ("app.", "win.", or an indicator's own actions) that a menu model's
// items dispatch into once the prefix is stripped (§4.3.2).
type ActionGroup struct {
	Prefix     string // e.g. "app.", "win.", "" for the indicator's own group
	BusName    string
	ObjectPath string
}

// menuModelNode is one decoded item from a GMenuModel: a label plus either
// an action (a leaf) or a section/submenu link (a container). Exactly one
// of Action or Link is meaningful on any given node, matching the
// attribute/link split GMenuModel items use on the wire.
type menuModelNode struct {
	Label      string
	Action     string // raw "group.action" name, group still attached
	Target     *dbus.Variant
	LinkKind   string // "section" or "submenu", empty for a leaf
	LinkGroup  uint32
	LinkIndex  uint32
	LinkExists bool
}

// menuModelActivation is the ActivationHandle for a menu-model-backed
// Item.
type menuModelActivation struct {
	collector *MenuModelCollector
	group     string // resolved action-group prefix, trailing "." kept ("app.")
	action    string // action name with the group prefix already removed
	target    *dbus.Variant
}

func (a *menuModelActivation) Key() string {
	return menuModelKey(a.collector.BusName, a.collector.ObjectPath, a.group, a.action)
}

func (a *menuModelActivation) Activate(ctx context.Context, timestamp uint32) error {
	return a.collector.activate(ctx, a.group, a.action, a.target, timestamp)
}

// MenuModelCollector mirrors a remote menu reached via the GMenuModel
// ("org.gtk.Menus") protocol, with one or more sibling GActionGroup
// ("org.gtk.Actions") endpoints it dispatches activations into (§4.3.2).
type MenuModelCollector struct {
	*Base

	conn   *dbus.Conn
	groups []ActionGroup

	aware bool // CheckAwareness probe succeeded at construction

	mu      sync.Mutex
	sigCh   chan *dbus.Signal
	stopped bool
}

// NewMenuModelCollector constructs a collector for the menu model at
// (busName, objectPath), dispatching into groups. Construction is
// infallible; Start performs the awareness probe and initial fetch
// asynchronously.
func NewMenuModelCollector(conn *dbus.Conn, busName, objectPath, prefix string, penalty uint32, groups []ActionGroup, snap *settings.Snapshot, logger *slog.Logger) *MenuModelCollector {
	c := &MenuModelCollector{
		Base:   NewBase(busName, objectPath, prefix, penalty, snap, logger),
		conn:   conn,
		groups: groups,
	}
	c.UseCounter.OnActivate = func() { c.setHudActive(true) }
	c.UseCounter.OnDeactivate = func() { c.setHudActive(false) }
	return c
}

// Start probes for HUD awareness, subscribes to the model's Changed
// signal, and performs the initial fetch.
func (c *MenuModelCollector) Start(ctx context.Context) {
	obj := c.conn.Object(c.BusName, dbus.ObjectPath(c.ObjectPath))
	c.aware = obj.CallWithContext(ctx, menuModelInterface+".CheckAwareness", 0).Err == nil

	rule := []dbus.MatchOption{
		dbus.WithMatchInterface(menuModelInterface),
		dbus.WithMatchMember("Changed"),
		dbus.WithMatchObjectPath(dbus.ObjectPath(c.ObjectPath)),
	}
	if err := c.conn.AddMatchSignal(rule...); err != nil {
		c.Logger.Warn("menumodel: failed to subscribe to Changed", "bus", c.BusName, "path", c.ObjectPath, "error", err)
	}
	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)
	c.mu.Lock()
	c.sigCh = ch
	c.mu.Unlock()
	go c.watch(ctx, ch)

	c.refresh(ctx)
}

// Close cancels the signal subscription.
func (c *MenuModelCollector) Close() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	ch := c.sigCh
	c.mu.Unlock()
	if ch != nil {
		c.conn.RemoveSignal(ch)
		close(ch)
	}
}

func (c *MenuModelCollector) watch(ctx context.Context, ch chan *dbus.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			if sig.Name != menuModelInterface+".Changed" {
				continue
			}
			c.refresh(ctx)
		}
	}
}

func (c *MenuModelCollector) setHudActive(active bool) {
	if !c.aware {
		return
	}
	if err := c.conn.Emit(dbus.ObjectPath(c.ObjectPath), menuModelInterface+".HudActiveChanged", active); err != nil {
		c.Logger.Debug("menumodel: HudActiveChanged emit failed", "bus", c.BusName, "path", c.ObjectPath, "error", err)
	}
}

// modelGroup is one (group_id, items) pair from a Start() reply: the
// D-Bus signature "(uuaa{sv})" — group id, the starting index of this
// batch within the group (unused, sections reset indices to 0 per group),
// and the item array, each item a property bag.
type modelGroup struct {
	Group uint32
	Start uint32
	Items []map[string]dbus.Variant
}

func decodeModelGroup(raw interface{}) (modelGroup, error) {
	fields, ok := raw.([]interface{})
	if !ok || len(fields) != 3 {
		return modelGroup{}, fmt.Errorf("menumodel: malformed group tuple")
	}
	group, ok := fields[0].(uint32)
	if !ok {
		return modelGroup{}, fmt.Errorf("menumodel: group id not uint32")
	}
	start, _ := fields[1].(uint32)
	rawItems, ok := fields[2].([]map[string]dbus.Variant)
	if !ok {
		return modelGroup{}, fmt.Errorf("menumodel: items not aa{sv}")
	}
	return modelGroup{Group: group, Start: start, Items: rawItems}, nil
}

func itemNode(props map[string]dbus.Variant) menuModelNode {
	var n menuModelNode
	if v, ok := props["label"]; ok {
		if s, ok := v.Value().(string); ok {
			n.Label = s
		}
	}
	if v, ok := props["action"]; ok {
		if s, ok := v.Value().(string); ok {
			n.Action = s
		}
	}
	if v, ok := props["target"]; ok {
		vv := v
		n.Target = &vv
	}
	if v, ok := props[":section"]; ok {
		n.LinkKind = "section"
		n.LinkGroup, n.LinkIndex = decodeLinkVariant(v)
		n.LinkExists = true
	} else if v, ok := props[":submenu"]; ok {
		n.LinkKind = "submenu"
		n.LinkGroup, n.LinkIndex = decodeLinkVariant(v)
		n.LinkExists = true
	}
	return n
}

func decodeLinkVariant(v dbus.Variant) (uint32, uint32) {
	if pair, ok := v.Value().([]interface{}); ok && len(pair) == 2 {
		g, _ := pair[0].(uint32)
		i, _ := pair[1].(uint32)
		return g, i
	}
	return 0, 0
}

// maxModelDepth bounds the recursion through section/submenu links. §4.3.2
// requires defending against a malicious cyclic structure; this collector
// uses a depth cap rather than a visited-set, since GMenuModel groups are
// cheap to re-fetch and a cap is simpler to reason about under concurrent
// Changed signals than an evolving visited-set would be.
const maxModelDepth = 32

// refresh re-fetches every reachable group starting from group 0 and
// re-flattens the tree.
func (c *MenuModelCollector) refresh(ctx context.Context) {
	obj := c.conn.Object(c.BusName, dbus.ObjectPath(c.ObjectPath))

	fetched := make(map[uint32][]menuModelNode)
	var fetch func(group uint32, depth int) error
	fetch = func(group uint32, depth int) error {
		if depth > maxModelDepth {
			return nil
		}
		if _, ok := fetched[group]; ok {
			return nil
		}
		var raw []interface{}
		call := obj.CallWithContext(ctx, menuModelInterface+".Start", 0, []uint32{group})
		if call.Err != nil {
			return call.Err
		}
		if err := call.Store(&raw); err != nil {
			return err
		}
		var nodes []menuModelNode
		for _, g := range raw {
			decoded, err := decodeModelGroup(g)
			if err != nil {
				continue
			}
			if decoded.Group != group {
				continue
			}
			for _, props := range decoded.Items {
				nodes = append(nodes, itemNode(props))
			}
		}
		fetched[group] = nodes
		for _, n := range nodes {
			if n.LinkExists {
				if err := fetch(n.LinkGroup, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := fetch(0, 0); err != nil {
		c.Logger.Warn("menumodel: Start failed", "bus", c.BusName, "path", c.ObjectPath, "error", err)
		c.SetErroring(true)
		return
	}
	c.SetErroring(false)

	var base *menu.StringList
	if c.Prefix != "" {
		base = menu.Cons(c.Prefix, nil)
	}
	var items []*menu.Item
	items = flattenModelGroup(c, fetched, 0, base, 0, items)
	c.SetItems(items)
}

func flattenModelGroup(c *MenuModelCollector, groups map[uint32][]menuModelNode, group uint32, parent *menu.StringList, depth int, out []*menu.Item) []*menu.Item {
	if depth > maxModelDepth {
		return out
	}
	for _, n := range groups[group] {
		switch {
		case n.LinkExists && n.LinkKind == "section":
			path := parent
			if n.Label != "" {
				path = menu.Cons(n.Label, parent)
			}
			out = flattenModelGroup(c, groups, n.LinkGroup, path, depth+1, out)
		case n.LinkExists && n.LinkKind == "submenu":
			path := parent
			if n.Label != "" {
				path = menu.Cons(n.Label, parent)
			}
			out = flattenModelGroup(c, groups, n.LinkGroup, path, depth+1, out)
		case n.Action != "":
			if n.Label == "" {
				continue
			}
			path := menu.Cons(n.Label, parent)
			groupPrefix, action := splitAction(n.Action)
			out = append(out, menu.NewItem(
				path,
				tokenise.Path(path),
				c.BusName,
				&menuModelActivation{collector: c, group: groupPrefix, action: action, target: n.Target},
				true,
			))
		}
	}
	return out
}

// splitAction strips the "app." or "win." prefix from a raw action name,
// per §4.3.2: the mirror records which action group the action belongs
// to and strips the prefix before dispatch. The returned group keeps its
// trailing dot ("app.", "win.") so it compares equal to ActionGroup.Prefix.
func splitAction(raw string) (group, action string) {
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		return raw[:idx+1], raw[idx+1:]
	}
	return "", raw
}

// activate resolves group to one of the Collector's configured action
// groups and calls Activate(name, parameter, platform_data) on it,
// retrying once after ~1s on failure, mirroring DbusmenuCollector's
// retry/error-surfacing discipline.
func (c *MenuModelCollector) activate(ctx context.Context, group, action string, target *dbus.Variant, timestamp uint32) error {
	var ag *ActionGroup
	for i := range c.groups {
		if c.groups[i].Prefix == group {
			ag = &c.groups[i]
			break
		}
	}
	if ag == nil {
		return fmt.Errorf("menumodel: unknown action group %q", group)
	}

	param := dbus.MakeVariant([]dbus.Variant{})
	if target != nil {
		param = *target
	}
	platformData := map[string]dbus.Variant{
		"activation-timestamp": dbus.MakeVariant(timestamp),
	}

	call := func() error {
		obj := c.conn.Object(ag.BusName, dbus.ObjectPath(ag.ObjectPath))
		return obj.CallWithContext(ctx, actionGroupInterface+".Activate", 0, action, []dbus.Variant{param}, platformData).Err
	}

	if err := call(); err != nil {
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := call(); err != nil {
			c.SetErroring(true)
			return fmt.Errorf("menumodel: activate %s.%s: %w", group, action, err)
		}
	}
	c.SetErroring(false)
	return nil
}
