package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/hudd/internal/query"
	"github.com/jmylchreest/hudd/internal/source"
	"github.com/jmylchreest/hudd/internal/usage"
)

// HUD bus service identifiers (§6). The reference resolves these from a
// build-time header not present in the retrieval pack; this module uses
// the same "com.canonical.*" naming convention its sibling services
// (AppMenu registrar, application-indicator service) are grounded on.
const (
	ServiceBusName    = "com.canonical.hud"
	ServiceObjectPath = "/com/canonical/hud"
	ServiceInterface  = "com.canonical.hud"
)

// ErrUnknownKey is the bus error name returned by ExecuteQuery for an
// unrecognised or expired key (§7).
const ErrUnknownKey = "com.canonical.Hud.Error.UnknownKey"

// MaxResults bounds the suggestion list GetSuggestions returns. The
// reference's GetSuggestions takes only a query string with no
// caller-supplied count, so the cap is fixed here.
const MaxResults = 20

// suggestion is one GetSuggestions reply tuple: (display_html,
// app_icon_name, item_icon_name, reserved, key). Field order determines
// the exported "(sssss)" struct signature. Icon resolution (desktop file
// -> themed icon name) is out of scope for this module: nothing in the
// retrieval pack provides a desktop-file-to-icon lookup, so both icon
// fields are always returned empty. See DESIGN.md.
type suggestion struct {
	DisplayHTML string
	AppIcon     string
	ItemIcon    string
	Reserved    string
	Key         string
}

// Service exports the HUD's external bus surface: GetSuggestions and
// ExecuteQuery (§6).
type Service struct {
	conn    *dbus.Conn
	root    source.Source
	tracker *usage.Tracker
	logger  *slog.Logger

	mu   sync.Mutex
	live *query.Query
}

// NewService builds a Service. root is the top-level SourceList the HUD
// searches against.
func NewService(conn *dbus.Conn, root source.Source, tracker *usage.Tracker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{conn: conn, root: root, tracker: tracker, logger: logger}
}

// Start exports the service and claims its well-known bus name.
func (s *Service) Start() error {
	if err := s.conn.Export(s, dbus.ObjectPath(ServiceObjectPath), ServiceInterface); err != nil {
		return fmt.Errorf("hud bus: export failed: %w", err)
	}

	node := &introspect.Node{
		Name: ServiceObjectPath,
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    ServiceInterface,
				Methods: serviceMethods(),
			},
		},
	}
	if err := s.conn.Export(introspect.NewIntrospectable(node), dbus.ObjectPath(ServiceObjectPath),
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("hud bus: export introspectable failed: %w", err)
	}

	reply, err := s.conn.RequestName(ServiceBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("hud bus: request name failed: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("hud bus: name %s already taken", ServiceBusName)
	}
	s.logger.Info("hud bus service started", "name", ServiceBusName, "path", ServiceObjectPath)
	return nil
}

// GetSuggestions is the exported D-Bus method: GetSuggestions(s) -> (s,
// a(sssss)). The first call creates the live Query; later calls keep that
// Query and re-run it in place with the new search string (SetSearch).
func (s *Service) GetSuggestions(queryStr string) (string, []suggestion, *dbus.Error) {
	s.mu.Lock()
	if s.live == nil {
		s.live = query.New(s.root, queryStr, MaxResults, s.tracker)
	} else {
		s.live.SetSearch(queryStr)
	}
	live := s.live
	s.mu.Unlock()

	results := live.Results()
	out := make([]suggestion, 0, len(results))
	for _, r := range results {
		key := ""
		if r.Item != nil && r.Item.Activation != nil {
			key = r.Item.Activation.Key()
		}
		out = append(out, suggestion{DisplayHTML: r.RenderHTML(), Key: key})
	}
	return "", out, nil
}

// ExecuteQuery is the exported D-Bus method: ExecuteQuery(v, u). key's
// variant shape is opaque to this method; it is forwarded verbatim as the
// map lookup key the live Query already tagged when it built Results.
func (s *Service) ExecuteQuery(key dbus.Variant, timestamp uint32) *dbus.Error {
	keyStr, ok := key.Value().(string)
	if !ok {
		return dbus.NewError(ErrUnknownKey, nil)
	}

	s.mu.Lock()
	live := s.live
	s.mu.Unlock()
	if live == nil {
		return dbus.NewError(ErrUnknownKey, nil)
	}

	err := live.Execute(context.Background(), keyStr, timestamp)
	if err == nil {
		s.mu.Lock()
		if s.live == live {
			s.live = nil
		}
		s.mu.Unlock()
		return nil
	}
	if errors.Is(err, query.ErrUnknownKey) {
		return dbus.NewError(ErrUnknownKey, nil)
	}
	s.logger.Warn("hud bus: activation failed", "error", err)
	return dbus.NewError(ErrUnknownKey, nil)
}

func serviceMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "GetSuggestions",
			Args: []introspect.Arg{
				{Name: "query", Type: "s", Direction: "in"},
				{Name: "target", Type: "s", Direction: "out"},
				{Name: "suggestions", Type: "a(sssss)", Direction: "out"},
			},
		},
		{
			Name: "ExecuteQuery",
			Args: []introspect.Arg{
				{Name: "key", Type: "v", Direction: "in"},
				{Name: "timestamp", Type: "u", Direction: "in"},
			},
		},
	}
}
