package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// AppMenu registrar bus identifiers, grounded in the legacy
// com.canonical.AppMenu.Registrar service this module's WindowSource
// consumes to discover dbusmenu endpoints for windows that do not export
// a GMenuModel (§6).
const (
	AppMenuRegistrarBusName    = "com.canonical.AppMenu.Registrar"
	AppMenuRegistrarObjectPath = "/com/canonical/AppMenu/Registrar"
	AppMenuRegistrarInterface  = "com.canonical.AppMenu.Registrar"
)

// WindowMenu is a (bus_name, object_path) pair identifying a window's
// dbusmenu endpoint.
type WindowMenu struct {
	BusName    string
	ObjectPath string
}

// AppMenuRegistrar is a thin client for the registrar service. It is
// consumed, not implemented, by this module (§6): the registrar is an
// external collaborator out of scope per spec.md §1.
type AppMenuRegistrar struct {
	conn   *dbus.Conn
	logger *slog.Logger

	mu            sync.Mutex
	onRegistered  func(xid uint32, menu WindowMenu)
	onUnregistered func(xid uint32)
	sigCh         chan *dbus.Signal
}

// NewAppMenuRegistrar builds a client bound to conn.
func NewAppMenuRegistrar(conn *dbus.Conn, logger *slog.Logger) *AppMenuRegistrar {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppMenuRegistrar{conn: conn, logger: logger}
}

// OnWindowRegistered sets the callback invoked on a WindowRegistered
// signal.
func (r *AppMenuRegistrar) OnWindowRegistered(fn func(xid uint32, menu WindowMenu)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRegistered = fn
}

// OnWindowUnregistered sets the callback invoked on a WindowUnregistered
// signal.
func (r *AppMenuRegistrar) OnWindowUnregistered(fn func(xid uint32)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUnregistered = fn
}

// Start subscribes to WindowRegistered/WindowUnregistered. The registrar
// may not be running; a subscription failure is logged, not fatal, since
// GetMenuForWindow calls below degrade gracefully to "no menu" when the
// service is absent (§7: protocol/transport errors never propagate to the
// caller).
func (r *AppMenuRegistrar) Start(ctx context.Context) {
	rule := []dbus.MatchOption{
		dbus.WithMatchInterface(AppMenuRegistrarInterface),
		dbus.WithMatchObjectPath(dbus.ObjectPath(AppMenuRegistrarObjectPath)),
	}
	if err := r.conn.AddMatchSignal(rule...); err != nil {
		r.logger.Debug("appmenu registrar: subscribe failed (service may be absent)", "error", err)
	}
	ch := make(chan *dbus.Signal, 16)
	r.conn.Signal(ch)
	r.mu.Lock()
	r.sigCh = ch
	r.mu.Unlock()
	go r.watch(ctx, ch)
}

func (r *AppMenuRegistrar) watch(ctx context.Context, ch chan *dbus.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-ch:
			if !ok {
				return
			}
			switch sig.Name {
			case AppMenuRegistrarInterface + ".WindowRegistered":
				if len(sig.Body) != 3 {
					continue
				}
				xid, _ := sig.Body[0].(uint32)
				busName, _ := sig.Body[1].(string)
				path, _ := sig.Body[2].(dbus.ObjectPath)
				r.mu.Lock()
				cb := r.onRegistered
				r.mu.Unlock()
				if cb != nil {
					cb(xid, WindowMenu{BusName: busName, ObjectPath: string(path)})
				}
			case AppMenuRegistrarInterface + ".WindowUnregistered":
				if len(sig.Body) != 1 {
					continue
				}
				xid, _ := sig.Body[0].(uint32)
				r.mu.Lock()
				cb := r.onUnregistered
				r.mu.Unlock()
				if cb != nil {
					cb(xid)
				}
			}
		}
	}
}

// GetMenuForWindow looks up the dbusmenu endpoint for xid. ok is false if
// the registrar has no menu registered for the window or is unreachable.
func (r *AppMenuRegistrar) GetMenuForWindow(ctx context.Context, xid uint32) (WindowMenu, bool) {
	obj := r.conn.Object(AppMenuRegistrarBusName, dbus.ObjectPath(AppMenuRegistrarObjectPath))
	var busName string
	var path dbus.ObjectPath
	err := obj.CallWithContext(ctx, AppMenuRegistrarInterface+".GetMenuForWindow", 0, xid).Store(&busName, &path)
	if err != nil || busName == "" || path == "" {
		return WindowMenu{}, false
	}
	return WindowMenu{BusName: busName, ObjectPath: string(path)}, true
}
