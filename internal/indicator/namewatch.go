package indicator

import (
	"context"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// watchName calls onAppeared if name currently has an owner, then
// watches org.freedesktop.DBus.NameOwnerChanged for name, calling
// onAppeared on owner-gain (including an owner change, treated as a full
// resync per spec.md §9's Open Questions resolution) and onVanished on
// owner-loss. It runs its own goroutine and returns immediately.
func watchName(ctx context.Context, conn *dbus.Conn, name string, logger *slog.Logger, onAppeared, onVanished func()) {
	rule := []dbus.MatchOption{
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, name),
	}
	if err := conn.AddMatchSignal(rule...); err != nil {
		logger.Warn("indicator: failed to watch bus name", "name", name, "error", err)
	}
	ch := make(chan *dbus.Signal, 8)
	conn.Signal(ch)

	go func() {
		var owned string
		if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owned); err == nil && owned != "" {
			onAppeared()
		}

		for {
			select {
			case <-ctx.Done():
				conn.RemoveSignal(ch)
				close(ch)
				return
			case sig, ok := <-ch:
				if !ok {
					return
				}
				if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) != 3 {
					continue
				}
				sigName, _ := sig.Body[0].(string)
				if sigName != name {
					continue
				}
				oldOwner, _ := sig.Body[1].(string)
				newOwner, _ := sig.Body[2].(string)
				switch {
				case oldOwner == "" && newOwner != "":
					onAppeared()
				case oldOwner != "" && newOwner == "":
					onVanished()
				case oldOwner != "" && newOwner != "":
					// Owner changed while the name stayed claimed: treat
					// as a full resync rather than guessing continuity.
					onVanished()
					onAppeared()
				}
			}
		}
	}()
}
