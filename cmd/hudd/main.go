// Package main is the entry point for the hudd HUD daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/hudd/internal/bus"
	"github.com/jmylchreest/hudd/internal/debugsource"
	"github.com/jmylchreest/hudd/internal/indicator"
	"github.com/jmylchreest/hudd/internal/settings"
	"github.com/jmylchreest/hudd/internal/source"
	"github.com/jmylchreest/hudd/internal/usage"
	"github.com/jmylchreest/hudd/internal/window"
)

var (
	// Build-time variables
	version = "dev"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("hudd version", version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("hudd exited with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	logger.Info("starting hudd", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settingsPath, err := settings.Path()
	if err != nil {
		return fmt.Errorf("resolve settings path: %w", err)
	}
	snap := settings.NewSnapshot(settings.Load(settingsPath))

	settingsWatcher, err := settings.NewWatcher(settingsPath, snap, logger)
	if err != nil {
		logger.Warn("failed to create settings watcher", "error", err)
	} else if err := settingsWatcher.Start(); err != nil {
		logger.Warn("failed to start settings watcher", "error", err)
	}

	tracker, err := usage.New(snap.Get().StoreUsageData, logger)
	if err != nil {
		return fmt.Errorf("create usage tracker: %w", err)
	}
	defer tracker.Close()

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	defer conn.Close()

	root := source.NewSourceList()

	registrar := bus.NewAppMenuRegistrar(conn, logger)
	registrar.Start(ctx)

	penalty := snap.Get().IndicatorPenalty

	winSource := window.New(conn, registrar, snap, logger)
	winSource.Start(ctx)
	root.Add(winSource)

	indSource := indicator.New(conn, penalty, snap, logger)
	indSource.Start(ctx)
	root.Add(indSource)

	appIndSource := indicator.NewAppIndicatorSource(conn, penalty, snap, logger)
	appIndSource.Start(ctx)
	root.Add(appIndSource)

	if os.Getenv("HUD_DEBUG_SOURCE") != "" {
		dbg := debugsource.New(nil)
		root.Add(dbg)
		logger.Info("debug source enabled")
	}

	root.Use()
	defer root.Unuse()

	svc := bus.NewService(conn, root, tracker, logger)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("start bus service: %w", err)
	}

	logger.Info("hudd ready", "bus_name", bus.ServiceBusName)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	if settingsWatcher != nil {
		_ = settingsWatcher.Stop()
	}
	cancel()
	return nil
}
