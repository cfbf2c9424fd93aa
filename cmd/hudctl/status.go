package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/hudd/internal/bus"
	"github.com/jmylchreest/hudd/internal/settings"
	"github.com/jmylchreest/hudd/internal/usage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether hudd is reachable and summarize its on-disk state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	defer conn.Close()

	var hasOwner bool
	if err := conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, bus.ServiceBusName).Store(&hasOwner); err != nil {
		return fmt.Errorf("query bus for %s: %w", bus.ServiceBusName, err)
	}
	if hasOwner {
		fmt.Printf("hudd: running (%s)\n", bus.ServiceBusName)
	} else {
		fmt.Printf("hudd: not running (%s has no owner)\n", bus.ServiceBusName)
	}

	if path, err := settings.Path(); err == nil {
		if info, err := os.Stat(path); err == nil {
			fmt.Printf("settings: %s, last changed %s\n", path, humanize.Time(info.ModTime()))
		} else {
			fmt.Printf("settings: %s (using compiled-in defaults)\n", path)
		}
	}

	if path, err := usage.StorePath(); err == nil {
		if info, err := os.Stat(path); err == nil {
			fmt.Printf("usage store: %s, %s, last written %s\n",
				path, humanize.Bytes(uint64(info.Size())), humanize.Time(info.ModTime()))
		} else {
			fmt.Printf("usage store: %s (not yet created)\n", path)
		}
	}

	return nil
}
