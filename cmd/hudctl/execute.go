package main

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/hudd/internal/bus"
)

var executeCmd = &cobra.Command{
	Use:   "execute <key>",
	Short: "Execute a suggestion returned by the last query, by key",
	Long: `Send key to hudd's ExecuteQuery method, activating the menu item it
names. key is the first column printed by "hudctl query".`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

func init() {
	rootCmd.AddCommand(executeCmd)
}

func runExecute(cmd *cobra.Command, args []string) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(bus.ServiceBusName, dbus.ObjectPath(bus.ServiceObjectPath))

	key := dbus.MakeVariant(args[0])
	timestamp := uint32(time.Now().Unix())
	if err := obj.Call(bus.ServiceInterface+".ExecuteQuery", 0, key, timestamp).Err; err != nil {
		return fmt.Errorf("ExecuteQuery failed: %w", err)
	}
	return nil
}
