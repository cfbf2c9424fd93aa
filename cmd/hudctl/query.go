package main

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/hudd/internal/bus"
)

var queryCmd = &cobra.Command{
	Use:   "query <search>",
	Short: "Run a suggestion query against the running hudd daemon",
	Long: `Send search to hudd's GetSuggestions method and print the ranked
suggestion list, one per line as "<key>\t<display>".

Examples:
  hudctl query firefox
  hudctl query "new tab"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

// suggestionReply mirrors bus.Service's exported (sssss) suggestion tuple:
// display_html, app_icon, item_icon, reserved, key.
type suggestionReply struct {
	DisplayHTML string
	AppIcon     string
	ItemIcon    string
	Reserved    string
	Key         string
}

func runQuery(cmd *cobra.Command, args []string) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(bus.ServiceBusName, dbus.ObjectPath(bus.ServiceObjectPath))

	var target string
	var suggestions []suggestionReply
	if err := obj.Call(bus.ServiceInterface+".GetSuggestions", 0, args[0]).Store(&target, &suggestions); err != nil {
		return fmt.Errorf("GetSuggestions failed: %w", err)
	}

	for _, s := range suggestions {
		fmt.Printf("%s\t%s\n", s.Key, s.DisplayHTML)
	}
	return nil
}
