package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/hudd/internal/settings"
)

var settingsOpts struct {
	format string
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Print hudd's current settings",
	Long: `Print the settings hudd would load on startup: the local
settings.toml merged over the compiled-in defaults.

This reads the same file hudd watches, not the live daemon's in-memory
snapshot, so changes since the daemon's last reload may not show here.`,
	RunE: runSettings,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.Flags().StringVar(&settingsOpts.format, "format", "toml", "Output format (toml, json, yaml)")
}

func runSettings(cmd *cobra.Command, args []string) error {
	path, err := settings.Path()
	if err != nil {
		return fmt.Errorf("resolve settings path: %w", err)
	}
	current := settings.Load(path)

	switch settingsOpts.format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(current)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(current)
	}

	fmt.Printf("# %s\n", path)
	fmt.Printf("max-distance = %d\n", current.MaxDistance)
	fmt.Printf("add-penalty = %d\n", current.AddPenalty)
	fmt.Printf("drop-penalty = %d\n", current.DropPenalty)
	fmt.Printf("drop-penalty-end = %d\n", current.DropPenaltyEnd)
	fmt.Printf("swap-penalty = %d\n", current.SwapPenalty)
	fmt.Printf("swap-penalty-case = %d\n", current.SwapPenaltyCase)
	fmt.Printf("transpose-penalty = %d\n", current.TransposePenalty)
	fmt.Printf("indicator-penalty = %d\n", current.IndicatorPenalty)
	fmt.Printf("store-usage-data = %t\n", current.StoreUsageData)
	return nil
}
