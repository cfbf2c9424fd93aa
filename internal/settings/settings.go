// Package settings holds the HUD's process-wide tuning values (§6 of the
// specification). The reference reads these from a desktop settings
// service; no such client exists anywhere in this module's dependency
// graph, so they are loaded from a local TOML file instead, with the same
// compiled-in defaults and the same fall-back-on-read-failure behaviour.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Settings is the full set of tunable keys from §6, all unsigned integers
// except store-usage-data.
type Settings struct {
	MaxDistance      uint32 `toml:"max-distance" yaml:"max-distance"`
	AddPenalty       uint32 `toml:"add-penalty" yaml:"add-penalty"`
	DropPenalty      uint32 `toml:"drop-penalty" yaml:"drop-penalty"`
	DropPenaltyEnd   uint32 `toml:"drop-penalty-end" yaml:"drop-penalty-end"`
	SwapPenalty      uint32 `toml:"swap-penalty" yaml:"swap-penalty"`
	SwapPenaltyCase  uint32 `toml:"swap-penalty-case" yaml:"swap-penalty-case"`
	TransposePenalty uint32 `toml:"transpose-penalty" yaml:"transpose-penalty"`
	IndicatorPenalty uint32 `toml:"indicator-penalty" yaml:"indicator-penalty"`
	StoreUsageData   bool   `toml:"store-usage-data" yaml:"store-usage-data"`
}

// Default returns the compiled-in defaults from §6.
func Default() Settings {
	return Settings{
		MaxDistance:      30,
		AddPenalty:       10,
		DropPenalty:      10,
		DropPenaltyEnd:   1,
		SwapPenalty:      15,
		SwapPenaltyCase:  1,
		TransposePenalty: 10,
		IndicatorPenalty: 50,
		StoreUsageData:   true,
	}
}

// Path returns the settings file location, honouring $XDG_CONFIG_HOME the
// way the teacher's config.ConfigPath does.
func Path() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "hud", "settings.toml"), nil
}

// Load reads settings from path, falling back to Default() on any read or
// parse failure per §7's "Settings read failure" clause.
func Load(path string) Settings {
	defaults := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return defaults
	}
	loaded := defaults
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return defaults
	}
	return loaded
}

// Save writes settings to path as TOML, creating the parent directory if
// needed.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}
