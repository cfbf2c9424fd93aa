package usage

import (
	"os"
	"path/filepath"
)

// CacheDir resolves the base cache directory, honouring HUD_CACHE_DIR
// (§6) ahead of $XDG_CACHE_HOME, following the same precedence the
// teacher's store.DataDir applies to XDG_DATA_HOME.
func CacheDir() (string, error) {
	if dir := os.Getenv("HUD_CACHE_DIR"); dir != "" {
		return dir, nil
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache"), nil
}

// StorePath returns the durable usage-log location named in §6:
// <cache_dir>/indicator-appmenu/hud-usage-log.sqlite. The file itself is a
// bbolt database, not a sqlite one (see DESIGN.md); the literal path is
// kept because §6 names it verbatim as the persisted-state location.
func StorePath() (string, error) {
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "indicator-appmenu", "hud-usage-log.sqlite"), nil
}

// InfoDir resolves the directory to search for <app>.hud-app-info seed
// files, honouring HUD_APP_INFO_DIR.
func InfoDir() string {
	if dir := os.Getenv("HUD_APP_INFO_DIR"); dir != "" {
		return dir
	}
	dir, err := CacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "indicator-appmenu", "apps")
}

// ForceInMemory reports whether HUD_NO_STORE_USAGE_DATA forces the
// in-memory fallback regardless of the store-usage-data setting.
func ForceInMemory() bool {
	_, set := os.LookupEnv("HUD_NO_STORE_USAGE_DATA")
	return set
}
