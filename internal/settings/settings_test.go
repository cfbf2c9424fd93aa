package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecTable(t *testing.T) {
	d := Default()
	assert.Equal(t, uint32(30), d.MaxDistance)
	assert.Equal(t, uint32(10), d.AddPenalty)
	assert.Equal(t, uint32(10), d.DropPenalty)
	assert.Equal(t, uint32(1), d.DropPenaltyEnd)
	assert.Equal(t, uint32(15), d.SwapPenalty)
	assert.Equal(t, uint32(1), d.SwapPenaltyCase)
	assert.Equal(t, uint32(10), d.TransposePenalty)
	assert.Equal(t, uint32(50), d.IndicatorPenalty)
	assert.True(t, d.StoreUsageData)
}

func TestLoadFallsBackOnMissingFile(t *testing.T) {
	got := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Equal(t, Default(), got)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	want := Default()
	want.MaxDistance = 42
	want.StoreUsageData = false

	require.NoError(t, Save(path, want))
	got := Load(path)
	assert.Equal(t, want, got)
}

func TestLoadFallsBackOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, Save(path, Default()))
	require.NoError(t, os.WriteFile(path, []byte("not = [valid toml"), 0o644))

	got := Load(path)
	assert.Equal(t, Default(), got)
}
