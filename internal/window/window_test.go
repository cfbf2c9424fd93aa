package window

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/hudd/internal/menu"
)

func TestBlockedNamesCoversDesktopChrome(t *testing.T) {
	for _, name := range []string{"Hud", "Hud Prototype Test", "dash", "launcher", "panel"} {
		assert.True(t, blockedNames[name], "expected %q to be blocked", name)
	}
	assert.False(t, blockedNames["Firefox"])
}

func TestDebugBlocklistSplitsOnColon(t *testing.T) {
	t.Setenv("INDICATOR_APPMENU_DEBUG_APPS", "gimp.desktop:inkscape.desktop")
	assert.Equal(t, []string{"gimp.desktop", "inkscape.desktop"}, debugBlocklist())
}

func TestDebugBlocklistEmptyWhenUnset(t *testing.T) {
	t.Setenv("INDICATOR_APPMENU_DEBUG_APPS", "")
	assert.Nil(t, debugBlocklist())
}

func TestEmptySourceNeverMatches(t *testing.T) {
	var s emptySource
	s.Use()
	s.Unuse()
	unsub := s.OnChanged(func() {})
	unsub()

	out := s.Search([]menu.Result{{Distance: 1}}, "anything")
	assert.Len(t, out, 1, "Search must only append, never replace, the caller's sink")
}
