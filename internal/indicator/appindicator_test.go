package indicator

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestDisplayTitleFallsBackToHintID(t *testing.T) {
	assert.Equal(t, "Firefox", displayTitle("Firefox", "firefox_1"))
	assert.Equal(t, "Untitled Indicator (firefox_1)", displayTitle("", "firefox_1"))
}

func TestDecodeApplicationDescDecodesWellFormedTuple(t *testing.T) {
	raw := []interface{}{
		"icon-name", int32(3), ":1.42", dbus.ObjectPath("/org/ayatana/NotificationItem/App"),
		"/usr/share/icons", "label", "label-guide", "a11y-desc", "hint-1", "My App",
	}
	d, ok := decodeApplicationDesc(raw)
	assert.True(t, ok)
	assert.Equal(t, "icon-name", d.IconName)
	assert.Equal(t, int32(3), d.Position)
	assert.Equal(t, ":1.42", d.BusName)
	assert.Equal(t, dbus.ObjectPath("/org/ayatana/NotificationItem/App"), d.ObjectPath)
	assert.Equal(t, "My App", d.Title)
	assert.Equal(t, "hint-1", d.HintID)
}

func TestDecodeApplicationDescRejectsWrongArity(t *testing.T) {
	_, ok := decodeApplicationDesc([]interface{}{"too", "short"})
	assert.False(t, ok)
}

func TestDecodeApplicationDescRejectsNonTuple(t *testing.T) {
	_, ok := decodeApplicationDesc("not a tuple")
	assert.False(t, ok)
}
