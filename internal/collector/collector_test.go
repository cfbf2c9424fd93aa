package collector

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/hudd/internal/settings"
)

func newTestDbusmenuCollector(prefix string) *DbusmenuCollector {
	return NewDbusmenuCollector(nil, "org.example.App", "/com/canonical/menu", prefix, 0, settings.NewSnapshot(settings.Default()), nil)
}

func TestFlattenDbusmenuSkipsUnlabelledAndDisallowedTypes(t *testing.T) {
	c := newTestDbusmenuCollector("")
	root := dbusmenuLayout{
		ID: 0,
		Children: []dbusmenuLayout{
			{ID: 1, Properties: map[string]dbus.Variant{
				"label": dbus.MakeVariant("File"),
			}},
			{ID: 2, Properties: map[string]dbus.Variant{
				"type": dbus.MakeVariant("separator"),
			}},
			{ID: 3, Properties: map[string]dbus.Variant{
				"label":   dbus.MakeVariant("Hidden"),
				"visible": dbus.MakeVariant(false),
			}},
		},
	}
	items := flattenDbusmenu(c, &root, nil, nil)
	require.Len(t, items, 1)
	assert.Equal(t, "File", items[0].Path.String())
}

func TestFlattenDbusmenuUsesTypeSpecificLabelProperty(t *testing.T) {
	c := newTestDbusmenuCollector("")
	root := dbusmenuLayout{
		Children: []dbusmenuLayout{
			{ID: 1, Properties: map[string]dbus.Variant{
				"type":             dbus.MakeVariant("indicator-item"),
				"indicator-label":  dbus.MakeVariant("Volume"),
			}},
		},
	}
	items := flattenDbusmenu(c, &root, nil, nil)
	require.Len(t, items, 1)
	assert.Equal(t, "Volume", items[0].Path.String())
}

func TestFlattenDbusmenuPrefixBecomesRootSegment(t *testing.T) {
	c := newTestDbusmenuCollector("Mail")
	root := dbusmenuLayout{
		Children: []dbusmenuLayout{
			{ID: 1, Properties: map[string]dbus.Variant{
				"label": dbus.MakeVariant("Compose"),
			}},
		},
	}
	items := flattenDbusmenu(c, &root, prefixTail(c), nil)
	require.Len(t, items, 1)
	assert.Equal(t, "Mail > Compose", items[0].Path.String())
}

func TestFlattenDbusmenuNestedPathOrder(t *testing.T) {
	c := newTestDbusmenuCollector("")
	root := dbusmenuLayout{
		Children: []dbusmenuLayout{
			{ID: 1, Properties: map[string]dbus.Variant{"label": dbus.MakeVariant("File")}, Children: []dbusmenuLayout{
				{ID: 2, Properties: map[string]dbus.Variant{"label": dbus.MakeVariant("Print…")}},
			}},
		},
	}
	items := flattenDbusmenu(c, &root, nil, nil)
	require.Len(t, items, 1)
	assert.Equal(t, "File > Print…", items[0].Path.String())
}

func TestFlattenDbusmenuKeepsDisabledButVisibleItems(t *testing.T) {
	c := newTestDbusmenuCollector("")
	root := dbusmenuLayout{
		Children: []dbusmenuLayout{
			{ID: 1, Properties: map[string]dbus.Variant{
				"label":   dbus.MakeVariant("Paste"),
				"enabled": dbus.MakeVariant(false),
			}},
		},
	}
	items := flattenDbusmenu(c, &root, nil, nil)
	require.Len(t, items, 1, "a disabled-but-visible item stays indexed per §3")
	assert.False(t, items[0].Enabled)
}

func TestSplitActionStripsKnownPrefixes(t *testing.T) {
	g, a := splitAction("app.quit")
	assert.Equal(t, "app.", g)
	assert.Equal(t, "quit", a)

	g, a = splitAction("win.fullscreen")
	assert.Equal(t, "win.", g)
	assert.Equal(t, "fullscreen", a)

	g, a = splitAction("standalone")
	assert.Equal(t, "", g)
	assert.Equal(t, "standalone", a)
}

func TestKeyTagDistinguishesVariants(t *testing.T) {
	assert.Equal(t, dbusmenuKeyTag, KeyTag(dbusmenuKey("bus", "/path", 3)))
	assert.Equal(t, menuModelKeyTag, KeyTag(menuModelKey("bus", "/path", "app", "quit")))
}
