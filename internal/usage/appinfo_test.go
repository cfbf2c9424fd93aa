package usage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppInfoJoinsMenuStackIntoItemIdentifier(t *testing.T) {
	doc := `<hudappinfo>
  <desktopfile path="/usr/share/applications/gedit.desktop"/>
  <menus>
    <menu name="File">
      <menu name="Open Recent">
        <item name="document.txt" count="3"/>
      </menu>
      <item name="Save" count="5"/>
    </menu>
  </menus>
</hudappinfo>`

	info, err := ParseAppInfo(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, info.Items, 2)
	assert.Equal(t, "File > Open Recent > document.txt", info.Items[0].Name)
	assert.Equal(t, 3, info.Items[0].Count)
	assert.Equal(t, "File > Save", info.Items[1].Name)
	assert.Equal(t, 5, info.Items[1].Count)
}

func TestParseAppInfoKeepsRawCountAbove30(t *testing.T) {
	doc := `<hudappinfo>
  <desktopfile path="/usr/share/applications/gedit.desktop"/>
  <menus>
    <item name="Save" count="100"/>
  </menus>
</hudappinfo>`

	info, err := ParseAppInfo(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, info.Items, 1)
	// ParseAppInfo itself doesn't clamp; MaxSeedCount clamping happens in
	// Tracker.seedFromInfoFile. Confirm the raw count passes through.
	assert.Equal(t, 100, info.Items[0].Count)
}

func TestParseAppInfoRejectsMissingDesktopPath(t *testing.T) {
	doc := `<hudappinfo><desktopfile/></hudappinfo>`
	_, err := ParseAppInfo(strings.NewReader(doc))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrMissingDesktop, perr.Code)
}

func TestParseAppInfoRejectsDuplicateDesktopFile(t *testing.T) {
	doc := `<hudappinfo>
    <desktopfile path="/a.desktop"/>
    <desktopfile path="/b.desktop"/>
  </hudappinfo>`
	_, err := ParseAppInfo(strings.NewReader(doc))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrDuplicateDesktopFile, perr.Code)
}

func TestParseAppInfoRejectsMenusBeforeDesktopFile(t *testing.T) {
	doc := `<hudappinfo><menus><item name="x" count="1"/></menus></hudappinfo>`
	_, err := ParseAppInfo(strings.NewReader(doc))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrMissingHeader, perr.Code)
}

func TestParseAppInfoRejectsWrongRootElement(t *testing.T) {
	doc := `<notit></notit>`
	_, err := ParseAppInfo(strings.NewReader(doc))
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrDuplicateHeaders, perr.Code)
}
