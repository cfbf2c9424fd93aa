package usage

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseError reports a structural defect in an application-info file,
// tagged with the distinct error code §6 requires.
type ParseError struct {
	Code    string
	Message string
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Error codes from §6.
const (
	ErrMissingDesktop       = "MISSING_DESKTOP"
	ErrMissingHeader        = "MISSING_HEADER"
	ErrDuplicateDesktopFile = "DUPLICATE_DESKTOPFILE"
	ErrDuplicateHeaders     = "DUPLICATE_HEADERS"
)

// ItemCount is one <item name="..." count="N"/> entry.
type ItemCount struct {
	Name  string
	Count int
}

// AppInfo is the parsed contents of a <hudappinfo> seed file.
type AppInfo struct {
	DesktopFile string
	Items       []ItemCount
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// ParseAppInfo parses a hudappinfo document per the schema in §6:
// a root hudappinfo containing one desktopfile and a menus/menu/item tree.
//
// Each item's identifier is the full " > "-joined path from the outermost
// enclosing menu down to the item itself — original_source/load-app-info.c
// builds the same "<accumulated menu path> > <item name>" string so the
// seeded identifier matches the one the runtime Item.DisplayIdentifier()
// produces for the same menu entry.
func ParseAppInfo(r io.Reader) (*AppInfo, error) {
	dec := xml.NewDecoder(r)
	var info AppInfo
	var sawRoot, sawDesktopFile bool
	var menuStack []string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !sawRoot {
				if t.Name.Local != "hudappinfo" {
					return nil, &ParseError{ErrDuplicateHeaders, "root element must be hudappinfo"}
				}
				sawRoot = true
				continue
			}

			switch t.Name.Local {
			case "desktopfile":
				if sawDesktopFile {
					return nil, &ParseError{ErrDuplicateDesktopFile, "second desktopfile element"}
				}
				sawDesktopFile = true
				path := attr(t, "path")
				if path == "" {
					return nil, &ParseError{ErrMissingDesktop, "desktopfile element missing path attribute"}
				}
				info.DesktopFile = path
			case "menus":
				if !sawDesktopFile {
					return nil, &ParseError{ErrMissingHeader, "menus element before desktopfile"}
				}
			case "menu":
				menuStack = append(menuStack, attr(t, "name"))
			case "item":
				count, _ := strconv.Atoi(attr(t, "count"))
				info.Items = append(info.Items, ItemCount{
					Name:  itemIdentifier(menuStack, attr(t, "name")),
					Count: count,
				})
			}
		case xml.EndElement:
			if t.Name.Local == "menu" && len(menuStack) > 0 {
				menuStack = menuStack[:len(menuStack)-1]
			}
		}
	}

	if !sawRoot {
		return nil, &ParseError{ErrDuplicateHeaders, "empty document"}
	}
	return &info, nil
}

// itemIdentifier joins the enclosing menu name stack and the item's own
// name with " > ", the same separator Item.DisplayIdentifier() uses, so a
// seeded row and a live activation of the same menu entry land on one key.
func itemIdentifier(menuStack []string, itemName string) string {
	segs := make([]string, 0, len(menuStack)+1)
	segs = append(segs, menuStack...)
	segs = append(segs, itemName)
	return strings.Join(segs, " > ")
}
