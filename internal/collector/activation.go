package collector

import "fmt"

// dbusmenuKeyTag and menuModelKeyTag prefix the opaque Key() string so the
// bus surface's ExecuteQuery can tell which Collector variant minted a key
// without carrying a discriminated union through the D-Bus wire format
// (§6: "implementations may use a different tuple for the menu-model
// backend but must tag the variant so the service can dispatch").
const (
	dbusmenuKeyTag  = "dbusmenu"
	menuModelKeyTag = "menumodel"
)

func dbusmenuKey(busName, objectPath string, itemID int32) string {
	return fmt.Sprintf("%s\x1f%s\x1f%s\x1f%d", dbusmenuKeyTag, busName, objectPath, itemID)
}

func menuModelKey(busName, objectPath, group, action string) string {
	return fmt.Sprintf("%s\x1f%s\x1f%s\x1f%s\x1f%s", menuModelKeyTag, busName, objectPath, group, action)
}

// KeyTag extracts the variant tag from an opaque Result key, for the bus
// surface to dispatch ExecuteQuery without needing to know the Collector
// concrete type.
func KeyTag(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '\x1f' {
			return key[:i]
		}
	}
	return ""
}
