package menu

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// ActivationHandle is an opaque, callable reference to a single remote menu
// item. Concrete implementations live in internal/collector; this package
// only needs the capability, not the wire shape, to keep Item collector-
// agnostic.
type ActivationHandle interface {
	// Activate invokes the item on its owning remote menu. timestamp is the
	// client-supplied X11/Wayland activation timestamp, forwarded verbatim.
	Activate(ctx context.Context, timestamp uint32) error

	// Key returns the opaque value a Result embeds for ExecuteQuery to
	// later look the handle back up by. Implementations tag their variant
	// so the bus surface can dispatch to the right collector kind.
	Key() string
}

// Item is the atomic searchable unit mirrored from a remote menu leaf.
type Item struct {
	// ID is a ULID minted once at construction, the same way the teacher
	// mints one per notification, independent of the item's display text.
	// ExecuteQuery's opaque key does not include it: the key comes from
	// Activation.Key().
	ID string

	// Path displays the item; Tokens is the TokenList derived from Path,
	// built once at construction.
	Path   *StringList
	Tokens TokenList

	// ApplicationID is the usage-tracker key; stable for the Item's life.
	ApplicationID string

	// Activation carries the target bus address, object path, numeric
	// menu-item id (or action name), and any parameter variant.
	Activation ActivationHandle

	// Enabled items are still indexed but may be marked disabled in
	// rendered output; disabled state does not exclude an Item from search.
	Enabled bool
}

// NewItem builds an Item with a freshly minted ID, the same
// ulid.New(ulid.Timestamp(time.Now()), rand.Reader) call the teacher uses
// for notifications.
func NewItem(path *StringList, tokens TokenList, applicationID string, activation ActivationHandle, enabled bool) *Item {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	var idStr string
	if err == nil {
		idStr = id.String()
	}
	return &Item{
		ID:            idStr,
		Path:          path,
		Tokens:        tokens,
		ApplicationID: applicationID,
		Activation:    activation,
		Enabled:       enabled,
	}
}

// DisplayIdentifier is the usage-tracker's item_identifier component: the
// rendered path, which is stable enough across a single mirror generation
// to serve as a frequency key.
func (i *Item) DisplayIdentifier() string {
	if i.Path == nil {
		return ""
	}
	return i.Path.String()
}
