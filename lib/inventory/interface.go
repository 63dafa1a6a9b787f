package inventory

import (
	"context"
	"errors"
)

// Key is the well-known key of the inventory document.
const Key = "memento_inventory"

var (
	// ErrCorruptState marks persisted bytes that cannot be decoded. Read recovers from it
	// by returning an empty document, so it never reaches callers of IInventoryStore.
	ErrCorruptState = errors.New("persisted inventory is corrupt")
	// ErrInvalidItem is returned by Write for items that cannot be stored.
	ErrInvalidItem = errors.New("invalid item")
)

// IInventoryStore is the versioned inventory document. All writes are serialized across
// clients by the advisory lock; reads never take it.
type IInventoryStore interface {
	// Read returns the persisted document, or NewDocument() if there is none or it is corrupt.
	// The result may already be superseded by a write in flight.
	Read(ctx context.Context) (doc Document, err error)

	// Write merges delta into the latest persisted document under the lock and persists
	// the result with the version incremented. The lock is released before returning,
	// also on failure. lockmgr.ErrLockBusy is returned unchanged.
	Write(ctx context.Context, delta map[string]Item) (doc Document, err error)

	// DeleteItem removes an item and its blobs under the lock. The document is persisted
	// without incrementing the version, also when the item does not exist.
	DeleteItem(ctx context.Context, id string) (doc Document, err error)
}
