package inventory

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/ValentinKolb/memento/lib/blob"
)

// --------------------------------------------------------------------------
// Status
// --------------------------------------------------------------------------

// Status is the decision taken for an item.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusKeep   Status = "KEEP"
	StatusGift   Status = "GIFT"
	StatusDonate Status = "DONATE"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusKeep, StatusGift, StatusDonate:
		return true
	}
	return false
}

// ParseStatus parses a status case-insensitively.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(s))
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %s (expected DRAFT, KEEP, GIFT or DONATE)", s)
	}
	return status, nil
}

// --------------------------------------------------------------------------
// Item
// --------------------------------------------------------------------------

// Item is one entry of the inventory. Items are replaced as a whole, never patched.
// Timestamps are milliseconds since the unix epoch.
type Item struct {
	ID          string  `json:"id" yaml:"id"`
	CreatedAt   int64   `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   int64   `json:"updatedAt" yaml:"updatedAt"`
	ImageBlobID blob.ID `json:"imageBlobId,omitempty" yaml:"imageBlobId,omitempty"`
	AudioBlobID blob.ID `json:"audioBlobId,omitempty" yaml:"audioBlobId,omitempty"`
	Status      Status  `json:"status" yaml:"status"`
	NeedsHelp   bool    `json:"needsHelp" yaml:"needsHelp"`
}

// Created returns the creation time.
func (i Item) Created() time.Time {
	return time.UnixMilli(i.CreatedAt)
}

// Updated returns the time of the last change.
func (i Item) Updated() time.Time {
	return time.UnixMilli(i.UpdatedAt)
}

// Blobs returns the ids of the blobs referenced by the item.
func (i Item) Blobs() []blob.ID {
	var ids []blob.ID
	if i.ImageBlobID != "" {
		ids = append(ids, i.ImageBlobID)
	}
	if i.AudioBlobID != "" {
		ids = append(ids, i.AudioBlobID)
	}
	return ids
}

// Validate checks that the item can be stored.
func (i Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidItem)
	}
	if !i.Status.Valid() {
		return fmt.Errorf("%w: item %s has invalid status %q", ErrInvalidItem, i.ID, i.Status)
	}
	return nil
}

// UnmarshalJSON accepts items written by older clients, which stored the blob ids
// as "imageDriveId" and "audioDriveId".
func (i *Item) UnmarshalJSON(b []byte) error {
	type plain Item
	var aux struct {
		plain
		LegacyImage blob.ID `json:"imageDriveId"`
		LegacyAudio blob.ID `json:"audioDriveId"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*i = Item(aux.plain)
	if i.ImageBlobID == "" {
		i.ImageBlobID = aux.LegacyImage
	}
	if i.AudioBlobID == "" {
		i.AudioBlobID = aux.LegacyAudio
	}
	return nil
}

// --------------------------------------------------------------------------
// Document
// --------------------------------------------------------------------------

// Document is the persisted inventory. Items are keyed by item id.
type Document struct {
	Version int64           `json:"version" yaml:"version"`
	Items   map[string]Item `json:"items" yaml:"items"`
}

// NewDocument returns the document of an empty inventory: version 1, no items.
func NewDocument() Document {
	return Document{
		Version: 1,
		Items:   make(map[string]Item),
	}
}

// Merge returns the union of latest's items and delta, where delta wins for every key
// it contains (last writer wins per item). The version is latest.Version+1.
// Neither argument is modified.
func Merge(latest Document, delta map[string]Item) Document {
	items := make(map[string]Item, len(latest.Items)+len(delta))
	maps.Copy(items, latest.Items)
	maps.Copy(items, delta)
	return Document{
		Version: latest.Version + 1,
		Items:   items,
	}
}
