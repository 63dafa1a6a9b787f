package vault

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ValentinKolb/memento/lib/blob"
	"github.com/ValentinKolb/memento/lib/codec"
	"github.com/ValentinKolb/memento/lib/common"
	"github.com/ValentinKolb/memento/lib/identity"
	"github.com/ValentinKolb/memento/lib/inventory"
	"github.com/ValentinKolb/memento/lib/lockmgr"
	"github.com/ValentinKolb/memento/lib/store"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("vault")

// Vault is the API consumed by user interfaces. It binds the inventory, the blobs and
// the lock of one medium to the identity of this client.
//
// Writes of one Vault are sequential; writes of different vaults (in this or other
// processes) are arbitrated by the advisory lock. Reads and blob operations never block
// on the lock.
type Vault struct {
	store     store.IStore
	ownsStore bool

	id    identity.ClientIdentity
	locks lockmgr.ILockManager
	blobs blob.IBlobStore
	inv   inventory.IInventoryStore
	clock lockmgr.Clock

	writeMu sync.Mutex
}

// Open opens the medium selected by config and creates a vault on it.
// Close closes the medium again.
func Open(ctx context.Context, config common.ClientConfig) (*Vault, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s, err := NewStore(ctx, config)
	if err != nil {
		return nil, err
	}
	v, err := New(ctx, s, config, nil)
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}
	v.ownsStore = true
	return v, nil
}

// New creates a vault on an already opened medium. The identity of the client is
// loaded from config.IdentityKey of the medium, or generated on first use. Vaults
// that must exclude each other need different identity keys. clock may be nil.
func New(ctx context.Context, s store.IStore, config common.ClientConfig, clock lockmgr.Clock) (*Vault, error) {
	if clock == nil {
		clock = lockmgr.SystemClock()
	}

	c, err := codec.ByName(config.Codec)
	if err != nil {
		return nil, err
	}
	encoding, err := blob.ParseEncoding(config.BlobEncoding)
	if err != nil {
		return nil, err
	}

	identityKey := config.IdentityKey
	if identityKey == "" {
		identityKey = identity.Key
	}
	id, err := identity.NewProviderWithKey(s, identityKey).Get(ctx)
	if err != nil {
		return nil, err
	}

	blobs, err := blob.NewBlobStore(s, encoding)
	if err != nil {
		return nil, err
	}
	locks := lockmgr.NewLockManager(s, &lockmgr.Options{
		TTL:        config.LockTTL,
		MaxRetries: config.LockRetries,
		RetryDelay: config.LockRetryDelay,
		Clock:      clock,
	})

	plog.Debugf("opened vault as client %s", id)
	return &Vault{
		store: s,
		id:    id,
		locks: locks,
		blobs: blobs,
		inv:   inventory.NewInventoryStore(s, locks, id, blobs, &inventory.Options{Codec: c}),
		clock: clock,
	}, nil
}

// Identity returns the identity this vault writes as.
func (v *Vault) Identity() identity.ClientIdentity {
	return v.id
}

// Close closes the medium if it was opened by Open.
func (v *Vault) Close() error {
	if !v.ownsStore {
		return nil
	}
	return v.store.Close()
}

// --------------------------------------------------------------------------
// Inventory
// --------------------------------------------------------------------------

// ReadInventory returns the current inventory without taking the lock.
func (v *Vault) ReadInventory(ctx context.Context) (inventory.Document, error) {
	return v.inv.Read(ctx)
}

// SaveItem stores item, replacing any item with the same id.
func (v *Vault) SaveItem(ctx context.Context, item inventory.Item) (inventory.Document, error) {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	return v.inv.Write(ctx, map[string]inventory.Item{item.ID: item})
}

// DeleteItem removes the item with the given id and its media.
func (v *Vault) DeleteItem(ctx context.Context, id string) (inventory.Document, error) {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	return v.inv.DeleteItem(ctx, id)
}

// ListItems returns all items, newest first.
func (v *Vault) ListItems(ctx context.Context) ([]inventory.Item, error) {
	doc, err := v.inv.Read(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]inventory.Item, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b inventory.Item) int {
		if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return items, nil
}

// NewItem returns an unsaved draft with a fresh id.
func (v *Vault) NewItem() inventory.Item {
	now := v.clock.Now().UnixMilli()
	return inventory.Item{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Status:    inventory.StatusDraft,
	}
}

// --------------------------------------------------------------------------
// Media
// --------------------------------------------------------------------------

// UploadImage stores an image and returns its blob id.
func (v *Vault) UploadImage(ctx context.Context, data []byte) (blob.ID, error) {
	id, err := v.blobs.Put(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return id, nil
}

// UploadAudio stores an audio recording and returns its blob id.
func (v *Vault) UploadAudio(ctx context.Context, data []byte) (blob.ID, error) {
	id, err := v.blobs.Put(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to upload audio: %w", err)
	}
	return id, nil
}

// GetMediaURL resolves a blob id to a data URL. found is false for unknown ids.
func (v *Vault) GetMediaURL(ctx context.Context, id blob.ID) (url string, found bool, err error) {
	return v.blobs.URL(ctx, id)
}

// GetMedia returns the payload of a blob.
func (v *Vault) GetMedia(ctx context.Context, id blob.ID) (data []byte, found bool, err error) {
	return v.blobs.Get(ctx, id)
}

// FindOrphans returns the blobs no item refers to.
func (v *Vault) FindOrphans(ctx context.Context) ([]blob.ID, error) {
	doc, err := v.inv.Read(ctx)
	if err != nil {
		return nil, err
	}
	return v.orphans(ctx, doc)
}

// Reconcile deletes the blobs no item refers to and returns them. With dryRun nothing
// is deleted. The inventory is read under the lock, so no write can add a reference
// in between; a blob uploaded for an item that is not saved yet is still considered
// an orphan, so Reconcile should not run while another client is capturing.
func (v *Vault) Reconcile(ctx context.Context, dryRun bool) ([]blob.ID, error) {
	if dryRun {
		return v.FindOrphans(ctx)
	}

	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	var orphans []blob.ID
	err := lockmgr.Do(ctx, v.locks, v.id, func(ctx context.Context) error {
		doc, err := v.inv.Read(ctx)
		if err != nil {
			return err
		}
		if orphans, err = v.orphans(ctx, doc); err != nil {
			return err
		}
		for _, id := range orphans {
			if err := v.blobs.Delete(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(orphans) > 0 {
		plog.Infof("deleted %d orphaned blob(s)", len(orphans))
	}
	return orphans, nil
}

func (v *Vault) orphans(ctx context.Context, doc inventory.Document) ([]blob.ID, error) {
	ids, err := v.blobs.List(ctx)
	if err != nil {
		return nil, err
	}
	referenced := make(map[blob.ID]bool)
	for _, item := range doc.Items {
		for _, id := range item.Blobs() {
			referenced[id] = true
		}
	}
	var orphans []blob.ID
	for _, id := range ids {
		if !referenced[id] {
			orphans = append(orphans, id)
		}
	}
	slices.Sort(orphans)
	return orphans, nil
}

// --------------------------------------------------------------------------
// Lock
// --------------------------------------------------------------------------

// LockStatus returns the current lock record; found is false when the lock is free.
func (v *Vault) LockStatus(ctx context.Context) (record lockmgr.Record, found bool, err error) {
	return v.locks.Inspect(ctx)
}

// AcquireLock takes the lock for this client and keeps it until ReleaseLock, the next
// write of this client or the end of the TTL.
func (v *Vault) AcquireLock(ctx context.Context) error {
	return v.locks.Acquire(ctx, v.id)
}

// ReleaseLock releases the lock if this client holds it.
func (v *Vault) ReleaseLock(ctx context.Context) (bool, error) {
	return v.locks.Release(ctx, v.id)
}

// Info returns metadata about the medium.
func (v *Vault) Info(ctx context.Context) (store.DatabaseInfo, error) {
	return v.store.GetDBInfo(ctx)
}

// Now returns the current time of the vault's clock.
func (v *Vault) Now() time.Time {
	return v.clock.Now()
}
