package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/memento/lib/blob"
	"github.com/ValentinKolb/memento/lib/codec"
	"github.com/ValentinKolb/memento/lib/identity"
	"github.com/ValentinKolb/memento/lib/lockmgr"
	"github.com/ValentinKolb/memento/lib/metrics"
	"github.com/ValentinKolb/memento/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("inventory")

// Options configures an inventory store.
type Options struct {
	Codec codec.ICodec // nil = json
	Key   string       // "" = Key
}

type inventoryStoreImpl struct {
	store store.IStore
	locks lockmgr.ILockManager
	owner identity.ClientIdentity
	blobs blob.IBlobStore
	codec codec.ICodec
	key   string
}

// NewInventoryStore creates an inventory store on s. Writes are arbitrated by locks,
// acquired in the name of owner. Blobs of deleted items are removed from blobs.
func NewInventoryStore(
	s store.IStore,
	locks lockmgr.ILockManager,
	owner identity.ClientIdentity,
	blobs blob.IBlobStore,
	opts *Options,
) IInventoryStore {
	impl := &inventoryStoreImpl{
		store: s,
		locks: locks,
		owner: owner,
		blobs: blobs,
		codec: codec.NewJSONCodec(),
		key:   Key,
	}
	if opts != nil {
		if opts.Codec != nil {
			impl.codec = opts.Codec
		}
		if opts.Key != "" {
			impl.key = opts.Key
		}
	}
	return impl
}

// --------------------------------------------------------------------------
// Interface Methods (docu see inventory.IInventoryStore)
// --------------------------------------------------------------------------

func (s *inventoryStoreImpl) Read(ctx context.Context) (Document, error) {
	doc, err := s.load(ctx)
	if err == nil {
		return doc, nil
	}
	if errors.Is(err, ErrCorruptState) {
		metrics.CorruptRecovered.Inc()
		plog.Warningf("%v, starting from an empty inventory", err)
		return NewDocument(), nil
	}
	return Document{}, err
}

func (s *inventoryStoreImpl) Write(ctx context.Context, delta map[string]Item) (Document, error) {
	for key, item := range delta {
		if err := item.Validate(); err != nil {
			return Document{}, err
		}
		if key != item.ID {
			return Document{}, fmt.Errorf("%w: item %s stored under key %s", ErrInvalidItem, item.ID, key)
		}
	}

	var merged Document
	err := lockmgr.Do(ctx, s.locks, s.owner, func(ctx context.Context) error {
		// the caller's snapshot may be stale, merge into what is persisted now
		latest, err := s.Read(ctx)
		if err != nil {
			return err
		}
		merged = Merge(latest, delta)
		return s.persist(ctx, merged)
	})
	if err != nil {
		return Document{}, err
	}

	metrics.InventoryWrites.Inc()
	plog.Debugf("wrote %d item(s), inventory is at version %d", len(delta), merged.Version)
	return merged, nil
}

func (s *inventoryStoreImpl) DeleteItem(ctx context.Context, id string) (Document, error) {
	var doc Document
	err := lockmgr.Do(ctx, s.locks, s.owner, func(ctx context.Context) error {
		latest, err := s.Read(ctx)
		if err != nil {
			return err
		}
		doc = latest

		if item, ok := doc.Items[id]; ok {
			for _, blobID := range item.Blobs() {
				// a failed blob delete leaves an orphan, the item is removed anyway
				if err := s.blobs.Delete(ctx, blobID); err != nil {
					plog.Warningf("failed to delete blob %s of item %s: %v", blobID, id, err)
				}
			}
			delete(doc.Items, id)
		}

		// the version is not incremented on deletion
		return s.persist(ctx, doc)
	})
	if err != nil {
		return Document{}, err
	}

	metrics.InventoryDeletes.Inc()
	return doc, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// load reads and decodes the persisted document. Undecodable bytes yield ErrCorruptState.
func (s *inventoryStoreImpl) load(ctx context.Context) (Document, error) {
	raw, found, err := s.store.Get(ctx, s.key)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read inventory: %w", err)
	}
	if !found {
		return NewDocument(), nil
	}

	var doc Document
	if err := s.codec.Decode(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if doc.Version < 1 {
		return Document{}, fmt.Errorf("%w: invalid version %d", ErrCorruptState, doc.Version)
	}
	if doc.Items == nil {
		doc.Items = make(map[string]Item)
	}
	return doc, nil
}

// persist writes doc as one single-key write. It must only be called with the lock held.
func (s *inventoryStoreImpl) persist(ctx context.Context, doc Document) error {
	raw, err := s.codec.Encode(doc)
	if err != nil {
		metrics.WriteFailures.Inc()
		return fmt.Errorf("failed to encode inventory: %w", err)
	}
	if err := s.store.Set(ctx, s.key, raw); err != nil {
		metrics.WriteFailures.Inc()
		return fmt.Errorf("failed to persist inventory: %w", err)
	}
	return nil
}
