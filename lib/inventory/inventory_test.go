package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/memento/lib/blob"
	"github.com/ValentinKolb/memento/lib/identity"
	"github.com/ValentinKolb/memento/lib/lockmgr"
	"github.com/ValentinKolb/memento/lib/store"
	"github.com/ValentinKolb/memento/lib/store/lstore"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// failingStore rejects writes of the inventory key while fail is set.
type failingStore struct {
	store.IStore
	mu   sync.Mutex
	fail bool
}

func (f *failingStore) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail && key == Key {
		return store.ErrStorageFull
	}
	return f.IStore.Set(ctx, key, value)
}

type client struct {
	inv   IInventoryStore
	locks lockmgr.ILockManager
	blobs blob.IBlobStore
}

func newClient(t *testing.T, s store.IStore, owner identity.ClientIdentity) client {
	t.Helper()
	locks := lockmgr.NewLockManager(s, &lockmgr.Options{
		TTL:        time.Minute,
		MaxRetries: 1000,
		RetryDelay: time.Millisecond,
	})
	blobs, err := blob.NewBlobStore(s, blob.EncodingRaw)
	if err != nil {
		t.Fatalf("NewBlobStore failed: %v", err)
	}
	return client{
		inv:   NewInventoryStore(s, locks, owner, blobs, nil),
		locks: locks,
		blobs: blobs,
	}
}

func item(id string, status Status) Item {
	now := time.Now().UnixMilli()
	return Item{ID: id, CreatedAt: now, UpdatedAt: now, Status: status}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func TestReadEmpty(t *testing.T) {
	c := newClient(t, lstore.NewLocalStore(nil), "x")
	doc, err := c.inv.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if doc.Version != 1 || doc.Items == nil || len(doc.Items) != 0 {
		t.Errorf("expected {1, {}}, got %+v", doc)
	}
}

func TestCorruptReadRecovery(t *testing.T) {
	ctx := context.Background()

	for name, raw := range map[string]string{
		"Garbage":     "{not json",
		"Null":        "null",
		"ZeroVersion": `{"version":0,"items":{}}`,
		"WrongType":   `{"version":"two","items":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			s := lstore.NewLocalStore(nil)
			c := newClient(t, s, "x")
			_ = s.Set(ctx, Key, []byte(raw))

			doc, err := c.inv.Read(ctx)
			if err != nil {
				t.Fatalf("corrupt state must not be surfaced: %v", err)
			}
			if doc.Version != 1 || len(doc.Items) != 0 {
				t.Errorf("expected {1, {}}, got %+v", doc)
			}

			// a write replaces the corrupt state
			doc, err = c.inv.Write(ctx, map[string]Item{"i1": item("i1", StatusDraft)})
			if err != nil || doc.Version != 2 {
				t.Errorf("write after corruption failed (version=%d, err=%v)", doc.Version, err)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, lstore.NewLocalStore(nil), "x")

	doc, err := c.inv.Write(ctx, map[string]Item{"i1": item("i1", StatusDraft)})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if doc.Version != 2 || len(doc.Items) != 1 {
		t.Errorf("unexpected document %+v", doc)
	}

	read, _ := c.inv.Read(ctx)
	if read.Version != 2 || read.Items["i1"].Status != StatusDraft {
		t.Errorf("persisted document differs: %+v", read)
	}

	if rec, found, _ := c.locks.Inspect(ctx); found {
		t.Errorf("lock still held after write: %+v", rec)
	}
}

func TestWriteRejectsInvalidItems(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	c := newClient(t, s, "x")

	for name, delta := range map[string]map[string]Item{
		"MissingStatus": {"i1": {ID: "i1"}},
		"KeyMismatch":   {"i1": item("i2", StatusKeep)},
	} {
		if _, err := c.inv.Write(ctx, delta); !errors.Is(err, ErrInvalidItem) {
			t.Errorf("%s: expected ErrInvalidItem, got %v", name, err)
		}
	}
	if ok, _ := s.Has(ctx, Key); ok {
		t.Errorf("invalid writes must not persist anything")
	}
}

// TestTwoClients: X writes i1, Y writes i2 based on a stale snapshot, both survive.
func TestTwoClients(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	x := newClient(t, s, "client-x")
	y := newClient(t, s, "client-y")

	stale, _ := y.inv.Read(ctx)
	if stale.Version != 1 {
		t.Fatalf("expected version 1, got %d", stale.Version)
	}

	doc, err := x.inv.Write(ctx, map[string]Item{"i1": item("i1", StatusDraft)})
	if err != nil || doc.Version != 2 {
		t.Fatalf("X write failed (version=%d, err=%v)", doc.Version, err)
	}

	doc, err = y.inv.Write(ctx, map[string]Item{"i2": item("i2", StatusKeep)})
	if err != nil {
		t.Fatalf("Y write failed: %v", err)
	}
	if doc.Version != 3 {
		t.Errorf("expected version 3, got %d", doc.Version)
	}
	if _, ok := doc.Items["i1"]; !ok {
		t.Errorf("i1 was lost")
	}
	if doc.Items["i2"].Status != StatusKeep {
		t.Errorf("i2 missing or wrong: %+v", doc.Items["i2"])
	}

	final, _ := x.inv.Read(ctx)
	if final.Version != 3 || len(final.Items) != 2 {
		t.Errorf("unexpected persisted document %+v", final)
	}
}

func TestBusy(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)

	locks := lockmgr.NewLockManager(s, &lockmgr.Options{TTL: time.Minute, MaxRetries: 2, RetryDelay: time.Millisecond})
	blobs, _ := blob.NewBlobStore(s, blob.EncodingRaw)
	inv := NewInventoryStore(s, locks, "client-x", blobs, nil)

	if err := locks.Acquire(ctx, "client-y"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if _, err := inv.Write(ctx, map[string]Item{"i1": item("i1", StatusDraft)}); !errors.Is(err, lockmgr.ErrLockBusy) {
		t.Fatalf("expected ErrLockBusy, got %v", err)
	}
	if _, err := inv.DeleteItem(ctx, "i1"); !errors.Is(err, lockmgr.ErrLockBusy) {
		t.Fatalf("expected ErrLockBusy, got %v", err)
	}
	if ok, _ := s.Has(ctx, Key); ok {
		t.Errorf("a busy write must not persist anything")
	}
	rec, _, _ := locks.Inspect(ctx)
	if rec.Owner != "client-y" {
		t.Errorf("the foreign lock must be untouched, got %+v", rec)
	}
}

func TestReleaseOnFailure(t *testing.T) {
	ctx := context.Background()
	s := &failingStore{IStore: lstore.NewLocalStore(nil)}
	x := newClient(t, s, "client-x")
	y := newClient(t, s, "client-y")

	s.setFail(true)
	_, err := x.inv.Write(ctx, map[string]Item{"i1": item("i1", StatusDraft)})
	if !errors.Is(err, store.ErrStorageFull) {
		t.Fatalf("expected the storage error, got %v", err)
	}
	if _, found, _ := x.locks.Inspect(ctx); found {
		t.Fatalf("lock must be released after a failed write")
	}

	// another identity acquires immediately: a single check suffices
	quick := lockmgr.NewLockManager(s, &lockmgr.Options{TTL: time.Minute, MaxRetries: 0})
	if err := quick.Acquire(ctx, "client-y"); err != nil {
		t.Fatalf("acquire after failed write must succeed immediately: %v", err)
	}
	_, _ = quick.Release(ctx, "client-y")

	s.setFail(false)
	doc, err := y.inv.Write(ctx, map[string]Item{"i2": item("i2", StatusGift)})
	if err != nil || doc.Version != 2 {
		t.Errorf("write after recovery failed (version=%d, err=%v)", doc.Version, err)
	}
}

func TestDeleteItem(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	c := newClient(t, s, "x")

	imageID, _ := c.blobs.Put(ctx, []byte("image"))
	audioID, _ := c.blobs.Put(ctx, []byte("audio"))
	otherID, _ := c.blobs.Put(ctx, []byte("other"))

	i1 := item("i1", StatusKeep)
	i1.ImageBlobID = imageID
	i1.AudioBlobID = audioID
	i2 := item("i2", StatusDraft)
	i2.ImageBlobID = otherID

	if _, err := c.inv.Write(ctx, map[string]Item{"i1": i1, "i2": i2}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	doc, err := c.inv.DeleteItem(ctx, "i1")
	if err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	if doc.Version != 2 {
		t.Errorf("deletion must not increment the version, got %d", doc.Version)
	}
	if _, ok := doc.Items["i1"]; ok {
		t.Errorf("i1 still present")
	}
	if _, ok := doc.Items["i2"]; !ok {
		t.Errorf("i2 must survive")
	}

	for _, id := range []blob.ID{imageID, audioID} {
		if _, found, _ := c.blobs.Get(ctx, id); found {
			t.Errorf("blob %s of the deleted item still present", id)
		}
	}
	if _, found, _ := c.blobs.Get(ctx, otherID); !found {
		t.Errorf("blob of another item was deleted")
	}

	read, _ := c.inv.Read(ctx)
	if read.Version != 2 || len(read.Items) != 1 {
		t.Errorf("unexpected persisted document %+v", read)
	}
	if _, found, _ := c.locks.Inspect(ctx); found {
		t.Errorf("lock still held after delete")
	}
}

func TestDeleteMissingItem(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	c := newClient(t, s, "x")

	doc, err := c.inv.DeleteItem(ctx, "nope")
	if err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	if doc.Version != 1 || len(doc.Items) != 0 {
		t.Errorf("unexpected document %+v", doc)
	}
	// the unchanged document is persisted anyway
	if ok, _ := s.Has(ctx, Key); !ok {
		t.Errorf("expected the document to be persisted")
	}
}

// TestMutualExclusion has many clients write disjoint items concurrently. No update may
// be lost and every write must advance the version by exactly one.
func TestMutualExclusion(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)

	const (
		clients = 6
		writes  = 10
	)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		versions = make(map[int64]bool)
	)
	for c := 0; c < clients; c++ {
		cl := newClient(t, s, identity.ClientIdentity(fmt.Sprintf("client-%d", c)))
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			for w := 0; w < writes; w++ {
				id := fmt.Sprintf("c%d-w%d", c, w)
				doc, err := cl.inv.Write(ctx, map[string]Item{id: item(id, StatusDraft)})
				if err != nil {
					t.Errorf("Write failed: %v", err)
					return
				}
				mu.Lock()
				if versions[doc.Version] {
					t.Errorf("version %d produced twice", doc.Version)
				}
				versions[doc.Version] = true
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	final, _ := newClient(t, s, "reader").inv.Read(ctx)
	if final.Version != 1+clients*writes {
		t.Errorf("expected version %d, got %d", 1+clients*writes, final.Version)
	}
	if len(final.Items) != clients*writes {
		t.Errorf("expected %d items, got %d (lost updates)", clients*writes, len(final.Items))
	}
}
