package lockmgr

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/memento/lib/codec"
	"github.com/ValentinKolb/memento/lib/identity"
	"github.com/ValentinKolb/memento/lib/store"
	"github.com/ValentinKolb/memento/lib/store/lstore"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// fakeClock advances its time by the requested duration instead of sleeping.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	n := len(c.sleeps)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

func (c *fakeClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

func newTestManager(s store.IStore, clock Clock) ILockManager {
	return NewLockManager(s, &Options{
		TTL:        5 * time.Minute,
		MaxRetries: 3,
		RetryDelay: time.Second,
		Clock:      clock,
	})
}

// putRecord writes a lock record directly into the store.
func putRecord(t *testing.T, s store.IStore, rec Record) []byte {
	t.Helper()
	raw, err := codec.NewJSONCodec().Encode(rec)
	if err != nil {
		t.Fatalf("failed to encode record: %v", err)
	}
	if err := s.Set(context.Background(), Key, raw); err != nil {
		t.Fatalf("failed to write record: %v", err)
	}
	return raw
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func TestAcquireFreeLock(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	clock := newFakeClock()
	lm := newTestManager(s, clock)

	if err := lm.Acquire(ctx, "client-a"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	rec, found, err := lm.Inspect(ctx)
	if err != nil || !found {
		t.Fatalf("expected a lock record (found=%v, err=%v)", found, err)
	}
	if rec.Owner != "client-a" {
		t.Errorf("expected owner client-a, got %s", rec.Owner)
	}
	if rec.Timestamp != clock.Now().UnixMilli() {
		t.Errorf("unexpected timestamp %d", rec.Timestamp)
	}
	if rec.ExpiresAt != clock.Now().Add(5*time.Minute).UnixMilli() {
		t.Errorf("unexpected expiry %d", rec.ExpiresAt)
	}
	if clock.sleepCount() != 0 {
		t.Errorf("free lock must be acquired without waiting")
	}
}

func TestSelfReentrancy(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	clock := newFakeClock()
	lm := newTestManager(s, clock)

	if err := lm.Acquire(ctx, "client-a"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	first, _, _ := lm.Inspect(ctx)

	clock.mu.Lock()
	clock.now = clock.now.Add(time.Minute)
	clock.mu.Unlock()

	if err := lm.Acquire(ctx, "client-a"); err != nil {
		t.Fatalf("re-acquire by the owner failed: %v", err)
	}
	if clock.sleepCount() != 0 {
		t.Errorf("re-acquire by the owner must not wait, slept %d times", clock.sleepCount())
	}

	second, _, _ := lm.Inspect(ctx)
	if second.ExpiresAt <= first.ExpiresAt {
		t.Errorf("re-acquire must refresh the expiry (%d <= %d)", second.ExpiresAt, first.ExpiresAt)
	}
}

func TestTTLReclaim(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	clock := newFakeClock()
	lm := newTestManager(s, clock)
	now := clock.Now().UnixMilli()

	t.Run("Expired", func(t *testing.T) {
		putRecord(t, s, Record{Owner: "client-b", Timestamp: now - 400_000, ExpiresAt: now - 1})
		if err := lm.Acquire(ctx, "client-a"); err != nil {
			t.Fatalf("expired lock must be reclaimable: %v", err)
		}
		rec, _, _ := lm.Inspect(ctx)
		if rec.Owner != "client-a" {
			t.Errorf("expected owner client-a after reclaim, got %s", rec.Owner)
		}
	})

	t.Run("ExpiresNow", func(t *testing.T) {
		putRecord(t, s, Record{Owner: "client-b", Timestamp: now - 300_000, ExpiresAt: now})
		if err := lm.Acquire(ctx, "client-a"); err != nil {
			t.Fatalf("lock with expiresAt == now must be reclaimable: %v", err)
		}
	})

	if clock.sleepCount() != 0 {
		t.Errorf("reclaiming must not wait, slept %d times", clock.sleepCount())
	}
}

func TestBusySurfacing(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	clock := newFakeClock()
	lm := newTestManager(s, clock)

	now := clock.Now().UnixMilli()
	raw := putRecord(t, s, Record{Owner: "client-b", Timestamp: now, ExpiresAt: now + 300_000})

	err := lm.Acquire(ctx, "client-a")
	if !errors.Is(err, ErrLockBusy) {
		t.Fatalf("expected ErrLockBusy, got %v", err)
	}

	if clock.sleepCount() != 3 {
		t.Errorf("expected 3 retries, slept %d times", clock.sleepCount())
	}
	for _, d := range clock.sleeps {
		if d != time.Second {
			t.Errorf("expected fixed delay of 1s, got %s", d)
		}
	}

	stored, _, _ := s.Get(ctx, Key)
	if string(stored) != string(raw) {
		t.Errorf("a busy acquire must not write: %s", stored)
	}
}

func TestLockFreedWhileRetrying(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	clock := newFakeClock()
	lm := newTestManager(s, clock)
	other := newTestManager(s, clock)

	if err := other.Acquire(ctx, "client-b"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	clock.onSleep = func(n int) {
		if n == 2 {
			_, _ = other.Release(ctx, "client-b")
		}
	}

	if err := lm.Acquire(ctx, "client-a"); err != nil {
		t.Fatalf("expected to acquire once the lock was released: %v", err)
	}
	if clock.sleepCount() != 2 {
		t.Errorf("expected 2 retries, slept %d times", clock.sleepCount())
	}
}

func TestZeroRetries(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	clock := newFakeClock()
	lm := NewLockManager(s, &Options{TTL: time.Minute, MaxRetries: 0, Clock: clock})

	now := clock.Now().UnixMilli()
	putRecord(t, s, Record{Owner: "client-b", Timestamp: now, ExpiresAt: now + 60_000})

	if err := lm.Acquire(ctx, "client-a"); !errors.Is(err, ErrLockBusy) {
		t.Fatalf("expected ErrLockBusy, got %v", err)
	}
	if clock.sleepCount() != 0 {
		t.Errorf("zero retries must not wait")
	}
}

func TestCancelWhileRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := lstore.NewLocalStore(nil)
	clock := newFakeClock()
	lm := newTestManager(s, clock)

	now := clock.Now().UnixMilli()
	putRecord(t, s, Record{Owner: "client-b", Timestamp: now, ExpiresAt: now + 300_000})

	clock.onSleep = func(int) { cancel() }

	if err := lm.Acquire(ctx, "client-a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestCorruptRecord(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	clock := newFakeClock()
	lm := newTestManager(s, clock)

	_ = s.Set(ctx, Key, []byte("{definitely not json"))

	if _, found, _ := lm.Inspect(ctx); found {
		t.Errorf("corrupt record must not be reported as found")
	}

	// a foreign client cannot release it
	if released, _ := lm.Release(ctx, "client-b"); released {
		t.Errorf("corrupt record must not be released")
	}

	if err := lm.Acquire(ctx, "client-a"); err != nil {
		t.Fatalf("corrupt record must be treated as absent: %v", err)
	}
	rec, found, _ := lm.Inspect(ctx)
	if !found || rec.Owner != "client-a" {
		t.Errorf("expected a valid record owned by client-a, got %+v", rec)
	}
}

func TestLegacyRecord(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	clock := newFakeClock()
	lm := newTestManager(s, clock)

	_ = s.Set(ctx, Key, []byte(`{"clientId":"client-b","timestamp":1,"expiresAt":99999999999999}`))

	rec, found, _ := lm.Inspect(ctx)
	if !found || rec.Owner != "client-b" {
		t.Fatalf("expected legacy owner client-b, got %+v (found=%v)", rec, found)
	}
	if err := lm.Acquire(ctx, "client-a"); !errors.Is(err, ErrLockBusy) {
		t.Errorf("legacy record must block other clients, got %v", err)
	}
}

func TestRecordLayout(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	lm := newTestManager(s, newFakeClock())

	if err := lm.Acquire(ctx, "client-a"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	raw, _, _ := s.Get(ctx, Key)
	for _, field := range []string{`"ownerId":"client-a"`, `"timestamp":`, `"expiresAt":`} {
		if !strings.Contains(string(raw), field) {
			t.Errorf("record %s lacks %s", raw, field)
		}
	}
	if strings.Contains(string(raw), "clientId") {
		t.Errorf("record %s must not be written with the legacy owner name", raw)
	}
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	lm := newTestManager(s, newFakeClock())

	if released, err := lm.Release(ctx, "client-a"); released || err != nil {
		t.Errorf("releasing a free lock must be a no-op (released=%v, err=%v)", released, err)
	}

	_ = lm.Acquire(ctx, "client-a")

	if released, _ := lm.Release(ctx, "client-b"); released {
		t.Errorf("a foreign client must not release the lock")
	}
	if ok, _ := s.Has(ctx, Key); !ok {
		t.Errorf("lock must survive a foreign release")
	}

	if released, err := lm.Release(ctx, "client-a"); !released || err != nil {
		t.Errorf("owner release failed (released=%v, err=%v)", released, err)
	}
	if ok, _ := s.Has(ctx, Key); ok {
		t.Errorf("lock must be gone after release")
	}
}

func TestDoReleasesOnFailure(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	clock := newFakeClock()
	lm := newTestManager(s, clock)

	boom := errors.New("persist failed")
	err := Do(ctx, lm, "client-a", func(ctx context.Context) error {
		if ok, _ := s.Has(ctx, Key); !ok {
			t.Errorf("lock must be held inside Do")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if ok, _ := s.Has(ctx, Key); ok {
		t.Errorf("lock must be released after a failure")
	}

	// any identity can acquire immediately
	if err := lm.Acquire(ctx, "client-b"); err != nil {
		t.Errorf("acquire after failed Do must succeed: %v", err)
	}
	if clock.sleepCount() != 0 {
		t.Errorf("acquire after failed Do must not wait")
	}
}

func TestDoReleasesOnPanic(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	lm := newTestManager(s, newFakeClock())

	func() {
		defer func() { _ = recover() }()
		_ = Do(ctx, lm, "client-a", func(context.Context) error {
			panic("boom")
		})
	}()

	if ok, _ := s.Has(ctx, Key); ok {
		t.Errorf("lock must be released after a panic")
	}
}

func TestDoReleasesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := lstore.NewLocalStore(nil)
	lm := newTestManager(s, newFakeClock())

	_ = Do(ctx, lm, "client-a", func(context.Context) error {
		cancel()
		return nil
	})
	if ok, _ := s.Has(context.Background(), Key); ok {
		t.Errorf("lock must be released even if the caller's context was cancelled")
	}
}

func TestDoBusy(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	clock := newFakeClock()
	lm := newTestManager(s, clock)

	now := clock.Now().UnixMilli()
	putRecord(t, s, Record{Owner: "client-b", Timestamp: now, ExpiresAt: now + 300_000})

	called := false
	err := Do(ctx, lm, "client-a", func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrLockBusy) {
		t.Fatalf("expected ErrLockBusy, got %v", err)
	}
	if called {
		t.Errorf("fn must not run without the lock")
	}
	rec, _, _ := lm.Inspect(ctx)
	if rec.Owner != "client-b" {
		t.Errorf("busy Do must not touch the foreign lock")
	}
}

// TestMutualExclusion runs many clients against one store with the real clock and
// checks that the critical section is never entered by two of them at once.
func TestMutualExclusion(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)

	const (
		clients = 8
		rounds  = 20
	)
	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func(owner identity.ClientIdentity) {
			defer wg.Done()
			lm := NewLockManager(s, &Options{
				TTL:        time.Minute,
				MaxRetries: 10_000,
				RetryDelay: 100 * time.Microsecond,
			})
			for r := 0; r < rounds; r++ {
				err := Do(ctx, lm, owner, func(context.Context) error {
					if inside.Add(1) > 1 {
						overlap.Store(true)
					}
					time.Sleep(50 * time.Microsecond)
					inside.Add(-1)
					return nil
				})
				if err != nil {
					t.Errorf("Do failed: %v", err)
					return
				}
			}
		}(identity.ClientIdentity(string(rune('a' + c))))
	}
	wg.Wait()

	if overlap.Load() {
		t.Fatal("two clients held the lock at the same time")
	}
}
