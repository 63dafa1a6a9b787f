package storetesting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/memento/lib/store"
)

// StoreFactory creates a new, empty instance of an IStore implementation.
// The test is passed so implementations can register cleanup or skip when a dependency is missing.
type StoreFactory func(t *testing.T) store.IStore

// RunStoreTests runs the conformance test suite for an IStore implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory(t))
		})

		t.Run("SetIfUnset", func(t *testing.T) {
			testSetIfUnset(t, factory(t))
		})

		t.Run("CompareAndSwap", func(t *testing.T) {
			testCompareAndSwap(t, factory(t))
		})

		t.Run("CompareAndDelete", func(t *testing.T) {
			testCompareAndDelete(t, factory(t))
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory(t))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory(t))
		})

		t.Run("ConcurrentSetIfUnset", func(t *testing.T) {
			testConcurrentSetIfUnset(t, factory(t))
		})

		t.Run("ConcurrentCompareAndSwap", func(t *testing.T) {
			testConcurrentCompareAndSwap(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	if err := s.Set(ctx, testKey, testValue1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, exists, err := s.Get(ctx, testKey)
	if err != nil || !exists {
		t.Fatalf("Expected key %s to exist after Set (err=%v)", testKey, err)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	if err := s.Set(ctx, testKey, testValue2); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, exists, _ = s.Get(ctx, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists, err = s.Get(ctx, "nonexistent-key")
	if err != nil {
		t.Errorf("Get of a missing key should not fail: %v", err)
	}
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _, _ := s.Get(ctx, testKey)
	retrievedValue[0] = 'X'

	originalValue, _, _ := s.Get(ctx, testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}
}

func testDelete(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	testKey := "delete-test-key"

	if err := s.Set(ctx, testKey, []byte("delete-test-value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := s.Delete(ctx, testKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, exists, _ := s.Get(ctx, testKey); exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	if err := s.Delete(ctx, "nonexistent-key"); err != nil {
		t.Errorf("Deleting a missing key should not fail: %v", err)
	}
}

func testHas(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	testKey := "has-test-key"

	if ok, _ := s.Has(ctx, testKey); ok {
		t.Errorf("Expected Has to return false for nonexistent key")
	}

	_ = s.Set(ctx, testKey, []byte("has-test-value"))

	if ok, _ := s.Has(ctx, testKey); !ok {
		t.Errorf("Expected Has to return true after Set")
	}

	_ = s.Delete(ctx, testKey)

	if ok, _ := s.Has(ctx, testKey); ok {
		t.Errorf("Expected Has to return false after Delete")
	}
}

func testSetIfUnset(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	testKey := "test-key"
	testValue1 := []byte("test-value")
	testValue2 := []byte("test-value2")

	ok, err := s.SetIfUnset(ctx, testKey, testValue1)
	if err != nil || !ok {
		t.Fatalf("Expected first SetIfUnset to write (ok=%v, err=%v)", ok, err)
	}

	ok, err = s.SetIfUnset(ctx, testKey, testValue2)
	if err != nil {
		t.Fatalf("SetIfUnset failed: %v", err)
	}
	if ok {
		t.Errorf("Expected second SetIfUnset to not write")
	}

	result, _, _ := s.Get(ctx, testKey)
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}
}

func testCompareAndSwap(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	testKey := "cas-key"

	ok, err := s.CompareAndSwap(ctx, testKey, []byte("a"), []byte("b"))
	if err != nil {
		t.Fatalf("CompareAndSwap failed: %v", err)
	}
	if ok {
		t.Errorf("CompareAndSwap on a missing key must not write")
	}
	if exists, _ := s.Has(ctx, testKey); exists {
		t.Errorf("CompareAndSwap on a missing key must not create it")
	}

	_ = s.Set(ctx, testKey, []byte("a"))

	if ok, _ = s.CompareAndSwap(ctx, testKey, []byte("x"), []byte("b")); ok {
		t.Errorf("CompareAndSwap with a wrong old value must not write")
	}
	if ok, _ = s.CompareAndSwap(ctx, testKey, []byte("a"), []byte("b")); !ok {
		t.Errorf("CompareAndSwap with the current value must write")
	}

	result, _, _ := s.Get(ctx, testKey)
	if !bytes.Equal(result, []byte("b")) {
		t.Errorf("Expected value b, got %s", result)
	}
}

func testCompareAndDelete(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	testKey := "cad-key"
	_ = s.Set(ctx, testKey, []byte("owner-1"))

	if ok, _ := s.CompareAndDelete(ctx, testKey, []byte("owner-2")); ok {
		t.Errorf("CompareAndDelete with a wrong value must not delete")
	}
	if exists, _ := s.Has(ctx, testKey); !exists {
		t.Errorf("Key must survive a failed CompareAndDelete")
	}

	if ok, _ := s.CompareAndDelete(ctx, testKey, []byte("owner-1")); !ok {
		t.Errorf("CompareAndDelete with the current value must delete")
	}
	if exists, _ := s.Has(ctx, testKey); exists {
		t.Errorf("Key must be gone after CompareAndDelete")
	}

	if ok, err := s.CompareAndDelete(ctx, "nonexistent-key", []byte("x")); ok || err != nil {
		t.Errorf("CompareAndDelete on a missing key: ok=%v err=%v", ok, err)
	}
}

func testKeys(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	want := []string{"media_a", "media_b", "media_c"}
	for _, k := range want {
		_ = s.Set(ctx, k, []byte(k))
	}
	_ = s.Set(ctx, "other", []byte("x"))

	keys, err := s.Keys(ctx, "media_")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	sort.Strings(keys)
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("Expected keys %v, got %v", want, keys)
	}

	keys, _ = s.Keys(ctx, "nothing_")
	if len(keys) != 0 {
		t.Errorf("Expected no keys, got %v", keys)
	}
}

func testEdgeCases(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "empty-value", []byte{}); err != nil {
		t.Fatalf("Set with empty value failed: %v", err)
	}
	value, exists, _ := s.Get(ctx, "empty-value")
	if !exists {
		t.Errorf("Key with empty value should exist")
	}
	if len(value) != 0 {
		t.Errorf("Expected empty value, got %v", value)
	}

	large := bytes.Repeat([]byte{0xAB}, 1<<20)
	if err := s.Set(ctx, "large", large); err != nil {
		t.Fatalf("Set with large value failed: %v", err)
	}
	value, _, _ = s.Get(ctx, "large")
	if !bytes.Equal(value, large) {
		t.Errorf("Large value was not stored exactly")
	}

	binary := []byte{0x00, 0xFF, 0x00, '\n', 0x7F}
	_ = s.Set(ctx, "binary", binary)
	value, _, _ = s.Get(ctx, "binary")
	if !bytes.Equal(value, binary) {
		t.Errorf("Binary value was not stored exactly: %v", value)
	}
}

func testConcurrentSetIfUnset(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	const workers = 16
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.SetIfUnset(ctx, "race-key", []byte(fmt.Sprintf("worker-%d", i)))
			if err != nil {
				t.Errorf("SetIfUnset failed: %v", err)
				return
			}
			if ok {
				winners.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("Expected exactly one SetIfUnset to win, got %d", winners.Load())
	}
}

func testConcurrentCompareAndSwap(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := context.Background()

	_ = s.Set(ctx, "counter", []byte("0"))

	const (
		workers    = 8
		increments = 25
	)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < increments; {
				cur, _, err := s.Get(ctx, "counter")
				if err != nil {
					t.Errorf("Get failed: %v", err)
					return
				}
				var v int
				_, _ = fmt.Sscanf(string(cur), "%d", &v)
				ok, err := s.CompareAndSwap(ctx, "counter", cur, []byte(fmt.Sprint(v+1)))
				if err != nil {
					t.Errorf("CompareAndSwap failed: %v", err)
					return
				}
				if ok {
					n++
				}
			}
		}()
	}
	wg.Wait()

	final, _, _ := s.Get(ctx, "counter")
	if string(final) != fmt.Sprint(workers*increments) {
		t.Errorf("Expected counter %d, got %s (lost update)", workers*increments, final)
	}
}

// RequireStorageFull fails the test unless err is a storage-full error.
func RequireStorageFull(t testing.TB, err error) {
	t.Helper()
	if !errors.Is(err, store.ErrStorageFull) {
		t.Fatalf("Expected storage full error, got %v", err)
	}
}
