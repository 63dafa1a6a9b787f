package identity

import (
	"context"
	"sync"
	"testing"

	"github.com/ValentinKolb/memento/lib/store/lstore"
	"github.com/google/uuid"
)

func TestGetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	p := NewProvider(s)

	first, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := uuid.Parse(first.String()); err != nil {
		t.Errorf("identity is not a uuid: %q", first)
	}

	second, _ := p.Get(ctx)
	if first != second {
		t.Errorf("identity changed between calls: %s != %s", first, second)
	}

	// a new provider on the same medium is a restarted client
	restarted, _ := NewProvider(s).Get(ctx)
	if restarted != first {
		t.Errorf("restarted client got a new identity: %s != %s", restarted, first)
	}

	stored, _, _ := s.Get(ctx, Key)
	if string(stored) != first.String() {
		t.Errorf("identity not persisted under %q: %q", Key, stored)
	}
}

func TestExistingIdentity(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	_ = s.Set(ctx, Key, []byte("legacy-client"))

	id, err := NewProvider(s).Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if id != "legacy-client" {
		t.Errorf("expected persisted identity, got %s", id)
	}
}

func TestEmptyIdentityIsReplaced(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)
	_ = s.Set(ctx, Key, []byte{})

	id, err := NewProvider(s).Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated identity")
	}
}

func TestConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)

	const workers = 8
	ids := make([]ClientIdentity, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := NewProvider(s).Get(ctx)
			if err != nil {
				t.Errorf("Get failed: %v", err)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("clients disagree on the identity: %v", ids)
		}
	}
}

func TestCustomKeys(t *testing.T) {
	ctx := context.Background()
	s := lstore.NewLocalStore(nil)

	a, _ := NewProviderWithKey(s, "clientId:tab-a").Get(ctx)
	b, _ := NewProviderWithKey(s, "clientId:tab-b").Get(ctx)
	if a == b {
		t.Errorf("different keys must yield different identities")
	}
}
