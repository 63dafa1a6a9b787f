package identity

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/memento/lib/store"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

// Key is the well-known key under which the identity is persisted.
const Key = "clientId"

var plog = logger.GetLogger("identity")

// ClientIdentity is the opaque token identifying one client instance.
// It is used as the owner of the advisory lock.
type ClientIdentity string

// String implements fmt.Stringer.
func (id ClientIdentity) String() string {
	return string(id)
}

// Provider resolves the identity of this client from the medium.
type Provider struct {
	store store.IStore
	key   string
}

// NewProvider creates a provider reading and writing the identity under Key.
func NewProvider(s store.IStore) *Provider {
	return &Provider{store: s, key: Key}
}

// NewProviderWithKey creates a provider using a custom key. Useful when several clients
// share one medium but must not share their identity (e.g. several tabs of one origin).
func NewProviderWithKey(s store.IStore, key string) *Provider {
	return &Provider{store: s, key: key}
}

// Get returns the persisted identity, generating and persisting a new one on first use.
// Concurrent first calls agree on one identity: the token is written with SetIfUnset
// and the stored value is read back.
func (p *Provider) Get(ctx context.Context) (ClientIdentity, error) {
	value, ok, err := p.store.Get(ctx, p.key)
	if err != nil {
		return "", fmt.Errorf("failed to read client identity: %w", err)
	}
	if ok && len(value) > 0 {
		return ClientIdentity(value), nil
	}

	id := uuid.NewString()
	if ok {
		// an empty record is treated like a missing one
		_, err = p.store.CompareAndSwap(ctx, p.key, value, []byte(id))
	} else {
		_, err = p.store.SetIfUnset(ctx, p.key, []byte(id))
	}
	if err != nil {
		return "", fmt.Errorf("failed to persist client identity: %w", err)
	}

	// read back: another instance may have won the race
	value, ok, err = p.store.Get(ctx, p.key)
	if err != nil {
		return "", fmt.Errorf("failed to read client identity: %w", err)
	}
	if !ok || len(value) == 0 {
		return "", fmt.Errorf("client identity vanished after being written")
	}
	if string(value) == id {
		plog.Infof("generated new client identity %s", id)
	}
	return ClientIdentity(value), nil
}
