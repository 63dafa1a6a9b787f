package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/memento/lib/metrics"
	"github.com/ValentinKolb/memento/lib/store"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("blob")

type blobStoreImpl struct {
	store    store.IStore
	encoding Encoding
}

// NewBlobStore creates a blob store on s writing payloads with the given encoding.
// Blobs are read back with the same encoding, so all clients of one medium should agree on it.
func NewBlobStore(s store.IStore, encoding Encoding) (IBlobStore, error) {
	if encoding == "" {
		encoding = EncodingDataURL
	}
	if _, err := ParseEncoding(string(encoding)); err != nil {
		return nil, err
	}
	return &blobStoreImpl{
		store:    s,
		encoding: encoding,
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see blob.IBlobStore)
// --------------------------------------------------------------------------

func (b *blobStoreImpl) Put(ctx context.Context, data []byte) (ID, error) {
	stored, err := b.encoding.encode(data)
	if err != nil {
		return "", err
	}

	id := ID(uuid.NewString())
	ok, err := b.store.SetIfUnset(ctx, id.Key(), stored)
	switch {
	case errors.Is(err, store.ErrStorageFull):
		return "", fmt.Errorf("%w: %w", ErrStorageFull, err)
	case err != nil:
		return "", fmt.Errorf("failed to store blob: %w", err)
	case !ok:
		// a fresh uuid collided with an existing blob
		return "", fmt.Errorf("blob %s already exists", id)
	}

	metrics.BlobsWritten.Inc()
	metrics.BlobBytesWritten.Add(len(stored))
	plog.Debugf("stored blob %s (%d bytes, %s)", id, len(stored), b.encoding)
	return id, nil
}

func (b *blobStoreImpl) Get(ctx context.Context, id ID) ([]byte, bool, error) {
	stored, found, err := b.store.Get(ctx, id.Key())
	if err != nil || !found {
		return nil, false, err
	}
	data, err := b.encoding.decode(stored)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode blob %s: %w", id, err)
	}
	return data, true, nil
}

func (b *blobStoreImpl) URL(ctx context.Context, id ID) (string, bool, error) {
	stored, found, err := b.store.Get(ctx, id.Key())
	if err != nil || !found {
		return "", false, err
	}
	if b.encoding == EncodingDataURL {
		return string(stored), true, nil
	}
	data, err := b.encoding.decode(stored)
	if err != nil {
		return "", false, fmt.Errorf("failed to decode blob %s: %w", id, err)
	}
	return toDataURL(data), true, nil
}

func (b *blobStoreImpl) Delete(ctx context.Context, id ID) error {
	if err := b.store.Delete(ctx, id.Key()); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", id, err)
	}
	metrics.BlobsDeleted.Inc()
	return nil
}

func (b *blobStoreImpl) List(ctx context.Context) ([]ID, error) {
	keys, err := b.store.Keys(ctx, Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	ids := make([]ID, 0, len(keys))
	for _, key := range keys {
		if id, ok := FromKey(key); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
