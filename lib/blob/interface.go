package blob

import (
	"context"
	"errors"
	"strings"
)

// Prefix namespaces blob keys in the medium. A blob with id X is stored under Prefix+X.
const Prefix = "memento_media_"

// ID identifies a blob. It is generated by Put and never reused.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Key returns the medium key of the blob.
func (id ID) Key() string {
	return Prefix + string(id)
}

// FromKey returns the id of a medium key, or false if the key is not a blob key.
func FromKey(key string) (ID, bool) {
	if !strings.HasPrefix(key, Prefix) || len(key) == len(Prefix) {
		return "", false
	}
	return ID(strings.TrimPrefix(key, Prefix)), true
}

var (
	// ErrStorageFull is returned by Put when the medium has no capacity left for the payload.
	ErrStorageFull = errors.New("blob storage is full")
	// ErrEncoding is returned when a payload cannot be encoded for storage, or a
	// stored payload cannot be decoded.
	ErrEncoding = errors.New("blob payload cannot be encoded")
)

// IBlobStore stores immutable binary payloads under generated ids.
// None of its operations take the advisory lock.
type IBlobStore interface {
	// Put stores data under a fresh id and returns it.
	Put(ctx context.Context, data []byte) (id ID, err error)

	// Get returns the payload of id. A missing blob is not an error: found is false.
	Get(ctx context.Context, id ID) (data []byte, found bool, err error)

	// URL returns the payload of id as a data URL (data:<mime>;base64,<payload>).
	URL(ctx context.Context, id ID) (url string, found bool, err error)

	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, id ID) (err error)

	// List returns the ids of all stored blobs, in no particular order.
	List(ctx context.Context) (ids []ID, err error)
}
