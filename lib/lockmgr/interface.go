package lockmgr

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ValentinKolb/memento/lib/identity"
)

// Key is the well-known key of the lock record.
const Key = "memento_lock"

// ErrLockBusy is returned when the lock stayed held by another client through all retries.
var ErrLockBusy = errors.New("vault is busy, please try again in a moment")

// ILockManager defines the interface for the advisory lock.
type ILockManager interface {
	// Acquire acquires the lock for owner. The lock is available if it is unset,
	// expired, unreadable or already owned by owner (re-acquiring refreshes the expiry).
	// If another owner holds it, Acquire retries with a fixed delay and returns
	// ErrLockBusy once the retries are exhausted; in that case nothing was written.
	Acquire(ctx context.Context, owner identity.ClientIdentity) (err error)

	// Release removes the lock if it is owned by owner, otherwise it does nothing.
	// The boolean reports whether a record was removed.
	Release(ctx context.Context, owner identity.ClientIdentity) (released bool, err error)

	// Inspect returns the current lock record. The boolean is false if the lock is
	// unset or the record cannot be decoded.
	Inspect(ctx context.Context) (record Record, found bool, err error)
}

// --------------------------------------------------------------------------
// Lock Record
// --------------------------------------------------------------------------

// Record is the persisted lock. Timestamps are milliseconds since the unix epoch.
type Record struct {
	Owner     identity.ClientIdentity `json:"ownerId"`
	Timestamp int64                   `json:"timestamp"`
	ExpiresAt int64                   `json:"expiresAt"`
}

// AcquiredAt returns the acquisition time.
func (r Record) AcquiredAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Expiry returns the expiry time.
func (r Record) Expiry() time.Time {
	return time.UnixMilli(r.ExpiresAt)
}

// ActiveFor reports whether the record blocks requester at now:
// it must be unexpired and owned by someone else.
func (r Record) ActiveFor(requester identity.ClientIdentity, now time.Time) bool {
	return r.ExpiresAt > now.UnixMilli() && r.Owner != requester
}

// UnmarshalJSON accepts records written by older clients, which stored the owner as "clientId".
func (r *Record) UnmarshalJSON(b []byte) error {
	type plain Record
	var aux struct {
		plain
		LegacyOwner identity.ClientIdentity `json:"clientId"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Record(aux.plain)
	if r.Owner == "" {
		r.Owner = aux.LegacyOwner
	}
	return nil
}
