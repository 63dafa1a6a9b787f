package lockmgr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/memento/lib/codec"
	"github.com/ValentinKolb/memento/lib/identity"
	"github.com/ValentinKolb/memento/lib/metrics"
	"github.com/ValentinKolb/memento/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var plog = logger.GetLogger("lock")

// Options configures the lock protocol.
type Options struct {
	TTL        time.Duration // how long an acquired lock stays valid (0 = 5 minutes)
	MaxRetries int           // retries after the first check
	RetryDelay time.Duration // fixed delay between checks
	Clock      Clock         // nil = SystemClock()
	Codec      codec.ICodec  // nil = json
	Key        string        // "" = Key
}

// DefaultOptions returns the protocol defaults: 5 minute TTL, 3 retries, 1 second delay.
func DefaultOptions() *Options {
	return &Options{
		TTL:        5 * time.Minute,
		MaxRetries: 3,
		RetryDelay: time.Second,
	}
}

type lockMgrImpl struct {
	store store.IStore
	opts  Options
}

// NewLockManager creates a lock manager storing its record in s.
// The lock manager has no state besides the record, so any number of managers
// (in any number of processes) can be created on the same store.
func NewLockManager(s store.IStore, opts *Options) ILockManager {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.TTL <= 0 {
		o.TTL = DefaultOptions().TTL
	}
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	if o.Codec == nil {
		o.Codec = codec.NewJSONCodec()
	}
	if o.Key == "" {
		o.Key = Key
	}
	return &lockMgrImpl{
		store: s,
		opts:  o,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see lockmgr.ILockManager)
// --------------------------------------------------------------------------

func (lm *lockMgrImpl) Acquire(ctx context.Context, owner identity.ClientIdentity) error {
	start := lm.opts.Clock.Now()
	defer metrics.ObserveLockWait(start)

	for attempt := 0; ; attempt++ {
		acquired, err := lm.tryAcquire(ctx, owner)
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if acquired {
			metrics.LockAcquired.Inc()
			return nil
		}
		if attempt >= lm.opts.MaxRetries {
			metrics.LockBusy.Inc()
			plog.Warningf("lock still held by another client after %d retries", lm.opts.MaxRetries)
			return ErrLockBusy
		}
		metrics.LockRetries.Inc()
		plog.Debugf("lock is held by another client, retrying in %s", lm.opts.RetryDelay)
		if err := lm.opts.Clock.Sleep(ctx, lm.opts.RetryDelay); err != nil {
			return err
		}
	}
}

func (lm *lockMgrImpl) Release(ctx context.Context, owner identity.ClientIdentity) (bool, error) {
	raw, found, err := lm.store.Get(ctx, lm.opts.Key)
	if err != nil || !found {
		return false, err
	}

	var rec Record
	if err := lm.opts.Codec.Decode(raw, &rec); err != nil {
		plog.Warningf("corrupt lock record, leaving it in place: %v", err)
		return false, nil
	}

	// Only the owner may release
	if rec.Owner != owner {
		return false, nil
	}

	// Delete only the record we read; it may have been reclaimed in the meantime
	released, err := lm.store.CompareAndDelete(ctx, lm.opts.Key, raw)
	if err != nil {
		return false, fmt.Errorf("failed to release lock: %w", err)
	}
	if released {
		metrics.LockReleased.Inc()
	}
	return released, nil
}

func (lm *lockMgrImpl) Inspect(ctx context.Context) (Record, bool, error) {
	raw, found, err := lm.store.Get(ctx, lm.opts.Key)
	if err != nil || !found {
		return Record{}, false, err
	}
	var rec Record
	if err := lm.opts.Codec.Decode(raw, &rec); err != nil {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// tryAcquire performs one check of the lock and, if it is available, writes a new record.
// The write is conditional on the record that was checked, so two clients that both
// saw the lock available cannot both succeed.
func (lm *lockMgrImpl) tryAcquire(ctx context.Context, owner identity.ClientIdentity) (bool, error) {
	raw, found, err := lm.store.Get(ctx, lm.opts.Key)
	if err != nil {
		return false, err
	}

	now := lm.opts.Clock.Now()
	newRaw, err := lm.opts.Codec.Encode(Record{
		Owner:     owner,
		Timestamp: now.UnixMilli(),
		ExpiresAt: now.Add(lm.opts.TTL).UnixMilli(),
	})
	if err != nil {
		return false, err
	}

	if !found {
		return lm.store.SetIfUnset(ctx, lm.opts.Key, newRaw)
	}

	var cur Record
	if err := lm.opts.Codec.Decode(raw, &cur); err != nil {
		metrics.CorruptRecovered.Inc()
		plog.Warningf("corrupt lock record, treating lock as available: %v", err)
	} else if cur.ActiveFor(owner, now) {
		return false, nil
	} else if cur.Owner != owner {
		metrics.LockReclaimed.Inc()
		plog.Infof("reclaiming lock of %s expired at %s", cur.Owner, cur.Expiry().Format(time.RFC3339))
	}

	return lm.store.CompareAndSwap(ctx, lm.opts.Key, raw, newRaw)
}

// --------------------------------------------------------------------------
// Scoped locking
// --------------------------------------------------------------------------

// Do acquires the lock, runs fn and releases the lock, also when fn fails or panics.
// The release does not observe cancellation of ctx, so a cancelled caller never leaves
// the lock behind. A release error is joined to fn's error.
func Do(ctx context.Context, lm ILockManager, owner identity.ClientIdentity, fn func(ctx context.Context) error) (err error) {
	if err := lm.Acquire(ctx, owner); err != nil {
		return err
	}
	defer func() {
		_, releaseErr := lm.Release(context.WithoutCancel(ctx), owner)
		if releaseErr != nil {
			plog.Errorf("failed to release lock: %v", releaseErr)
			err = errors.Join(err, releaseErr)
		}
	}()
	return fn(ctx)
}
