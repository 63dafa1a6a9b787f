// Package lockmgr implements the advisory lock that arbitrates writes to the
// inventory. The lock is a single record stored under a well-known key of a
// store.IStore; the lockmgr keeps no other state. Therefore it is safe to be
// created multiple times on the same store, in as many processes as needed.
//
// Core Functionality:
//   - Lock acquisition with a fixed retry delay and a bounded retry count
//   - Re-entrant acquisition: the owner may acquire again without waiting,
//     which refreshes the expiry
//   - Expiry: a record past its expiresAt is abandoned and can be reclaimed by anyone
//   - Safe release operations that verify ownership
//
// Lock Record:
//
//	{"ownerId": "<client identity>", "timestamp": <ms>, "expiresAt": <ms>}
//
//	A record that cannot be decoded is treated as absent (the lock is available).
//	This favors availability; the TTL bounds the damage of a wrong reclaim.
//
// Implementation Approach:
//
//	Each check reads the record and decides whether it is available for the
//	requester. If it is, a new record is written conditionally on what was read:
//	SetIfUnset when there was no record, CompareAndSwap against the old bytes
//	otherwise. If another client changed the record in between, the write fails
//	and the attempt counts as contended. Release deletes with CompareAndDelete, so a
//	client whose lock expired and was reclaimed cannot delete the new owner's record.
//
// Retry Policy:
//
//	No randomized backoff: at most MaxRetries+1 checks separated by RetryDelay,
//	bounding the wait to MaxRetries*RetryDelay. Defaults are 3 retries, 1 second
//	delay and a 5 minute TTL. Time and sleeping come from an injected Clock.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager(store, lockmgr.DefaultOptions())
//	err := lockmgr.Do(ctx, locks, clientID, func(ctx context.Context) error {
//	    // read, merge and persist the inventory
//	    return nil
//	})
//	if errors.Is(err, lockmgr.ErrLockBusy) {
//	    // another client is writing
//	}
//
// Security Considerations:
//
//	The lock is advisory: it only excludes clients that check it. It is not
//	designed to resist malicious clients, which can write the medium directly.
package lockmgr
