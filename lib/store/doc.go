// Package store defines the shared key-value persistence medium that all memento
// clients coordinate through. It provides a unified interface (IStore) over
// several backends and a structured error type.
//
// The medium is deliberately simple: single-key reads and writes, a handful of
// conditional single-key operations, and prefix listing. It has no multi-key
// transactions and no locking of its own; everything above it (the advisory lock,
// the versioned inventory document, the blobs) is expressed as plain keys.
//
// Key Components:
//
//   - IStore Interface: The core abstraction. Every write is atomic for one key.
//     The conditional operations (SetIfUnset, CompareAndSwap, CompareAndDelete)
//     let the lock manager verify that the record it wrote is still the one it read.
//
//   - Error System: *Error carries a RetCode. Sentinels such as ErrStorageFull
//     match any *Error with the same code via errors.Is, so callers can react to
//     a full medium without knowing which backend produced the error.
//
//   - Factory: A function type that hides backend selection from callers.
//
// Implementations:
//
//   - Memory Store (lstore): A process-local store on top of a concurrent map with an
//     optional byte quota (mimicking the quota of browser storage). Suitable for
//     tests and for several clients living in one process.
//     Available in the "github.com/ValentinKolb/memento/lib/store/lstore" package.
//
//   - Badger Store (bstore): An on-disk store backed by BadgerDB. Data survives
//     restarts; clients share it by sharing the process that opened the directory.
//     Available in the "github.com/ValentinKolb/memento/lib/store/bstore" package.
//
//   - Redis Store (rstore): A store backed by a Redis server. This is the backend to
//     use when independent processes or hosts share one inventory.
//     Available in the "github.com/ValentinKolb/memento/lib/store/rstore" package.
//
// The conformance suite in "github.com/ValentinKolb/memento/lib/store/storetesting"
// is run against every implementation.
package store
