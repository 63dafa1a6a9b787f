// Package bstore implements store.IStore on top of BadgerDB, an embedded LSM
// key-value database. Data survives process restarts.
//
// Badger allows only one process to open a directory, so clients that should
// coordinate through a badger store must live in the process that opened it.
// Writes are serialized with a mutex; the conditional operations read and write
// inside a single badger transaction while holding it. Reads never take the mutex.
//
// Error mapping:
//   - badger.ErrBlockedWrites, badger.ErrTxnTooBig and ENOSPC become store.ErrStorageFull
//   - badger.ErrDBClosed becomes store.ErrClosed
//   - everything else is reported as RetCInternalError wrapping the badger error
package bstore
