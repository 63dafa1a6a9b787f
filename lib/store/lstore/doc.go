// Package lstore implements a local, in-memory key-value store based on the
// store.IStore interface. Data is stored entirely in memory and is not persisted
// between process restarts.
//
// Key Features:
//   - Pure in-memory storage on top of xsync.MapOf
//   - Conditional writes (SetIfUnset, CompareAndSwap, CompareAndDelete) executed
//     atomically per key inside MapOf.Compute
//   - Optional byte quota; writes that would exceed it fail with store.ErrStorageFull,
//     the same way a browser's local storage rejects writes once its quota is used up
//
// Thread Safety:
//
//	All operations are thread-safe. Several clients sharing one store instance
//	behave like several browser tabs sharing one origin's local storage.
//
// Usage Example:
//
//	s := lstore.NewLocalStore(&lstore.Options{QuotaBytes: 5 << 20})
//	err := s.Set(ctx, "clientId", []byte("..."))
//	value, exists, err := s.Get(ctx, "clientId")
package lstore
