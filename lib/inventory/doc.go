// Package inventory implements the shared inventory document: one versioned record
// mapping item ids to items, stored under the key memento_inventory.
//
// Writes follow a fixed sequence under the advisory lock:
//
//	acquire -> read latest -> Merge(latest, delta) -> persist (version+1) -> release
//
// Merging into the latest persisted document instead of the caller's snapshot means that
// clients editing different items never lose each other's changes. Two clients editing
// the same item concurrently: the last writer wins. The lock is released on every path,
// see lockmgr.Do.
//
// Reads are lock-free. A missing or corrupt document reads as {version: 1, items: {}};
// corruption is logged and counted but never returned as an error.
//
// Deleting an item removes its blobs and persists the document without incrementing
// the version. Nothing exported persists a document without holding the lock.
package inventory
