// Package storetesting provides a conformance test suite for store.IStore
// implementations. Every backend runs the same suite so that the lock manager and
// the inventory store can rely on identical semantics for single-key atomicity,
// conditional writes, copies on read and prefix listing.
//
// Usage:
//
//	func Test(t *testing.T) {
//	    storetesting.RunStoreTests(t, "LocalStore", func(t *testing.T) store.IStore {
//	        return lstore.NewLocalStore(nil)
//	    })
//	}
package storetesting
