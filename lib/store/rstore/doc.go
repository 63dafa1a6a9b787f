// Package rstore implements store.IStore on top of a Redis server using go-redis.
//
// This is the backend for independent processes (or hosts) sharing one inventory:
// every client talks to the same server, and Redis executes each command and each
// Lua script atomically. SetIfUnset maps to SETNX; CompareAndSwap and
// CompareAndDelete are small Lua scripts that compare the current value before
// writing. Keys uses SCAN, so it never blocks the server.
//
// An optional namespace prefix lets several inventories share one Redis database.
// A server rejecting writes because maxmemory is reached ("OOM ...") is reported
// as store.ErrStorageFull.
package rstore
