// Package identity provides the stable client identity used as the owner token of
// the advisory lock. The identity is a random UUID generated on first use and
// persisted in the medium under the well-known key "clientId", so a restarted
// client reuses it.
//
// The identity is resolved once at startup and passed explicitly to the lock
// manager and the inventory store; there is no package-level identity.
package identity
