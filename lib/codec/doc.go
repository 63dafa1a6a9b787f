// Package codec provides the serialization of the records memento keeps in the
// medium (the lock record and the inventory document).
//
// Implementations:
//
//   - jsonCodecImpl: The default. Produces the interoperable layout
//     ({"ownerId","timestamp","expiresAt"} for the lock, {"version","items"} for
//     the inventory) that other clients of the same medium expect.
//
//   - gobCodecImpl: Go's gob encoding. Only usable when every client sharing the
//     medium is a Go client configured with the same codec.
//
// Bytes that a codec cannot decode are reported as an error; the callers treat
// such records as corrupt and fall back to their empty defaults.
//
// Thread Safety:
//
//	All codec implementations are stateless and safe for concurrent use.
package codec
