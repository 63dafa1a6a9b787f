// Package blob stores media payloads (images, audio recordings) in the medium.
//
// Each payload is written once under a freshly generated id (key memento_media_<id>)
// and never modified afterwards. Blobs have no owner, version or expiry; they are
// removed when the item referencing them is deleted. Blob operations never take
// the advisory lock, since nobody else can know an id before Put returns it.
//
// Encodings:
//   - dataurl (default): data:<mime>;base64,<payload>, the mime type is sniffed from the bytes
//   - raw: the payload bytes
//   - zstd: a zstd frame of the payload
//
// URL always returns a data URL, regardless of the encoding.
package blob
