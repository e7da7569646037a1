// Package backend implements the three key-to-bytes stores payloads are
// routed to:
//
//   - Settings: bbolt-backed, for small unencrypted-at-rest values. Its
//     database file also hosts the metadata index and store configuration.
//   - Secure: the OS credential store, for sensitive keys.
//   - Blob: one file per key under a confined root, for large values.
//
// Backends store raw byte payloads only. Quota, metadata, compression and
// encryption are the storage manager's concern; a backend never sees them.
package backend
