// Package store implements the multi-backend persistent storage manager.
//
// Values are encoded by a codec, optionally compressed and encrypted, and
// routed to one of three backends by a deterministic policy based on the
// key text and transformed payload size: keys containing a sensitive term
// ("password", "token", "secret", "key", "auth") go to the OS credential
// store; non-sensitive payloads over 1 MiB go to the blob store; the rest
// go to the bbolt settings store.
//
// Write pipeline:
//
//	value -> codec -> (compress) -> (encrypt) -> quota check -> backend
//
// Read reverses it, probing the backends in the fixed order settings,
// secure, blob. A metadata index (key, size, timestamp) persists alongside
// the settings store and backs quota accounting and enumeration. The quota
// is a hard cap: writes that would exceed it are rejected, nothing is
// evicted.
//
// Backup serializes the full observable state into one opaque envelope;
// Restore clears the store, then replays the envelope. A failed restore
// leaves the store empty, never half-replayed over old state.
package store
