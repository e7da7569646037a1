package store

import "fmt"

// quota tracks the aggregate stored bytes across all backends. It is not
// self-locking: the Manager's mutex guards every access, keeping the
// check-and-apply sequence of a write free of intervening readers.
// The used total mirrors the metadata index sum; it is reconciled from the
// index when the store opens.
type quota struct {
	max  int64
	used int64
}

// check decides whether a payload of incoming bytes may be admitted,
// given that replacing bytes of an existing entry for the same key would
// be released by the overwrite. Exceeding the cap is a hard rejection;
// there is no eviction.
func (q *quota) check(incoming, replacing int64) error {
	if q.used-replacing+incoming > q.max {
		return fmt.Errorf("%w: %d + %d bytes would exceed limit %d",
			ErrQuotaExceeded, q.used-replacing, incoming, q.max)
	}
	return nil
}

// commit applies the accounting for a successful write.
func (q *quota) commit(incoming, replacing int64) {
	q.used += incoming - replacing
}

// release returns bytes freed by a delete.
func (q *quota) release(n int64) {
	q.used -= n
	if q.used < 0 {
		q.used = 0
	}
}
