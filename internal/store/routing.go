package store

import "strings"

// blobThreshold is the transformed payload size above which non-sensitive
// values go to the blob store.
const blobThreshold = 1 << 20 // 1 MiB

// sensitiveTerms routes a key to the secure store when any of them occurs
// in the lowercased key. This is a substring heuristic, not a guarantee:
// "keyboard_layout" matches "key" and lands in the secure store. Kept
// as-is; callers that need exact control pick their key names accordingly.
var sensitiveTerms = []string{"password", "token", "secret", "key", "auth"}

type destination int

const (
	destSettings destination = iota
	destSecure
	destBlob
)

func (d destination) String() string {
	switch d {
	case destSecure:
		return "secure"
	case destBlob:
		return "blob"
	default:
		return "settings"
	}
}

// selectBackend decides the destination for a key and its transformed
// payload size. Selection depends only on the key text and the size, so it
// is reproducible without consulting metadata. Sensitivity wins over size:
// a sensitive value goes to the secure store however large it is, and if
// the platform's credential store cannot hold it the write fails rather
// than being silently redirected.
func selectBackend(key string, payloadSize int) destination {
	lower := strings.ToLower(key)
	for _, term := range sensitiveTerms {
		if strings.Contains(lower, term) {
			return destSecure
		}
	}
	if payloadSize > blobThreshold {
		return destBlob
	}
	return destSettings
}
