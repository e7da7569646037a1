package index

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/illarion/storekit/internal/backend"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	settings, err := backend.OpenSettings(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("OpenSettings failed: %v", err)
	}
	t.Cleanup(func() { settings.Close() })

	ix, err := New(settings)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return ix
}

func TestPutGetDelete(t *testing.T) {
	ix := openTestIndex(t)

	got, err := ix.Get("missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get of absent key = %+v, want nil", got)
	}

	now := time.Now().UTC()
	if err := ix.Put(Entry{Key: "a", Size: 100, Timestamp: now}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err = ix.Get("a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.Size != 100 || !got.Timestamp.Equal(now) {
		t.Errorf("Get = %+v, want size 100 at %v", got, now)
	}

	// Upsert replaces
	if err := ix.Put(Entry{Key: "a", Size: 50, Timestamp: now}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, _ = ix.Get("a")
	if got.Size != 50 {
		t.Errorf("upsert not applied, size = %d", got.Size)
	}

	if err := ix.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, _ = ix.Get("a")
	if got != nil {
		t.Error("entry survived Delete")
	}

	// Idempotent
	if err := ix.Delete("a"); err != nil {
		t.Errorf("Delete of absent key should succeed, got %v", err)
	}
}

func TestAllAndTotalSize(t *testing.T) {
	ix := openTestIndex(t)

	sizes := map[string]int64{"a": 10, "b": 20, "c": 30}
	for k, s := range sizes {
		if err := ix.Put(Entry{Key: k, Size: s, Timestamp: time.Now()}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	entries, err := ix.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("All returned %d entries, want 3", len(entries))
	}
	for _, e := range entries {
		if sizes[e.Key] != e.Size {
			t.Errorf("entry %q has size %d, want %d", e.Key, e.Size, sizes[e.Key])
		}
	}

	total, err := ix.TotalSize()
	if err != nil {
		t.Fatalf("TotalSize failed: %v", err)
	}
	if total != 60 {
		t.Errorf("TotalSize = %d, want 60", total)
	}

	if err := ix.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	total, _ = ix.TotalSize()
	if total != 0 {
		t.Errorf("TotalSize after Clear = %d, want 0", total)
	}
}
