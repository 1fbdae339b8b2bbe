package backup

import (
	"os"
	"testing"
	"time"
)

// seedEntries preserves n versions of one key and returns their IDs,
// oldest first.
func seedEntries(t *testing.T, v *Vault, key string, n int) []string {
	t.Helper()
	dir := t.TempDir()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		src := writeSource(t, dir, "rec.yaml", key+"-version-"+string(rune('a'+i)))
		entry, err := v.Preserve(key, src)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, entry.ID)
		time.Sleep(2 * time.Millisecond)
	}
	return ids
}

func TestPrune_MaxEntriesPerKey(t *testing.T) {
	v := Open(t.TempDir())
	ids := seedEntries(t, v, "doi:10.1/a", 5)
	seedEntries(t, v, "doi:10.1/b", 2)

	deleted, err := v.Prune(PruneOptions{MaxEntries: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 2 {
		t.Fatalf("deleted %d entries, want 2: %v", len(deleted), deleted)
	}
	// The two oldest versions of key a must be gone.
	for _, id := range ids[:2] {
		if err := v.Verify(id); err == nil {
			t.Errorf("entry %s should have been pruned", id)
		}
	}
	// Key b was under the limit and survives intact.
	history, err := v.History("doi:10.1/b")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Errorf("key b history = %d entries, want 2", len(history))
	}
}

func TestPrune_MaxAgeKeepsLatest(t *testing.T) {
	v := Open(t.TempDir())
	seedEntries(t, v, "doi:10.1/a", 3)

	// Everything is older than a zero-duration window, but KeepLatest
	// holds the newest version of the key.
	time.Sleep(2 * time.Millisecond)
	deleted, err := v.Prune(PruneOptions{MaxAge: time.Millisecond, KeepLatest: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 2 {
		t.Fatalf("deleted %d entries, want 2", len(deleted))
	}

	remaining, err := v.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Fatalf("got %d remaining entries, want 1", len(remaining))
	}
}

func TestPrune_DryRunDeletesNothing(t *testing.T) {
	v := Open(t.TempDir())
	seedEntries(t, v, "doi:10.1/a", 4)

	wouldDelete, err := v.Prune(PruneOptions{MaxEntries: 1, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(wouldDelete) != 3 {
		t.Fatalf("dry run reported %d deletions, want 3", len(wouldDelete))
	}

	entries, err := v.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Errorf("dry run removed entries: %d left, want 4", len(entries))
	}
	for _, e := range entries {
		if _, err := os.Stat(e.BackupPath); err != nil {
			t.Errorf("backup file missing after dry run: %s", e.BackupPath)
		}
	}
}

func TestPrune_NoLimitsIsNoop(t *testing.T) {
	v := Open(t.TempDir())
	seedEntries(t, v, "doi:10.1/a", 3)

	deleted, err := v.Prune(PruneOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(deleted) != 0 {
		t.Errorf("pruned %d entries with no limits set", len(deleted))
	}
}

func TestGetStats(t *testing.T) {
	v := Open(t.TempDir())
	seedEntries(t, v, "doi:10.1/a", 2)

	stats, err := v.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 2 {
		t.Errorf("stats entries = %d, want 2", stats.Entries)
	}
	if stats.TotalSize == 0 {
		t.Error("stats total size should be non-zero")
	}
	if stats.Newest.Before(stats.Oldest) {
		t.Error("newest timestamp precedes oldest")
	}
}
