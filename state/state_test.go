package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryTrackerMonotonic(t *testing.T) {
	tracker := NewMemoryTracker(0)

	tracker.Advance(5)
	tracker.Advance(3)
	tracker.Advance(9)

	if got := tracker.LastUID(); got != 9 {
		t.Errorf("LastUID() = %d, want 9", got)
	}

	snap := tracker.Snapshot()
	if snap.Advanced != 2 {
		t.Errorf("Advanced = %d, want 2 (lower uids ignored)", snap.Advanced)
	}
}

func TestFileTrackerRoundTrip(t *testing.T) {
	dir := t.TempDir()

	tracker, err := NewFileTracker(dir, true)
	if err != nil {
		t.Fatalf("NewFileTracker() error = %v", err)
	}
	if tracker.LastUID() != 0 {
		t.Errorf("fresh tracker LastUID() = %d, want 0", tracker.LastUID())
	}

	tracker.Advance(120)
	if err := tracker.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	reloaded, err := NewFileTracker(dir, true)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if got := reloaded.LastUID(); got != 120 {
		t.Errorf("reloaded LastUID() = %d, want 120", got)
	}
}

func TestFileTrackerNoPersist(t *testing.T) {
	dir := t.TempDir()

	tracker, err := NewFileTracker(dir, false)
	if err != nil {
		t.Fatalf("NewFileTracker() error = %v", err)
	}
	tracker.Advance(77)
	if err := tracker.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if _, err := NewFileTracker(dir, true); err != nil {
		t.Fatalf("reload error = %v", err)
	}
	reloaded, _ := NewFileTracker(dir, true)
	if got := reloaded.LastUID(); got != 0 {
		t.Errorf("dry-run tracker persisted a cursor: %d", got)
	}
}

func TestFileTrackerCorruptCursor(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cursor.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileTracker(dir, true); err == nil {
		t.Error("expected error for corrupt cursor file")
	}
}

func TestFileTrackerEmptyDir(t *testing.T) {
	if _, err := NewFileTracker("  ", true); err == nil {
		t.Error("expected error for empty state directory")
	}
}
