package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Tracker records the highest message identifier that made it into the
// ledger, so the next run can request strictly newer messages only.
type Tracker interface {
	// LastUID is the resume cursor; 0 means "process everything".
	LastUID() uint32
	// Advance raises the cursor to uid if uid is greater. The cursor is
	// monotonic, lower values are ignored.
	Advance(uid uint32)
	Snapshot() Snapshot
}

type Snapshot struct {
	LastUID  uint32
	Advanced int
}

type MemoryTracker struct {
	mu       sync.RWMutex
	lastUID  uint32
	advanced int
}

func NewMemoryTracker(lastUID uint32) *MemoryTracker {
	return &MemoryTracker{lastUID: lastUID}
}

func (m *MemoryTracker) LastUID() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUID
}

func (m *MemoryTracker) Advance(uid uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uid > m.lastUID {
		m.lastUID = uid
		m.advanced++
	}
}

func (m *MemoryTracker) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{LastUID: m.lastUID, Advanced: m.advanced}
}

// FileTracker persists the cursor so future runs skip processed messages.
// The cursor file is only rewritten on Flush, after the batch: a crashed run
// re-parses at most one batch, it never loses messages.
type FileTracker struct {
	*MemoryTracker
	path    string
	persist bool
}

type cursorFile struct {
	LastUID   uint32 `json:"last_uid"`
	UpdatedAt string `json:"updated_at"`
}

func NewFileTracker(stateDir string, persist bool) (*FileTracker, error) {
	if strings.TrimSpace(stateDir) == "" {
		return nil, fmt.Errorf("state directory is empty")
	}

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	tracker := &FileTracker{
		path:    filepath.Join(stateDir, "cursor.json"),
		persist: persist,
	}

	lastUID, err := tracker.load()
	if err != nil {
		return nil, err
	}
	tracker.MemoryTracker = NewMemoryTracker(lastUID)

	return tracker, nil
}

func (f *FileTracker) load() (uint32, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor file: %w", err)
	}

	var cursor cursorFile
	if err := json.Unmarshal(data, &cursor); err != nil {
		return 0, fmt.Errorf("parse cursor file %s: %w", f.path, err)
	}
	return cursor.LastUID, nil
}

// Flush writes the current cursor via a temp file rename so a crash never
// leaves a torn cursor behind.
func (f *FileTracker) Flush() error {
	if !f.persist {
		return nil
	}

	cursor := cursorFile{
		LastUID:   f.LastUID(),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cursor file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace cursor file: %w", err)
	}

	return nil
}
