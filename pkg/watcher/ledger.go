package watcher

import (
	"sync"
	"time"
)

// Entry records when and by whom a path entered the ledger.
type Entry struct {
	FirstSeen time.Time
	Origin    Origin
}

// Ledger is the set of absolute paths already considered for upload.
// Add must be an atomic check-and-insert.
type Ledger interface {
	// Add inserts path and reports whether this call inserted it.
	Add(path string, origin Origin) bool
	Contains(path string) bool
	Len() int
	Reset()
}

// MemoryLedger implements Ledger with a mutex-guarded map.
type MemoryLedger struct {
	entries      map[string]Entry
	entriesMutex sync.RWMutex
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]Entry),
	}
}

// Add records path if it is not known yet.
func (l *MemoryLedger) Add(path string, origin Origin) bool {
	l.entriesMutex.Lock()
	defer l.entriesMutex.Unlock()

	if _, exists := l.entries[path]; exists {
		return false
	}
	l.entries[path] = Entry{
		FirstSeen: time.Now(),
		Origin:    origin,
	}
	return true
}

// Contains reports whether path has been observed.
func (l *MemoryLedger) Contains(path string) bool {
	l.entriesMutex.RLock()
	defer l.entriesMutex.RUnlock()

	_, exists := l.entries[path]
	return exists
}

// Len returns the number of known paths.
func (l *MemoryLedger) Len() int {
	l.entriesMutex.RLock()
	defer l.entriesMutex.RUnlock()
	return len(l.entries)
}

// Reset discards every entry.
func (l *MemoryLedger) Reset() {
	l.entriesMutex.Lock()
	defer l.entriesMutex.Unlock()
	l.entries = make(map[string]Entry)
}

// Entries returns a copy of all entries for monitoring.
func (l *MemoryLedger) Entries() map[string]Entry {
	l.entriesMutex.RLock()
	defer l.entriesMutex.RUnlock()

	result := make(map[string]Entry, len(l.entries))
	for path, entry := range l.entries {
		result[path] = entry
	}
	return result
}
