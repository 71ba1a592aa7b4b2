// Package activity keeps a bounded, most-recent-first record of processed
// events and summary snapshots for observability.
package activity

import (
	"sync"
	"time"

	"pool_monitor/internal/monitor"
)

// DefaultLimit is the number of entries retained.
const DefaultLimit = 50

// Category classifies an entry for read-time filtering.
type Category string

const (
	CategorySummary Category = "summary"
	CategoryPlace   Category = "place"
	CategorySupply  Category = "supply"
)

// Entry is one immutable activity record.
type Entry struct {
	Time      time.Time        `json:"time"`
	Category  Category         `json:"category"`
	EventType string           `json:"event_type,omitempty"`
	Location  string           `json:"location,omitempty"`
	Details   string           `json:"details,omitempty"`
	Summary   *monitor.Summary `json:"summary,omitempty"`
}

// Log is a bounded ring of entries. Insertion is O(1); once the bound is
// exceeded the oldest entry is overwritten.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	next    int // Ring write position.
	full    bool
}

// NewLog creates a log retaining up to limit entries.
// A non-positive limit selects DefaultLimit.
func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{entries: make([]Entry, limit)}
}

// Add records an entry, evicting the oldest when the log is full.
func (l *Log) Add(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = e
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}

// Entries returns the retained entries, most recent first, optionally
// filtered by category. An empty category (or "all") returns everything.
func (l *Log) Entries(filter Category) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.next
	if l.full {
		size = len(l.entries)
	}

	out := make([]Entry, 0, size)
	for i := 0; i < size; i++ {
		// Walk backwards from the most recent write position.
		idx := l.next - 1 - i
		if idx < 0 {
			idx += len(l.entries)
		}
		e := l.entries[idx]
		if filter != "" && filter != "all" && e.Category != filter {
			continue
		}
		out = append(out, e)
	}
	return out
}
