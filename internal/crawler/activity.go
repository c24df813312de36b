package crawler

import (
	"sync"
	"time"
)

// Crawl activity outcomes
const (
	ActivitySuccess      = "success"       // complete data from a single source
	ActivityMerged       = "merged"        // data combined from multiple sources
	ActivityPartial      = "partial"       // incomplete data persisted
	ActivityNotFound     = "not_found"     // no source knows the address
	ActivityServiceError = "service_error" // temporary failure, retried later
)

// ActivityEntry is one line of the crawler's recent-activity log
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Icao24    string    `json:"icao24"`
	Outcome   string    `json:"outcome"`
	Source    string    `json:"source,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// activityLog is a fixed-capacity newest-first log of crawl outcomes
type activityLog struct {
	mu       sync.Mutex
	capacity int
	entries  []ActivityEntry
}

func newActivityLog(capacity int) *activityLog {
	return &activityLog{
		capacity: capacity,
		entries:  make([]ActivityEntry, 0, capacity),
	}
}

func (l *activityLog) add(entry ActivityEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[len(l.entries)-l.capacity:]
	}
}

// snapshot returns the log newest-first
func (l *activityLog) snapshot() []ActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ActivityEntry, len(l.entries))
	for i, e := range l.entries {
		out[len(l.entries)-1-i] = e
	}
	return out
}
