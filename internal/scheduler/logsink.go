package scheduler

import (
	"sync"

	"github.com/dangson92/crawl2/internal/domain"
)

// Event is one task log entry tagged with its origin, as surfaced to
// the global log tail.
type Event struct {
	TaskID string          `json:"task_id,omitempty"`
	URL    string          `json:"url,omitempty"`
	Entry  domain.LogEntry `json:"entry"`
}

// LogSink is the append-only global event stream. It keeps only the
// most recent entries so memory stays bounded no matter how long the
// orchestrator runs; the unbounded per-task streams live on the tasks
// themselves.
type LogSink struct {
	mu      sync.Mutex
	cap     int
	entries []Event
}

// NewLogSink creates a sink retaining up to capacity entries.
func NewLogSink(capacity int) *LogSink {
	if capacity < 1 {
		capacity = 1
	}
	return &LogSink{cap: capacity}
}

// Append records an event, evicting the oldest once over capacity.
func (s *LogSink) Append(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, ev)
	if len(s.entries) > s.cap {
		s.entries = s.entries[len(s.entries)-s.cap:]
	}
}

// Tail returns a copy of the most recent n events, oldest first.
// n <= 0 means everything retained.
func (s *LogSink) Tail(n int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Event, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out
}

// Len is the number of retained events.
func (s *LogSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
