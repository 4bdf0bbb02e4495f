package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a crawl task.
type TaskStatus string

const (
	StatusWaiting    TaskStatus = "waiting"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusError      TaskStatus = "error"
)

// Terminal reports whether a task in this status has finished.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// LogSeverity classifies a task log entry.
type LogSeverity string

const (
	SeverityInfo    LogSeverity = "info"
	SeveritySuccess LogSeverity = "success"
	SeverityWarning LogSeverity = "warning"
	SeverityError   LogSeverity = "error"
)

// LogEntry is one append-only event in a task's log stream.
type LogEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Message   string      `json:"message"`
	Severity  LogSeverity `json:"severity"`
}

// Task is one URL's crawl lifecycle and its terminal outcome.
//
// Result is set iff Status == StatusCompleted and Error is set iff
// Status == StatusError. FinishedAt is set exactly once, on the
// transition into a terminal status. The scheduler goroutine is the
// only writer; everyone else works on snapshots.
type Task struct {
	ID         string       `json:"id"`
	URL        string       `json:"url"`
	Status     TaskStatus   `json:"status"`
	Progress   int          `json:"progress"` // 0..100
	Logs       []LogEntry   `json:"logs"`
	Result     *HotelRecord `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// NewTask creates a queued task for a URL.
func NewTask(url string) *Task {
	return &Task{
		ID:        uuid.NewString(),
		URL:       url,
		Status:    StatusWaiting,
		CreatedAt: time.Now(),
	}
}

// AppendLog records an event on the task's own stream.
func (t *Task) AppendLog(severity LogSeverity, message string) LogEntry {
	entry := LogEntry{Timestamp: time.Now(), Message: message, Severity: severity}
	t.Logs = append(t.Logs, entry)
	return entry
}

// Clone returns a deep copy safe to hand outside the scheduler goroutine.
func (t *Task) Clone() *Task {
	c := *t
	c.Logs = make([]LogEntry, len(t.Logs))
	copy(c.Logs, t.Logs)
	if t.FinishedAt != nil {
		finished := *t.FinishedAt
		c.FinishedAt = &finished
	}
	// Result is immutable once assembled, sharing the pointer is fine.
	return &c
}

// Reset returns a terminal task to the queue. It is the only backward
// transition in the state machine.
func (t *Task) Reset() {
	t.Status = StatusWaiting
	t.Progress = 0
	t.Result = nil
	t.Error = ""
	t.FinishedAt = nil
}

// StatusCounts aggregates tasks by status, as reported by the store
// and the stats endpoint.
type StatusCounts struct {
	Waiting    int `json:"waiting"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Error      int `json:"error"`
}

// Total is the number of tasks across all statuses.
func (c StatusCounts) Total() int {
	return c.Waiting + c.Processing + c.Completed + c.Error
}
