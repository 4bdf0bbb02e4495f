package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/dangson92/crawl2/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sinkEvent(msg string) Event {
	return Event{
		TaskID: "task-1",
		URL:    "https://a.test/1",
		Entry:  domain.LogEntry{Timestamp: time.Now(), Message: msg, Severity: domain.SeverityInfo},
	}
}

func TestLogSink_EvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(3)
	for i := 0; i < 5; i++ {
		sink.Append(sinkEvent(fmt.Sprintf("entry %d", i)))
	}

	assert.Equal(t, 3, sink.Len())
	tail := sink.Tail(0)
	require.Len(t, tail, 3)
	assert.Equal(t, "entry 2", tail[0].Entry.Message)
	assert.Equal(t, "entry 4", tail[2].Entry.Message)
}

func TestLogSink_TailReturnsNewestN(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(10)
	for i := 0; i < 4; i++ {
		sink.Append(sinkEvent(fmt.Sprintf("entry %d", i)))
	}

	tail := sink.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, "entry 2", tail[0].Entry.Message)
	assert.Equal(t, "entry 3", tail[1].Entry.Message)

	// Asking for more than is buffered returns everything.
	assert.Len(t, sink.Tail(100), 4)
}

func TestLogSink_TailIsACopy(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(10)
	sink.Append(sinkEvent("original"))

	tail := sink.Tail(0)
	tail[0].Entry.Message = "mutated"
	assert.Equal(t, "original", sink.Tail(0)[0].Entry.Message)
}
