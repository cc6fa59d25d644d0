package messaging

import (
	"sync"
	"time"

	"github.com/rhythmofsigns/progress-engine/internal/domain/shared"
)

// DeadLetterEntry is an event a handler gave up on.
type DeadLetterEntry struct {
	Event       shared.Event
	HandlerName string
	Error       error
	Attempts    int
	FailedAt    time.Time
}

// DeadLetterQueue keeps the newest failures in arrival order, dropping the
// oldest once full. Operators drain it; nothing replays it automatically.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
	limit   int
}

func NewDeadLetterQueue(limit int) *DeadLetterQueue {
	if limit <= 0 {
		limit = 1000
	}
	return &DeadLetterQueue{limit: limit}
}

func (q *DeadLetterQueue) Add(entry DeadLetterEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if over := len(q.entries) + 1 - q.limit; over > 0 {
		q.entries = append(q.entries[:0], q.entries[over:]...)
	}
	q.entries = append(q.entries, entry)
}

// Entries copies the queue, oldest first.
func (q *DeadLetterQueue) Entries() []DeadLetterEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetterEntry(nil), q.entries...)
}

func (q *DeadLetterQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Pop removes the oldest entry.
func (q *DeadLetterQueue) Pop() (DeadLetterEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return DeadLetterEntry{}, false
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	return head, true
}
