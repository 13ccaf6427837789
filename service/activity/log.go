package activity

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is how many records the panel shows. The log is a display
// affordance, not an audit trail; see service/db for persistent history.
const DefaultCapacity = 3

// Record is a single pipeline outcome as shown in the panel's activity feed.
type Record struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Timestamp time.Time  `json:"timestamp"`
	Signature *string    `json:"signature,omitempty"`
}

// Log is a bounded, newest-first record of pipeline outcomes. Appends are
// serialized; when the log is full the oldest record is silently evicted.
type Log struct {
	mu       sync.Mutex
	capacity int
	records  []Record
}

// NewLog creates a log holding at most capacity records.
// A capacity <= 0 falls back to DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		capacity: capacity,
		records:  make([]Record, 0, capacity),
	}
}

// Append records an outcome and returns the created record.
// The signature is optional; failures before broadcast have none.
func (l *Log) Append(label string, signature *string) Record {
	rec := Record{
		ID:        uuid.NewString(),
		Label:     label,
		Timestamp: time.Now().UTC(),
	}
	if signature != nil && *signature != "" {
		sig := *signature
		rec.Signature = &sig
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append([]Record{rec}, l.records...)
	if len(l.records) > l.capacity {
		l.records = l.records[:l.capacity]
	}
	return rec
}

// Records returns a newest-first snapshot of the log.
// The returned slice is a copy; callers cannot mutate the log through it.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records currently held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
