package projection

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// QuarantinedEvent records a poison event that was skipped after bounded
// retries, kept for manual reconciliation
type QuarantinedEvent struct {
	AggregateID uuid.UUID `json:"aggregate_id"`
	Sequence    int64     `json:"sequence"`
	EventType   string    `json:"event_type"`
	Reason      string    `json:"reason"`
	At          time.Time `json:"at"`
}

// Quarantine holds quarantined events. A poison event for one aggregate never
// blocks projections for unrelated aggregates.
type Quarantine struct {
	mu      sync.Mutex
	entries []QuarantinedEvent
}

// NewQuarantine creates an empty quarantine
func NewQuarantine() *Quarantine {
	return &Quarantine{}
}

// Add records a quarantined event
func (q *Quarantine) Add(e QuarantinedEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
}

// Entries returns a snapshot of the quarantined events
func (q *Quarantine) Entries() []QuarantinedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QuarantinedEvent, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len returns the number of quarantined events
func (q *Quarantine) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
