package models

import (
	"time"
)

// EntryStatus is the lifecycle state of a queue entry.
type EntryStatus string

const (
	StatusWaiting   EntryStatus = "waiting"
	StatusServing   EntryStatus = "serving"
	StatusCompleted EntryStatus = "completed"
	StatusSkipped   EntryStatus = "skipped"
)

// Valid reports whether s is one of the known lifecycle states.
func (s EntryStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusServing, StatusCompleted, StatusSkipped:
		return true
	}
	return false
}

// Terminal reports whether s ends the entry's life in the active queue.
func (s EntryStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusSkipped
}

// QueueEntry is one customer's place in line.
type QueueEntry struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	PartySize int         `json:"party_size"`
	Phone     string      `json:"phone"`
	Position  int         `json:"position"`
	Status    EntryStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	ServedAt  *time.Time  `json:"served_at,omitempty"`
}

// ArchivedEntry is a completed or skipped entry in terminal storage.
type ArchivedEntry struct {
	QueueEntry
	CompletedAt time.Time `json:"completed_at"`
	// WaitTime is minutes between join and start of service, recorded on
	// completion only.
	WaitTime int `json:"wait_time,omitempty"`
}

// QueueStatus is the customer-facing view of an entry: the stored fields
// plus rank and estimate computed against the current waiting partition.
type QueueStatus struct {
	Entry QueueEntry `json:"entry"`
	// Position is the 1-based rank among waiting entries, 0 when the entry
	// is already being served.
	Position int `json:"position"`
	// EstimatedWaitTime is minutes until service: waiting count times the
	// configured average serving time.
	EstimatedWaitTime int `json:"estimated_wait_time"`
}
