package domain

import "time"

// ChangeEvent describes a committed remote mutation. Subscribers treat it as
// a signal only and re-read the collection.
type ChangeEvent struct {
	Table     string    `json:"table"`
	Action    string    `json:"action"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	ActionReplace = "replace"
	ActionUpsert  = "upsert"
	ActionDelete  = "delete"
)

// RefreshStats holds statistics about a cache refresh run.
type RefreshStats struct {
	Refreshed int
	Skipped   int
	Errors    int
	Duration  time.Duration
}
