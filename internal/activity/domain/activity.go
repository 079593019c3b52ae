package activity

import "time"

// Record is one entry in the recent-activity feed: an invoice issued, a
// payment received or allocated, a correction applied. The feed is owned
// by collaborators outside this core; the core only reads and caches it.
type Record struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	AccountID  string    `json:"account_id"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}
