// Package history records completed lookups for usage statistics. Entries are
// written only after a successful, non-refunded lookup.
package history

import "time"

// Entry is one completed lookup.
type Entry struct {
	UserID     int64
	ServiceKey string
	Query      string
	At         time.Time
}

// ServiceCount is the per-service usage tally, most used first.
type ServiceCount struct {
	ServiceKey string
	Count      int64
}
