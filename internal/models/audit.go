package models

import "time"

// AuditLogEntry records a single accepted field change. Entries are append-only.
//
// TrackID is a back-reference: it may point at a deleted track.
type AuditLogEntry struct {
	ID        string    `json:"id"`
	TrackID   string    `json:"trackId"`
	Field     string    `json:"field"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Sequence  int64     `json:"-"`
}
