package models

import "time"

// AuditEntry is the persisted record of one generation request. The trace
// is stored as JSON so the product can replay the exact path taken.
type AuditEntry struct {
	RequestID   string       `json:"request_id"`
	Category    string       `json:"category"`
	SubjectHash string       `json:"subject_hash"`
	Provider    string       `json:"provider"`
	Variant     string       `json:"variant,omitempty"`
	CacheStatus string       `json:"cache_status"`
	LatencyMs   int64        `json:"latency_ms"`
	Trace       []TraceEntry `json:"trace"`
	CreatedAt   time.Time    `json:"created_at"`
}
