package models

// AttemptStatus classifies one step of a generation request.
type AttemptStatus string

const (
	StatusSkipped     AttemptStatus = "skipped"
	StatusError       AttemptStatus = "error"
	StatusSuccess     AttemptStatus = "success"
	StatusCacheHit    AttemptStatus = "cache_hit"
	StatusSemanticHit AttemptStatus = "semantic_hit"
	StatusFallback    AttemptStatus = "fallback"
)

// TraceEntry is one step in the audit trace of a generation request.
type TraceEntry struct {
	Provider   string        `json:"provider"`
	Status     AttemptStatus `json:"status"`
	DurationMs int64         `json:"duration_ms"`
	Error      string        `json:"error,omitempty"`
}

// GenerationRequest is the orchestrator input.
type GenerationRequest struct {
	Category  string            `json:"category"`
	SubjectID string            `json:"subject_id"`
	Prompt    string            `json:"prompt"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// GenerationResult is what every request returns: some content plus the
// trace explaining which path produced it.
type GenerationResult struct {
	Provider string       `json:"provider"`
	Content  string       `json:"content"`
	Variant  string       `json:"variant,omitempty"`
	Trace    []TraceEntry `json:"trace"`
}
