package models

import "time"

// CacheStats reports exact-match cache performance.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// SemanticEntry is one entry of the similarity-indexed cache. It is also
// the snapshot wire format.
type SemanticEntry struct {
	ID           string            `json:"id"`
	ContentHash  string            `json:"content_hash"`
	PromptText   string            `json:"prompt_text"`
	ResponseText string            `json:"response_text"`
	Embedding    []float64         `json:"embedding"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	AccessCount  int               `json:"access_count"`
	QualityScore float64           `json:"quality_score"`
}

// SemanticCacheStats reports semantic cache state for the dashboard.
type SemanticCacheStats struct {
	Entries             int     `json:"entries"`
	Hits                int64   `json:"hits"`
	Misses              int64   `json:"misses"`
	AvgAccessCount      float64 `json:"average_access_count"`
	AvgQualityScore     float64 `json:"average_quality_score"`
	AvgAgeHours         float64 `json:"average_age_hours"`
	EmbedderFitted      bool    `json:"embedder_fitted"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}
