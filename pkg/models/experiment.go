package models

import "time"

// Experiment is an A/B test over generation strategies.
// Variants and TrafficSplit keys must match; the split must sum to 1.0
// within a 0.01 tolerance.
type Experiment struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	Variants      []string           `json:"variants"`
	TrafficSplit  map[string]float64 `json:"traffic_split"`
	StartTime     time.Time          `json:"start_time"`
	EndTime       *time.Time         `json:"end_time,omitempty"`
	TargetMetric  string             `json:"target_metric"`
	MinSampleSize int                `json:"min_sample_size"`
	Significance  float64            `json:"significance_level"`
	Active        bool               `json:"active"`
	CreatedBy     string             `json:"created_by"`
}

// ExperimentEvent is one recorded observation. Events are append-only.
type ExperimentEvent struct {
	ID           string             `json:"id"`
	ExperimentID string             `json:"experiment_id"`
	SubjectID    string             `json:"subject_id"`
	Variant      string             `json:"variant"`
	Timestamp    time.Time          `json:"timestamp"`
	Metrics      map[string]float64 `json:"metrics"`
	Metadata     map[string]string  `json:"metadata,omitempty"`
}

// VariantStats are descriptive statistics for one variant's target metric.
type VariantStats struct {
	Count   int     `json:"count"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"std"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	CILower float64 `json:"ci_lower"`
	CIUpper float64 `json:"ci_upper"`
}

// PairwiseTest is a two-sample t-test between two variants.
type PairwiseTest struct {
	VariantA      string  `json:"variant_a"`
	VariantB      string  `json:"variant_b"`
	TStatistic    float64 `json:"t_statistic"`
	PValue        float64 `json:"p_value"`
	IsSignificant bool    `json:"is_significant"`
	CohensD       float64 `json:"effect_size_cohens_d"`
	SampleSizeA   int     `json:"sample_size_a"`
	SampleSizeB   int     `json:"sample_size_b"`
}

// ANOVAResult is a one-way ANOVA across three or more variants.
type ANOVAResult struct {
	FStatistic    float64 `json:"f_statistic"`
	PValue        float64 `json:"p_value"`
	IsSignificant bool    `json:"is_significant"`
}

// WinnerConfidence buckets how trustworthy the winner selection is.
type WinnerConfidence string

const (
	ConfidenceHigh   WinnerConfidence = "high"
	ConfidenceMedium WinnerConfidence = "medium"
	ConfidenceLow    WinnerConfidence = "low"
)

// Winner is the selected variant with a confidence bucket.
type Winner struct {
	Variant    string           `json:"variant"`
	Mean       float64          `json:"mean_performance"`
	Confidence WinnerConfidence `json:"confidence"`
	Reason     string           `json:"reason"`
}

// VariantAdequacy reports whether one variant has enough samples.
type VariantAdequacy struct {
	SampleSize    int     `json:"sample_size"`
	MinRequired   int     `json:"minimum_required"`
	IsAdequate    bool    `json:"is_adequate"`
	AdequacyRatio float64 `json:"adequacy_ratio"`
}

// SampleAdequacy reports sample sufficiency for the whole experiment.
type SampleAdequacy struct {
	OverallAdequate bool                       `json:"overall_adequate"`
	Variants        map[string]VariantAdequacy `json:"variant_adequacy"`
	Recommendation  string                     `json:"recommendation"`
}

// AnalysisResult is the full statistical readout for an experiment.
type AnalysisResult struct {
	Experiment     Experiment              `json:"experiment"`
	VariantStats   map[string]VariantStats `json:"variant_statistics"`
	Pairwise       []PairwiseTest          `json:"pairwise_tests"`
	ANOVA          *ANOVAResult            `json:"anova,omitempty"`
	Winner         *Winner                 `json:"winner,omitempty"`
	SampleAdequacy SampleAdequacy          `json:"sample_adequacy"`
	TotalEvents    int                     `json:"total_events"`
	AnalyzedAt     time.Time               `json:"analysis_timestamp"`
}

// ExperimentSummary is a dashboard overview of the engine's state.
type ExperimentSummary struct {
	TotalExperiments int      `json:"total_experiments"`
	ActiveCount      int      `json:"active_experiments"`
	TotalEvents      int      `json:"total_events"`
	ActiveIDs        []string `json:"active_experiment_ids"`
	RecentEvents     int      `json:"recent_events"`
}
