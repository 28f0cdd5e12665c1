package mcp

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/draftsmith/genpipe/pkg/models"
)

// formatProviderHealth formats provider health as a text table.
func formatProviderHealth(rows []models.ProviderHealth) string {
	if len(rows) == 0 {
		return "No provider activity recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %9s %8s %8s %-20s %-20s\n",
		"Provider", "Failures", "Hourly", "Daily", "Last Success", "Last Failure")
	b.WriteString(strings.Repeat("-", 90) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-20s %9d %8d %8d %-20s %-20s\n",
			r.Provider, r.ConsecutiveFailures, r.HourlyUsed, r.DailyUsed,
			formatTime(r.LastSuccessAt), formatTime(r.LastFailureAt))
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}

// formatCacheStats formats exact cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Exact Cache\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}

// formatSemanticStats formats semantic cache stats as text.
func formatSemanticStats(stats models.SemanticCacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	embedder := "hash (unfitted)"
	if stats.EmbedderFitted {
		embedder = "tf-idf (fitted)"
	}
	return fmt.Sprintf("Semantic Cache\n"+
		"  Entries:     %d\n"+
		"  Hits:        %d\n"+
		"  Misses:      %d\n"+
		"  Hit Rate:    %.1f%%\n"+
		"  Threshold:   %.2f\n"+
		"  Embedder:    %s\n"+
		"  Avg Quality: %.2f\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate,
		stats.SimilarityThreshold, embedder, stats.AvgQualityScore)
}

// formatExperiments formats the engine summary and active experiments.
func formatExperiments(summary models.ExperimentSummary, active []models.Experiment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Experiments: %d total, %d active, %d events (%d in last 7 days)\n",
		summary.TotalExperiments, summary.ActiveCount, summary.TotalEvents, summary.RecentEvents)
	if len(active) == 0 {
		b.WriteString("No active experiments.\n")
		return b.String()
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%-32s %-28s %-14s %s\n", "ID", "Name", "Target Metric", "Split")
	b.WriteString(strings.Repeat("-", 100) + "\n")
	for _, e := range active {
		fmt.Fprintf(&b, "%-32s %-28s %-14s %s\n",
			e.ID, e.Name, e.TargetMetric, formatSplit(e))
	}
	return b.String()
}

func formatSplit(e models.Experiment) string {
	parts := make([]string, 0, len(e.Variants))
	for _, v := range e.Variants {
		parts = append(parts, fmt.Sprintf("%s=%.0f%%", v, e.TrafficSplit[v]*100))
	}
	return strings.Join(parts, " ")
}

// formatAnalysis formats a full analysis result as text.
func formatAnalysis(res models.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Experiment %s (%s), %d events, target metric %q\n\n",
		res.Experiment.ID, res.Experiment.Name, res.TotalEvents, res.Experiment.TargetMetric)

	names := make([]string, 0, len(res.VariantStats))
	for v := range res.VariantStats {
		names = append(names, v)
	}
	sort.Strings(names)

	fmt.Fprintf(&b, "%-16s %6s %10s %10s %10s %22s\n",
		"Variant", "Count", "Mean", "StdDev", "Median", "CI")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, v := range names {
		s := res.VariantStats[v]
		fmt.Fprintf(&b, "%-16s %6d %10.4f %10.4f %10.4f    [%.4f, %.4f]\n",
			v, s.Count, s.Mean, s.StdDev, s.Median, s.CILower, s.CIUpper)
	}

	if len(res.Pairwise) > 0 {
		b.WriteString("\nPairwise t-tests:\n")
		for _, p := range res.Pairwise {
			marker := " "
			if p.IsSignificant {
				marker = "*"
			}
			fmt.Fprintf(&b, "%s %s vs %s: t=%.3f p=%.4f d=%.3f (n=%d/%d)\n",
				marker, p.VariantA, p.VariantB, p.TStatistic, p.PValue, p.CohensD,
				p.SampleSizeA, p.SampleSizeB)
		}
	}
	if res.ANOVA != nil {
		fmt.Fprintf(&b, "\nANOVA: F=%.3f p=%.4f significant=%t\n",
			res.ANOVA.FStatistic, res.ANOVA.PValue, res.ANOVA.IsSignificant)
	}
	if res.Winner != nil {
		fmt.Fprintf(&b, "\nWinner: %s (mean %.4f, confidence %s): %s\n",
			res.Winner.Variant, res.Winner.Mean, res.Winner.Confidence, res.Winner.Reason)
	}
	fmt.Fprintf(&b, "\nSample adequacy: %s\n", res.SampleAdequacy.Recommendation)
	return b.String()
}

// formatAuditEntries formats audit entries as a text table.
func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-14s %-16s %-12s %8s %-20s\n",
		"Time", "Category", "Provider", "Cache", "Latency", "Request ID")
	b.WriteString(strings.Repeat("-", 96) + "\n")
	for _, e := range entries {
		id := e.RequestID
		if len(id) > 20 {
			id = id[:17] + "..."
		}
		fmt.Fprintf(&b, "%-20s %-14s %-16s %-12s %6dms %-20s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Category, e.Provider, e.CacheStatus, e.LatencyMs, id)
	}
	return b.String()
}
