package mcp

import (
	"context"
	"encoding/json"
)

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"genpipe_provider_health":    handleProviderHealth,
	"genpipe_cache_stats":        handleCacheStats,
	"genpipe_experiments":        handleExperiments,
	"genpipe_experiment_results": handleExperimentResults,
	"genpipe_audit_recent":       handleAuditRecent,
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "genpipe_provider_health",
		Description: "Show provider health: consecutive failures, rate window usage, last success and failure times.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "genpipe_cache_stats",
		Description: "Show exact and semantic cache statistics (entries, hits, misses, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "genpipe_experiments",
		Description: "Show the experiment summary and all active experiments with their traffic splits.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "genpipe_experiment_results",
		Description: "Show the statistical analysis for one experiment: per-variant stats, pairwise tests, ANOVA, and the current winner.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"experiment_id"},
			"properties": map[string]any{
				"experiment_id": map[string]any{
					"type":        "string",
					"description": "The experiment to analyze",
				},
			},
		},
	},
	{
		Name:        "genpipe_audit_recent",
		Description: "Show the most recent generation audit entries with their cache status and provider.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum entries to return (optional, default 20)",
				},
			},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleProviderHealth(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatProviderHealth(s.registry.Health()))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.exactCache == nil && s.semCache == nil {
		return textResult("No caches are configured.")
	}
	out := ""
	if s.exactCache != nil {
		out += formatCacheStats(s.exactCache.Stats())
	}
	if s.semCache != nil {
		if out != "" {
			out += "\n"
		}
		out += formatSemanticStats(s.semCache.Stats())
	}
	return textResult(out)
}

func handleExperiments(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatExperiments(s.engine.Summary(), s.engine.ListActive()))
}

type experimentResultsArgs struct {
	ExperimentID string `json:"experiment_id"`
}

func handleExperimentResults(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args experimentResultsArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.ExperimentID == "" {
		return errorResult("experiment_id is required")
	}
	res, err := s.engine.Analyze(args.ExperimentID)
	if err != nil {
		return errorResult("Error analyzing experiment: " + err.Error())
	}
	return textResult(formatAnalysis(res))
}

type auditRecentArgs struct {
	Limit int `json:"limit"`
}

func handleAuditRecent(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.auditStore == nil {
		return textResult("Audit logging is not configured.")
	}
	var args auditRecentArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Limit <= 0 {
		args.Limit = 20
	}
	entries, err := s.auditStore.Recent(ctx, args.Limit)
	if err != nil {
		return errorResult("Error fetching audit entries: " + err.Error())
	}
	return textResult(formatAuditEntries(entries))
}
