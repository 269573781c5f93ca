package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// handleBugsByImpact implements the bugs.by_impact tool
func (s *Server) handleBugsByImpact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	level, err := request.RequireString("impact_level")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	useCache := request.GetBool("use_cache", true)

	bugs, err := s.queries.BugsByImpact(ctx, level, useCache)
	if err != nil {
		s.logger.Error("bugs.by_impact failed", "impact_level", level, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(bugs)
}

// handleBugsByIDs implements the bugs.by_ids tool
func (s *Server) handleBugsByIDs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawIDs, err := request.RequireString("ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	useCache := request.GetBool("use_cache", true)

	ids, err := parseIDList(rawIDs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	bugs, err := s.queries.BugsByIDs(ctx, ids, useCache)
	if err != nil {
		s.logger.Error("bugs.by_ids failed", "ids", rawIDs, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(bugs)
}

// handleBenchmarkRows implements the benchmark.rows tool
func (s *Server) handleBenchmarkRows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	queryID, err := request.RequireInt("query_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	useCache := request.GetBool("use_cache", true)

	// Optional per-query parameters forwarded to the SQL backend
	parameters := map[string]string{}
	if raw, ok := request.GetArguments()["parameters"].(map[string]any); ok {
		for name, value := range raw {
			parameters[name] = fmt.Sprintf("%v", value)
		}
	}

	rows, err := s.queries.BenchmarkRows(ctx, queryID, parameters, useCache)
	if err != nil {
		s.logger.Error("benchmark.rows failed", "query_id", queryID, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(rows)
}

// handleRefresh implements the dashboard.refresh tool
func (s *Server) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	levels := defaultImpactLevels
	if raw := request.GetString("impact_levels", ""); raw != "" {
		levels = splitList(raw)
	}

	buckets, err := s.queries.ImpactBuckets(ctx, levels, false)
	if err != nil {
		s.logger.Error("dashboard.refresh failed", "impact_levels", levels, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	counts := make(map[string]int, len(buckets))
	for level, bugs := range buckets {
		counts[level] = len(bugs)
	}
	return jsonResult(map[string]any{
		"refreshed": levels,
		"counts":    counts,
	})
}

// handleCacheStats implements the cache.stats tool
func (s *Server) handleCacheStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.queries.CacheStats()
	return jsonResult(map[string]any{
		"count": stats.Count,
		"keys":  stats.Keys,
	})
}

// jsonResult marshals v as the tool's text content
func jsonResult(v any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// parseIDList parses a comma-separated list of bug IDs
func parseIDList(raw string) ([]int, error) {
	parts := splitList(raw)
	if len(parts) == 0 {
		return nil, fmt.Errorf("ids must contain at least one bug ID")
	}

	ids := make([]int, len(parts))
	for i, part := range parts {
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid bug ID %q", part)
		}
		ids[i] = id
	}
	return ids, nil
}

// splitList splits a comma-separated list, trimming blanks
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
