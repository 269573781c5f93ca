// Package dashboard exposes the domain queries over MCP so front ends and
// agents can call them as tools.
package dashboard

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ossmetrics/bugdash/internal/queries"
)

const (
	// Tool names
	toolBugsByImpact  = "bugs.by_impact"
	toolBugsByIDs     = "bugs.by_ids"
	toolBenchmarkRows = "benchmark.rows"
	toolRefresh       = "dashboard.refresh"
	toolCacheStats    = "cache.stats"
)

// defaultImpactLevels are the buckets the refresh tool warms
var defaultImpactLevels = []string{"high", "medium", "low"}

// Server wraps the mcp-go server with the dashboard's query service
type Server struct {
	server  *server.MCPServer
	queries *queries.Service
	logger  *slog.Logger
}

// Config holds configuration for the MCP server
type Config struct {
	Name    string
	Version string
}

// NewServer creates and configures a new MCP server
func NewServer(cfg Config, svc *queries.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		server:  mcpServer,
		queries: svc,
		logger:  logger,
	}

	s.registerTools()

	return s
}

// registerTools registers all MCP tools with handlers
func (s *Server) registerTools() {
	byImpactTool := mcp.NewTool(toolBugsByImpact,
		mcp.WithDescription("List open bugs filtered by severity-impact level"),
		mcp.WithString("impact_level",
			mcp.Required(),
			mcp.Description("Impact level to filter on, e.g. high, medium or low"),
		),
		mcp.WithBoolean("use_cache",
			mcp.DefaultBool(true),
			mcp.Description("Serve from the result cache when a fresh entry exists"),
		),
	)
	s.server.AddTool(byImpactTool, s.handleBugsByImpact)

	byIDsTool := mcp.NewTool(toolBugsByIDs,
		mcp.WithDescription("Fetch bugs by their identifiers"),
		mcp.WithString("ids",
			mcp.Required(),
			mcp.Description("Comma-separated bug IDs"),
		),
		mcp.WithBoolean("use_cache",
			mcp.DefaultBool(true),
			mcp.Description("Serve from the result cache when a fresh entry exists"),
		),
	)
	s.server.AddTool(byIDsTool, s.handleBugsByIDs)

	benchmarkTool := mcp.NewTool(toolBenchmarkRows,
		mcp.WithDescription("Run a stored benchmark query on the SQL backend and return its rows"),
		mcp.WithNumber("query_id",
			mcp.Required(),
			mcp.Description("Stored query identifier"),
		),
		mcp.WithBoolean("use_cache",
			mcp.DefaultBool(true),
			mcp.Description("Serve from the result cache when a fresh entry exists"),
		),
	)
	s.server.AddTool(benchmarkTool, s.handleBenchmarkRows)

	refreshTool := mcp.NewTool(toolRefresh,
		mcp.WithDescription("Invalidate the impact-bucket caches and refetch them live"),
		mcp.WithString("impact_levels",
			mcp.Description("Comma-separated impact levels to refresh (default high,medium,low)"),
		),
	)
	s.server.AddTool(refreshTool, s.handleRefresh)

	statsTool := mcp.NewTool(toolCacheStats,
		mcp.WithDescription("Report the result cache's entry count and keys"),
	)
	s.server.AddTool(statsTool, s.handleCacheStats)
}
