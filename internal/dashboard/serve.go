package dashboard

import (
	"github.com/mark3labs/mcp-go/server"
)

// This file contains server startup methods that are untestable in unit tests
// as they start blocking servers.

// Serve starts the MCP server with stdio transport
func (s *Server) Serve() error {
	s.logger.Info("Starting dashboard server with stdio transport")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server with HTTP/SSE transport on the specified address
func (s *Server) ServeHTTP(addr string) error {
	s.logger.Info("Starting dashboard server with HTTP/SSE transport",
		"address", addr, "base_path", "/mcp")
	sseServer := server.NewSSEServer(s.server,
		server.WithBaseURL("http://"+addr),
		server.WithStaticBasePath("/mcp"),
	)
	return sseServer.Start(addr)
}
