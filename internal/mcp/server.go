// Package mcp exposes the course tools over the Model Context Protocol,
// so MCP clients (Claude Desktop, Cursor, the genkit CLI) can search
// course content and fetch course outlines without going through the
// HTTP API.
//
// The server registers the same tool implementations the query pipeline
// dispatches, with input schemas inferred from the shared input structs.
// It speaks the protocol over whatever transport it is handed; `lectern
// mcp` runs it on stdio, which is why logs go to stderr.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lectern-ai/lectern/internal/log"
	"github.com/lectern-ai/lectern/internal/tools"
)

// Server wraps the MCP SDK server around the course tool registry.
type Server struct {
	mcpServer *mcp.Server
	registry  *tools.Registry
	logger    log.Logger
	name      string
	version   string
}

// Config holds MCP server configuration.
type Config struct {
	Name     string
	Version  string
	Registry *tools.Registry
	Logger   log.Logger
}

// NewServer creates an MCP server with both course tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("mcp: server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("mcp: server version is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("mcp: tool registry is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Config{})
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		registry: cfg.Registry,
		logger:   logger,
		name:     cfg.Name,
		version:  cfg.Version,
	}

	if err := s.registerCourseTools(); err != nil {
		return nil, fmt.Errorf("mcp: register tools: %w", err)
	}
	return s, nil
}

// Run serves the protocol on the given transport until ctx is canceled
// or the transport closes. This is a blocking call.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server listening", "name", s.name, "version", s.version)
	return s.mcpServer.Run(ctx, transport)
}
