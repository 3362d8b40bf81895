// ABOUTME: MCP server initialization and configuration for chirp.
// ABOUTME: Exposes the feed procedures as tools for AI agent access over stdio.
package mcp

import (
	"context"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/chirp/internal/rpc"
)

// Server wraps the MCP server with the chirp data-access facade.
type Server struct {
	mcp    *gomcp.Server
	facade *rpc.Facade
}

// NewServer creates an MCP server calling procs on behalf of the agent.
func NewServer(procs rpc.Procedures) (*Server, error) {
	if procs == nil {
		return nil, fmt.Errorf("procedures are required")
	}

	mcpServer := gomcp.NewServer(
		&gomcp.Implementation{
			Name:    "chirp",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcp:    mcpServer,
		facade: rpc.NewFacade(procs),
	}
	s.registerFeedTools()

	return s, nil
}

// Serve starts the MCP server in stdio mode.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &gomcp.StdioTransport{})
}
