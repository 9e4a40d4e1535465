// Package mcp exposes the patient record tools over the Model Context
// Protocol and provides the client the records agent uses to call them.
package mcp

import (
	"context"
	"encoding/json"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/CareMesh/internal/domain/record"
)

// RecordAPI is the slice of the record service the tools are built on.
type RecordAPI interface {
	GetPatient(ctx context.Context, id int64) (record.Patient, error)
	ListPatients(ctx context.Context, status string, limit int) ([]record.Patient, error)
	UpdatePatient(ctx context.Context, id int64, req record.UpdateRequest) (record.Patient, error)
	CreateCase(ctx context.Context, req record.CreateCaseRequest) (record.Case, error)
	PatientHistory(ctx context.Context, patientID int64) (record.History, error)
}

// ServerConfig holds the MCP server identity reported during the handshake.
type ServerConfig struct {
	Name    string
	Version string
}

// ServerDeps carries the dependencies the tools need.
type ServerDeps struct {
	Records RecordAPI
}

// Server wraps an MCP server with the record tools registered and serves it
// over the streamable HTTP transport.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *mcpserver.StreamableHTTPServer
}

// NewServer creates an MCP server with all record tools and resources
// registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(
			cfg.Name,
			cfg.Version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithResourceCapabilities(false, true),
			mcpserver.WithRecovery(),
		),
	}

	s.registerTools()
	s.registerResources()

	s.httpServer = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	return s
}

// Handler returns the streamable HTTP handler, ready to mount on a router.
func (s *Server) Handler() http.Handler {
	return s.httpServer
}

// toolResultJSON marshals v and wraps it as a text content tool result.
func toolResultJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
