package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers read-only record views on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"caremesh://patients",
			"Patient List",
			mcplib.WithResourceDescription("All registered patients"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handlePatientsResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"caremesh://patients/urgent",
			"Urgent Patients",
			mcplib.WithResourceDescription("Patients currently flagged urgent"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleUrgentPatientsResource,
	)
}

func (s *Server) handlePatientsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return s.patientListContents(ctx, req.Params.URI, "")
}

func (s *Server) handleUrgentPatientsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	return s.patientListContents(ctx, req.Params.URI, "urgent")
}

func (s *Server) patientListContents(ctx context.Context, uri, status string) ([]mcplib.ResourceContents, error) {
	if s.deps.Records == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      uri,
				MIMEType: "application/json",
				Text:     `{"error":"records service not configured"}`,
			},
		}, nil
	}

	patients, err := s.deps.Records.ListPatients(ctx, status, 0)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(patients)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
