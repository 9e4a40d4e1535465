package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/CareMesh/internal/domain"
	"github.com/Strob0t/CareMesh/internal/domain/record"
)

// registerTools registers all record tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.getPatientTool(),
		s.listPatientsTool(),
		s.updatePatientTool(),
		s.createCaseTool(),
		s.getPatientHistoryTool(),
	)
}

func (s *Server) getPatientTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_patient",
		mcplib.WithDescription("Get a patient record by id"),
		mcplib.WithNumber("patient_id",
			mcplib.Required(),
			mcplib.Description("The patient id to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetPatient,
	}
}

func (s *Server) listPatientsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_patients",
		mcplib.WithDescription("List registered patients, optionally filtered by status"),
		mcplib.WithString("status",
			mcplib.Description("Only patients with this status (stable, monitoring, urgent)"),
		),
		mcplib.WithNumber("limit",
			mcplib.Description("Maximum number of patients to return"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListPatients,
	}
}

func (s *Server) updatePatientTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("update_patient",
		mcplib.WithDescription("Patch a patient record; only the provided fields change"),
		mcplib.WithNumber("patient_id",
			mcplib.Required(),
			mcplib.Description("The patient id to update"),
		),
		mcplib.WithString("name", mcplib.Description("New patient name")),
		mcplib.WithString("date_of_birth", mcplib.Description("New date of birth, YYYY-MM-DD")),
		mcplib.WithString("status", mcplib.Description("New patient status")),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleUpdatePatient,
	}
}

func (s *Server) createCaseTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("create_case",
		mcplib.WithDescription("Open a new care case for a patient"),
		mcplib.WithNumber("patient_id",
			mcplib.Required(),
			mcplib.Description("The patient the case belongs to"),
		),
		mcplib.WithString("complaint",
			mcplib.Required(),
			mcplib.Description("Chief complaint"),
		),
		mcplib.WithString("urgency",
			mcplib.Description("Case urgency (routine, urgent); defaults to routine"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleCreateCase,
	}
}

func (s *Server) getPatientHistoryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_patient_history",
		mcplib.WithDescription("Get a patient together with their encounter history, newest first"),
		mcplib.WithNumber("patient_id",
			mcplib.Required(),
			mcplib.Description("The patient id to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetPatientHistory,
	}
}

func (s *Server) handleGetPatient(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Records == nil {
		return mcplib.NewToolResultError("records service not configured"), nil
	}
	id, ok := patientIDArg(req.GetArguments())
	if !ok {
		return mcplib.NewToolResultError("patient_id is required"), nil
	}

	p, err := s.deps.Records.GetPatient(ctx, id)
	if err != nil {
		return toolError(fmt.Sprintf("patient %d", id), err), nil
	}
	return toolResultJSON(p)
}

func (s *Server) handleListPatients(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Records == nil {
		return mcplib.NewToolResultError("records service not configured"), nil
	}
	args := req.GetArguments()
	status, _ := args["status"].(string)
	limit := 0
	if v, ok := args["limit"].(float64); ok {
		limit = int(v)
	}

	patients, err := s.deps.Records.ListPatients(ctx, status, limit)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list patients", err), nil
	}
	return toolResultJSON(patients)
}

func (s *Server) handleUpdatePatient(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Records == nil {
		return mcplib.NewToolResultError("records service not configured"), nil
	}
	args := req.GetArguments()
	id, ok := patientIDArg(args)
	if !ok {
		return mcplib.NewToolResultError("patient_id is required"), nil
	}

	patch := record.UpdateRequest{}
	patch.Name, _ = args["name"].(string)
	patch.DateOfBirth, _ = args["date_of_birth"].(string)
	patch.Status, _ = args["status"].(string)

	p, err := s.deps.Records.UpdatePatient(ctx, id, patch)
	if err != nil {
		return toolError(fmt.Sprintf("patient %d", id), err), nil
	}
	return toolResultJSON(p)
}

func (s *Server) handleCreateCase(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Records == nil {
		return mcplib.NewToolResultError("records service not configured"), nil
	}
	args := req.GetArguments()
	id, ok := patientIDArg(args)
	if !ok {
		return mcplib.NewToolResultError("patient_id is required"), nil
	}

	complaint, _ := args["complaint"].(string)
	if strings.TrimSpace(complaint) == "" {
		return mcplib.NewToolResultError("complaint is required"), nil
	}
	urgency, _ := args["urgency"].(string)

	c, err := s.deps.Records.CreateCase(ctx, record.CreateCaseRequest{
		PatientID: id,
		Complaint: complaint,
		Urgency:   urgency,
	})
	if err != nil {
		return toolError(fmt.Sprintf("patient %d", id), err), nil
	}
	return toolResultJSON(c)
}

func (s *Server) handleGetPatientHistory(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Records == nil {
		return mcplib.NewToolResultError("records service not configured"), nil
	}
	id, ok := patientIDArg(req.GetArguments())
	if !ok {
		return mcplib.NewToolResultError("patient_id is required"), nil
	}

	h, err := s.deps.Records.PatientHistory(ctx, id)
	if err != nil {
		return toolError(fmt.Sprintf("history for patient %d", id), err), nil
	}
	return toolResultJSON(h)
}

// patientIDArg extracts the required patient_id argument. JSON numbers
// arrive as float64.
func patientIDArg(args map[string]any) (int64, bool) {
	v, ok := args["patient_id"].(float64)
	if !ok || v <= 0 {
		return 0, false
	}
	return int64(v), true
}

// toolError maps a service failure to a tool error result. Not-found stays a
// plain "not found" message so callers can relay it without leaking internals.
func toolError(subject string, err error) *mcplib.CallToolResult {
	if errors.Is(err, domain.ErrNotFound) {
		return mcplib.NewToolResultError(subject + " not found")
	}
	return mcplib.NewToolResultErrorFromErr(subject, err)
}
