package main

import "github.com/Strob0t/CareMesh/internal/domain/a2a"

// agentCard builds the discovery document one role serves at
// /.well-known/agent-card.json.
func agentCard(name, description, port string, skills ...a2a.AgentSkill) a2a.AgentCard {
	return a2a.AgentCard{
		Name:               name,
		Description:        description,
		URL:                "http://localhost:" + port,
		Version:            version,
		ProtocolVersion:    a2a.ProtocolVersion,
		Capabilities:       a2a.AgentCapabilities{Streaming: true},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		PreferredTransport: "JSONRPC",
		Skills:             skills,
	}
}

func coordinatorCard(port string) a2a.AgentCard {
	return agentCard("Coordinator Agent",
		"Routes user requests across the care mesh agents.",
		port,
		a2a.AgentSkill{
			ID:          "coordinator",
			Name:        "Request Routing",
			Description: "Dispatches tasks to the records, triage, and insurance agents.",
			Tags:        []string{"coordinator", "routing", "workflow"},
		})
}

func recordsCard(port string) a2a.AgentCard {
	return agentCard("Patient Records Agent",
		"Fetches patient records, lists, and history via MCP tools.",
		port,
		a2a.AgentSkill{
			ID:          "patient-records",
			Name:        "Patient Record Tools",
			Description: "Uses MCP to retrieve patient information.",
			Tags:        []string{"mcp", "records"},
		})
}

func triageCard(port string) a2a.AgentCard {
	return agentCard("Triage Agent",
		"Provides triage guidance and patient-friendly next steps.",
		port,
		a2a.AgentSkill{
			ID:          "triage-general",
			Name:        "Triage Guidance",
			Description: "Handles intake questions and triage guidance for patient symptoms.",
			Tags:        []string{"triage", "intake", "healthcare"},
		})
}

func insuranceCard(port string) a2a.AgentCard {
	return agentCard("Insurance Agent",
		"Provides assistance for insurance coverage and benefits inquiries.",
		port,
		a2a.AgentSkill{
			ID:          "insurance",
			Name:        "Insurance Services",
			Description: "Supports coverage questions and copay guidance.",
			Tags:        []string{"insurance", "benefits"},
		})
}
