package a2a

// AgentCard describes an agent's identity and capabilities. It is served as
// a static discovery document at /.well-known/agent-card.json.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	ProtocolVersion    string            `json:"protocolVersion"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes"`
	DefaultOutputModes []string          `json:"defaultOutputModes"`
	PreferredTransport string            `json:"preferredTransport"`
	Skills             []AgentSkill      `json:"skills"`
}

// AgentCapabilities flags the optional protocol features an agent supports.
type AgentCapabilities struct {
	Streaming bool `json:"streaming"`
}

// AgentSkill describes a single capability of the agent.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
