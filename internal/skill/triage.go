// Package skill holds the leaf agents' domain logic. Each type implements
// the invoker contract of the task protocol runtime and replies with plain
// text shaped for end users.
package skill

import (
	"context"
	"strings"

	"github.com/Strob0t/CareMesh/internal/domain/a2a"
)

// contextMarker prefixes the upstream notes in coordinator-derived prompts.
const contextMarker = "Data context:"

// Triage produces patient-facing guidance from keyword tiers. It is pure:
// no I/O, no state, the same text always yields the same reply.
type Triage struct{}

// NewTriage creates the triage skill.
func NewTriage() *Triage { return &Triage{} }

// Invoke implements the skill contract.
func (s *Triage) Invoke(_ context.Context, msg a2a.Message) (a2a.Message, error) {
	text := msg.Text()
	contextText, requestText := parseTriagePrompt(text)

	opening := "Hi there, thanks for reaching out."
	if contextText != "" {
		opening = "Hi there — I reviewed the latest notes in your chart."
	}

	lowered := strings.ToLower(text)
	var contextLine string
	switch {
	case containsAny(lowered, "chest pain", "shortness of breath"):
		contextLine = "Chest symptoms can be serious, so I want to make sure you're safe."
	case containsAny(lowered, "fever", "cough", "sore throat"):
		contextLine = "Respiratory symptoms can vary, so I’ll ask a few key questions."
	case contextText != "":
		contextLine = "I’ve reviewed the recent encounter notes you mentioned."
	}

	lines := []string{
		opening,
		contextLine,
		"Here’s what I recommend based on " + requestText + ":",
	}
	for _, step := range suggestions(lowered) {
		lines = append(lines, "- "+step)
	}
	lines = append(lines, "If you'd like me to take action now, just reply to this message and I’ll coordinate next steps.")

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" {
			kept = append(kept, line)
		}
	}
	return a2a.NewAgentMessage(strings.Join(kept, "\n")), nil
}

// parseTriagePrompt separates the upstream context from the patient's own
// request. Coordinator-derived prompts carry the context after the marker;
// a request with nothing before the marker, or no usable text at all, reads
// as "your request" in the reply.
func parseTriagePrompt(text string) (contextText, requestText string) {
	if before, after, found := strings.Cut(text, contextMarker); found {
		contextText = strings.TrimSpace(after)
		requestText = strings.TrimSpace(before)
		if requestText == "" {
			requestText = "your request"
		}
		return contextText, requestText
	}

	requestText = strings.TrimSpace(text)
	if requestText == "" {
		requestText = "your request"
	}
	return "", requestText
}

// suggestions picks the first matching keyword tier and always closes with
// the urgency line. At most three lines make it into the reply.
func suggestions(lowered string) []string {
	var out []string

	switch {
	case containsAny(lowered, "chest pain", "shortness of breath", "fainting"):
		out = append(out,
			"If symptoms are severe or worsening, call emergency services immediately.",
			"Do not drive yourself; ask someone to help or call for transport.")
	case containsAny(lowered, "fever", "cough", "sore throat"):
		out = append(out,
			"Track your temperature, stay hydrated, and rest.",
			"If fever persists beyond 48 hours or you have breathing issues, seek urgent care.")
	case containsAny(lowered, "medication", "refill", "prescription"):
		out = append(out,
			"I can log a refill request and confirm the pharmacy details.",
			"Please share the medication name, dose, and preferred pharmacy.")
	case containsAny(lowered, "history", "follow", "activity"):
		out = append(out,
			"I reviewed your recent encounters and will flag any changes for the clinician.",
			"Let me know if your symptoms changed since the last check-in.")
	default:
		out = append(out,
			"Share your symptoms, when they started, and any current medications.",
			"We can arrange a follow-up or connect you to a clinician if needed.")
	}

	out = append(out, "If this is urgent, reply here and I’ll prioritize your case.")
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
