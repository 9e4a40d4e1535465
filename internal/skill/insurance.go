package skill

import (
	"context"

	"github.com/Strob0t/CareMesh/internal/domain/a2a"
)

// Insurance answers coverage and benefits questions with a fixed capability
// summary that echoes the request back. It is pure.
type Insurance struct{}

// NewInsurance creates the insurance skill.
func NewInsurance() *Insurance { return &Insurance{} }

// Invoke implements the skill contract.
func (s *Insurance) Invoke(_ context.Context, msg a2a.Message) (a2a.Message, error) {
	reply := "Insurance Agent Response:\n" +
		"I handle coverage checks, copay explanations, and benefits questions.\n" +
		"Your request: " + msg.Text()
	return a2a.NewAgentMessage(reply), nil
}
