// Package adapters contains adapters that bridge different bounded contexts.
// These adapters implement interfaces defined by consuming domains while
// wrapping services from providing domains.
package adapters

import (
	"context"

	"lead_routing_backend/internal/notification"
	"lead_routing_backend/internal/routing/ports"

	"github.com/google/uuid"
)

// AgentContactReader adapts the routing agent directory to the notification
// module's AgentContactReader.
type AgentContactReader struct {
	agents ports.AgentDirectory
}

// NewAgentContactReader wraps an agent directory.
func NewAgentContactReader(agents ports.AgentDirectory) *AgentContactReader {
	return &AgentContactReader{agents: agents}
}

// GetAgentContact returns the agent's display name and email.
func (r *AgentContactReader) GetAgentContact(ctx context.Context, agentID uuid.UUID) (notification.AgentContact, error) {
	agent, err := r.agents.GetAgent(ctx, agentID)
	if err != nil {
		return notification.AgentContact{}, err
	}
	return notification.AgentContact{Name: agent.DisplayName(), Email: agent.Email}, nil
}
