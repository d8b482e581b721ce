package commands

import (
	"mindmap-backend/pkg/utils"
)

// ConnectCommand adds a directed edge between two live nodes
type ConnectCommand struct {
	SessionID string `json:"sessionId" validate:"required"`
	Source    string `json:"source" validate:"required"`
	Target    string `json:"target" validate:"required"`
}

// Validate validates the command
func (c ConnectCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DisconnectCommand removes an edge
type DisconnectCommand struct {
	SessionID string `json:"sessionId" validate:"required"`
	EdgeID    string `json:"edgeId" validate:"required"`
}

// Validate validates the command
func (c DisconnectCommand) Validate() error {
	return utils.ValidateStruct(c)
}
