package commands

import (
	"mindmap-backend/pkg/utils"
)

// CreateSessionCommand starts a new mind map for a goal
type CreateSessionCommand struct {
	Goal string `json:"goal" validate:"required,max=200"`
}

// Validate validates the command
func (c CreateSessionCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// ResetGoalCommand replaces a session's graph with a fresh root
type ResetGoalCommand struct {
	SessionID string `json:"sessionId" validate:"required"`
	Goal      string `json:"goal" validate:"required,max=200"`
}

// Validate validates the command
func (c ResetGoalCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SetFocusCommand records the node the user is looking at. An empty
// NodeID clears the focus.
type SetFocusCommand struct {
	SessionID string `json:"sessionId" validate:"required"`
	NodeID    string `json:"nodeId"`
}

// Validate validates the command
func (c SetFocusCommand) Validate() error {
	return utils.ValidateStruct(c)
}
