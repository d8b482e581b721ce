package commands

import (
	"mindmap-backend/pkg/utils"
)

// AddNodeCommand creates a node under a parent
type AddNodeCommand struct {
	SessionID   string `json:"sessionId" validate:"required"`
	Label       string `json:"label" validate:"required,max=200"`
	ParentID    string `json:"parentId"`
	Kind        string `json:"kind" validate:"omitempty,oneof=root topic"`
	Description string `json:"description" validate:"max=5000"`
	ImageRef    string `json:"imageRef" validate:"max=2048"`
}

// Validate validates the command
func (c AddNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdateNodeCommand edits a node's fields; nil fields are left unchanged
type UpdateNodeCommand struct {
	SessionID   string  `json:"sessionId" validate:"required"`
	NodeID      string  `json:"nodeId" validate:"required"`
	Label       *string `json:"label" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	ImageRef    *string `json:"imageRef" validate:"omitempty,max=2048"`
}

// Validate validates the command
func (c UpdateNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DeleteNodeCommand removes a node and its descendants
type DeleteNodeCommand struct {
	SessionID string `json:"sessionId" validate:"required"`
	NodeID    string `json:"nodeId" validate:"required"`
}

// Validate validates the command
func (c DeleteNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DuplicateNodeCommand copies a node without its edges
type DuplicateNodeCommand struct {
	SessionID string `json:"sessionId" validate:"required"`
	NodeID    string `json:"nodeId" validate:"required"`
}

// Validate validates the command
func (c DuplicateNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}
