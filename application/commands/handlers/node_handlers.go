package handlers

import (
	"context"

	"go.uber.org/zap"

	"mindmap-backend/application/commands"
	"mindmap-backend/application/services"
)

// NodeHandler handles direct node edits
type NodeHandler struct {
	store  *services.SessionStore
	logger *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(store *services.SessionStore, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{store: store, logger: logger}
}

// HandleAdd executes the add node command
func (h *NodeHandler) HandleAdd(ctx context.Context, cmd commands.AddNodeCommand) (*services.NodeResult, error) {
	return h.store.AddNode(ctx, cmd.SessionID, services.AddNodeInput{
		Label:       cmd.Label,
		ParentID:    cmd.ParentID,
		Kind:        cmd.Kind,
		Description: cmd.Description,
		ImageRef:    cmd.ImageRef,
	})
}

// HandleUpdate executes the update node command
func (h *NodeHandler) HandleUpdate(ctx context.Context, cmd commands.UpdateNodeCommand) (*services.NodeResult, error) {
	return h.store.UpdateNode(ctx, cmd.SessionID, cmd.NodeID, services.UpdateNodeInput{
		Label:       cmd.Label,
		Description: cmd.Description,
		ImageRef:    cmd.ImageRef,
	})
}

// HandleDelete executes the delete node command
func (h *NodeHandler) HandleDelete(ctx context.Context, cmd commands.DeleteNodeCommand) (*services.DeleteResult, error) {
	result, err := h.store.DeleteNode(ctx, cmd.SessionID, cmd.NodeID)
	if err != nil {
		return nil, err
	}
	if len(result.RemovedNodes) > 0 {
		h.logger.Info("node deleted",
			zap.String("session_id", cmd.SessionID),
			zap.String("node_id", cmd.NodeID),
			zap.Int("removed_nodes", len(result.RemovedNodes)),
			zap.Int("removed_edges", result.RemovedEdges),
		)
	}
	return result, nil
}

// HandleDuplicate executes the duplicate node command
func (h *NodeHandler) HandleDuplicate(ctx context.Context, cmd commands.DuplicateNodeCommand) (*services.NodeResult, error) {
	return h.store.DuplicateNode(ctx, cmd.SessionID, cmd.NodeID)
}
