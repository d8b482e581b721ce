package handlers

import (
	"context"

	"mindmap-backend/application/commands"
	"mindmap-backend/application/services"
)

// EdgeHandler handles manual connect and disconnect
type EdgeHandler struct {
	store *services.SessionStore
}

// NewEdgeHandler creates a new edge handler
func NewEdgeHandler(store *services.SessionStore) *EdgeHandler {
	return &EdgeHandler{store: store}
}

// HandleConnect executes the connect command
func (h *EdgeHandler) HandleConnect(ctx context.Context, cmd commands.ConnectCommand) (*services.EdgeResult, error) {
	return h.store.Connect(ctx, cmd.SessionID, cmd.Source, cmd.Target)
}

// HandleDisconnect executes the disconnect command
func (h *EdgeHandler) HandleDisconnect(ctx context.Context, cmd commands.DisconnectCommand) (*services.EdgeResult, error) {
	return h.store.Disconnect(ctx, cmd.SessionID, cmd.EdgeID)
}
