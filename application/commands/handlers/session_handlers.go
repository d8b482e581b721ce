package handlers

import (
	"context"

	"go.uber.org/zap"

	"mindmap-backend/application/commands"
	"mindmap-backend/application/services"
)

// SessionHandler handles session lifecycle and focus commands
type SessionHandler struct {
	store  *services.SessionStore
	logger *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(store *services.SessionStore, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logger}
}

// HandleCreate executes the create session command
func (h *SessionHandler) HandleCreate(ctx context.Context, cmd commands.CreateSessionCommand) (*services.SessionView, error) {
	return h.store.CreateSession(ctx, cmd.Goal)
}

// HandleResetGoal executes the reset goal command
func (h *SessionHandler) HandleResetGoal(ctx context.Context, cmd commands.ResetGoalCommand) (*services.SessionView, error) {
	view, err := h.store.ResetGoal(ctx, cmd.SessionID, cmd.Goal)
	if err != nil {
		return nil, err
	}
	h.logger.Info("session goal reset",
		zap.String("session_id", cmd.SessionID),
		zap.String("goal", view.Goal),
	)
	return view, nil
}

// HandleSetFocus executes the set focus command
func (h *SessionHandler) HandleSetFocus(ctx context.Context, cmd commands.SetFocusCommand) (*services.SessionView, error) {
	return h.store.SetFocus(ctx, cmd.SessionID, cmd.NodeID)
}
