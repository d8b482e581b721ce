package handlers

import (
	"context"

	"go.uber.org/zap"

	"mindmap-backend/application/commands"
	"mindmap-backend/application/ports"
	"mindmap-backend/application/services"
	pkgerrors "mindmap-backend/pkg/errors"
)

// ChatHandler runs the chat pipeline: prompt, completion, parse, anchor, merge
type ChatHandler struct {
	store    *services.SessionStore
	switcher ports.ModelSwitcher
	logger   *zap.Logger
}

// NewChatHandler creates a new chat handler. switcher may be nil when the
// completion backend is fixed.
func NewChatHandler(store *services.SessionStore, switcher ports.ModelSwitcher, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{store: store, switcher: switcher, logger: logger}
}

// HandleSendMessage executes the send message command
func (h *ChatHandler) HandleSendMessage(ctx context.Context, cmd commands.SendMessageCommand) (*services.ChatResult, error) {
	return h.store.SendMessage(ctx, cmd.SessionID, cmd.Text, cmd.FocusID)
}

// HandleApplyResponse executes the apply response command
func (h *ChatHandler) HandleApplyResponse(ctx context.Context, cmd commands.ApplyResponseCommand) (*services.ChatResult, error) {
	return h.store.ApplyResponse(ctx, cmd.SessionID, cmd.Raw, cmd.UserMessage)
}

// HandleSwitchModel executes the switch model command
func (h *ChatHandler) HandleSwitchModel(ctx context.Context, cmd commands.SwitchModelCommand) (*ports.ModelSelection, error) {
	if h.switcher == nil {
		return nil, pkgerrors.NewUnavailableError("model switching")
	}

	selection := ports.ModelSelection{
		BaseURL:     cmd.BaseURL,
		Model:       cmd.Model,
		APIKey:      cmd.APIKey,
		Temperature: cmd.Temperature,
	}
	if err := h.switcher.Switch(ctx, selection); err != nil {
		return nil, err
	}

	current := h.switcher.Current()
	h.logger.Info("completion model switched",
		zap.String("model", current.Model),
		zap.String("base_url", current.BaseURL),
	)
	return &current, nil
}
