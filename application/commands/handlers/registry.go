package handlers

import (
	"context"

	"go.uber.org/zap"

	"mindmap-backend/application/commands"
	"mindmap-backend/application/commands/bus"
	"mindmap-backend/application/ports"
	"mindmap-backend/application/services"
	pkgerrors "mindmap-backend/pkg/errors"
)

// typed adapts a handler method for one command type to the bus
func typed[C bus.Command, R any](fn func(context.Context, C) (R, error)) bus.CommandHandler {
	return bus.CommandHandlerFunc(func(ctx context.Context, cmd bus.Command) (interface{}, error) {
		c, ok := cmd.(C)
		if !ok {
			return nil, pkgerrors.NewInternalError("unexpected command type")
		}
		result, err := fn(ctx, c)
		if err != nil {
			return nil, err
		}
		return result, nil
	})
}

// RegisterAll wires every command handler onto the bus
func RegisterAll(b *bus.CommandBus, store *services.SessionStore, switcher ports.ModelSwitcher, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	sessions := NewSessionHandler(store, logger)
	chat := NewChatHandler(store, switcher, logger)
	nodes := NewNodeHandler(store, logger)
	edges := NewEdgeHandler(store)

	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.CreateSessionCommand{}, typed(sessions.HandleCreate)},
		{commands.ResetGoalCommand{}, typed(sessions.HandleResetGoal)},
		{commands.SetFocusCommand{}, typed(sessions.HandleSetFocus)},
		{commands.SendMessageCommand{}, typed(chat.HandleSendMessage)},
		{commands.ApplyResponseCommand{}, typed(chat.HandleApplyResponse)},
		{commands.SwitchModelCommand{}, typed(chat.HandleSwitchModel)},
		{commands.AddNodeCommand{}, typed(nodes.HandleAdd)},
		{commands.UpdateNodeCommand{}, typed(nodes.HandleUpdate)},
		{commands.DeleteNodeCommand{}, typed(nodes.HandleDelete)},
		{commands.DuplicateNodeCommand{}, typed(nodes.HandleDuplicate)},
		{commands.ConnectCommand{}, typed(edges.HandleConnect)},
		{commands.DisconnectCommand{}, typed(edges.HandleDisconnect)},
	}

	for _, r := range registrations {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}
