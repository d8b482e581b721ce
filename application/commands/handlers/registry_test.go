package handlers

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindmap-backend/application/commands"
	"mindmap-backend/application/commands/bus"
	"mindmap-backend/application/ports"
	"mindmap-backend/application/services"
	pkgerrors "mindmap-backend/pkg/errors"
)

type stubSwitcher struct {
	mu      sync.Mutex
	current ports.ModelSelection
}

func (s *stubSwitcher) Current() ports.ModelSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *stubSwitcher) Switch(ctx context.Context, selection ports.ModelSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = selection
	return nil
}

func newTestBus(t *testing.T) *bus.CommandBus {
	t.Helper()
	store := services.NewSessionStore(nil, nil, nil, nil, nil, zap.NewNop())
	b := bus.NewCommandBus(bus.LoggingMiddleware(zap.NewNop()))
	require.NoError(t, RegisterAll(b, store, &stubSwitcher{}, zap.NewNop()))
	return b
}

func TestRegisterAll_NodeLifecycle(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)

	res, err := b.Send(ctx, commands.CreateSessionCommand{Goal: "Learn Go"})
	require.NoError(t, err)
	session := res.(*services.SessionView)

	res, err = b.Send(ctx, commands.AddNodeCommand{SessionID: session.ID, Label: "Channels", ParentID: session.RootID})
	require.NoError(t, err)
	added := res.(*services.NodeResult)
	assert.Equal(t, "Channels", added.Node.Label)

	res, err = b.Send(ctx, commands.DuplicateNodeCommand{SessionID: session.ID, NodeID: added.Node.ID})
	require.NoError(t, err)
	dup := res.(*services.NodeResult)
	assert.Equal(t, "Channels (copy)", dup.Node.Label)

	res, err = b.Send(ctx, commands.ConnectCommand{SessionID: session.ID, Source: added.Node.ID, Target: dup.Node.ID})
	require.NoError(t, err)
	edge := res.(*services.EdgeResult)

	_, err = b.Send(ctx, commands.DisconnectCommand{SessionID: session.ID, EdgeID: edge.Edge.ID})
	require.NoError(t, err)

	label := "Goroutines"
	res, err = b.Send(ctx, commands.UpdateNodeCommand{SessionID: session.ID, NodeID: dup.Node.ID, Label: &label})
	require.NoError(t, err)
	assert.Equal(t, "Goroutines", res.(*services.NodeResult).Node.Label)

	res, err = b.Send(ctx, commands.DeleteNodeCommand{SessionID: session.ID, NodeID: added.Node.ID})
	require.NoError(t, err)
	deleted := res.(*services.DeleteResult)
	assert.Equal(t, []string{added.Node.ID}, deleted.RemovedNodes)
	assert.Len(t, deleted.Session.Nodes, 2)
}

func TestRegisterAll_ApplyResponse(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)

	res, err := b.Send(ctx, commands.CreateSessionCommand{Goal: "Garden"})
	require.NoError(t, err)
	session := res.(*services.SessionView)

	raw := "MESSAGE: Let's start\nTOPIC: Soil | Test the pH\nTOPIC: Seeds | Pick varieties\nOPTIONS: Raised beds?, Compost?"
	res, err = b.Send(ctx, commands.ApplyResponseCommand{SessionID: session.ID, Raw: raw})
	require.NoError(t, err)

	result := res.(*services.ChatResult)
	assert.Equal(t, "lines", result.Format)
	assert.Equal(t, "Let's start", result.AssistantMessage)
	assert.Len(t, result.Session.Nodes, 3)
	assert.Equal(t, []string{"Raised beds?", "Compost?"}, result.Suggestions)
}

func TestRegisterAll_Validation(t *testing.T) {
	ctx := context.Background()
	b := newTestBus(t)

	tests := []struct {
		name string
		cmd  bus.Command
	}{
		{name: "create without goal", cmd: commands.CreateSessionCommand{}},
		{name: "add without session", cmd: commands.AddNodeCommand{Label: "x"}},
		{name: "add with bad kind", cmd: commands.AddNodeCommand{SessionID: "s", Label: "x", Kind: "leaf"}},
		{name: "connect without target", cmd: commands.ConnectCommand{SessionID: "s", Source: "a"}},
		{name: "switch without model", cmd: commands.SwitchModelCommand{}},
		{name: "switch with bad url", cmd: commands.SwitchModelCommand{Model: "m", BaseURL: "not a url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Send(ctx, tt.cmd)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err), err.Error())
		})
	}
}

func TestRegisterAll_SwitchModel(t *testing.T) {
	b := newTestBus(t)

	res, err := b.Send(context.Background(), commands.SwitchModelCommand{
		BaseURL:     "http://localhost:11434/v1",
		Model:       "llama3",
		Temperature: 0.2,
	})
	require.NoError(t, err)

	selection := res.(*ports.ModelSelection)
	assert.Equal(t, "llama3", selection.Model)
	assert.Equal(t, "http://localhost:11434/v1", selection.BaseURL)
}

func TestRegisterAll_SwitchModelUnavailable(t *testing.T) {
	store := services.NewSessionStore(nil, nil, nil, nil, nil, nil)
	b := bus.NewCommandBus()
	require.NoError(t, RegisterAll(b, store, nil, nil))

	_, err := b.Send(context.Background(), commands.SwitchModelCommand{Model: "m"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable))
}
