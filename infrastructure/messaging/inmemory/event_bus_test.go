package inmemory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmap-backend/application/ports"
	"mindmap-backend/domain/events"
)

func TestEventBus_DispatchesByTypeAndWildcard(t *testing.T) {
	bus := NewEventBus(nil)
	var created, all []string

	require.NoError(t, bus.Subscribe(events.TypeNodeCreated, ports.EventHandlerFunc(func(ctx context.Context, e events.DomainEvent) error {
		created = append(created, e.(events.NodeCreated).Label)
		return nil
	})))
	require.NoError(t, bus.Subscribe(AllEvents, ports.EventHandlerFunc(func(ctx context.Context, e events.DomainEvent) error {
		all = append(all, e.GetEventType())
		return nil
	})))

	err := bus.PublishBatch(context.Background(), []events.DomainEvent{
		events.NewGraphCreated("g1", "root", "Plan", 1),
		events.NewNodeCreated("g1", "n1", "Flights", "topic", 2),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Flights"}, created)
	assert.Equal(t, []string{events.TypeGraphCreated, events.TypeNodeCreated}, all)
}

func TestEventBus_FailingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus(nil)
	calls := 0

	require.NoError(t, bus.Subscribe(AllEvents, ports.EventHandlerFunc(func(ctx context.Context, e events.DomainEvent) error {
		return errors.New("down")
	})))
	require.NoError(t, bus.Subscribe(AllEvents, ports.EventHandlerFunc(func(ctx context.Context, e events.DomainEvent) error {
		calls++
		return nil
	})))

	err := bus.Publish(context.Background(), events.NewNodeUpdated("g1", "n1", "x", 3))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestEventBus_SubscribeValidation(t *testing.T) {
	bus := NewEventBus(nil)
	assert.Error(t, bus.Subscribe("", ports.EventHandlerFunc(func(context.Context, events.DomainEvent) error { return nil })))
	assert.Error(t, bus.Subscribe(events.TypeEdgeAdded, nil))
	assert.NoError(t, bus.PublishBatch(context.Background(), nil))
}
