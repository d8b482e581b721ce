package handlers

import (
	"context"

	"mindmap-backend/application/ports"
	"mindmap-backend/application/queries"
	"mindmap-backend/application/queries/bus"
	"mindmap-backend/application/services"
	pkgerrors "mindmap-backend/pkg/errors"
)

func typed[Q bus.Query, R any](fn func(context.Context, Q) (R, error)) bus.QueryHandler {
	return bus.QueryHandlerFunc(func(ctx context.Context, query bus.Query) (interface{}, error) {
		q, ok := query.(Q)
		if !ok {
			return nil, pkgerrors.NewInternalError("unexpected query type")
		}
		result, err := fn(ctx, q)
		if err != nil {
			return nil, err
		}
		return result, nil
	})
}

// RegisterAll wires every query handler onto the bus
func RegisterAll(b *bus.QueryBus, store *services.SessionStore, switcher ports.ModelSwitcher) error {
	h := NewSessionQueryHandler(store, switcher)

	registrations := []struct {
		query   bus.Query
		handler bus.QueryHandler
	}{
		{queries.GetSessionQuery{}, typed(h.HandleGetSession)},
		{queries.GetSnapshotQuery{}, typed(h.HandleGetSnapshot)},
		{queries.GetOutlineQuery{}, typed(h.HandleGetOutline)},
		{queries.ListSessionsQuery{}, typed(h.HandleListSessions)},
		{queries.GetModelQuery{}, typed(h.HandleGetModel)},
	}

	for _, r := range registrations {
		if err := b.Register(r.query, r.handler); err != nil {
			return err
		}
	}
	return nil
}
