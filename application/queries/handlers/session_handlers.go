package handlers

import (
	"context"
	"time"

	"mindmap-backend/application/ports"
	"mindmap-backend/application/queries"
	"mindmap-backend/application/services"
	pkgerrors "mindmap-backend/pkg/errors"
)

// SessionQueryHandler answers read-only session queries
type SessionQueryHandler struct {
	store    *services.SessionStore
	switcher ports.ModelSwitcher
}

// NewSessionQueryHandler creates a new query handler. switcher may be nil.
func NewSessionQueryHandler(store *services.SessionStore, switcher ports.ModelSwitcher) *SessionQueryHandler {
	return &SessionQueryHandler{store: store, switcher: switcher}
}

// HandleGetSession executes the get session query
func (h *SessionQueryHandler) HandleGetSession(ctx context.Context, q queries.GetSessionQuery) (*services.SessionView, error) {
	return h.store.GetSession(ctx, q.SessionID)
}

// HandleGetSnapshot executes the get snapshot query
func (h *SessionQueryHandler) HandleGetSnapshot(ctx context.Context, q queries.GetSnapshotQuery) (*ports.Snapshot, error) {
	return h.store.Snapshot(ctx, q.SessionID)
}

// HandleGetOutline executes the get outline query
func (h *SessionQueryHandler) HandleGetOutline(ctx context.Context, q queries.GetOutlineQuery) (string, error) {
	return h.store.Outline(ctx, q.SessionID)
}

// HandleListSessions executes the list sessions query
func (h *SessionQueryHandler) HandleListSessions(ctx context.Context, q queries.ListSessionsQuery) (*queries.ListSessionsResult, error) {
	summaries, err := h.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	result := &queries.ListSessionsResult{
		Sessions: make([]queries.SessionSummaryDTO, 0, len(summaries)),
		Total:    len(summaries),
	}
	for i, s := range summaries {
		if q.Limit > 0 && i >= q.Limit {
			break
		}
		result.Sessions = append(result.Sessions, queries.SessionSummaryDTO{
			SessionID: s.SessionID,
			Goal:      s.Goal,
			NodeCount: s.NodeCount,
			Version:   s.Version,
			UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return result, nil
}

// HandleGetModel executes the get model query
func (h *SessionQueryHandler) HandleGetModel(ctx context.Context, q queries.GetModelQuery) (*ports.ModelSelection, error) {
	if h.switcher == nil {
		return nil, pkgerrors.NewUnavailableError("model switching")
	}
	current := h.switcher.Current()
	return &current, nil
}
