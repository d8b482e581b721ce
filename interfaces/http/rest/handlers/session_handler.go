package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mindmap-backend/application/commands"
	"mindmap-backend/application/commands/bus"
	"mindmap-backend/application/queries"
	querybus "mindmap-backend/application/queries/bus"
	pkgerrors "mindmap-backend/pkg/errors"
)

// SessionHandler serves session lifecycle and chat routes
type SessionHandler struct {
	base
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
}

// NewSessionHandler creates a session handler
func NewSessionHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, logger *zap.Logger, maxBodyBytes int64) *SessionHandler {
	return &SessionHandler{base: newBase(logger, maxBodyBytes), commandBus: commandBus, queryBus: queryBus}
}

// CreateSessionRequest is the body of POST /sessions
type CreateSessionRequest struct {
	Goal string `json:"goal"`
}

// GoalRequest is the body of PUT /sessions/{sessionID}/goal
type GoalRequest struct {
	Goal string `json:"goal"`
}

// FocusRequest is the body of PUT /sessions/{sessionID}/focus
type FocusRequest struct {
	NodeID string `json:"nodeId"`
}

// MessageRequest is the body of POST /sessions/{sessionID}/messages
type MessageRequest struct {
	Text    string `json:"text"`
	FocusID string `json:"focusId,omitempty"`
}

// ResponseRequest is the body of POST /sessions/{sessionID}/responses
type ResponseRequest struct {
	Raw         string `json:"raw"`
	UserMessage string `json:"userMessage,omitempty"`
}

// CreateSession handles POST /sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.commandBus.Send(r.Context(), commands.CreateSessionCommand{Goal: req.Goal})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusCreated, result)
}

// ListSessions handles GET /sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := queries.ListSessionsQuery{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(w, r, pkgerrors.NewValidationError("limit must be an integer"))
			return
		}
		q.Limit = limit
	}
	result, err := h.queryBus.Ask(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, result)
}

// GetSession handles GET /sessions/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.GetSessionQuery{SessionID: chi.URLParam(r, "sessionID")})
}

// GetSnapshot handles GET /sessions/{sessionID}/snapshot
func (h *SessionHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.GetSnapshotQuery{SessionID: chi.URLParam(r, "sessionID")})
}

// GetOutline handles GET /sessions/{sessionID}/outline
func (h *SessionHandler) GetOutline(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetOutlineQuery{SessionID: chi.URLParam(r, "sessionID")})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, map[string]interface{}{"outline": result})
}

// ResetGoal handles PUT /sessions/{sessionID}/goal
func (h *SessionHandler) ResetGoal(w http.ResponseWriter, r *http.Request) {
	var req GoalRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusOK, commands.ResetGoalCommand{SessionID: chi.URLParam(r, "sessionID"), Goal: req.Goal})
}

// SetFocus handles PUT /sessions/{sessionID}/focus
func (h *SessionHandler) SetFocus(w http.ResponseWriter, r *http.Request) {
	var req FocusRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusOK, commands.SetFocusCommand{SessionID: chi.URLParam(r, "sessionID"), NodeID: req.NodeID})
}

// SendMessage handles POST /sessions/{sessionID}/messages
func (h *SessionHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusOK, commands.SendMessageCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		Text:      req.Text,
		FocusID:   req.FocusID,
	})
}

// ApplyResponse handles POST /sessions/{sessionID}/responses
func (h *SessionHandler) ApplyResponse(w http.ResponseWriter, r *http.Request) {
	var req ResponseRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusOK, commands.ApplyResponseCommand{
		SessionID:   chi.URLParam(r, "sessionID"),
		Raw:         req.Raw,
		UserMessage: req.UserMessage,
	})
}

func (h *SessionHandler) send(w http.ResponseWriter, r *http.Request, status int, cmd bus.Command) {
	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, status, result)
}

func (h *SessionHandler) ask(w http.ResponseWriter, r *http.Request, q querybus.Query) {
	result, err := h.queryBus.Ask(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, result)
}
