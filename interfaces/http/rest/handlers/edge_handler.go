package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mindmap-backend/application/commands"
	"mindmap-backend/application/commands/bus"
)

// EdgeHandler serves manual edge edits
type EdgeHandler struct {
	base
	commandBus *bus.CommandBus
}

// NewEdgeHandler creates an edge handler
func NewEdgeHandler(commandBus *bus.CommandBus, logger *zap.Logger, maxBodyBytes int64) *EdgeHandler {
	return &EdgeHandler{base: newBase(logger, maxBodyBytes), commandBus: commandBus}
}

// ConnectRequest is the body of POST /sessions/{sessionID}/edges
type ConnectRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Connect handles POST /sessions/{sessionID}/edges
func (h *EdgeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.commandBus.Send(r.Context(), commands.ConnectCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		Source:    req.Source,
		Target:    req.Target,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusCreated, result)
}

// Disconnect handles DELETE /sessions/{sessionID}/edges/{edgeID}
func (h *EdgeHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	result, err := h.commandBus.Send(r.Context(), commands.DisconnectCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		EdgeID:    chi.URLParam(r, "edgeID"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, result)
}
