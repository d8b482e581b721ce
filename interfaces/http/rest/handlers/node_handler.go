package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mindmap-backend/application/commands"
	"mindmap-backend/application/commands/bus"
)

// NodeHandler serves manual node edits
type NodeHandler struct {
	base
	commandBus *bus.CommandBus
}

// NewNodeHandler creates a node handler
func NewNodeHandler(commandBus *bus.CommandBus, logger *zap.Logger, maxBodyBytes int64) *NodeHandler {
	return &NodeHandler{base: newBase(logger, maxBodyBytes), commandBus: commandBus}
}

// AddNodeRequest is the body of POST /sessions/{sessionID}/nodes
type AddNodeRequest struct {
	Label       string `json:"label"`
	ParentID    string `json:"parentId,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Description string `json:"description,omitempty"`
	ImageRef    string `json:"imageRef,omitempty"`
}

// UpdateNodeRequest is the body of PUT /sessions/{sessionID}/nodes/{nodeID}.
// Absent fields are left unchanged.
type UpdateNodeRequest struct {
	Label       *string `json:"label,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageRef    *string `json:"imageRef,omitempty"`
}

// AddNode handles POST /sessions/{sessionID}/nodes
func (h *NodeHandler) AddNode(w http.ResponseWriter, r *http.Request) {
	var req AddNodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusCreated, commands.AddNodeCommand{
		SessionID:   chi.URLParam(r, "sessionID"),
		Label:       req.Label,
		ParentID:    req.ParentID,
		Kind:        req.Kind,
		Description: req.Description,
		ImageRef:    req.ImageRef,
	})
}

// UpdateNode handles PUT /sessions/{sessionID}/nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req UpdateNodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusOK, commands.UpdateNodeCommand{
		SessionID:   chi.URLParam(r, "sessionID"),
		NodeID:      chi.URLParam(r, "nodeID"),
		Label:       req.Label,
		Description: req.Description,
		ImageRef:    req.ImageRef,
	})
}

// DeleteNode handles DELETE /sessions/{sessionID}/nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.DeleteNodeCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		NodeID:    chi.URLParam(r, "nodeID"),
	})
}

// DuplicateNode handles POST /sessions/{sessionID}/nodes/{nodeID}/duplicate
func (h *NodeHandler) DuplicateNode(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusCreated, commands.DuplicateNodeCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		NodeID:    chi.URLParam(r, "nodeID"),
	})
}

func (h *NodeHandler) send(w http.ResponseWriter, r *http.Request, status int, cmd bus.Command) {
	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, status, result)
}
