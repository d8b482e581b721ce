package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"mindmap-backend/application/commands"
	"mindmap-backend/application/commands/bus"
	"mindmap-backend/application/queries"
	querybus "mindmap-backend/application/queries/bus"
)

// ModelHandler reads and switches the completion model
type ModelHandler struct {
	base
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
}

// NewModelHandler creates a model handler
func NewModelHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, logger *zap.Logger, maxBodyBytes int64) *ModelHandler {
	return &ModelHandler{base: newBase(logger, maxBodyBytes), commandBus: commandBus, queryBus: queryBus}
}

// SwitchModelRequest is the body of PUT /model
type SwitchModelRequest struct {
	BaseURL     string  `json:"baseUrl,omitempty"`
	Model       string  `json:"model"`
	APIKey      string  `json:"apiKey,omitempty"`
	Temperature float64 `json:"temperature"`
}

// GetModel handles GET /model
func (h *ModelHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetModelQuery{})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, result)
}

// SwitchModel handles PUT /model
func (h *ModelHandler) SwitchModel(w http.ResponseWriter, r *http.Request) {
	var req SwitchModelRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.commandBus.Send(r.Context(), commands.SwitchModelCommand{
		BaseURL:     req.BaseURL,
		Model:       req.Model,
		APIKey:      req.APIKey,
		Temperature: req.Temperature,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, result)
}
