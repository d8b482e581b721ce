package commands

import (
	"mindmap-backend/pkg/utils"
)

// SendMessageCommand runs one chat exchange against the completion service
type SendMessageCommand struct {
	SessionID string `json:"sessionId" validate:"required"`
	Text      string `json:"text" validate:"required,max=4000"`
	FocusID   string `json:"focusId"`
}

// Validate validates the command
func (c SendMessageCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// ApplyResponseCommand merges a model response produced by the client
type ApplyResponseCommand struct {
	SessionID   string `json:"sessionId" validate:"required"`
	Raw         string `json:"raw" validate:"max=200000"`
	UserMessage string `json:"userMessage" validate:"max=4000"`
}

// Validate validates the command
func (c ApplyResponseCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// SwitchModelCommand changes the completion backend
type SwitchModelCommand struct {
	BaseURL     string  `json:"baseUrl" validate:"omitempty,url"`
	Model       string  `json:"model" validate:"required,max=200"`
	APIKey      string  `json:"apiKey"`
	Temperature float64 `json:"temperature" validate:"gte=0,lte=2"`
}

// Validate validates the command
func (c SwitchModelCommand) Validate() error {
	return utils.ValidateStruct(c)
}
