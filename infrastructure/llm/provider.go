package llm

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"mindmap-backend/application/ports"
	"mindmap-backend/infrastructure/config"
	pkgerrors "mindmap-backend/pkg/errors"
)

// Provider is the process-wide completion backend. It builds its client
// lazily and rebuilds it after the model selection changes.
type Provider struct {
	mu      sync.Mutex
	model   config.ModelConfig
	breaker config.BreakerConfig
	client  *ChatClient
	logger  *zap.Logger
}

// NewProvider creates a provider for the configured model
func NewProvider(model config.ModelConfig, breaker config.BreakerConfig, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{model: model, breaker: breaker, logger: logger}
}

// Complete implements ports.Completer
func (p *Provider) Complete(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	return p.get().Complete(ctx, messages)
}

func (p *Provider) get() *ChatClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		p.client = NewChatClient(p.model, p.breaker, p.logger)
	}
	return p.client
}

// Current implements ports.ModelSwitcher
func (p *Provider) Current() ports.ModelSelection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ports.ModelSelection{
		BaseURL:     p.model.BaseURL,
		Model:       p.model.Model,
		Temperature: p.model.Temperature,
	}
}

// Switch implements ports.ModelSwitcher. Empty BaseURL and APIKey keep the
// current values.
func (p *Provider) Switch(ctx context.Context, selection ports.ModelSelection) error {
	p.mu.Lock()
	next := p.model
	p.mu.Unlock()

	if s := strings.TrimSpace(selection.BaseURL); s != "" {
		next.BaseURL = s
	}
	if s := strings.TrimSpace(selection.APIKey); s != "" {
		next.APIKey = s
	}
	next.Model = strings.TrimSpace(selection.Model)
	next.Temperature = selection.Temperature

	if err := next.Validate(); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	p.Reconfigure(next)
	return nil
}

// Reconfigure replaces the model settings; the next call builds a new client
func (p *Provider) Reconfigure(model config.ModelConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = model
	p.client = nil
	p.logger.Info("completion model configured",
		zap.String("model", model.Model),
		zap.String("base_url", model.BaseURL),
	)
}
