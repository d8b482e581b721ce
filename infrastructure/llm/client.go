package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mindmap-backend/application/ports"
	"mindmap-backend/infrastructure/config"
	pkgerrors "mindmap-backend/pkg/errors"
)

const serviceName = "completion"

// ChatClient calls an OpenAI-compatible /chat/completions endpoint. Calls
// are rate limited and pass through a circuit breaker.
type ChatClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	logger      *zap.Logger
}

type chatRequest struct {
	Model       string              `json:"model"`
	Messages    []ports.ChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Stream      bool                `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("completion http %d: %s", e.StatusCode, e.Body)
}

// NewChatClient creates a client from model and breaker settings
func NewChatClient(model config.ModelConfig, breaker config.BreakerConfig, logger *zap.Logger) *ChatClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	burst := model.Burst
	if model.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(model.RequestsPerMinute) / 60.0)
	}
	if burst <= 0 {
		burst = 1
	}

	timeout := model.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &ChatClient{
		baseURL:     strings.TrimRight(model.BaseURL, "/"),
		apiKey:      model.APIKey,
		model:       model.Model,
		temperature: model.Temperature,
		maxTokens:   model.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(limit, burst),
		breaker:     newBreaker(breaker, logger),
		logger:      logger,
	}
}

func newBreaker(cfg config.BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// caller cancellations and request mistakes say nothing about upstream health
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var he *httpError
			if errors.As(err, &he) {
				return he.StatusCode < 500 && he.StatusCode != http.StatusTooManyRequests
			}
			return false
		},
	})
}

// Complete implements ports.Completer
func (c *ChatClient) Complete(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", pkgerrors.NewUnavailableError(serviceName).WithCause(err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doOnce(ctx, messages)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", pkgerrors.NewUnavailableError(serviceName).WithCause(err)
		}
		return "", pkgerrors.NewExternalError(serviceName, err)
	}
	return result.(string), nil
}

func (c *ChatClient) doOnce(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return "", readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &httpError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("completion decode error: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}

	c.logger.Debug("completion received",
		zap.String("model", c.model),
		zap.Duration("duration", time.Since(start)),
		zap.String("finish_reason", decoded.Choices[0].FinishReason),
		zap.Int("length", len(decoded.Choices[0].Message.Content)),
	)
	return decoded.Choices[0].Message.Content, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
