package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmap-backend/application/ports"
	"mindmap-backend/infrastructure/config"
	pkgerrors "mindmap-backend/pkg/errors"
)

type captured struct {
	Auth string
	Body chatRequest
}

func completionServer(t *testing.T, status int, content string, last *captured, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if last != nil {
			last.Auth = r.Header.Get("Authorization")
			_ = json.NewDecoder(r.Body).Decode(&last.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":"boom"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testModel(baseURL string) config.ModelConfig {
	return config.ModelConfig{
		BaseURL:     baseURL + "/v1",
		APIKey:      "secret",
		Model:       "llama3.2",
		Temperature: 0.2,
		MaxTokens:   256,
		Timeout:     5 * time.Second,
	}
}

func testBreaker() config.BreakerConfig {
	return config.BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 2}
}

func TestChatClient_Complete(t *testing.T) {
	var last captured
	var hits int32
	srv := completionServer(t, http.StatusOK, `{"assistantResponse":"hi"}`, &last, &hits)

	client := NewChatClient(testModel(srv.URL), testBreaker(), nil)
	out, err := client.Complete(context.Background(), []ports.ChatMessage{
		{Role: ports.RoleSystem, Content: "sys"},
		{Role: ports.RoleUser, Content: "hello"},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"assistantResponse":"hi"}`, out)
	assert.Equal(t, "Bearer secret", last.Auth)
	assert.Equal(t, "llama3.2", last.Body.Model)
	assert.Equal(t, 256, last.Body.MaxTokens)
	assert.InDelta(t, 0.2, last.Body.Temperature, 1e-9)
	require.Len(t, last.Body.Messages, 2)
	assert.Equal(t, "hello", last.Body.Messages[1].Content)
}

func TestChatClient_Non2xxIsExternal(t *testing.T) {
	var hits int32
	srv := completionServer(t, http.StatusBadRequest, "", nil, &hits)

	client := NewChatClient(testModel(srv.URL), testBreaker(), nil)
	_, err := client.Complete(context.Background(), nil)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
}

func TestChatClient_BreakerOpens(t *testing.T) {
	var hits int32
	srv := completionServer(t, http.StatusInternalServerError, "", nil, &hits)

	client := NewChatClient(testModel(srv.URL), testBreaker(), nil)
	for i := 0; i < 2; i++ {
		_, err := client.Complete(context.Background(), nil)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
	}

	_, err := client.Complete(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestChatClient_ClientErrorsDoNotTrip(t *testing.T) {
	var hits int32
	srv := completionServer(t, http.StatusUnauthorized, "", nil, &hits)

	client := NewChatClient(testModel(srv.URL), testBreaker(), nil)
	for i := 0; i < 4; i++ {
		_, err := client.Complete(context.Background(), nil)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
	}
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
}

func TestChatClient_CancelledWhileRateLimited(t *testing.T) {
	var hits int32
	srv := completionServer(t, http.StatusOK, "ok", nil, &hits)

	model := testModel(srv.URL)
	model.RequestsPerMinute = 1
	model.Burst = 1
	client := NewChatClient(model, testBreaker(), nil)

	_, err := client.Complete(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Complete(ctx, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
