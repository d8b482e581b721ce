package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmap-backend/application/commands/bus"
	cmdhandlers "mindmap-backend/application/commands/handlers"
	"mindmap-backend/application/ports"
	querybus "mindmap-backend/application/queries/bus"
	queryhandlers "mindmap-backend/application/queries/handlers"
	"mindmap-backend/application/services"
	domainconfig "mindmap-backend/domain/config"
	"mindmap-backend/infrastructure/config"
	"mindmap-backend/pkg/observability"
)

const tripResponse = `{"assistantResponse":"Let's plan.","updatedMindMap":{"nodes":[{"id":"root","label":"Trip"},{"id":"a","label":"Flights"},{"id":"b","label":"Hotels"}],"edges":[{"source":"root","target":"a"},{"source":"root","target":"b"}]},"suggestions":["Budget?"]}`

type cannedCompleter struct {
	reply string
}

func (c cannedCompleter) Complete(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	return c.reply, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestServer(t *testing.T, switcher ports.ModelSwitcher) *httptest.Server {
	t.Helper()
	metrics := observability.NewCollector("mindmap_test")
	store := services.NewSessionStore(domainconfig.DefaultDomainConfig(), cannedCompleter{reply: tripResponse}, nil, nil, metrics, nil)

	commandBus := bus.NewCommandBus(bus.MetricsMiddleware(metrics))
	require.NoError(t, cmdhandlers.RegisterAll(commandBus, store, switcher, nil))
	queryBus := querybus.NewQueryBus(nil, metrics)
	require.NoError(t, queryhandlers.RegisterAll(queryBus, store, switcher))

	server := config.ServerConfig{EnableCORS: true, MaxBodyBytes: 1 << 16}
	srv := httptest.NewServer(NewRouter(commandBus, queryBus, metrics, server, nil).Setup())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func createSession(t *testing.T, srv *httptest.Server) services.SessionView {
	t.Helper()
	status, env := call(t, srv, http.MethodPost, "/api/v1/sessions", `{"goal":"Trip"}`)
	require.Equal(t, http.StatusCreated, status)
	var view services.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t, nil)
	status, env := call(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestRouter_SessionLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	view := createSession(t, srv)
	require.NotEmpty(t, view.RootID)
	base := "/api/v1/sessions/" + view.ID

	status, env := call(t, srv, http.MethodPost, base+"/messages", `{"text":"help me plan"}`)
	require.Equal(t, http.StatusOK, status)
	var chat services.ChatResult
	require.NoError(t, json.Unmarshal(env.Data, &chat))
	assert.Equal(t, "Let's plan.", chat.AssistantMessage)
	assert.Equal(t, []string{"Budget?"}, chat.Suggestions)
	require.NotNil(t, chat.Session)
	_, ok := chat.Session.NodeByLabel("Flights")
	assert.True(t, ok)

	status, env = call(t, srv, http.MethodPost, base+"/nodes", `{"label":"Visas","parentId":"`+view.RootID+`"}`)
	require.Equal(t, http.StatusCreated, status)
	var added services.NodeResult
	require.NoError(t, json.Unmarshal(env.Data, &added))
	require.NotEmpty(t, added.Node.ID)

	status, _ = call(t, srv, http.MethodPut, base+"/nodes/"+added.Node.ID, `{"description":"check entry rules"}`)
	require.Equal(t, http.StatusOK, status)

	status, env = call(t, srv, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, status)
	var current services.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &current))
	visas, ok := current.NodeByLabel("Visas")
	require.True(t, ok)
	assert.Equal(t, "check entry rules", visas.Description)

	status, _ = call(t, srv, http.MethodDelete, base+"/nodes/"+added.Node.ID, "")
	require.Equal(t, http.StatusOK, status)

	status, env = call(t, srv, http.MethodGet, base+"/outline", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "Flights")
	assert.NotContains(t, string(env.Data), "Visas")

	status, env = call(t, srv, http.MethodGet, "/api/v1/sessions?limit=10", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), view.ID)
}

func TestRouter_ApplyResponseAndEdges(t *testing.T) {
	srv := newTestServer(t, nil)
	view := createSession(t, srv)
	base := "/api/v1/sessions/" + view.ID

	status, env := call(t, srv, http.MethodPost, base+"/responses", `{"raw":"TOPIC: Food\nTOPIC: Museums"}`)
	require.Equal(t, http.StatusOK, status)
	var chat services.ChatResult
	require.NoError(t, json.Unmarshal(env.Data, &chat))
	food, ok := chat.Session.NodeByLabel("Food")
	require.True(t, ok)
	museums, ok := chat.Session.NodeByLabel("Museums")
	require.True(t, ok)

	status, env = call(t, srv, http.MethodPost, base+"/edges", `{"source":"`+food.ID+`","target":"`+museums.ID+`"}`)
	require.Equal(t, http.StatusCreated, status)
	var edge services.EdgeResult
	require.NoError(t, json.Unmarshal(env.Data, &edge))
	require.NotEmpty(t, edge.Edge.ID)

	status, _ = call(t, srv, http.MethodDelete, base+"/edges/"+edge.Edge.ID, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestRouter_Errors(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := call(t, srv, http.MethodGet, "/api/v1/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	assert.False(t, env.Success)

	status, env = call(t, srv, http.MethodPost, "/api/v1/sessions", `{"goal":"x","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)

	status, _ = call(t, srv, http.MethodPost, "/api/v1/sessions", `{"goal":""}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, srv, http.MethodGet, "/api/v1/sessions?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, srv, http.MethodPut, "/api/v1/model", `{"model":"mistral"}`)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, env = call(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	createSession(t, srv)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "mindmap_test_http_requests_total"))
}
