package llm

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmap-backend/application/ports"
	pkgerrors "mindmap-backend/pkg/errors"
)

func TestProvider_SwitchRebuildsClient(t *testing.T) {
	var last captured
	var hits int32
	srv := completionServer(t, http.StatusOK, "ok", &last, &hits)

	p := NewProvider(testModel(srv.URL), testBreaker(), nil)
	_, err := p.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", last.Body.Model)

	err = p.Switch(context.Background(), ports.ModelSelection{Model: "mistral", Temperature: 1.1})
	require.NoError(t, err)

	current := p.Current()
	assert.Equal(t, "mistral", current.Model)
	assert.Equal(t, srv.URL+"/v1", current.BaseURL)
	assert.Empty(t, current.APIKey)

	_, err = p.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "mistral", last.Body.Model)
	assert.InDelta(t, 1.1, last.Body.Temperature, 1e-9)
	assert.Equal(t, "Bearer secret", last.Auth)
}

func TestProvider_SwitchRejectsInvalidSelection(t *testing.T) {
	p := NewProvider(testModel("http://localhost:1"), testBreaker(), nil)

	err := p.Switch(context.Background(), ports.ModelSelection{Model: "  "})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, "llama3.2", p.Current().Model)
}
