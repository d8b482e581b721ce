package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindmap-backend/infrastructure/config"
	"mindmap-backend/infrastructure/persistence/memory"
	"mindmap-backend/infrastructure/persistence/sqlite"
)

func TestInitializeContainer_MemoryBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "error"

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &memory.SnapshotRepository{}, c.Repository)
	assert.Equal(t, "llama3.2", c.Provider.Current().Model)

	rec := httptest.NewRecorder()
	c.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProvideSnapshotRepository(t *testing.T) {
	logger := zap.NewNop()

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Persistence.Backend = config.BackendSQLite
		cfg.Persistence.SQLitePath = filepath.Join(t.TempDir(), "sessions.db")

		repo, cleanup, err := ProvideSnapshotRepository(cfg, nil, logger)
		require.NoError(t, err)
		defer cleanup()
		assert.IsType(t, &sqlite.SnapshotRepository{}, repo)
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Persistence.Backend = "cassandra"

		_, _, err := ProvideSnapshotRepository(cfg, nil, logger)
		assert.Error(t, err)
	})
}

func TestProvideLogger_InvalidLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "loud"

	_, err := ProvideLogger(cfg)
	assert.Error(t, err)
}

func TestContainer_ApplyConfigSwitchesModel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "error"

	c, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	updated := *cfg
	updated.Model.Model = "qwen2.5"
	c.ApplyConfig(cfg, &updated)

	assert.Equal(t, "qwen2.5", c.Provider.Current().Model)
	assert.Same(t, &updated, c.Config)
}
