package di

import (
	"net/http"

	"go.uber.org/zap"

	"mindmap-backend/application/commands/bus"
	"mindmap-backend/application/ports"
	querybus "mindmap-backend/application/queries/bus"
	"mindmap-backend/application/services"
	"mindmap-backend/infrastructure/config"
	"mindmap-backend/infrastructure/llm"
	"mindmap-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Collector
	Repository ports.SnapshotRepository
	EventBus   ports.EventBus
	Provider   *llm.Provider
	Store      *services.SessionStore
	CommandBus *bus.CommandBus
	QueryBus   *querybus.QueryBus
	Handler    http.Handler
}

// ApplyConfig reacts to a reloaded configuration file. Only the completion
// model is hot-swappable; everything else needs a restart.
func (c *Container) ApplyConfig(old, updated *config.Config) {
	if config.ModelChanged(old, updated) {
		c.Provider.Reconfigure(updated.Model)
	}
	if old.Logging.Level != updated.Logging.Level || old.Persistence != updated.Persistence {
		c.Logger.Warn("configuration change requires a restart",
			zap.String("log_level", updated.Logging.Level),
			zap.String("persistence", updated.Persistence.Backend),
		)
	}
	c.Config = updated
}
