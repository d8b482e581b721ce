package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mindmap-backend/application/commands/bus"
	querybus "mindmap-backend/application/queries/bus"
	"mindmap-backend/infrastructure/config"
	"mindmap-backend/interfaces/http/rest/handlers"
	"mindmap-backend/interfaces/http/rest/middleware"
	"mindmap-backend/pkg/common"
	"mindmap-backend/pkg/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	metrics    *observability.Collector
	server     config.ServerConfig
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	metrics *observability.Collector,
	server config.ServerConfig,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		metrics:    metrics,
		server:     server,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger, rt.metrics))

	if rt.server.EnableCORS {
		origins := rt.server.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000", "http://localhost:5173"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	if rt.metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(rt.metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	limit := rt.server.MaxBodyBytes
	sessions := handlers.NewSessionHandler(rt.commandBus, rt.queryBus, rt.logger, limit)
	nodes := handlers.NewNodeHandler(rt.commandBus, rt.logger, limit)
	edges := handlers.NewEdgeHandler(rt.commandBus, rt.logger, limit)
	model := handlers.NewModelHandler(rt.commandBus, rt.queryBus, rt.logger, limit)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessions.CreateSession)
			r.Get("/", sessions.ListSessions)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", sessions.GetSession)
				r.Get("/snapshot", sessions.GetSnapshot)
				r.Get("/outline", sessions.GetOutline)
				r.Put("/goal", sessions.ResetGoal)
				r.Put("/focus", sessions.SetFocus)
				r.Post("/messages", sessions.SendMessage)
				r.Post("/responses", sessions.ApplyResponse)

				r.Post("/nodes", nodes.AddNode)
				r.Put("/nodes/{nodeID}", nodes.UpdateNode)
				r.Delete("/nodes/{nodeID}", nodes.DeleteNode)
				r.Post("/nodes/{nodeID}/duplicate", nodes.DuplicateNode)

				r.Post("/edges", edges.Connect)
				r.Delete("/edges/{edgeID}", edges.Disconnect)
			})
		})

		r.Get("/model", model.GetModel)
		r.Put("/model", model.SwitchModel)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		common.RespondError(w, http.StatusNotFound, common.StandardErrorCodes.NotFound, "route not found")
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
