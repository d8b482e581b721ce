package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"mindmap-backend/application/commands/bus"
	cmdhandlers "mindmap-backend/application/commands/handlers"
	"mindmap-backend/application/ports"
	querybus "mindmap-backend/application/queries/bus"
	queryhandlers "mindmap-backend/application/queries/handlers"
	"mindmap-backend/application/services"
	"mindmap-backend/infrastructure/config"
	"mindmap-backend/infrastructure/llm"
	"mindmap-backend/infrastructure/messaging/eventbridge"
	"mindmap-backend/infrastructure/messaging/inmemory"
	"mindmap-backend/infrastructure/persistence/dynamodb"
	"mindmap-backend/infrastructure/persistence/memory"
	"mindmap-backend/infrastructure/persistence/sqlite"
	"mindmap-backend/interfaces/http/rest"
	"mindmap-backend/pkg/observability"
)

const metricsNamespace = "mindmap"

// ProvideLogger creates the process logger at the configured level
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() || cfg.IsLambda {
		zc = zap.NewProductionConfig()
	}
	if cfg.Logging.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
		}
		zc.Level = level
	}
	return zc.Build()
}

// ProvideMetrics creates the prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector(metricsNamespace)
}

// ProvideAWSConfig loads the default AWS configuration for the configured region
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
}

// ProvideDynamoDBClient creates a DynamoDB client, honoring a local endpoint override
func ProvideDynamoDBClient(awsCfg aws.Config, cfg *config.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config, cfg *config.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg, func(o *awseventbridge.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	})
}

// ProvideSnapshotRepository selects the snapshot backend. The cleanup closes
// any file handles.
func ProvideSnapshotRepository(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (ports.SnapshotRepository, func(), error) {
	switch cfg.Persistence.Backend {
	case config.BackendSQLite:
		repo, err := sqlite.Open(cfg.Persistence.SQLitePath, logger.Named("sqlite"))
		if err != nil {
			return nil, nil, err
		}
		return repo, func() {
			if err := repo.Close(); err != nil {
				logger.Warn("closing snapshot database", zap.Error(err))
			}
		}, nil
	case config.BackendDynamoDB:
		return dynamodb.NewSnapshotRepository(client, cfg.Persistence.DynamoDBTable, logger.Named("dynamodb")), func() {}, nil
	case config.BackendMemory, "":
		return memory.NewSnapshotRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown persistence backend %q", cfg.Persistence.Backend)
	}
}

// ProvideEventBus creates the in-process bus. With the EventBridge backend
// every event is also forwarded to the configured bus.
func ProvideEventBus(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) (ports.EventBus, error) {
	eventBus := inmemory.NewEventBus(logger.Named("events"))
	if cfg.Events.Backend == config.BackendEventBridge {
		publisher := eventbridge.NewPublisher(client, cfg.Events.BusName, cfg.Events.Source, logger.Named("eventbridge"))
		if err := eventBus.Subscribe(inmemory.AllEvents, publisher); err != nil {
			return nil, err
		}
	}
	return eventBus, nil
}

// ProvideLLMProvider creates the completion provider
func ProvideLLMProvider(cfg *config.Config, logger *zap.Logger) *llm.Provider {
	return llm.NewProvider(cfg.Model, cfg.Breaker, logger.Named("llm"))
}

// ProvideCompleter exposes the provider as the store's completer
func ProvideCompleter(p *llm.Provider) ports.Completer {
	return p
}

// ProvideModelSwitcher exposes the provider for runtime model switches
func ProvideModelSwitcher(p *llm.Provider) ports.ModelSwitcher {
	return p
}

// ProvideSessionStore creates the graph store
func ProvideSessionStore(
	cfg *config.Config,
	completer ports.Completer,
	repo ports.SnapshotRepository,
	eventBus ports.EventBus,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.SessionStore {
	return services.NewSessionStore(cfg.Domain(), completer, repo, eventBus, metrics, logger.Named("store"))
}

// ProvideCommandBus creates the command bus with every handler registered
func ProvideCommandBus(
	store *services.SessionStore,
	switcher ports.ModelSwitcher,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger.Named("commands")),
		bus.MetricsMiddleware(metrics),
	)
	if err := cmdhandlers.RegisterAll(commandBus, store, switcher, logger); err != nil {
		return nil, err
	}
	return commandBus, nil
}

// ProvideQueryBus creates the query bus with every handler registered
func ProvideQueryBus(
	store *services.SessionStore,
	switcher ports.ModelSwitcher,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(logger.Named("queries"), metrics)
	if err := queryhandlers.RegisterAll(queryBus, store, switcher); err != nil {
		return nil, err
	}
	return queryBus, nil
}

// ProvideHTTPHandler builds the chi router
func ProvideHTTPHandler(
	cfg *config.Config,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	metrics *observability.Collector,
	logger *zap.Logger,
) http.Handler {
	return rest.NewRouter(commandBus, queryBus, metrics, cfg.Server, logger.Named("http")).Setup()
}
