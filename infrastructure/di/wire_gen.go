//go:build !wireinject
// +build !wireinject

// Hand-written equivalent of the injector in wire.go; running wire in this
// directory regenerates it.

package di

import (
	"context"

	"mindmap-backend/infrastructure/config"
)

// Injectors from wire.go:

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	collector := ProvideMetrics()
	awsConfig, err := ProvideAWSConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	client := ProvideDynamoDBClient(awsConfig, cfg)
	snapshotRepository, cleanup, err := ProvideSnapshotRepository(cfg, client, logger)
	if err != nil {
		return nil, nil, err
	}
	eventbridgeClient := ProvideEventBridgeClient(awsConfig, cfg)
	eventBus, err := ProvideEventBus(cfg, eventbridgeClient, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	provider := ProvideLLMProvider(cfg, logger)
	completer := ProvideCompleter(provider)
	sessionStore := ProvideSessionStore(cfg, completer, snapshotRepository, eventBus, collector, logger)
	modelSwitcher := ProvideModelSwitcher(provider)
	commandBus, err := ProvideCommandBus(sessionStore, modelSwitcher, collector, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	queryBus, err := ProvideQueryBus(sessionStore, modelSwitcher, collector, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	handler := ProvideHTTPHandler(cfg, commandBus, queryBus, collector, logger)
	container := &Container{
		Config:     cfg,
		Logger:     logger,
		Metrics:    collector,
		Repository: snapshotRepository,
		EventBus:   eventBus,
		Provider:   provider,
		Store:      sessionStore,
		CommandBus: commandBus,
		QueryBus:   queryBus,
		Handler:    handler,
	}
	return container, func() {
		cleanup()
	}, nil
}
