package bus

import (
	"context"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	pkgerrors "mindmap-backend/pkg/errors"
	"mindmap-backend/pkg/observability"
)

// Query represents a read-only query
type Query interface {
	Validate() error
}

// QueryHandler handles a specific query type
type QueryHandler interface {
	Handle(ctx context.Context, query Query) (interface{}, error)
}

// QueryHandlerFunc is an adapter to allow functions to be used as handlers
type QueryHandlerFunc func(ctx context.Context, query Query) (interface{}, error)

// Handle implements QueryHandler
func (f QueryHandlerFunc) Handle(ctx context.Context, query Query) (interface{}, error) {
	return f(ctx, query)
}

// QueryBus dispatches queries to their handlers
type QueryBus struct {
	handlers map[reflect.Type]QueryHandler
	logger   *zap.Logger
	metrics  *observability.Collector
	mu       sync.RWMutex
}

// NewQueryBus creates a new query bus. logger and metrics may be nil.
func NewQueryBus(logger *zap.Logger, metrics *observability.Collector) *QueryBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryBus{
		handlers: make(map[reflect.Type]QueryHandler),
		logger:   logger,
		metrics:  metrics,
	}
}

// Register registers a handler for a query type
func (b *QueryBus) Register(queryType Query, handler QueryHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(queryType)
	if _, exists := b.handlers[t]; exists {
		return pkgerrors.NewConflictError("handler already registered for query type " + t.Name())
	}

	b.handlers[t] = handler
	return nil
}

// Ask dispatches a query to its handler and returns the result
func (b *QueryBus) Ask(ctx context.Context, query Query) (interface{}, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	queryType := reflect.TypeOf(query).Name()

	b.mu.RLock()
	handler, exists := b.handlers[reflect.TypeOf(query)]
	b.mu.RUnlock()

	if !exists {
		return nil, pkgerrors.NewInternalError("no handler registered for query type " + queryType)
	}

	start := time.Now()
	result, err := handler.Handle(ctx, query)
	if err != nil {
		errType := "UNKNOWN"
		if appErr := pkgerrors.GetAppError(err); appErr != nil {
			errType = string(appErr.Type)
		}
		b.metrics.RecordCommand("query", queryType, time.Since(start), errType)
		b.logger.Debug("query failed", zap.String("type", queryType), zap.Error(err))
		return nil, err
	}

	b.metrics.RecordCommand("query", queryType, time.Since(start), "")
	return result, nil
}
