package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "mindmap-backend/pkg/errors"
)

type echoQuery struct {
	Value string
}

func (q echoQuery) Validate() error {
	if q.Value == "" {
		return pkgerrors.NewValidationError("value is required")
	}
	return nil
}

func TestQueryBus_Ask(t *testing.T) {
	b := NewQueryBus(nil, nil)
	require.NoError(t, b.Register(echoQuery{}, QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) {
		return q.(echoQuery).Value, nil
	})))

	got, err := b.Ask(context.Background(), echoQuery{Value: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", got)

	_, err = b.Ask(context.Background(), echoQuery{})
	assert.True(t, pkgerrors.IsValidation(err))

	err = b.Register(echoQuery{}, QueryHandlerFunc(func(ctx context.Context, q Query) (interface{}, error) { return nil, nil }))
	assert.True(t, pkgerrors.IsConflict(err))
}
