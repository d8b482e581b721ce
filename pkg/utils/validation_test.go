package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "mindmap-backend/pkg/errors"
)

type sample struct {
	Goal   string `validate:"required,max=10"`
	Kind   string `validate:"omitempty,oneof=root topic"`
	Source string `validate:"required"`
	Target string `validate:"required,nefield=Source"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, ValidateStruct(sample{Goal: "Go", Kind: "topic", Source: "a", Target: "b"}))

	err := ValidateStruct(sample{Goal: "a very long goal", Kind: "leaf", Source: "a", Target: "a"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "goal must be at most 10 characters", appErr.Details["goal"])
	assert.Equal(t, "kind must be one of: root topic", appErr.Details["kind"])
	assert.Equal(t, "target must differ from source", appErr.Details["target"])
}

func TestValidateStruct_Required(t *testing.T) {
	err := ValidateStruct(sample{Target: "b"})
	require.Error(t, err)

	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "goal is required", appErr.Details["goal"])
	assert.Equal(t, "source is required", appErr.Details["source"])
}
