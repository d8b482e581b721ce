package queries

import (
	"mindmap-backend/pkg/utils"
)

// GetSessionQuery fetches the render view of a session
type GetSessionQuery struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// Validate validates the query
func (q GetSessionQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetSnapshotQuery fetches the persistence form of a session
type GetSnapshotQuery struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// Validate validates the query
func (q GetSnapshotQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetOutlineQuery fetches the text outline the prompt is built from
type GetOutlineQuery struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// Validate validates the query
func (q GetOutlineQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// ListSessionsQuery lists known sessions, most recently updated first
type ListSessionsQuery struct {
	Limit int `json:"limit" validate:"gte=0,lte=1000"`
}

// Validate validates the query
func (q ListSessionsQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// ListSessionsResult is a page of session summaries
type ListSessionsResult struct {
	Sessions []SessionSummaryDTO `json:"sessions"`
	Total    int                 `json:"total"`
}

// SessionSummaryDTO is one listing entry
type SessionSummaryDTO struct {
	SessionID string `json:"sessionId"`
	Goal      string `json:"goal"`
	NodeCount int    `json:"nodeCount"`
	Version   int    `json:"version"`
	UpdatedAt string `json:"updatedAt"`
}

// GetModelQuery fetches the active completion model
type GetModelQuery struct{}

// Validate validates the query
func (q GetModelQuery) Validate() error {
	return nil
}
