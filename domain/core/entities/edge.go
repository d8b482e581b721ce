package entities

import (
	"time"

	"mindmap-backend/domain/core/valueobjects"
)

// EdgeOrigin records which pipeline created an edge
type EdgeOrigin string

const (
	OriginUser   EdgeOrigin = "user"
	OriginMerge  EdgeOrigin = "merge"
	OriginAnchor EdgeOrigin = "anchor"
	OriginOrphan EdgeOrigin = "orphan"
)

// Edge is a directed parent -> child connection between two nodes
type Edge struct {
	ID        valueobjects.EdgeID
	SourceID  valueobjects.NodeID
	TargetID  valueobjects.NodeID
	Origin    EdgeOrigin
	CreatedAt time.Time
}

// NewEdge creates an edge with a fresh identity
func NewEdge(source, target valueobjects.NodeID, origin EdgeOrigin) *Edge {
	return &Edge{
		ID:        valueobjects.NewEdgeID(),
		SourceID:  source,
		TargetID:  target,
		Origin:    origin,
		CreatedAt: time.Now(),
	}
}

// Key is the uniqueness key of the edge
func (e *Edge) Key() string {
	return EdgeKey(e.SourceID, e.TargetID)
}

// Touches reports whether the edge has id as either endpoint
func (e *Edge) Touches(id valueobjects.NodeID) bool {
	return e.SourceID.Equals(id) || e.TargetID.Equals(id)
}

// EdgeKey builds the (source, target) uniqueness key
func EdgeKey(source, target valueobjects.NodeID) string {
	return source.String() + "->" + target.String()
}
