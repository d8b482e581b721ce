package events

import (
	"time"
)

// SourceBackend identifies this service as the publisher of domain events
const SourceBackend = "mindmap.backend"

// Event types
const (
	TypeGraphCreated  = "graph.created"
	TypeNodeCreated   = "graph.node_created"
	TypeNodeEnriched  = "graph.node_enriched"
	TypeNodeUpdated   = "graph.node_updated"
	TypeNodeDeleted   = "graph.node_deleted"
	TypeNodeDuplicate = "graph.node_duplicated"
	TypeEdgeAdded     = "graph.edge_added"
	TypeEdgeRemoved   = "graph.edge_removed"
	TypeGraphMerged   = "graph.merged"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(graphID, eventType string, version int) BaseEvent {
	return BaseEvent{
		AggregateID: graphID,
		EventType:   eventType,
		Timestamp:   time.Now(),
		Version:     version,
	}
}

// GraphCreated is raised when a goal is set and the root node is created
type GraphCreated struct {
	BaseEvent
	RootID string `json:"root_id"`
	Goal   string `json:"goal"`
}

// NewGraphCreated creates a GraphCreated event
func NewGraphCreated(graphID, rootID, goal string, version int) GraphCreated {
	return GraphCreated{BaseEvent: newBase(graphID, TypeGraphCreated, version), RootID: rootID, Goal: goal}
}

// NodeCreated is raised when a node enters the graph
type NodeCreated struct {
	BaseEvent
	NodeID string `json:"node_id"`
	Label  string `json:"label"`
	Kind   string `json:"kind"`
}

// NewNodeCreated creates a NodeCreated event
func NewNodeCreated(graphID, nodeID, label, kind string, version int) NodeCreated {
	return NodeCreated{BaseEvent: newBase(graphID, TypeNodeCreated, version), NodeID: nodeID, Label: label, Kind: kind}
}

// NodeEnriched is raised when a merge updates an existing node
type NodeEnriched struct {
	BaseEvent
	NodeID      string `json:"node_id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// NewNodeEnriched creates a NodeEnriched event
func NewNodeEnriched(graphID, nodeID, label, description string, version int) NodeEnriched {
	return NodeEnriched{BaseEvent: newBase(graphID, TypeNodeEnriched, version), NodeID: nodeID, Label: label, Description: description}
}

// NodeUpdated is raised on a direct user edit
type NodeUpdated struct {
	BaseEvent
	NodeID string `json:"node_id"`
	Label  string `json:"label"`
}

// NewNodeUpdated creates a NodeUpdated event
func NewNodeUpdated(graphID, nodeID, label string, version int) NodeUpdated {
	return NodeUpdated{BaseEvent: newBase(graphID, TypeNodeUpdated, version), NodeID: nodeID, Label: label}
}

// NodeDeleted is raised once per cascading delete
type NodeDeleted struct {
	BaseEvent
	NodeID       string   `json:"node_id"`
	RemovedNodes []string `json:"removed_nodes"`
	RemovedEdges int      `json:"removed_edges"`
}

// NewNodeDeleted creates a NodeDeleted event
func NewNodeDeleted(graphID, nodeID string, removedNodes []string, removedEdges, version int) NodeDeleted {
	return NodeDeleted{
		BaseEvent:    newBase(graphID, TypeNodeDeleted, version),
		NodeID:       nodeID,
		RemovedNodes: removedNodes,
		RemovedEdges: removedEdges,
	}
}

// NodeDuplicated is raised when a user clones a node
type NodeDuplicated struct {
	BaseEvent
	SourceNodeID string `json:"source_node_id"`
	NewNodeID    string `json:"new_node_id"`
}

// NewNodeDuplicated creates a NodeDuplicated event
func NewNodeDuplicated(graphID, sourceID, newID string, version int) NodeDuplicated {
	return NodeDuplicated{BaseEvent: newBase(graphID, TypeNodeDuplicate, version), SourceNodeID: sourceID, NewNodeID: newID}
}

// EdgeAdded is raised when two nodes are connected
type EdgeAdded struct {
	BaseEvent
	EdgeID   string `json:"edge_id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Origin   string `json:"origin"`
}

// NewEdgeAdded creates an EdgeAdded event
func NewEdgeAdded(graphID, edgeID, sourceID, targetID, origin string, version int) EdgeAdded {
	return EdgeAdded{
		BaseEvent: newBase(graphID, TypeEdgeAdded, version),
		EdgeID:    edgeID,
		SourceID:  sourceID,
		TargetID:  targetID,
		Origin:    origin,
	}
}

// EdgeRemoved is raised on a manual disconnect
type EdgeRemoved struct {
	BaseEvent
	EdgeID   string `json:"edge_id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// NewEdgeRemoved creates an EdgeRemoved event
func NewEdgeRemoved(graphID, edgeID, sourceID, targetID string, version int) EdgeRemoved {
	return EdgeRemoved{BaseEvent: newBase(graphID, TypeEdgeRemoved, version), EdgeID: edgeID, SourceID: sourceID, TargetID: targetID}
}

// GraphMerged summarizes one reconciliation
type GraphMerged struct {
	BaseEvent
	Created         int `json:"created"`
	Updated         int `json:"updated"`
	EdgesAccepted   int `json:"edges_accepted"`
	EdgesDropped    int `json:"edges_dropped"`
	OrphansAttached int `json:"orphans_attached"`
}

// NewGraphMerged creates a GraphMerged event
func NewGraphMerged(graphID string, created, updated, accepted, dropped, orphans, version int) GraphMerged {
	return GraphMerged{
		BaseEvent:       newBase(graphID, TypeGraphMerged, version),
		Created:         created,
		Updated:         updated,
		EdgesAccepted:   accepted,
		EdgesDropped:    dropped,
		OrphansAttached: orphans,
	}
}
