package ports

import (
	"context"
	"time"

	"mindmap-backend/domain/events"
)

// Chat roles used in conversation turns and completion requests
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one role-tagged message sent to the completion service
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is the opaque text-completion service
type Completer interface {
	// Complete returns the raw model output for a conversation
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// ModelSelection names the completion backend in use
type ModelSelection struct {
	BaseURL     string  `json:"baseUrl"`
	Model       string  `json:"model"`
	APIKey      string  `json:"-"`
	Temperature float64 `json:"temperature"`
}

// ModelSwitcher swaps the completion backend at runtime
type ModelSwitcher interface {
	// Current returns the active selection
	Current() ModelSelection

	// Switch replaces the active selection; the next completion uses it
	Switch(ctx context.Context, selection ModelSelection) error
}

// SnapshotTurn is a persisted conversation turn
type SnapshotTurn struct {
	Role    string    `json:"role" dynamodbav:"role"`
	Content string    `json:"content" dynamodbav:"content"`
	At      time.Time `json:"at" dynamodbav:"at"`
}

// SnapshotNode is a persisted node. Positions are a layout concern and are
// not stored.
type SnapshotNode struct {
	ID          string    `json:"id" dynamodbav:"id"`
	Label       string    `json:"label" dynamodbav:"label"`
	Description string    `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Kind        string    `json:"kind" dynamodbav:"kind"`
	ImageRef    string    `json:"imageRef,omitempty" dynamodbav:"imageRef,omitempty"`
	CreatedAt   time.Time `json:"createdAt" dynamodbav:"createdAt"`
	Seq         uint64    `json:"seq" dynamodbav:"seq"`
}

// SnapshotEdge is a persisted edge
type SnapshotEdge struct {
	ID     string `json:"id" dynamodbav:"id"`
	Source string `json:"source" dynamodbav:"source"`
	Target string `json:"target" dynamodbav:"target"`
	Origin string `json:"origin,omitempty" dynamodbav:"origin,omitempty"`
}

// Snapshot is the serializable state of one session
type Snapshot struct {
	SessionID    string         `json:"sessionId" dynamodbav:"sessionId"`
	Goal         string         `json:"goal" dynamodbav:"goal"`
	Turns        []SnapshotTurn `json:"turns" dynamodbav:"turns"`
	Nodes        []SnapshotNode `json:"nodes" dynamodbav:"nodes"`
	Edges        []SnapshotEdge `json:"edges" dynamodbav:"edges"`
	FocusID      string         `json:"focusId,omitempty" dynamodbav:"focusId,omitempty"`
	Suggestions  []string       `json:"suggestions" dynamodbav:"suggestions"`
	Version      int            `json:"version" dynamodbav:"version"`
	GraphVersion int            `json:"graphVersion" dynamodbav:"graphVersion"`
	CreatedAt    time.Time      `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt" dynamodbav:"updatedAt"`
}

// SessionSummary is a listing entry
type SessionSummary struct {
	SessionID string    `json:"sessionId" dynamodbav:"sessionId"`
	Goal      string    `json:"goal" dynamodbav:"goal"`
	NodeCount int       `json:"nodeCount" dynamodbav:"nodeCount"`
	Version   int       `json:"version" dynamodbav:"version"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// SnapshotRepository persists session snapshots
type SnapshotRepository interface {
	// Save stores a snapshot. Implementations reject a snapshot whose
	// version is not newer than the stored one with a CONFLICT error.
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load returns the snapshot or a NOT_FOUND error
	Load(ctx context.Context, sessionID string) (*Snapshot, error)

	// List returns summaries of all stored sessions, most recent first
	List(ctx context.Context) ([]SessionSummary, error)

	// Delete removes a snapshot; missing ids are not an error
	Delete(ctx context.Context, sessionID string) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// EventBus publishes graph events to rendering and persistence collaborators
type EventBus interface {
	EventPublisher

	// Subscribe registers a handler for an event type; "*" receives all events
	Subscribe(eventType string, handler EventHandler) error
}

// EventHandler processes published events
type EventHandler interface {
	Handle(ctx context.Context, event events.DomainEvent) error
}

// EventHandlerFunc adapts a function to EventHandler
type EventHandlerFunc func(ctx context.Context, event events.DomainEvent) error

// Handle implements EventHandler
func (f EventHandlerFunc) Handle(ctx context.Context, event events.DomainEvent) error {
	return f(ctx, event)
}
