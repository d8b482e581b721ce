package valueobjects

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// NodeID is a value object representing a unique node identifier
// Value objects are immutable and have no identity beyond their value
type NodeID struct {
	value string
}

// NewNodeID creates a new random NodeID
func NewNodeID() NodeID {
	return NodeID{value: uuid.New().String()}
}

// NodeIDFromString wraps an existing identifier. Persistent ids are opaque:
// snapshots written by other collaborators may carry non-UUID ids.
func NodeIDFromString(id string) (NodeID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	return NodeID{value: id}, nil
}

// MustNodeID is NodeIDFromString for trusted input; empty input yields the zero NodeID
func MustNodeID(id string) NodeID {
	return NodeID{value: strings.TrimSpace(id)}
}

// String returns the string representation of the NodeID
func (id NodeID) String() string {
	return id.value
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id NodeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return errors.New("NodeID must be a string")
	}
	id.value = value
	return nil
}

// EdgeID identifies an edge
type EdgeID string

// NewEdgeID creates a new random EdgeID
func NewEdgeID() EdgeID {
	return EdgeID(uuid.New().String())
}

// String returns the string representation
func (id EdgeID) String() string {
	return string(id)
}
