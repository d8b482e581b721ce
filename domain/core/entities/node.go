package entities

import (
	"strings"
	"time"
	"unicode/utf8"

	"mindmap-backend/domain/config"
	"mindmap-backend/domain/core/valueobjects"
	pkgerrors "mindmap-backend/pkg/errors"
)

// NodeKind distinguishes the goal node from ordinary topics
type NodeKind string

const (
	KindRoot  NodeKind = "root"
	KindTopic NodeKind = "topic"
)

// ParseNodeKind maps free-form input to a kind, defaulting to topic
func ParseNodeKind(kind string) NodeKind {
	if strings.EqualFold(strings.TrimSpace(kind), string(KindRoot)) {
		return KindRoot
	}
	return KindTopic
}

// Node is a single topic in a mind map.
// Label and description are owned by the domain; position belongs to the
// layout collaborator and is only assigned provisionally here.
type Node struct {
	id          valueobjects.NodeID
	label       string
	description string
	position    valueobjects.Position
	kind        NodeKind
	imageRef    string
	createdAt   time.Time
	// seq is the creation order inside the owning graph
	seq uint64
}

// NewNode creates a node with a fresh identity
func NewNode(label, description string, kind NodeKind, position valueobjects.Position) (*Node, error) {
	return NewNodeWithConfig(label, description, kind, position, config.DefaultDomainConfig())
}

// NewNodeWithConfig creates a node with a fresh identity and configured limits
func NewNodeWithConfig(label, description string, kind NodeKind, position valueobjects.Position, cfg *config.DomainConfig) (*Node, error) {
	cfg = config.OrDefault(cfg)

	label = valueobjects.CleanLabel(label)
	description = strings.TrimSpace(description)
	if err := validateContent(label, description, cfg); err != nil {
		return nil, err
	}
	if kind == "" {
		kind = KindTopic
	}

	return &Node{
		id:          valueobjects.NewNodeID(),
		label:       label,
		description: description,
		position:    position,
		kind:        kind,
		createdAt:   time.Now(),
	}, nil
}

// ReconstructNode rebuilds a node from a snapshot with preserved identity
func ReconstructNode(
	id valueobjects.NodeID,
	label string,
	description string,
	kind NodeKind,
	imageRef string,
	position valueobjects.Position,
	createdAt time.Time,
	seq uint64,
) (*Node, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("node id cannot be empty")
	}
	label = valueobjects.CleanLabel(label)
	if label == "" {
		return nil, pkgerrors.NewValidationError("label cannot be empty")
	}
	if kind == "" {
		kind = KindTopic
	}

	return &Node{
		id:          id,
		label:       label,
		description: strings.TrimSpace(description),
		position:    position,
		kind:        kind,
		imageRef:    imageRef,
		createdAt:   createdAt,
		seq:         seq,
	}, nil
}

// ID returns the node's unique identifier
func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

// Label returns the display label
func (n *Node) Label() string {
	return n.label
}

// NormalizedLabel returns the de-duplication key
func (n *Node) NormalizedLabel() string {
	return valueobjects.NormalizeLabel(n.label)
}

// Description returns the free-text description
func (n *Node) Description() string {
	return n.description
}

// Position returns the node's provisional or layout-assigned position
func (n *Node) Position() valueobjects.Position {
	return n.position
}

// Kind returns the node kind
func (n *Node) Kind() NodeKind {
	return n.kind
}

// IsRoot reports whether this is the goal node
func (n *Node) IsRoot() bool {
	return n.kind == KindRoot
}

// ImageRef returns the optional image reference
func (n *Node) ImageRef() string {
	return n.imageRef
}

// CreatedAt returns when the node was created
func (n *Node) CreatedAt() time.Time {
	return n.createdAt
}

// Sequence returns the creation order inside the owning graph
func (n *Node) Sequence() uint64 {
	return n.seq
}

// AssignSequence stamps the creation order. Only the owning graph calls this.
func (n *Node) AssignSequence(seq uint64) {
	n.seq = seq
}

// CreatedAfter orders nodes by creation, using the graph sequence to break timestamp ties
func (n *Node) CreatedAfter(other *Node) bool {
	if n.seq != other.seq {
		return n.seq > other.seq
	}
	return n.createdAt.After(other.createdAt)
}

// Enrich replaces the description when the proposed one is non-empty and different.
// An empty proposal never clears an existing description.
func (n *Node) Enrich(description string) bool {
	description = strings.TrimSpace(description)
	if description == "" || description == n.description {
		return false
	}
	n.description = description
	return true
}

// Relabel changes the display label; empty labels are ignored
func (n *Node) Relabel(label string) bool {
	label = valueobjects.CleanLabel(label)
	if label == "" || label == n.label {
		return false
	}
	n.label = label
	return true
}

// Replace applies a direct user edit. Unlike Enrich, an explicit empty
// description is honoured.
func (n *Node) Replace(label, description, imageRef *string, cfg *config.DomainConfig) error {
	cfg = config.OrDefault(cfg)

	newLabel := n.label
	if label != nil {
		newLabel = valueobjects.CleanLabel(*label)
	}
	newDesc := n.description
	if description != nil {
		newDesc = strings.TrimSpace(*description)
	}
	if err := validateContent(newLabel, newDesc, cfg); err != nil {
		return err
	}

	n.label = newLabel
	n.description = newDesc
	if imageRef != nil {
		n.imageRef = strings.TrimSpace(*imageRef)
	}
	return nil
}

// SetImageRef attaches an image reference
func (n *Node) SetImageRef(ref string) {
	n.imageRef = strings.TrimSpace(ref)
}

// MoveTo records a new position
func (n *Node) MoveTo(position valueobjects.Position) {
	n.position = position
}

// Clone returns a deep copy with the same identity
func (n *Node) Clone() *Node {
	c := *n
	return &c
}

// Duplicate returns a copy with a fresh identity, an offset position and a
// relabeled copy marker. The duplicate is always an ordinary topic.
func (n *Node) Duplicate(offset float64, suffix string) *Node {
	return &Node{
		id:          valueobjects.NewNodeID(),
		label:       n.label + suffix,
		description: n.description,
		position:    n.position.Translate(offset, offset),
		kind:        KindTopic,
		imageRef:    n.imageRef,
		createdAt:   time.Now(),
	}
}

func validateContent(label, description string, cfg *config.DomainConfig) error {
	if label == "" {
		return pkgerrors.NewValidationError("label cannot be empty")
	}
	if utf8.RuneCountInString(label) > cfg.MaxLabelLength {
		return pkgerrors.NewValidationError("label exceeds maximum length")
	}
	if utf8.RuneCountInString(description) > cfg.MaxDescLength {
		return pkgerrors.NewValidationError("description exceeds maximum length")
	}
	return nil
}
