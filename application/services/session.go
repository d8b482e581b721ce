package services

import (
	"sort"
	"time"

	"mindmap-backend/application/ports"
	"mindmap-backend/domain/config"
	"mindmap-backend/domain/core/aggregates"
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
	pkgerrors "mindmap-backend/pkg/errors"
)

// Turn is one conversation message
type Turn struct {
	Role    string
	Content string
	At      time.Time
}

// Session owns one graph plus the chat state around it
type Session struct {
	id          string
	graph       *aggregates.Graph
	turns       []Turn
	focusID     valueobjects.NodeID
	suggestions []string
	version     int
	createdAt   time.Time
	updatedAt   time.Time
}

func newSession(graph *aggregates.Graph, now time.Time) *Session {
	return &Session{
		id:          graph.ID().String(),
		graph:       graph,
		suggestions: []string{},
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}
}

// clone copies the session so a transition can mutate it off to the side
func (s *Session) clone() *Session {
	c := *s
	c.graph = s.graph.Clone()
	c.turns = append([]Turn(nil), s.turns...)
	c.suggestions = append([]string(nil), s.suggestions...)
	return &c
}

func (s *Session) addTurn(role, content string, at time.Time) {
	s.turns = append(s.turns, Turn{Role: role, Content: content, At: at})
}

// lastUserMessage returns the newest user turn inside the trailing window
func (s *Session) lastUserMessage(window int) string {
	start := 0
	if window > 0 && len(s.turns) > window {
		start = len(s.turns) - window
	}
	for i := len(s.turns) - 1; i >= start; i-- {
		if s.turns[i].Role == ports.RoleUser {
			return s.turns[i].Content
		}
	}
	return ""
}

// window returns the trailing conversation turns
func (s *Session) window(size int) []Turn {
	if size <= 0 || len(s.turns) <= size {
		return s.turns
	}
	return s.turns[len(s.turns)-size:]
}

// PositionView is a 2D coordinate
type PositionView struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeView is the rendering collaborator's view of a node
type NodeView struct {
	ID          string       `json:"id"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
	Position    PositionView `json:"position"`
	Kind        string       `json:"kind"`
	ImageRef    string       `json:"imageRef,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// EdgeView is the rendering collaborator's view of an edge
type EdgeView struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Origin string `json:"origin"`
}

// TurnView is a conversation turn
type TurnView struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// SessionView is an immutable copy of a session's state
type SessionView struct {
	ID          string     `json:"id"`
	Goal        string     `json:"goal"`
	RootID      string     `json:"rootId,omitempty"`
	FocusID     string     `json:"focusId,omitempty"`
	Nodes       []NodeView `json:"nodes"`
	Edges       []EdgeView `json:"edges"`
	Turns       []TurnView `json:"turns"`
	Suggestions []string   `json:"suggestions"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Node finds a node in the view by id
func (v *SessionView) Node(id string) (NodeView, bool) {
	for _, n := range v.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeView{}, false
}

// NodeByLabel finds a node in the view by normalized label
func (v *SessionView) NodeByLabel(label string) (NodeView, bool) {
	key := valueobjects.NormalizeLabel(label)
	for _, n := range v.Nodes {
		if valueobjects.NormalizeLabel(n.Label) == key {
			return n, true
		}
	}
	return NodeView{}, false
}

func nodeView(n *entities.Node) NodeView {
	return NodeView{
		ID:          n.ID().String(),
		Label:       n.Label(),
		Description: n.Description(),
		Position:    PositionView{X: n.Position().X(), Y: n.Position().Y()},
		Kind:        string(n.Kind()),
		ImageRef:    n.ImageRef(),
		CreatedAt:   n.CreatedAt(),
	}
}

func edgeView(e *entities.Edge) EdgeView {
	return EdgeView{
		ID:     e.ID.String(),
		Source: e.SourceID.String(),
		Target: e.TargetID.String(),
		Origin: string(e.Origin),
	}
}

func (s *Session) view() *SessionView {
	v := &SessionView{
		ID:          s.id,
		Goal:        s.graph.Goal(),
		Nodes:       make([]NodeView, 0, s.graph.NodeCount()),
		Edges:       make([]EdgeView, 0, s.graph.EdgeCount()),
		Turns:       make([]TurnView, 0, len(s.turns)),
		Suggestions: append([]string{}, s.suggestions...),
		Version:     s.version,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
	if !s.graph.RootID().IsZero() {
		v.RootID = s.graph.RootID().String()
	}
	if !s.focusID.IsZero() {
		v.FocusID = s.focusID.String()
	}
	for _, n := range s.graph.Nodes() {
		v.Nodes = append(v.Nodes, nodeView(n))
	}
	for _, e := range s.graph.Edges() {
		v.Edges = append(v.Edges, edgeView(e))
	}
	for _, t := range s.turns {
		v.Turns = append(v.Turns, TurnView(t))
	}
	return v
}

func (s *Session) summary() ports.SessionSummary {
	return ports.SessionSummary{
		SessionID: s.id,
		Goal:      s.graph.Goal(),
		NodeCount: s.graph.NodeCount(),
		Version:   s.version,
		UpdatedAt: s.updatedAt,
	}
}

// toSnapshot serializes a session without UI-only fields
func (s *Session) toSnapshot() *ports.Snapshot {
	snap := &ports.Snapshot{
		SessionID:    s.id,
		Goal:         s.graph.Goal(),
		Turns:        make([]ports.SnapshotTurn, 0, len(s.turns)),
		Nodes:        make([]ports.SnapshotNode, 0, s.graph.NodeCount()),
		Edges:        make([]ports.SnapshotEdge, 0, s.graph.EdgeCount()),
		Suggestions:  append([]string{}, s.suggestions...),
		Version:      s.version,
		GraphVersion: s.graph.Version(),
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
	}
	if !s.focusID.IsZero() {
		snap.FocusID = s.focusID.String()
	}
	for _, t := range s.turns {
		snap.Turns = append(snap.Turns, ports.SnapshotTurn(t))
	}
	for _, n := range s.graph.Nodes() {
		snap.Nodes = append(snap.Nodes, ports.SnapshotNode{
			ID:          n.ID().String(),
			Label:       n.Label(),
			Description: n.Description(),
			Kind:        string(n.Kind()),
			ImageRef:    n.ImageRef(),
			CreatedAt:   n.CreatedAt(),
			Seq:         n.Sequence(),
		})
	}
	for _, e := range s.graph.Edges() {
		snap.Edges = append(snap.Edges, ports.SnapshotEdge{
			ID:     e.ID.String(),
			Source: e.SourceID.String(),
			Target: e.TargetID.String(),
			Origin: string(e.Origin),
		})
	}
	return snap
}

// sessionFromSnapshot rehydrates a session. Positions are not persisted, so
// every node gets a fresh provisional position next to its first parent.
func sessionFromSnapshot(snap *ports.Snapshot, cfg *config.DomainConfig) (*Session, error) {
	if snap == nil {
		return nil, pkgerrors.NewValidationError("snapshot is nil")
	}
	g, err := aggregates.ReconstructGraph(aggregates.GraphID(snap.SessionID), snap.Goal, snap.GraphVersion, snap.CreatedAt, snap.UpdatedAt, cfg)
	if err != nil {
		return nil, err
	}

	nodes := append([]ports.SnapshotNode(nil), snap.Nodes...)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Seq < nodes[j].Seq })

	for _, sn := range nodes {
		id, err := valueobjects.NodeIDFromString(sn.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "invalid node id in snapshot")
		}
		node, err := entities.ReconstructNode(id, sn.Label, sn.Description, entities.ParseNodeKind(sn.Kind), sn.ImageRef, valueobjects.Origin(), sn.CreatedAt, sn.Seq)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "invalid node in snapshot")
		}
		if err := g.RestoreNode(node); err != nil {
			return nil, pkgerrors.Wrap(err, "restore node")
		}
	}

	for _, se := range snap.Edges {
		source, errS := valueobjects.NodeIDFromString(se.Source)
		target, errT := valueobjects.NodeIDFromString(se.Target)
		if errS != nil || errT != nil {
			return nil, pkgerrors.NewValidationError("invalid edge endpoint in snapshot")
		}
		origin := entities.EdgeOrigin(se.Origin)
		if origin == "" {
			origin = entities.OriginMerge
		}
		edge := &entities.Edge{
			ID:       valueobjects.EdgeID(se.ID),
			SourceID: source,
			TargetID: target,
			Origin:   origin,
		}
		if edge.ID == "" {
			edge.ID = valueobjects.NewEdgeID()
		}
		if err := g.RestoreEdge(edge); err != nil {
			return nil, pkgerrors.Wrap(err, "restore edge")
		}
	}

	layoutFromParents(g)

	s := &Session{
		id:          snap.SessionID,
		graph:       g,
		turns:       make([]Turn, 0, len(snap.Turns)),
		suggestions: append([]string{}, snap.Suggestions...),
		version:     snap.Version,
		createdAt:   snap.CreatedAt,
		updatedAt:   snap.UpdatedAt,
	}
	for _, t := range snap.Turns {
		s.turns = append(s.turns, Turn(t))
	}
	if snap.FocusID != "" {
		if id, err := valueobjects.NodeIDFromString(snap.FocusID); err == nil && g.HasNode(id) {
			s.focusID = id
		}
	}
	return s, g.Validate()
}

// layoutFromParents places nodes in creation order next to their first parent
func layoutFromParents(g *aggregates.Graph) {
	parent := make(map[valueobjects.NodeID]valueobjects.NodeID)
	for _, e := range g.Edges() {
		if _, seen := parent[e.TargetID]; !seen {
			parent[e.TargetID] = e.SourceID
		}
	}
	for _, n := range g.Nodes() {
		if n.IsRoot() {
			continue
		}
		n.MoveTo(g.PlaceNear(parent[n.ID()]))
	}
}
