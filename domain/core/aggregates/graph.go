package aggregates

import (
	"time"

	"github.com/google/uuid"

	"mindmap-backend/domain/config"
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
	"mindmap-backend/domain/events"
	pkgerrors "mindmap-backend/pkg/errors"
)

// GraphID represents a unique graph identifier. One graph backs one session.
type GraphID string

// NewGraphID creates a new random GraphID
func NewGraphID() GraphID {
	return GraphID(uuid.New().String())
}

// String returns the string representation
func (id GraphID) String() string {
	return string(id)
}

// Graph is the aggregate root for a mind map.
// It owns node order (store order), edge uniqueness and the single root.
type Graph struct {
	id        GraphID
	goal      string
	rootID    valueobjects.NodeID
	nodes     []*entities.Node
	byID      map[valueobjects.NodeID]*entities.Node
	edges     []*entities.Edge
	edgeKeys  map[string]*entities.Edge
	nextSeq   uint64
	createdAt time.Time
	updatedAt time.Time
	version   int
	cfg       *config.DomainConfig
	events    []events.DomainEvent
}

// NewGraph creates a graph for a goal, with the root node already present
func NewGraph(goal string, cfg *config.DomainConfig) (*Graph, error) {
	return NewGraphWithID(NewGraphID(), goal, cfg)
}

// NewGraphWithID creates a goal graph under a caller-chosen identity
func NewGraphWithID(id GraphID, goal string, cfg *config.DomainConfig) (*Graph, error) {
	cfg = config.OrDefault(cfg)
	if id == "" {
		return nil, pkgerrors.NewValidationError("graph id required")
	}

	root, err := entities.NewNodeWithConfig(goal, "", entities.KindRoot, valueobjects.Origin(), cfg)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "invalid goal")
	}

	g := NewEmptyGraph(id, cfg)
	g.goal = root.Label()
	if err := g.AddNode(root); err != nil {
		return nil, err
	}

	g.addEvent(events.NewGraphCreated(g.id.String(), root.ID().String(), g.goal, g.version))
	return g, nil
}

// NewEmptyGraph creates a graph with no nodes
func NewEmptyGraph(id GraphID, cfg *config.DomainConfig) *Graph {
	now := time.Now()
	return &Graph{
		id:        id,
		byID:      make(map[valueobjects.NodeID]*entities.Node),
		edgeKeys:  make(map[string]*entities.Edge),
		nextSeq:   1,
		createdAt: now,
		updatedAt: now,
		version:   1,
		cfg:       config.OrDefault(cfg),
	}
}

// ReconstructGraph recreates an empty graph shell from stored metadata.
// Nodes and edges are restored with RestoreNode and RestoreEdge.
func ReconstructGraph(id GraphID, goal string, version int, createdAt, updatedAt time.Time, cfg *config.DomainConfig) (*Graph, error) {
	if id == "" {
		return nil, pkgerrors.NewValidationError("graph id required for reconstruction")
	}
	g := NewEmptyGraph(id, cfg)
	g.goal = goal
	g.version = version
	g.createdAt = createdAt
	g.updatedAt = updatedAt
	return g, nil
}

// ID returns the graph's unique identifier
func (g *Graph) ID() GraphID {
	return g.id
}

// Goal returns the goal the graph was created for
func (g *Graph) Goal() string {
	return g.goal
}

// Version returns the optimistic version counter
func (g *Graph) Version() int {
	return g.version
}

// Config returns the domain configuration the graph enforces
func (g *Graph) Config() *config.DomainConfig {
	return g.cfg
}

// CreatedAt returns when the graph was created
func (g *Graph) CreatedAt() time.Time {
	return g.createdAt
}

// UpdatedAt returns when the graph was last changed
func (g *Graph) UpdatedAt() time.Time {
	return g.updatedAt
}

// Root returns the goal node, or nil if it has been deleted
func (g *Graph) Root() *entities.Node {
	if g.rootID.IsZero() {
		return nil
	}
	return g.byID[g.rootID]
}

// RootID returns the root id (zero when there is no root)
func (g *Graph) RootID() valueobjects.NodeID {
	return g.rootID
}

// Node looks a node up by id
func (g *Graph) Node(id valueobjects.NodeID) (*entities.Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// HasNode checks if a node exists in the graph
func (g *Graph) HasNode(id valueobjects.NodeID) bool {
	_, ok := g.byID[id]
	return ok
}

// NodeByLabel finds a live node by normalized label
func (g *Graph) NodeByLabel(label string) *entities.Node {
	key := valueobjects.NormalizeLabel(label)
	if key == "" {
		return nil
	}
	for _, n := range g.nodes {
		if n.NormalizedLabel() == key {
			return n
		}
	}
	return nil
}

// Nodes returns the nodes in store order
func (g *Graph) Nodes() []*entities.Node {
	nodes := make([]*entities.Node, len(g.nodes))
	copy(nodes, g.nodes)
	return nodes
}

// Edges returns the edges in insertion order
func (g *Graph) Edges() []*entities.Edge {
	edges := make([]*entities.Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// NodeCount returns the number of live nodes
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// HasEdge reports whether the (source, target) pair exists
func (g *Graph) HasEdge(source, target valueobjects.NodeID) bool {
	_, ok := g.edgeKeys[entities.EdgeKey(source, target)]
	return ok
}

// IncomingCount returns how many edges point at id
func (g *Graph) IncomingCount(id valueobjects.NodeID) int {
	count := 0
	for _, e := range g.edges {
		if e.TargetID.Equals(id) {
			count++
		}
	}
	return count
}

// Children returns the targets of id's outgoing edges
func (g *Graph) Children(id valueobjects.NodeID) []valueobjects.NodeID {
	var children []valueobjects.NodeID
	for _, e := range g.edges {
		if e.SourceID.Equals(id) {
			children = append(children, e.TargetID)
		}
	}
	return children
}

// LatestNonRoot returns the most recently created non-root node
func (g *Graph) LatestNonRoot() *entities.Node {
	var latest *entities.Node
	for _, n := range g.nodes {
		if n.IsRoot() {
			continue
		}
		if latest == nil || n.CreatedAfter(latest) {
			latest = n
		}
	}
	return latest
}

// PlaceNear returns a provisional position around an anchor node, or
// around the canvas center when the anchor is unknown
func (g *Graph) PlaceNear(anchor valueobjects.NodeID) valueobjects.Position {
	center := valueobjects.Origin()
	if n, ok := g.byID[anchor]; ok {
		center = n.Position()
	}
	return valueobjects.RandomPositionAround(center, g.cfg.PlacementRadius)
}

// AddNode adds a node to the graph and stamps its creation order
func (g *Graph) AddNode(node *entities.Node) error {
	if node == nil {
		return pkgerrors.NewValidationError("node cannot be nil")
	}
	if _, exists := g.byID[node.ID()]; exists {
		return pkgerrors.NewConflictError("node already exists in graph")
	}
	if len(g.nodes) >= g.cfg.MaxNodesPerGraph {
		return pkgerrors.NewConflictError("maximum nodes reached")
	}
	if node.IsRoot() {
		if !g.rootID.IsZero() {
			return pkgerrors.NewConflictError("graph already has a root")
		}
		g.rootID = node.ID()
		if g.goal == "" {
			g.goal = node.Label()
		}
	}

	node.AssignSequence(g.nextSeq)
	g.nextSeq++
	g.insertNode(node)
	g.touch()

	g.addEvent(events.NewNodeCreated(g.id.String(), node.ID().String(), node.Label(), string(node.Kind()), g.version))
	return nil
}

// RestoreNode inserts a node from a snapshot, keeping its sequence
func (g *Graph) RestoreNode(node *entities.Node) error {
	if node == nil {
		return pkgerrors.NewValidationError("node cannot be nil")
	}
	if _, exists := g.byID[node.ID()]; exists {
		return pkgerrors.NewConflictError("node already exists in graph")
	}
	if node.IsRoot() {
		if !g.rootID.IsZero() {
			return pkgerrors.NewConflictError("graph already has a root")
		}
		g.rootID = node.ID()
	}
	if node.Sequence() >= g.nextSeq {
		g.nextSeq = node.Sequence() + 1
	}
	g.insertNode(node)
	return nil
}

// RestoreEdge inserts an edge from a snapshot
func (g *Graph) RestoreEdge(edge *entities.Edge) error {
	if !g.HasNode(edge.SourceID) || !g.HasNode(edge.TargetID) {
		return pkgerrors.NewValidationError("edge references unknown node")
	}
	if _, exists := g.edgeKeys[edge.Key()]; exists {
		return pkgerrors.NewConflictError("edge already exists")
	}
	g.insertEdge(edge)
	return nil
}

// Connect creates an edge between two live nodes. The only rules are the
// endpoint and uniqueness invariants.
func (g *Graph) Connect(source, target valueobjects.NodeID, origin entities.EdgeOrigin) (*entities.Edge, error) {
	if !g.HasNode(source) || !g.HasNode(target) {
		return nil, pkgerrors.NewNotFoundError("edge endpoint")
	}
	if g.HasEdge(source, target) {
		return nil, pkgerrors.NewConflictError("edge already exists")
	}
	if len(g.edges) >= g.cfg.MaxEdgesPerGraph {
		return nil, pkgerrors.NewConflictError("maximum edges reached")
	}

	edge := entities.NewEdge(source, target, origin)
	g.insertEdge(edge)
	g.touch()

	g.addEvent(events.NewEdgeAdded(g.id.String(), edge.ID.String(), source.String(), target.String(), string(origin), g.version))
	return edge, nil
}

// RemoveEdge deletes an edge by id
func (g *Graph) RemoveEdge(id valueobjects.EdgeID) (*entities.Edge, error) {
	for _, e := range g.edges {
		if e.ID == id {
			g.dropEdges(func(x *entities.Edge) bool { return x.ID == id })
			g.touch()
			g.addEvent(events.NewEdgeRemoved(g.id.String(), e.ID.String(), e.SourceID.String(), e.TargetID.String(), g.version))
			return e, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError("edge")
}

// Disconnect deletes the edge for a (source, target) pair
func (g *Graph) Disconnect(source, target valueobjects.NodeID) (*entities.Edge, error) {
	edge, ok := g.edgeKeys[entities.EdgeKey(source, target)]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("edge")
	}
	return g.RemoveEdge(edge.ID)
}

// CollectDescendants walks outgoing edges breadth-first from id and returns
// the visited set including id itself. Unknown ids yield an empty set.
func (g *Graph) CollectDescendants(id valueobjects.NodeID) []valueobjects.NodeID {
	if !g.HasNode(id) {
		return nil
	}

	visited := map[valueobjects.NodeID]bool{id: true}
	order := []valueobjects.NodeID{id}
	queue := []valueobjects.NodeID{id}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range g.edges {
			if !edge.SourceID.Equals(current) || visited[edge.TargetID] {
				continue
			}
			visited[edge.TargetID] = true
			order = append(order, edge.TargetID)
			queue = append(queue, edge.TargetID)
		}
	}

	return order
}

// DeleteCascade removes id, all of its descendants and every edge touching
// them. Deleting the root empties the graph. Unknown ids are a no-op.
func (g *Graph) DeleteCascade(id valueobjects.NodeID) ([]valueobjects.NodeID, int) {
	removed := g.CollectDescendants(id)
	if len(removed) == 0 {
		return nil, 0
	}

	doomed := make(map[valueobjects.NodeID]bool, len(removed))
	for _, nid := range removed {
		doomed[nid] = true
	}

	edgesRemoved := g.dropEdges(func(e *entities.Edge) bool {
		return doomed[e.SourceID] || doomed[e.TargetID]
	})

	kept := g.nodes[:0]
	for _, n := range g.nodes {
		if doomed[n.ID()] {
			delete(g.byID, n.ID())
			continue
		}
		kept = append(kept, n)
	}
	// clear the tail so removed nodes can be collected
	for i := len(kept); i < len(g.nodes); i++ {
		g.nodes[i] = nil
	}
	g.nodes = kept

	if doomed[g.rootID] {
		g.rootID = valueobjects.NodeID{}
		g.goal = ""
	}
	g.touch()

	ids := make([]string, len(removed))
	for i, nid := range removed {
		ids[i] = nid.String()
	}
	g.addEvent(events.NewNodeDeleted(g.id.String(), id.String(), ids, edgesRemoved, g.version))

	return removed, edgesRemoved
}

// DuplicateNode clones a node with a fresh id, an offset position and a copy
// marker. No edges are copied.
func (g *Graph) DuplicateNode(id valueobjects.NodeID) (*entities.Node, error) {
	source, ok := g.byID[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("node")
	}

	dup := source.Duplicate(g.cfg.DuplicateOffset, g.cfg.CopySuffix)
	if err := g.AddNode(dup); err != nil {
		return nil, err
	}
	g.addEvent(events.NewNodeDuplicated(g.id.String(), id.String(), dup.ID().String(), g.version))
	return dup, nil
}

// UpdateNode applies a direct user edit to a node
func (g *Graph) UpdateNode(id valueobjects.NodeID, label, description, imageRef *string) (*entities.Node, error) {
	node, ok := g.byID[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("node")
	}
	if label != nil {
		if other := g.NodeByLabel(*label); other != nil && !other.ID().Equals(id) {
			return nil, pkgerrors.NewConflictError("another node already uses this label")
		}
	}
	if err := node.Replace(label, description, imageRef, g.cfg); err != nil {
		return nil, err
	}
	if node.IsRoot() {
		g.goal = node.Label()
	}
	g.touch()

	g.addEvent(events.NewNodeUpdated(g.id.String(), id.String(), node.Label(), g.version))
	return node, nil
}

// EnrichNode merges proposed content into an existing node: non-empty
// values win, empty values never clear. Returns whether anything changed.
func (g *Graph) EnrichNode(id valueobjects.NodeID, label, description string) bool {
	node, ok := g.byID[id]
	if !ok {
		return false
	}

	changed := false
	if label != "" {
		if other := g.NodeByLabel(label); other == nil || other.ID().Equals(id) {
			changed = node.Relabel(label) || changed
		}
	}
	changed = node.Enrich(description) || changed
	if !changed {
		return false
	}

	if node.IsRoot() {
		g.goal = node.Label()
	}
	g.touch()
	g.addEvent(events.NewNodeEnriched(g.id.String(), id.String(), node.Label(), node.Description(), g.version))
	return true
}

// RecordMerge appends the merge summary event
func (g *Graph) RecordMerge(created, updated, accepted, dropped, orphans int) {
	g.addEvent(events.NewGraphMerged(g.id.String(), created, updated, accepted, dropped, orphans, g.version))
}

// Clone returns a deep copy with the same identity and no pending events.
// Transitions mutate a clone and swap it in, so readers never observe a
// half-applied change.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		id:        g.id,
		goal:      g.goal,
		rootID:    g.rootID,
		nodes:     make([]*entities.Node, 0, len(g.nodes)),
		byID:      make(map[valueobjects.NodeID]*entities.Node, len(g.nodes)),
		edges:     make([]*entities.Edge, 0, len(g.edges)),
		edgeKeys:  make(map[string]*entities.Edge, len(g.edges)),
		nextSeq:   g.nextSeq,
		createdAt: g.createdAt,
		updatedAt: g.updatedAt,
		version:   g.version,
		cfg:       g.cfg,
	}
	for _, n := range g.nodes {
		c.insertNode(n.Clone())
	}
	for _, e := range g.edges {
		ec := *e
		c.insertEdge(&ec)
	}
	return c
}

// Validate ensures graph invariants
func (g *Graph) Validate() error {
	roots := 0
	for _, n := range g.nodes {
		if n.IsRoot() {
			roots++
		}
	}
	if roots > 1 {
		return pkgerrors.NewInternalError("graph has more than one root")
	}
	if !g.rootID.IsZero() && !g.HasNode(g.rootID) {
		return pkgerrors.NewInternalError("root id references missing node")
	}

	seen := make(map[string]bool, len(g.edges))
	for _, edge := range g.edges {
		if !g.HasNode(edge.SourceID) {
			return pkgerrors.NewInternalError("edge references non-existent source node")
		}
		if !g.HasNode(edge.TargetID) {
			return pkgerrors.NewInternalError("edge references non-existent target node")
		}
		if seen[edge.Key()] {
			return pkgerrors.NewInternalError("duplicate edge")
		}
		seen[edge.Key()] = true
	}

	if len(g.byID) != len(g.nodes) {
		return pkgerrors.NewInternalError("node index mismatch")
	}
	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (g *Graph) GetUncommittedEvents() []events.DomainEvent {
	out := make([]events.DomainEvent, len(g.events))
	copy(out, g.events)
	return out
}

// MarkEventsAsCommitted clears all uncommitted events
func (g *Graph) MarkEventsAsCommitted() {
	g.events = nil
}

// Private helper methods

func (g *Graph) insertNode(node *entities.Node) {
	g.nodes = append(g.nodes, node)
	g.byID[node.ID()] = node
}

func (g *Graph) insertEdge(edge *entities.Edge) {
	g.edges = append(g.edges, edge)
	g.edgeKeys[edge.Key()] = edge
}

// dropEdges removes every edge matching pred and returns how many went
func (g *Graph) dropEdges(pred func(*entities.Edge) bool) int {
	kept := make([]*entities.Edge, 0, len(g.edges))
	removed := 0
	for _, e := range g.edges {
		if pred(e) {
			delete(g.edgeKeys, e.Key())
			removed++
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept
	return removed
}

func (g *Graph) touch() {
	g.updatedAt = time.Now()
	g.version++
}

func (g *Graph) addEvent(event events.DomainEvent) {
	g.events = append(g.events, event)
}
