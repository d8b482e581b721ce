package services

import (
	"strings"
	"unicode/utf8"

	"mindmap-backend/domain/config"
	"mindmap-backend/domain/core/aggregates"
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
)

// Drop reasons reported by a merge
const (
	DropEmptyLabel      = "empty_label"
	DropDuplicateID     = "duplicate_local_id"
	DropNodeLimit       = "node_limit"
	DropUnknownEndpoint = "unknown_endpoint"
	DropSelfLoop        = "self_loop"
	DropDuplicateEdge   = "duplicate_edge"
	DropEdgeLimit       = "edge_limit"
)

// ReportEdge is an edge accepted during a merge
type ReportEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Origin string `json:"origin"`
}

// DroppedEdge is a proposed edge that was filtered out
type DroppedEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// DroppedNode is a proposed node that was filtered out
type DroppedNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// MergeReport describes what one merge did to the graph
type MergeReport struct {
	Created         []string          `json:"created"`
	Updated         []string          `json:"updated"`
	EdgesAccepted   []ReportEdge      `json:"edgesAccepted"`
	EdgesDropped    []DroppedEdge     `json:"edgesDropped"`
	NodesDropped    []DroppedNode     `json:"nodesDropped"`
	OrphansAttached []string          `json:"orphansAttached"`
	IDMap           map[string]string `json:"idMap"`
}

// Changed reports whether the merge altered the graph
func (r MergeReport) Changed() bool {
	return len(r.Created) > 0 || len(r.Updated) > 0 || len(r.EdgesAccepted) > 0 || len(r.OrphansAttached) > 0
}

// GraphReconciler merges proposals into graphs
type GraphReconciler struct {
	cfg *config.DomainConfig
}

// NewGraphReconciler creates a reconciler
func NewGraphReconciler(cfg *config.DomainConfig) *GraphReconciler {
	return &GraphReconciler{cfg: config.OrDefault(cfg)}
}

type mergeState struct {
	out      *aggregates.Graph
	idMap    map[string]valueobjects.NodeID
	byLabel  map[string]valueobjects.NodeID
	enriched map[valueobjects.NodeID]bool
	created  []valueobjects.NodeID
	isNew    map[valueobjects.NodeID]bool
	report   MergeReport
}

// Merge folds a proposal into a copy of g and returns the copy. g itself is
// never modified. Bad entries are filtered and reported, never fatal.
func (r *GraphReconciler) Merge(p Proposal, g *aggregates.Graph) (*aggregates.Graph, MergeReport) {
	st := &mergeState{
		out:      g.Clone(),
		idMap:    make(map[string]valueobjects.NodeID),
		byLabel:  make(map[string]valueobjects.NodeID),
		enriched: make(map[valueobjects.NodeID]bool),
		isNew:    make(map[valueobjects.NodeID]bool),
		report: MergeReport{
			Created:         []string{},
			Updated:         []string{},
			EdgesAccepted:   []ReportEdge{},
			EdgesDropped:    []DroppedEdge{},
			NodesDropped:    []DroppedNode{},
			OrphansAttached: []string{},
		},
	}

	// the root marker always denotes the persistent root
	if root := st.out.Root(); root != nil {
		st.idMap[r.cfg.RootMarker] = root.ID()
	}
	for _, n := range st.out.Nodes() {
		key := n.NormalizedLabel()
		if _, exists := st.byLabel[key]; !exists {
			st.byLabel[key] = n.ID()
		}
	}

	for _, pn := range p.Nodes {
		r.mergeNode(st, pn)
	}
	for _, pe := range p.Edges {
		r.mergeEdge(st, pe)
	}
	r.attachOrphans(st)
	r.placeCreated(st)

	st.report.IDMap = make(map[string]string, len(st.idMap))
	for local, id := range st.idMap {
		st.report.IDMap[local] = id.String()
	}

	st.out.RecordMerge(
		len(st.report.Created),
		len(st.report.Updated),
		len(st.report.EdgesAccepted),
		len(st.report.EdgesDropped),
		len(st.report.OrphansAttached),
	)
	return st.out, st.report
}

func (r *GraphReconciler) mergeNode(st *mergeState, pn ProposedNode) {
	localID := strings.TrimSpace(pn.ID)
	label := truncateRunes(valueobjects.CleanLabel(pn.Label), r.cfg.MaxLabelLength)
	desc := truncateRunes(strings.TrimSpace(pn.Description), r.cfg.MaxDescLength)

	if r.isRootMarker(localID) {
		if root := st.out.Root(); root != nil {
			r.updateRoot(st, root, label, desc)
			return
		}
	}

	if label == "" {
		st.report.NodesDropped = append(st.report.NodesDropped, DroppedNode{ID: localID, Label: pn.Label, Reason: DropEmptyLabel})
		return
	}

	if localID != "" {
		if _, mapped := st.idMap[localID]; mapped {
			st.report.NodesDropped = append(st.report.NodesDropped, DroppedNode{ID: localID, Label: label, Reason: DropDuplicateID})
			return
		}
		// a proposal that echoes a live id is updating that node
		if id, err := valueobjects.NodeIDFromString(localID); err == nil && st.out.HasNode(id) {
			st.idMap[localID] = id
			r.enrichOnce(st, id, desc)
			return
		}
	}

	key := valueobjects.NormalizeLabel(label)
	if existing, ok := st.byLabel[key]; ok {
		if localID != "" {
			st.idMap[localID] = existing
		}
		r.enrichOnce(st, existing, desc)
		return
	}

	kind := entities.KindTopic
	if r.isRootMarker(localID) {
		kind = entities.KindRoot
	}
	node, err := entities.NewNodeWithConfig(label, desc, kind, st.out.PlaceNear(st.out.RootID()), r.cfg)
	if err == nil {
		err = st.out.AddNode(node)
	}
	if err != nil {
		st.report.NodesDropped = append(st.report.NodesDropped, DroppedNode{ID: localID, Label: label, Reason: DropNodeLimit})
		return
	}

	id := node.ID()
	if localID != "" {
		st.idMap[localID] = id
	}
	if kind == entities.KindRoot {
		st.idMap[r.cfg.RootMarker] = id
	}
	st.byLabel[key] = id
	st.isNew[id] = true
	st.created = append(st.created, id)
	if desc != "" {
		st.enriched[id] = true
	}
	st.report.Created = append(st.report.Created, id.String())
}

// updateRoot applies non-empty proposed values to the root in place
func (r *GraphReconciler) updateRoot(st *mergeState, root *entities.Node, label, desc string) {
	oldKey := root.NormalizedLabel()
	if !st.out.EnrichNode(root.ID(), label, desc) {
		return
	}
	if newKey := root.NormalizedLabel(); newKey != oldKey {
		if st.byLabel[oldKey] == root.ID() {
			delete(st.byLabel, oldKey)
		}
		st.byLabel[newKey] = root.ID()
	}
	st.enriched[root.ID()] = true
	r.markUpdated(st, root.ID())
}

// enrichOnce updates a matched node's description at most once per merge
func (r *GraphReconciler) enrichOnce(st *mergeState, id valueobjects.NodeID, desc string) {
	if desc == "" || st.enriched[id] {
		return
	}
	if st.out.EnrichNode(id, "", desc) {
		st.enriched[id] = true
		if !st.isNew[id] {
			r.markUpdated(st, id)
		}
	}
}

func (r *GraphReconciler) markUpdated(st *mergeState, id valueobjects.NodeID) {
	s := id.String()
	for _, u := range st.report.Updated {
		if u == s {
			return
		}
	}
	st.report.Updated = append(st.report.Updated, s)
}

func (r *GraphReconciler) mergeEdge(st *mergeState, pe ProposedEdge) {
	drop := func(reason string) {
		st.report.EdgesDropped = append(st.report.EdgesDropped, DroppedEdge{Source: pe.Source, Target: pe.Target, Reason: reason})
	}

	source, okSrc := r.resolve(st, pe.Source)
	target, okTgt := r.resolve(st, pe.Target)
	if !okSrc || !okTgt {
		drop(DropUnknownEndpoint)
		return
	}
	if source.Equals(target) {
		drop(DropSelfLoop)
		return
	}
	if st.out.HasEdge(source, target) {
		drop(DropDuplicateEdge)
		return
	}

	origin := entities.OriginMerge
	if pe.Anchored {
		origin = entities.OriginAnchor
	}
	edge, err := st.out.Connect(source, target, origin)
	if err != nil {
		drop(DropEdgeLimit)
		return
	}
	st.report.EdgesAccepted = append(st.report.EdgesAccepted, reportEdge(edge))
}

// resolve maps a proposal-local id through the id map; unmapped ids pass
// through and must name a live node
func (r *GraphReconciler) resolve(st *mergeState, ref string) (valueobjects.NodeID, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return valueobjects.NodeID{}, false
	}
	if r.isRootMarker(ref) {
		ref = r.cfg.RootMarker
	}
	if id, ok := st.idMap[ref]; ok {
		return id, st.out.HasNode(id)
	}
	id, err := valueobjects.NodeIDFromString(ref)
	if err != nil || !st.out.HasNode(id) {
		return valueobjects.NodeID{}, false
	}
	return id, true
}

// attachOrphans connects new nodes without an incoming edge to the root,
// then attaches any new node still cut off from the rest of the graph
// (a cycle made only of new nodes)
func (r *GraphReconciler) attachOrphans(st *mergeState) {
	root := st.out.Root()
	if root == nil || len(st.created) == 0 {
		return
	}

	attach := func(id valueobjects.NodeID) {
		if id.Equals(root.ID()) || st.out.HasEdge(root.ID(), id) {
			return
		}
		edge, err := st.out.Connect(root.ID(), id, entities.OriginOrphan)
		if err != nil {
			return
		}
		st.report.OrphansAttached = append(st.report.OrphansAttached, id.String())
		st.report.EdgesAccepted = append(st.report.EdgesAccepted, reportEdge(edge))
	}

	for _, id := range st.created {
		if st.out.IncomingCount(id) == 0 {
			attach(id)
		}
	}

	reached := make(map[valueobjects.NodeID]bool)
	var seeds []valueobjects.NodeID
	for _, n := range st.out.Nodes() {
		if !st.isNew[n.ID()] || n.IsRoot() {
			seeds = append(seeds, n.ID())
		}
	}
	r.markReachable(st.out, seeds, reached)

	for _, id := range st.created {
		if reached[id] {
			continue
		}
		attach(id)
		r.markReachable(st.out, []valueobjects.NodeID{id}, reached)
	}
}

func (r *GraphReconciler) markReachable(g *aggregates.Graph, seeds []valueobjects.NodeID, reached map[valueobjects.NodeID]bool) {
	queue := make([]valueobjects.NodeID, 0, len(seeds))
	for _, s := range seeds {
		if !reached[s] {
			reached[s] = true
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range g.Children(current) {
			if !reached[child] {
				reached[child] = true
				queue = append(queue, child)
			}
		}
	}
}

// placeCreated moves each new node next to its first parent
func (r *GraphReconciler) placeCreated(st *mergeState) {
	for _, id := range st.created {
		node, ok := st.out.Node(id)
		if !ok || node.IsRoot() {
			continue
		}
		for _, e := range st.out.Edges() {
			if e.TargetID.Equals(id) {
				node.MoveTo(st.out.PlaceNear(e.SourceID))
				break
			}
		}
	}
}

func (r *GraphReconciler) isRootMarker(id string) bool {
	return id != "" && strings.EqualFold(strings.TrimSpace(id), r.cfg.RootMarker)
}

func reportEdge(e *entities.Edge) ReportEdge {
	return ReportEdge{
		ID:     e.ID.String(),
		Source: e.SourceID.String(),
		Target: e.TargetID.String(),
		Origin: string(e.Origin),
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}
