package services

import (
	"strings"

	"mindmap-backend/domain/config"
	"mindmap-backend/domain/core/aggregates"
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
)

// AnchorRule names the rule that picked a parent
type AnchorRule string

const (
	RuleExplicitID     AnchorRule = "explicit_id"
	RuleProposalParent AnchorRule = "proposal_parent"
	RuleDeclaredName   AnchorRule = "declared_name"
	RuleTokenOverlap   AnchorRule = "token_overlap"
	RuleFocus          AnchorRule = "focus"
	RuleLatest         AnchorRule = "latest"
	RuleRoot           AnchorRule = "root"
	RuleNone           AnchorRule = "none"
)

// AnchorContext is the read-only state the resolver scores against
type AnchorContext struct {
	Graph           *aggregates.Graph
	FocusID         valueobjects.NodeID
	LastUserMessage string
}

// Anchor is the resolved parent for one proposed node
type Anchor struct {
	NodeID valueobjects.NodeID `json:"nodeId"`
	Rule   AnchorRule          `json:"rule"`
	Score  float64             `json:"score,omitempty"`
}

// AnchorDecision records how one proposed node was attached
type AnchorDecision struct {
	LocalID string     `json:"localId"`
	Label   string     `json:"label"`
	Parent  string     `json:"parent"`
	Rule    AnchorRule `json:"rule"`
	Score   float64    `json:"score,omitempty"`
}

// AnchorResolver picks a parent for proposed nodes that arrive without one.
// The rule chain always ends at root, so it never fails while a root exists.
type AnchorResolver struct {
	cfg      *config.DomainConfig
	analyzer TextAnalyzer
}

// NewAnchorResolver creates a resolver
func NewAnchorResolver(cfg *config.DomainConfig, analyzer TextAnalyzer) *AnchorResolver {
	cfg = config.OrDefault(cfg)
	if analyzer == nil {
		analyzer = NewDefaultTextAnalyzer(cfg.MinTokenLength, cfg.PartialMatchLength, cfg.PartialMatchCredit)
	}
	return &AnchorResolver{cfg: cfg, analyzer: analyzer}
}

// ResolveParent runs the ordered rule chain for a single proposed node:
// explicit id, declared parent name, token overlap, focus, latest, root.
func (r *AnchorResolver) ResolveParent(node ProposedNode, declaredParentName string, ctx AnchorContext) Anchor {
	g := ctx.Graph
	if g == nil {
		return Anchor{Rule: RuleNone}
	}

	if id, ok := r.explicitParent(node.ParentID, g); ok {
		return Anchor{NodeID: id, Rule: RuleExplicitID}
	}

	if n := r.matchDeclaredName(declaredParentName, g); n != nil {
		return Anchor{NodeID: n.ID(), Rule: RuleDeclaredName}
	}

	if n, score := r.bestOverlap(ctx.LastUserMessage+" "+node.Label, g); n != nil {
		return Anchor{NodeID: n.ID(), Rule: RuleTokenOverlap, Score: score}
	}

	if focus, ok := g.Node(ctx.FocusID); ok && !focus.IsRoot() {
		return Anchor{NodeID: focus.ID(), Rule: RuleFocus}
	}

	if latest := g.LatestNonRoot(); latest != nil {
		return Anchor{NodeID: latest.ID(), Rule: RuleLatest}
	}

	if root := g.Root(); root != nil {
		return Anchor{NodeID: root.ID(), Rule: RuleRoot}
	}

	return Anchor{Rule: RuleNone}
}

// AnchorProposal adds a parent edge for every proposed node that would be
// created without one. Nodes that update the root, update a live node by id,
// or de-duplicate against an existing label keep their current edges.
func (r *AnchorResolver) AnchorProposal(p Proposal, ctx AnchorContext) (Proposal, []AnchorDecision) {
	out := p.Copy()
	var decisions []AnchorDecision
	if ctx.Graph == nil {
		return out, decisions
	}
	g := ctx.Graph

	seenLabels := make(map[string]bool, len(p.Nodes))
	for i, node := range p.Nodes {
		key := valueobjects.NormalizeLabel(node.Label)
		if key == "" || node.ID == "" || r.isRootMarker(node.ID) {
			continue
		}
		if seenLabels[key] {
			continue
		}
		seenLabels[key] = true

		if id, err := valueobjects.NodeIDFromString(node.ID); err == nil && g.HasNode(id) {
			continue
		}
		if g.NodeByLabel(node.Label) != nil || r.hasResolvableIncoming(out, node.ID, g) {
			continue
		}

		decision := AnchorDecision{LocalID: node.ID, Label: node.Label}
		anchor := r.resolveWithinProposal(p, i, ctx)
		switch {
		case anchor.local != "":
			decision.Parent = anchor.local
		case !anchor.NodeID.IsZero():
			decision.Parent = anchor.NodeID.String()
		default:
			continue
		}
		decision.Rule = anchor.Rule
		decision.Score = anchor.Score

		out.Edges = append(out.Edges, ProposedEdge{Source: decision.Parent, Target: node.ID, Anchored: true})
		decisions = append(decisions, decision)
	}

	return out, decisions
}

// hasResolvableIncoming reports whether some proposed edge into localID starts
// at the root marker, a live node or another labelled node of the proposal.
// Edges from unknown ids are dropped at merge time and do not count.
func (r *AnchorResolver) hasResolvableIncoming(p Proposal, localID string, g *aggregates.Graph) bool {
	for _, e := range p.Edges {
		if e.Target != localID {
			continue
		}
		source := strings.TrimSpace(e.Source)
		if source == "" || source == localID {
			continue
		}
		if r.isRootMarker(source) {
			return true
		}
		if id, err := valueobjects.NodeIDFromString(source); err == nil && g.HasNode(id) {
			return true
		}
		for _, other := range p.Nodes {
			if other.ID == source && valueobjects.NormalizeLabel(other.Label) != "" {
				return true
			}
		}
	}
	return false
}

// explicitParent resolves a parent reference that names a live node id.
// References to root are only honoured when configured, since small models
// default every parent to root.
func (r *AnchorResolver) explicitParent(ref string, g *aggregates.Graph) (valueobjects.NodeID, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return valueobjects.NodeID{}, false
	}
	if r.isRootMarker(ref) {
		if r.cfg.TrustRootParentRefs && g.Root() != nil {
			return g.RootID(), true
		}
		return valueobjects.NodeID{}, false
	}

	id, err := valueobjects.NodeIDFromString(ref)
	if err != nil {
		return valueobjects.NodeID{}, false
	}
	n, ok := g.Node(id)
	if !ok || (n.IsRoot() && !r.cfg.TrustRootParentRefs) {
		return valueobjects.NodeID{}, false
	}
	return id, true
}

type proposalAnchor struct {
	Anchor
	local string
}

// resolveWithinProposal extends the rule chain with siblings from the same
// proposal: a live id wins, then a sibling id, then a live name, then a
// sibling name, then the scoring and fallback rules.
func (r *AnchorResolver) resolveWithinProposal(p Proposal, index int, ctx AnchorContext) proposalAnchor {
	node := p.Nodes[index]
	g := ctx.Graph

	if id, ok := r.explicitParent(node.ParentID, g); ok {
		return proposalAnchor{Anchor: Anchor{NodeID: id, Rule: RuleExplicitID}}
	}
	if local, ok := siblingByID(p, index); ok {
		return proposalAnchor{Anchor: Anchor{Rule: RuleProposalParent}, local: local}
	}
	if n := r.matchDeclaredName(node.ParentName, g); n != nil {
		return proposalAnchor{Anchor: Anchor{NodeID: n.ID(), Rule: RuleDeclaredName}}
	}
	if local, ok := siblingByName(p, index); ok {
		return proposalAnchor{Anchor: Anchor{Rule: RuleProposalParent}, local: local}
	}

	// rules 1 and 2 already failed for this node
	rest := node
	rest.ParentID = ""
	return proposalAnchor{Anchor: r.ResolveParent(rest, "", ctx)}
}

func siblingByID(p Proposal, index int) (string, bool) {
	node := p.Nodes[index]
	ref := strings.TrimSpace(node.ParentID)
	if ref == "" || ref == node.ID {
		return "", false
	}
	for j, other := range p.Nodes {
		if j != index && other.ID == ref && valueobjects.NormalizeLabel(other.Label) != "" {
			return other.ID, true
		}
	}
	return "", false
}

func siblingByName(p Proposal, index int) (string, bool) {
	node := p.Nodes[index]
	name := valueobjects.NormalizeLabel(node.ParentName)
	if name == "" {
		return "", false
	}
	for j, other := range p.Nodes {
		if j == index || other.ID == "" || other.ID == node.ID {
			continue
		}
		if valueobjects.NormalizeLabel(other.Label) == name {
			return other.ID, true
		}
	}
	return "", false
}

// matchDeclaredName finds a non-root node whose normalized label contains the
// declared name or is contained by it. Exact matches are preferred.
func (r *AnchorResolver) matchDeclaredName(name string, g *aggregates.Graph) *entities.Node {
	name = valueobjects.NormalizeLabel(name)
	if name == "" {
		return nil
	}

	var partial *entities.Node
	for _, n := range g.Nodes() {
		if n.IsRoot() {
			continue
		}
		label := n.NormalizedLabel()
		if label == name {
			return n
		}
		if partial == nil && (strings.Contains(label, name) || strings.Contains(name, label)) {
			partial = n
		}
	}
	return partial
}

// bestOverlap scores every non-root node against the search text and returns
// the best one if it clears the threshold. Ties keep the earlier node.
func (r *AnchorResolver) bestOverlap(text string, g *aggregates.Graph) (*entities.Node, float64) {
	search := r.analyzer.Tokenize(text)
	if len(search) == 0 {
		return nil, 0
	}

	var best *entities.Node
	bestScore := 0.0
	for _, n := range g.Nodes() {
		if n.IsRoot() {
			continue
		}
		score := r.analyzer.Overlap(search, r.analyzer.Tokenize(n.Label()))
		if score > bestScore {
			best, bestScore = n, score
		}
	}

	if best == nil || bestScore <= r.cfg.AnchorThreshold {
		return nil, 0
	}
	return best, bestScore
}

func (r *AnchorResolver) isRootMarker(id string) bool {
	return strings.EqualFold(strings.TrimSpace(id), r.cfg.RootMarker)
}
