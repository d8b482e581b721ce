package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmap-backend/domain/config"
	"mindmap-backend/domain/core/aggregates"
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
)

// buildGraph creates a goal graph with one child of root per label, in order
func buildGraph(t *testing.T, goal string, labels ...string) (*aggregates.Graph, map[string]*entities.Node) {
	t.Helper()
	g, err := aggregates.NewGraph(goal, nil)
	require.NoError(t, err)

	nodes := make(map[string]*entities.Node, len(labels))
	for _, label := range labels {
		n, err := entities.NewNode(label, "", entities.KindTopic, valueobjects.Origin())
		require.NoError(t, err)
		require.NoError(t, g.AddNode(n))
		_, err = g.Connect(g.RootID(), n.ID(), entities.OriginUser)
		require.NoError(t, err)
		nodes[label] = n
	}
	return g, nodes
}

func TestTextAnalyzer(t *testing.T) {
	ta := NewDefaultTextAnalyzer(3, 4, 0.5)

	assert.Equal(t, []string{"tech", "stack", "for"}, ta.Tokenize("Tech  stack, for a TECH stack!"))
	assert.Empty(t, ta.Tokenize("a an to"))

	tests := []struct {
		name      string
		search    []string
		candidate []string
		want      float64
	}{
		{name: "exact", search: []string{"budget"}, candidate: []string{"budget"}, want: 1},
		{name: "partial", search: []string{"hotel"}, candidate: []string{"hotels"}, want: 0.5},
		{name: "short tokens get no partial credit", search: []string{"car"}, candidate: []string{"cars"}, want: 0},
		{name: "normalized by search size", search: []string{"budget", "flights", "tips", "food"}, candidate: []string{"budget"}, want: 0.25},
		{name: "empty search", search: nil, candidate: []string{"x"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ta.Overlap(tt.search, tt.candidate), 1e-9)
		})
	}
}

func TestAnchorResolver_FallbackChain(t *testing.T) {
	r := NewAnchorResolver(nil, nil)
	unrelated := ProposedNode{ID: "x", Label: "Zebra"}

	t.Run("focus wins when nothing scores", func(t *testing.T) {
		g, nodes := buildGraph(t, "Goal", "Alpha", "Beta")
		ctx := AnchorContext{Graph: g, FocusID: nodes["Alpha"].ID(), LastUserMessage: "quantum"}

		got := r.ResolveParent(unrelated, "", ctx)
		assert.Equal(t, nodes["Alpha"].ID(), got.NodeID)
		assert.Equal(t, RuleFocus, got.Rule)
	})

	t.Run("root focus is ignored", func(t *testing.T) {
		g, nodes := buildGraph(t, "Goal", "Alpha", "Beta")
		ctx := AnchorContext{Graph: g, FocusID: g.RootID()}

		got := r.ResolveParent(unrelated, "", ctx)
		assert.Equal(t, nodes["Beta"].ID(), got.NodeID)
		assert.Equal(t, RuleLatest, got.Rule)
	})

	t.Run("latest node without focus", func(t *testing.T) {
		g, nodes := buildGraph(t, "Goal", "Alpha", "Beta")

		got := r.ResolveParent(unrelated, "", AnchorContext{Graph: g})
		assert.Equal(t, nodes["Beta"].ID(), got.NodeID)
		assert.Equal(t, RuleLatest, got.Rule)
	})

	t.Run("root when alone", func(t *testing.T) {
		g, _ := buildGraph(t, "Goal")

		got := r.ResolveParent(unrelated, "", AnchorContext{Graph: g})
		assert.Equal(t, g.RootID(), got.NodeID)
		assert.Equal(t, RuleRoot, got.Rule)
	})

	t.Run("none without root", func(t *testing.T) {
		g := aggregates.NewEmptyGraph(aggregates.NewGraphID(), nil)

		got := r.ResolveParent(unrelated, "", AnchorContext{Graph: g})
		assert.True(t, got.NodeID.IsZero())
		assert.Equal(t, RuleNone, got.Rule)
	})
}

func TestAnchorResolver_Rules(t *testing.T) {
	r := NewAnchorResolver(nil, nil)

	t.Run("explicit live id", func(t *testing.T) {
		g, nodes := buildGraph(t, "Goal", "Alpha", "Beta")
		node := ProposedNode{ID: "n", Label: "Gamma", ParentID: nodes["Alpha"].ID().String()}

		got := r.ResolveParent(node, "Beta", AnchorContext{Graph: g})
		assert.Equal(t, nodes["Alpha"].ID(), got.NodeID)
		assert.Equal(t, RuleExplicitID, got.Rule)
	})

	t.Run("explicit root reference is distrusted by default", func(t *testing.T) {
		g, nodes := buildGraph(t, "Goal", "Alpha")
		node := ProposedNode{ID: "n", Label: "Gamma", ParentID: "root"}

		got := r.ResolveParent(node, "", AnchorContext{Graph: g})
		assert.Equal(t, nodes["Alpha"].ID(), got.NodeID)
		assert.Equal(t, RuleLatest, got.Rule)
	})

	t.Run("explicit root reference when trusted", func(t *testing.T) {
		cfg := config.DefaultDomainConfig()
		cfg.TrustRootParentRefs = true
		trusting := NewAnchorResolver(cfg, nil)
		g, _ := buildGraph(t, "Goal", "Alpha")

		got := trusting.ResolveParent(ProposedNode{ID: "n", Label: "Gamma", ParentID: "root"}, "", AnchorContext{Graph: g})
		assert.Equal(t, g.RootID(), got.NodeID)
		assert.Equal(t, RuleExplicitID, got.Rule)
	})

	t.Run("declared name substring either way", func(t *testing.T) {
		g, nodes := buildGraph(t, "Goal", "Travel Budget", "Food")

		got := r.ResolveParent(ProposedNode{Label: "Hostels"}, "budget", AnchorContext{Graph: g})
		assert.Equal(t, nodes["Travel Budget"].ID(), got.NodeID)
		assert.Equal(t, RuleDeclaredName, got.Rule)

		got = r.ResolveParent(ProposedNode{Label: "Street food"}, "Local Food Markets", AnchorContext{Graph: g})
		assert.Equal(t, nodes["Food"].ID(), got.NodeID)
	})

	t.Run("declared name never matches root", func(t *testing.T) {
		g, nodes := buildGraph(t, "Japan Trip", "Alpha")

		got := r.ResolveParent(ProposedNode{Label: "Zebra"}, "Japan Trip", AnchorContext{Graph: g})
		assert.Equal(t, nodes["Alpha"].ID(), got.NodeID)
		assert.Equal(t, RuleLatest, got.Rule)
	})

	t.Run("token overlap above threshold", func(t *testing.T) {
		g, nodes := buildGraph(t, "Goal", "Hotel Options", "Flights")
		ctx := AnchorContext{Graph: g, FocusID: nodes["Flights"].ID(), LastUserMessage: "hotels"}

		// search tokens: hotels, hotel -> 0.5 + 1 over 2 = 0.75
		got := r.ResolveParent(ProposedNode{Label: "Hotel"}, "", ctx)
		assert.Equal(t, nodes["Hotel Options"].ID(), got.NodeID)
		assert.Equal(t, RuleTokenOverlap, got.Rule)
		assert.InDelta(t, 0.75, got.Score, 1e-9)
	})

	t.Run("score at threshold is not enough", func(t *testing.T) {
		cfg := config.DefaultDomainConfig()
		cfg.AnchorThreshold = 0.5
		strict := NewAnchorResolver(cfg, nil)
		g, nodes := buildGraph(t, "Goal", "Budget", "Flights")
		ctx := AnchorContext{Graph: g, FocusID: nodes["Flights"].ID(), LastUserMessage: "budget"}

		// search tokens: budget, zebra -> 1 over 2 = 0.5
		got := strict.ResolveParent(ProposedNode{Label: "Zebra"}, "", ctx)
		assert.Equal(t, nodes["Flights"].ID(), got.NodeID)
		assert.Equal(t, RuleFocus, got.Rule)
	})
}

func TestAnchorResolver_AnchorProposal(t *testing.T) {
	r := NewAnchorResolver(nil, nil)
	g, nodes := buildGraph(t, "Trip", "Budget", "Food")

	p := Proposal{
		Nodes: []ProposedNode{
			{ID: "root", Label: "Trip"},
			{ID: "a", Label: "Hostels", ParentName: "Budget"},
			{ID: "b", Label: "Dorm rooms", ParentName: "Hostels"},
			{ID: "c", Label: "food"},
			{ID: "d", Label: "Ramen"},
			{ID: "e", Label: "Sushi"},
			{ID: "f", Label: "Hostels"},
			{ID: nodes["Food"].ID().String(), Label: "Food"},
		},
		Edges: []ProposedEdge{{Source: "d", Target: "e"}},
	}
	ctx := AnchorContext{Graph: g, FocusID: nodes["Food"].ID(), LastUserMessage: "what should I eat"}

	out, decisions := r.AnchorProposal(p, ctx)

	require.Len(t, decisions, 3)
	assert.Equal(t, AnchorDecision{LocalID: "a", Label: "Hostels", Parent: nodes["Budget"].ID().String(), Rule: RuleDeclaredName}, decisions[0])
	assert.Equal(t, AnchorDecision{LocalID: "b", Label: "Dorm rooms", Parent: "a", Rule: RuleProposalParent}, decisions[1])
	assert.Equal(t, "d", decisions[2].LocalID)
	assert.Equal(t, RuleFocus, decisions[2].Rule)

	assert.Len(t, out.Edges, 4)
	assert.Len(t, p.Edges, 1, "input proposal is not modified")
	for _, e := range out.Edges[1:] {
		assert.True(t, e.Anchored)
	}
}

func TestAnchorResolver_AnchorProposal_IgnoresUnresolvableIncomingEdges(t *testing.T) {
	r := NewAnchorResolver(nil, nil)
	g, nodes := buildGraph(t, "Japan trip", "Flights", "Hotels")

	p := Proposal{
		Nodes: []ProposedNode{
			{ID: "n1", Label: "Ryokan stays"},
			{ID: "n2", Label: "Rail pass"},
			{ID: "n3", Label: "Shinkansen"},
			{ID: "n4", Label: "Capsule hotels"},
		},
		Edges: []ProposedEdge{
			{Source: "7", Target: "n1"},
			{Source: "root", Target: "n2"},
			{Source: "n2", Target: "n3"},
			{Source: "n4", Target: "n4"},
		},
	}
	ctx := AnchorContext{Graph: g, FocusID: nodes["Hotels"].ID()}

	out, decisions := r.AnchorProposal(p, ctx)

	require.Len(t, decisions, 2)
	assert.Equal(t, "n1", decisions[0].LocalID)
	assert.Equal(t, RuleFocus, decisions[0].Rule)
	assert.Equal(t, nodes["Hotels"].ID().String(), decisions[0].Parent)
	assert.Equal(t, "n4", decisions[1].LocalID)
	assert.Len(t, out.Edges, 6)
}
