package services

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"mindmap-backend/domain/core/aggregates"
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
)

var propertyLabels = []string{"Budget", "budget ", "Flights", "HOTELS", "hotels", "Food", "", "  ", "Museums", "Goal"}

// proposalFrom builds a proposal from generated label picks and edge index
// pairs. Edge indices may point past the node list to produce dangling references.
func proposalFrom(picks []int, pairs []int) Proposal {
	p := Proposal{}
	for i, pick := range picks {
		label := propertyLabels[pick%len(propertyLabels)]
		p.Nodes = append(p.Nodes, ProposedNode{ID: strconv.Itoa(i), Label: label, Description: label + " details"})
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		p.Edges = append(p.Edges, ProposedEdge{Source: strconv.Itoa(pairs[i]), Target: strconv.Itoa(pairs[i+1])})
	}
	// a root-sourced edge in every proposal exercises the marker mapping
	p.Edges = append(p.Edges, ProposedEdge{Source: "root", Target: "0"})
	return p
}

func newPropertyGraph() *aggregates.Graph {
	g, err := aggregates.NewGraph("Goal", nil)
	if err != nil {
		panic(err)
	}
	return g
}

func edgesAreSound(g *aggregates.Graph) bool {
	seen := make(map[string]bool)
	for _, e := range g.Edges() {
		if !g.HasNode(e.SourceID) || !g.HasNode(e.TargetID) {
			return false
		}
		if seen[e.Key()] {
			return false
		}
		seen[e.Key()] = true
	}
	return true
}

func labelsAreUnique(g *aggregates.Graph) bool {
	seen := make(map[string]bool)
	for _, n := range g.Nodes() {
		if seen[n.NormalizedLabel()] {
			return false
		}
		seen[n.NormalizedLabel()] = true
	}
	return true
}

func allReachable(g *aggregates.Graph) bool {
	reached := map[valueobjects.NodeID]bool{g.RootID(): true}
	queue := []valueobjects.NodeID{g.RootID()}
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
	return len(reached) == g.NodeCount()
}

func TestReconcilerInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)
	r := NewGraphReconciler(nil)

	labelGen := gen.IntRange(0, len(propertyLabels)-1)
	pairGen := gen.SliceOf(gen.IntRange(0, 8))

	properties.Property("merged edges reference live nodes and are unique", prop.ForAll(
		func(labels []int, pairs []int) bool {
			out, _ := r.Merge(proposalFrom(labels, pairs), newPropertyGraph())
			return edgesAreSound(out) && out.Validate() == nil
		},
		gen.SliceOf(labelGen),
		pairGen,
	))

	properties.Property("normalized labels stay unique", prop.ForAll(
		func(labels []int, pairs []int) bool {
			out, _ := r.Merge(proposalFrom(labels, pairs), newPropertyGraph())
			return labelsAreUnique(out)
		},
		gen.SliceOf(labelGen),
		pairGen,
	))

	properties.Property("every node is reachable from the root", prop.ForAll(
		func(labels []int, pairs []int) bool {
			out, _ := r.Merge(proposalFrom(labels, pairs), newPropertyGraph())
			return allReachable(out)
		},
		gen.SliceOf(labelGen),
		pairGen,
	))

	properties.Property("merging twice is stable", prop.ForAll(
		func(labels []int, pairs []int) bool {
			p := proposalFrom(labels, pairs)
			once, _ := r.Merge(p, newPropertyGraph())
			twice, report := r.Merge(p, once)
			return once.NodeCount() == twice.NodeCount() &&
				once.EdgeCount() == twice.EdgeCount() &&
				len(report.Created) == 0
		},
		gen.SliceOf(labelGen),
		pairGen,
	))

	properties.Property("exactly one root survives", prop.ForAll(
		func(labels []int, rootLabel string) bool {
			p := proposalFrom(labels, nil)
			p.Nodes = append(p.Nodes, ProposedNode{ID: "root", Label: rootLabel})
			out, _ := r.Merge(p, newPropertyGraph())
			return countRoots(out) == 1
		},
		gen.SliceOf(labelGen),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestParserNeverFails(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	p := NewResponseParser(nil)

	properties.Property("parse always yields a message and non-nil lists", prop.ForAll(
		func(raw string) bool {
			got := p.Parse(raw)
			return got.AssistantMessage != "" && got.Nodes != nil && got.Edges != nil && got.Suggestions != nil
		},
		gen.AnyString(),
	))

	properties.Property("suggestions respect the length limit", prop.ForAll(
		func(opts []string) bool {
			raw := "MESSAGE: hi\nOPTIONS: "
			for i, o := range opts {
				if i > 0 {
					raw += ","
				}
				raw += o
			}
			for _, s := range p.Parse(raw).Suggestions {
				if len([]rune(s)) > 100 || s == "" {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestCascadeDeleteLeavesNoDanglingEdges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("delete removes every edge touching removed nodes", prop.ForAll(
		func(parents []int, victim int) bool {
			g := newPropertyGraph()
			ids := []valueobjects.NodeID{g.RootID()}
			for i, parent := range parents {
				n, err := entities.NewNode("n"+strconv.Itoa(i), "", entities.KindTopic, valueobjects.Origin())
				if err != nil || g.AddNode(n) != nil {
					return false
				}
				if _, err := g.Connect(ids[parent%len(ids)], n.ID(), entities.OriginUser); err != nil {
					return false
				}
				ids = append(ids, n.ID())
			}

			target := ids[victim%len(ids)]
			removed, _ := g.DeleteCascade(target)
			for _, id := range removed {
				if g.HasNode(id) {
					return false
				}
			}
			return edgesAreSound(g) && !g.HasNode(target)
		},
		gen.SliceOf(gen.IntRange(0, 50)),
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
