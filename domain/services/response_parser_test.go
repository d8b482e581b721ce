package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fallbackMsg = "What would you like to explore?"

func TestResponseParser_JSON(t *testing.T) {
	p := NewResponseParser(nil)

	raw := `Sure! Here is the map:
{"assistantResponse": "Let's plan {the} trip",
 "updatedMindMap": {
   "nodes": [
     {"id": "root", "label": "Trip to Japan", "description": "Two weeks"},
     {"id": 1, "label": "[Budget]", "description": "Costs"},
     {"id": "2", "label": "Transport", "parentId": "1"},
     "not an object"
   ],
   "edges": [{"source": "root", "target": 1}, {"source": "1", "target": "2"}]
 },
 "suggestions": ["Hotels", 42, "", "` + strings.Repeat("x", 120) + `"]}
Trailing text`

	got := p.Parse(raw)

	assert.Equal(t, FormatJSON, got.Format)
	assert.Equal(t, "Let's plan {the} trip", got.AssistantMessage)
	require.Len(t, got.Nodes, 3)
	assert.Equal(t, "root", got.Nodes[0].ID)
	assert.Equal(t, "1", got.Nodes[1].ID)
	assert.Equal(t, "Budget", got.Nodes[1].Label)
	assert.Equal(t, "1", got.Nodes[2].ParentID)
	require.Len(t, got.Edges, 2)
	assert.Equal(t, ProposedEdge{Source: "root", Target: "1"}, got.Edges[0])
	assert.Equal(t, []string{"Hotels"}, got.Suggestions)
}

func TestResponseParser_FencedJSON(t *testing.T) {
	p := NewResponseParser(nil)

	raw := "Here you go\n```json\n{\"assistantResponse\": \"ok\", \"updatedMindMap\": {\"nodes\": [{\"id\": \"a\", \"label\": \"Alpha\"}], \"edges\": []}}\n```"
	got := p.Parse(raw)

	assert.Equal(t, FormatJSON, got.Format)
	assert.Equal(t, "ok", got.AssistantMessage)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "Alpha", got.Nodes[0].Label)
}

func TestResponseParser_JSONMistypedFields(t *testing.T) {
	p := NewResponseParser(nil)

	tests := []struct {
		name        string
		raw         string
		wantNodes   int
		wantEdges   int
		suggestions []string
	}{
		{
			name:      "suggestions as a string",
			raw:       `{"assistantResponse":"Here are flight ideas.","updatedMindMap":{"nodes":[{"id":"a","label":"Flights"}],"edges":[]},"suggestions":"Which airline?, Budget?"}`,
			wantNodes: 1,
		},
		{
			name:        "nodes as an object",
			raw:         `{"assistantResponse":"Here are flight ideas.","updatedMindMap":{"nodes":{},"edges":[{"source":"root","target":"a"}]},"suggestions":["Which airline?"]}`,
			wantEdges:   1,
			suggestions: []string{"Which airline?"},
		},
		{
			name:      "updatedMindMap as a list",
			raw:       `{"assistantResponse":"Here are flight ideas.","updatedMindMap":[1,2],"nodes":[{"id":"a","label":"Flights"}]}`,
			wantNodes: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.raw)

			assert.Equal(t, FormatJSON, got.Format)
			assert.Equal(t, "Here are flight ideas.", got.AssistantMessage)
			assert.Len(t, got.Nodes, tt.wantNodes)
			assert.Len(t, got.Edges, tt.wantEdges)
			if tt.suggestions == nil {
				assert.Empty(t, got.Suggestions)
			} else {
				assert.Equal(t, tt.suggestions, got.Suggestions)
			}
		})
	}
}

func TestResponseParser_JSONTopLevelGraph(t *testing.T) {
	p := NewResponseParser(nil)

	got := p.Parse(`{"assistantResponse":"ok","nodes":[{"id":"n1","label":"Ryokan stays"}],"edges":[{"source":"7","target":"n1"}]}`)

	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "Ryokan stays", got.Nodes[0].Label)
	assert.Equal(t, []ProposedEdge{{Source: "7", Target: "n1"}}, got.Edges)
}

func TestResponseParser_JSONWithoutMessage(t *testing.T) {
	p := NewResponseParser(nil)

	t.Run("falls back to line grammar", func(t *testing.T) {
		got := p.Parse(`{"updatedMindMap": {"nodes": []}}
MESSAGE: from lines`)
		assert.Equal(t, FormatLines, got.Format)
		assert.Equal(t, "from lines", got.AssistantMessage)
	})

	t.Run("keeps structured nodes when no markers", func(t *testing.T) {
		got := p.Parse(`{"updatedMindMap": {"nodes": [{"id": "x", "label": "X"}]}}`)
		assert.Equal(t, FormatJSON, got.Format)
		assert.Equal(t, fallbackMsg, got.AssistantMessage)
		assert.Len(t, got.Nodes, 1)
	})
}

func TestResponseParser_Lines(t *testing.T) {
	p := NewResponseParser(nil)

	raw := `MESSAGE: [Great idea, let's break it down]
PARENT: Budget
TOPIC1: Flights | Book early
- TOPIC 2: Hotels|Central area
PARENT: <Activities>
NEWTOPIC: Hiking
**TOPIC3:** Museums | Art and history
QUESTION: Which city first?
OPTIONS: Tokyo, Kyoto , , Osaka, tokyo`

	got := p.Parse(raw)

	assert.Equal(t, FormatLines, got.Format)
	assert.Equal(t, "Great idea, let's break it down Which city first?", got.AssistantMessage)

	require.Len(t, got.Nodes, 4)
	assert.Equal(t, ProposedNode{ID: "topic-1", Label: "Flights", Description: "Book early", ParentName: "Budget"}, got.Nodes[0])
	assert.Equal(t, ProposedNode{ID: "topic-2", Label: "Hotels", Description: "Central area", ParentName: "Budget"}, got.Nodes[1])
	assert.Equal(t, ProposedNode{ID: "topic-3", Label: "Hiking", ParentName: "Activities"}, got.Nodes[2])
	assert.Equal(t, "Museums", got.Nodes[3].Label)
	assert.Equal(t, "Activities", got.Nodes[3].ParentName)

	assert.Empty(t, got.Edges)
	assert.Equal(t, []string{"Tokyo", "Kyoto", "Osaka"}, got.Suggestions)
}

func TestResponseParser_LinesWithoutMessage(t *testing.T) {
	got := NewResponseParser(nil).Parse("TOPIC1: Only a topic")

	assert.Equal(t, fallbackMsg, got.AssistantMessage)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "Only a topic", got.Nodes[0].Label)
	assert.Empty(t, got.Nodes[0].Description)
}

func TestResponseParser_Resilience(t *testing.T) {
	p := NewResponseParser(nil)

	inputs := []string{
		"",
		"   \n\t ",
		"just some chatty text with no markers at all",
		"{ unbalanced brace and no markers",
		"{\"assistantResponse\": }",
		"}{][",
		"```json\nnot json\n```",
		"TOPIC: | only separator",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			var got Proposal
			assert.NotPanics(t, func() { got = p.Parse(in) })
			assert.NotEmpty(t, got.AssistantMessage)
			assert.Empty(t, got.Nodes)
			assert.Empty(t, got.Edges)
			assert.NotNil(t, got.Nodes)
			assert.NotNil(t, got.Edges)
		})
	}
}

func TestFirstBalancedObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "simple", in: `x {"a":1} y`, want: `{"a":1}`, ok: true},
		{name: "nested", in: `{"a":{"b":2}}`, want: `{"a":{"b":2}}`, ok: true},
		{name: "brace in string", in: `{"a":"}"}`, want: `{"a":"}"}`, ok: true},
		{name: "escaped quote", in: `{"a":"\"}"}`, want: `{"a":"\"}"}`, ok: true},
		{name: "skips unbalanced prefix", in: `{ {"a":1}`, want: `{"a":1}`, ok: true},
		{name: "none", in: `no braces`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstBalancedObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
