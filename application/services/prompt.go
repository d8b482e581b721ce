package services

import (
	"fmt"
	"strings"

	"mindmap-backend/application/ports"
	"mindmap-backend/domain/config"
	"mindmap-backend/domain/core/aggregates"
	"mindmap-backend/domain/core/valueobjects"
)

const systemPromptTemplate = `You help the user explore the goal "%s" as a mind map.
Reply with one JSON object and nothing else:
{"assistantResponse": "<short reply>",
 "updatedMindMap": {"nodes": [{"id": "<id>", "label": "<2-5 words>", "description": "<one sentence>", "parent": "<existing label>"}],
                    "edges": [{"source": "<id>", "target": "<id>"}]},
 "suggestions": ["<follow-up question>"]}
Use id "%s" for the goal itself. Only include nodes that are new or changed.
Current map:
%s`

// PromptBuilder renders the completion request for a session
type PromptBuilder struct {
	cfg *config.DomainConfig
}

// NewPromptBuilder creates a prompt builder
func NewPromptBuilder(cfg *config.DomainConfig) *PromptBuilder {
	return &PromptBuilder{cfg: config.OrDefault(cfg)}
}

// Build returns the system message followed by the trailing conversation window
func (b *PromptBuilder) Build(s *Session) []ports.ChatMessage {
	system := fmt.Sprintf(systemPromptTemplate, s.graph.Goal(), b.cfg.RootMarker, Outline(s.graph))

	window := s.window(b.cfg.ConversationWindow)
	messages := make([]ports.ChatMessage, 0, len(window)+1)
	messages = append(messages, ports.ChatMessage{Role: ports.RoleSystem, Content: system})
	for _, t := range window {
		messages = append(messages, ports.ChatMessage{Role: t.Role, Content: t.Content})
	}
	return messages
}

// Outline renders the graph as an indented tree, root first. Nodes not
// reachable from the root are listed at the top level afterwards.
func Outline(g *aggregates.Graph) string {
	var sb strings.Builder
	visited := make(map[valueobjects.NodeID]bool, g.NodeCount())

	var walk func(id valueobjects.NodeID, depth int)
	walk = func(id valueobjects.NodeID, depth int) {
		if visited[id] {
			return
		}
		visited[id] = true
		n, ok := g.Node(id)
		if !ok {
			return
		}
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString("- ")
		sb.WriteString(n.Label())
		if d := n.Description(); d != "" {
			sb.WriteString(": ")
			sb.WriteString(d)
		}
		sb.WriteString("\n")
		for _, child := range g.Children(id) {
			walk(child, depth+1)
		}
	}

	if root := g.Root(); root != nil {
		walk(root.ID(), 0)
	}
	for _, n := range g.Nodes() {
		walk(n.ID(), 0)
	}

	if sb.Len() == 0 {
		return "(empty)"
	}
	return strings.TrimRight(sb.String(), "\n")
}
