package services

import "fmt"

// ProposalFormat records which grammar produced a proposal
type ProposalFormat string

const (
	FormatJSON  ProposalFormat = "json"
	FormatLines ProposalFormat = "lines"
	FormatNone  ProposalFormat = "none"
)

// ProposedNode is a node as the model described it. ID is proposal-local
// and unrelated to persistent ids, except for the root marker.
type ProposedNode struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parentId,omitempty"`
	ParentName  string `json:"parent,omitempty"`
}

// ProposedEdge references proposal-local (or live persistent) node ids
type ProposedEdge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Anchored bool   `json:"anchored,omitempty"`
}

// Proposal is the normalized output of one model response. It only lives
// for the duration of one merge.
type Proposal struct {
	AssistantMessage string         `json:"assistantResponse"`
	Nodes            []ProposedNode `json:"nodes"`
	Edges            []ProposedEdge `json:"edges"`
	Suggestions      []string       `json:"suggestions"`
	Format           ProposalFormat `json:"format"`
}

// IsEmpty reports whether the proposal carries no graph changes
func (p Proposal) IsEmpty() bool {
	return len(p.Nodes) == 0 && len(p.Edges) == 0
}

// Copy returns a proposal whose slices can be appended to independently
func (p Proposal) Copy() Proposal {
	c := p
	c.Nodes = append([]ProposedNode(nil), p.Nodes...)
	c.Edges = append([]ProposedEdge(nil), p.Edges...)
	c.Suggestions = append([]string(nil), p.Suggestions...)
	return c
}

func emptyProposal(message string) Proposal {
	return Proposal{
		AssistantMessage: message,
		Nodes:            []ProposedNode{},
		Edges:            []ProposedEdge{},
		Suggestions:      []string{},
		Format:           FormatNone,
	}
}

// String renders a short summary for logs
func (p Proposal) String() string {
	return fmt.Sprintf("proposal(format=%s nodes=%d edges=%d suggestions=%d)",
		p.Format, len(p.Nodes), len(p.Edges), len(p.Suggestions))
}
