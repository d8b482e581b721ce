package services

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"mindmap-backend/domain/config"
)

var (
	fencedBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	markerRegex      = regexp.MustCompile(`(?i)^(MESSAGE|QUESTION|PARENT|NEWTOPIC|TOPIC\s*\d*|OPTIONS)\s*:\s*(.*)$`)
	listPrefixRegex  = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s+`)
)

// ResponseParser turns raw model output into a Proposal. It never fails:
// unusable input yields an empty proposal with the fallback message.
type ResponseParser struct {
	cfg *config.DomainConfig
}

// NewResponseParser creates a parser
func NewResponseParser(cfg *config.DomainConfig) *ResponseParser {
	return &ResponseParser{cfg: config.OrDefault(cfg)}
}

// Parse accepts either the JSON shape or the line grammar from the same entry point
func (p *ResponseParser) Parse(raw string) Proposal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return emptyProposal(p.cfg.FallbackAssistantMsg)
	}

	structured, decoded := p.parseStructured(raw)
	if decoded && structured.AssistantMessage != "" {
		return structured
	}

	if lines, ok := p.parseLines(raw); ok {
		return lines
	}

	// a decodable object with nodes but no message still carries a graph
	if decoded && !structured.IsEmpty() {
		structured.AssistantMessage = p.cfg.FallbackAssistantMsg
		return structured
	}

	return emptyProposal(p.cfg.FallbackAssistantMsg)
}

// flexString decodes strings and numbers alike; models emit both for ids
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	// objects, arrays, booleans and null are treated as absent
	*f = ""
	return nil
}

type rawNode struct {
	ID          flexString `json:"id"`
	Label       flexString `json:"label"`
	Description flexString `json:"description"`
	ParentID    flexString `json:"parentId"`
	Parent      flexString `json:"parent"`
}

type rawEdge struct {
	Source flexString `json:"source"`
	Target flexString `json:"target"`
}

type rawResponse struct {
	AssistantResponse flexString
	Nodes             []json.RawMessage
	Edges             []json.RawMessage
	Suggestions       []json.RawMessage
}

// decodeRawResponse decodes each field on its own so a mistyped optional
// field only loses that field. Nodes and edges are read from updatedMindMap,
// or from the top level when updatedMindMap is absent.
func decodeRawResponse(obj string) (rawResponse, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &top); err != nil {
		return rawResponse{}, false
	}

	var resp rawResponse
	if msg, ok := top["assistantResponse"]; ok {
		_ = json.Unmarshal(msg, &resp.AssistantResponse)
	}

	graph := top
	if msg, ok := top["updatedMindMap"]; ok {
		graph = nil
		_ = json.Unmarshal(msg, &graph)
	}
	resp.Nodes = rawList(graph["nodes"])
	resp.Edges = rawList(graph["edges"])
	resp.Suggestions = rawList(top["suggestions"])
	return resp, true
}

// rawList returns the elements of a JSON array, or nil for anything else
func rawList(msg json.RawMessage) []json.RawMessage {
	if len(msg) == 0 {
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(msg, &list); err != nil {
		return nil
	}
	return list
}

// parseStructured decodes the first balanced object, looking inside a
// fenced code block first when one is present
func (p *ResponseParser) parseStructured(raw string) (Proposal, bool) {
	candidates := make([]string, 0, 2)
	if m := fencedBlockRegex.FindStringSubmatch(raw); len(m) > 1 {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, raw)

	for _, text := range candidates {
		obj, ok := firstBalancedObject(text)
		if !ok {
			continue
		}
		resp, ok := decodeRawResponse(obj)
		if !ok {
			continue
		}
		return p.fromRaw(resp), true
	}
	return Proposal{}, false
}

func (p *ResponseParser) fromRaw(resp rawResponse) Proposal {
	out := emptyProposal("")
	out.Format = FormatJSON
	out.AssistantMessage = strings.TrimSpace(string(resp.AssistantResponse))

	// elements are decoded one by one so one malformed entry does not
	// discard its siblings
	for _, msg := range resp.Nodes {
		var n rawNode
		if err := json.Unmarshal(msg, &n); err != nil {
			continue
		}
		out.Nodes = append(out.Nodes, ProposedNode{
			ID:          strings.TrimSpace(string(n.ID)),
			Label:       cleanValue(string(n.Label)),
			Description: strings.TrimSpace(string(n.Description)),
			ParentID:    strings.TrimSpace(string(n.ParentID)),
			ParentName:  cleanValue(string(n.Parent)),
		})
	}
	for _, msg := range resp.Edges {
		var e rawEdge
		if err := json.Unmarshal(msg, &e); err != nil {
			continue
		}
		out.Edges = append(out.Edges, ProposedEdge{
			Source: strings.TrimSpace(string(e.Source)),
			Target: strings.TrimSpace(string(e.Target)),
		})
	}

	for _, msg := range resp.Suggestions {
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			continue
		}
		out.Suggestions = append(out.Suggestions, s)
	}
	out.Suggestions = p.sanitizeSuggestions(out.Suggestions)

	return out
}

// parseLines applies the marker grammar. ok is false when no marker matched.
func (p *ResponseParser) parseLines(raw string) (Proposal, bool) {
	out := emptyProposal("")
	out.Format = FormatLines

	var (
		messages      []string
		questions     []string
		currentParent string
		matched       bool
	)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = listPrefixRegex.ReplaceAllString(line, "")
		line = strings.Trim(line, "*_ ")
		if line == "" {
			continue
		}

		m := markerRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		matched = true
		marker := strings.ToUpper(strings.Join(strings.Fields(m[1]), ""))
		value := strings.TrimSpace(m[2])

		switch {
		case marker == "MESSAGE":
			if v := cleanValue(value); v != "" {
				messages = append(messages, v)
			}
		case marker == "QUESTION":
			if v := cleanValue(value); v != "" {
				questions = append(questions, v)
			}
		case marker == "PARENT":
			currentParent = cleanValue(value)
		case marker == "OPTIONS":
			out.Suggestions = append(out.Suggestions, strings.Split(value, ",")...)
		default: // TOPIC<n> and NEWTOPIC
			name, desc, _ := strings.Cut(value, "|")
			name = cleanValue(name)
			if name == "" {
				continue
			}
			out.Nodes = append(out.Nodes, ProposedNode{
				ID:          "topic-" + strconv.Itoa(len(out.Nodes)+1),
				Label:       name,
				Description: cleanValue(desc),
				ParentName:  currentParent,
			})
		}
	}

	if !matched {
		return Proposal{}, false
	}

	out.AssistantMessage = strings.Join(append(messages, questions...), " ")
	if out.AssistantMessage == "" {
		out.AssistantMessage = p.cfg.FallbackAssistantMsg
	}
	out.Suggestions = p.sanitizeSuggestions(out.Suggestions)
	return out, true
}

// sanitizeSuggestions drops empty, duplicate and overlong entries
func (p *ResponseParser) sanitizeSuggestions(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = cleanValue(s)
		if s == "" || utf8.RuneCountInString(s) > p.cfg.MaxSuggestionLength {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// cleanValue strips bracket and quote noise around an extracted value
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "[]<>\"'`*")
	return strings.TrimSpace(s)
}

// firstBalancedObject returns the first brace-delimited substring whose
// braces balance, ignoring braces inside JSON strings
func firstBalancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end, ok := matchBrace(text, start); ok {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
