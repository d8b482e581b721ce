package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mindmap-backend/application/ports"
	"mindmap-backend/domain/config"
	"mindmap-backend/domain/core/aggregates"
	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/core/valueobjects"
	"mindmap-backend/domain/events"
	domainservices "mindmap-backend/domain/services"
	pkgerrors "mindmap-backend/pkg/errors"
	"mindmap-backend/pkg/observability"
)

const completionFailureMessage = "Sorry, I couldn't reach the language model just now. Your map is unchanged, please try again."

// AddNodeInput carries a direct user node creation
type AddNodeInput struct {
	Label       string
	ParentID    string
	Kind        string
	Description string
	ImageRef    string
}

// UpdateNodeInput carries a direct user edit; nil fields are left alone
type UpdateNodeInput struct {
	Label       *string
	Description *string
	ImageRef    *string
}

// NodeResult is returned by operations that produce a node
type NodeResult struct {
	Node    NodeView     `json:"node"`
	Session *SessionView `json:"session"`
}

// EdgeResult is returned by operations that produce or remove an edge
type EdgeResult struct {
	Edge    EdgeView     `json:"edge"`
	Session *SessionView `json:"session"`
}

// DeleteResult describes a cascading delete
type DeleteResult struct {
	RemovedNodes []string     `json:"removedNodes"`
	RemovedEdges int          `json:"removedEdges"`
	Session      *SessionView `json:"session"`
}

// ChatResult describes one chat exchange or applied response
type ChatResult struct {
	Session          *SessionView                    `json:"session"`
	AssistantMessage string                          `json:"assistantMessage"`
	Suggestions      []string                        `json:"suggestions"`
	Format           string                          `json:"format,omitempty"`
	Report           *domainservices.MergeReport     `json:"report,omitempty"`
	Anchors          []domainservices.AnchorDecision `json:"anchors,omitempty"`
	Failed           bool                            `json:"failed"`
	Error            string                          `json:"error,omitempty"`
}

type sessionEntry struct {
	mu    sync.Mutex
	state *Session
}

// SessionStore is the single owner of every session's graph. Each session is
// serialized by its own mutex; transitions work on a clone and swap it in
// only after the clone validates.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry

	cfg        *config.DomainConfig
	parser     *domainservices.ResponseParser
	anchors    *domainservices.AnchorResolver
	reconciler *domainservices.GraphReconciler
	prompts    *PromptBuilder

	completer ports.Completer
	repo      ports.SnapshotRepository
	bus       ports.EventBus
	metrics   *observability.Collector
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionStore creates a store. completer, repo, bus and metrics are optional.
func NewSessionStore(
	cfg *config.DomainConfig,
	completer ports.Completer,
	repo ports.SnapshotRepository,
	bus ports.EventBus,
	metrics *observability.Collector,
	logger *zap.Logger,
) *SessionStore {
	cfg = config.OrDefault(cfg)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		sessions:   make(map[string]*sessionEntry),
		cfg:        cfg,
		parser:     domainservices.NewResponseParser(cfg),
		anchors:    domainservices.NewAnchorResolver(cfg, nil),
		reconciler: domainservices.NewGraphReconciler(cfg),
		prompts:    NewPromptBuilder(cfg),
		completer:  completer,
		repo:       repo,
		bus:        bus,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateSession starts a session whose root node carries the goal
func (s *SessionStore) CreateSession(ctx context.Context, goal string) (*SessionView, error) {
	graph, err := aggregates.NewGraph(goal, s.cfg)
	if err != nil {
		return nil, err
	}
	sess := newSession(graph, s.now())
	evts := graph.GetUncommittedEvents()
	graph.MarkEventsAsCommitted()

	entry := &sessionEntry{state: sess}
	s.mu.Lock()
	s.sessions[sess.id] = entry
	count := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetActiveSessions(count)
	s.metrics.RecordNodesCreated(1)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	s.persist(ctx, sess)
	s.publish(ctx, evts)

	s.logger.Info("session created",
		zap.String("session_id", sess.id),
		zap.String("goal", graph.Goal()),
	)
	return sess.view(), nil
}

// GetSession returns the current state, rehydrating it from storage if needed
func (s *SessionStore) GetSession(ctx context.Context, id string) (*SessionView, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.state.view(), nil
}

// Snapshot returns the persistence form of a session
func (s *SessionStore) Snapshot(ctx context.Context, id string) (*ports.Snapshot, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.state.toSnapshot(), nil
}

// Outline renders a session's graph as an indented tree
func (s *SessionStore) Outline(ctx context.Context, id string) (string, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return "", err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return Outline(entry.state.graph), nil
}

// ListSessions returns in-memory and stored sessions, most recent first
func (s *SessionStore) ListSessions(ctx context.Context) ([]ports.SessionSummary, error) {
	byID := make(map[string]ports.SessionSummary)

	if s.repo != nil {
		stored, err := s.repo.List(ctx)
		if err != nil {
			s.metrics.RecordSnapshot("list", "error")
			return nil, err
		}
		for _, summary := range stored {
			byID[summary.SessionID] = summary
		}
	}

	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		summary := e.state.summary()
		e.mu.Unlock()
		byID[summary.SessionID] = summary
	}

	out := make([]ports.SessionSummary, 0, len(byID))
	for _, summary := range byID {
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// ResetGoal replaces the session's graph with a fresh root for a new goal
func (s *SessionStore) ResetGoal(ctx context.Context, id, goal string) (*SessionView, error) {
	return s.transition(ctx, id, "reset_goal", func(sess *Session) (bool, error) {
		graph, err := aggregates.NewGraphWithID(aggregates.GraphID(sess.id), goal, s.cfg)
		if err != nil {
			return false, err
		}
		sess.graph = graph
		sess.turns = nil
		sess.suggestions = []string{}
		sess.focusID = valueobjects.NodeID{}
		return true, nil
	})
}

// SetFocus records the node the user is interacting with; an empty id clears it
func (s *SessionStore) SetFocus(ctx context.Context, id, nodeID string) (*SessionView, error) {
	return s.transition(ctx, id, "set_focus", func(sess *Session) (bool, error) {
		if strings.TrimSpace(nodeID) == "" {
			changed := !sess.focusID.IsZero()
			sess.focusID = valueobjects.NodeID{}
			return changed, nil
		}
		nid, err := s.liveNode(sess, nodeID)
		if err != nil {
			return false, err
		}
		changed := !sess.focusID.Equals(nid)
		sess.focusID = nid
		return changed, nil
	})
}

// AddNode creates a node under a parent. A missing or unknown parent falls
// back to the first node in store order; an empty graph gets a centered node
// with no edge, which becomes the root unless another kind is requested.
func (s *SessionStore) AddNode(ctx context.Context, id string, in AddNodeInput) (*NodeResult, error) {
	var created *entities.Node
	view, err := s.transition(ctx, id, "add_node", func(sess *Session) (bool, error) {
		g := sess.graph

		var parent *entities.Node
		if pid, err := valueobjects.NodeIDFromString(in.ParentID); err == nil {
			parent, _ = g.Node(pid)
		}
		if parent == nil {
			if nodes := g.Nodes(); len(nodes) > 0 {
				parent = nodes[0]
			}
		}

		kind := entities.KindTopic
		position := valueobjects.Origin()
		switch {
		case parent != nil:
			if entities.ParseNodeKind(in.Kind) == entities.KindRoot && g.Root() == nil {
				kind = entities.KindRoot
			}
			position = g.PlaceNear(parent.ID())
		case strings.TrimSpace(in.Kind) == "" || entities.ParseNodeKind(in.Kind) == entities.KindRoot:
			kind = entities.KindRoot
		}

		node, err := entities.NewNodeWithConfig(in.Label, in.Description, kind, position, s.cfg)
		if err != nil {
			return false, err
		}
		node.SetImageRef(in.ImageRef)
		if err := g.AddNode(node); err != nil {
			return false, err
		}
		if parent != nil {
			if _, err := g.Connect(parent.ID(), node.ID(), entities.OriginUser); err != nil {
				return false, err
			}
		}

		sess.focusID = node.ID()
		created = node
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordNodesCreated(1)
	return &NodeResult{Node: nodeView(created), Session: view}, nil
}

// UpdateNode applies a direct user edit
func (s *SessionStore) UpdateNode(ctx context.Context, id, nodeID string, in UpdateNodeInput) (*NodeResult, error) {
	var updated *entities.Node
	view, err := s.transition(ctx, id, "update_node", func(sess *Session) (bool, error) {
		nid, err := s.liveNode(sess, nodeID)
		if err != nil {
			return false, err
		}
		node, err := sess.graph.UpdateNode(nid, in.Label, in.Description, in.ImageRef)
		if err != nil {
			return false, err
		}
		updated = node
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &NodeResult{Node: nodeView(updated), Session: view}, nil
}

// DeleteNode removes a node and all of its descendants. Unknown node ids are
// a no-op.
func (s *SessionStore) DeleteNode(ctx context.Context, id, nodeID string) (*DeleteResult, error) {
	result := &DeleteResult{RemovedNodes: []string{}}
	view, err := s.transition(ctx, id, "delete_node", func(sess *Session) (bool, error) {
		nid, err := valueobjects.NodeIDFromString(nodeID)
		if err != nil {
			return false, nil
		}
		removed, edges := sess.graph.DeleteCascade(nid)
		if len(removed) == 0 {
			return false, nil
		}
		for _, r := range removed {
			result.RemovedNodes = append(result.RemovedNodes, r.String())
			if r.Equals(sess.focusID) {
				sess.focusID = valueobjects.NodeID{}
			}
		}
		result.RemovedEdges = edges
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordNodesDeleted(len(result.RemovedNodes))
	result.Session = view
	return result, nil
}

// DuplicateNode copies a node without its edges and focuses the copy
func (s *SessionStore) DuplicateNode(ctx context.Context, id, nodeID string) (*NodeResult, error) {
	var dup *entities.Node
	view, err := s.transition(ctx, id, "duplicate_node", func(sess *Session) (bool, error) {
		nid, err := s.liveNode(sess, nodeID)
		if err != nil {
			return false, err
		}
		node, err := sess.graph.DuplicateNode(nid)
		if err != nil {
			return false, err
		}
		sess.focusID = node.ID()
		dup = node
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordNodesCreated(1)
	return &NodeResult{Node: nodeView(dup), Session: view}, nil
}

// Connect adds a user edge; only the endpoint and uniqueness rules apply
func (s *SessionStore) Connect(ctx context.Context, id, source, target string) (*EdgeResult, error) {
	var edge *entities.Edge
	view, err := s.transition(ctx, id, "connect", func(sess *Session) (bool, error) {
		src, err := s.liveNode(sess, source)
		if err != nil {
			return false, err
		}
		tgt, err := s.liveNode(sess, target)
		if err != nil {
			return false, err
		}
		e, err := sess.graph.Connect(src, tgt, entities.OriginUser)
		if err != nil {
			return false, err
		}
		edge = e
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &EdgeResult{Edge: edgeView(edge), Session: view}, nil
}

// Disconnect removes an edge by id
func (s *SessionStore) Disconnect(ctx context.Context, id, edgeID string) (*EdgeResult, error) {
	var edge *entities.Edge
	view, err := s.transition(ctx, id, "disconnect", func(sess *Session) (bool, error) {
		e, err := sess.graph.RemoveEdge(valueobjects.EdgeID(strings.TrimSpace(edgeID)))
		if err != nil {
			return false, err
		}
		edge = e
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &EdgeResult{Edge: edgeView(edge), Session: view}, nil
}

// ApplyResponse merges a raw model response produced elsewhere (for example
// by an in-browser model). userMessage, when set, is recorded first.
func (s *SessionStore) ApplyResponse(ctx context.Context, id, raw, userMessage string) (*ChatResult, error) {
	return s.applyRaw(ctx, id, raw, userMessage)
}

// SendMessage records the user's message, asks the completion service for a
// response and merges it. The completion call runs without holding the
// session lock; the merge applies to whatever state is current when it
// returns. Completion failures become an assistant message and leave the
// graph untouched.
func (s *SessionStore) SendMessage(ctx context.Context, id, text, focusID string) (*ChatResult, error) {
	if s.completer == nil {
		return nil, pkgerrors.NewUnavailableError("completion")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, pkgerrors.NewValidationError("message cannot be empty")
	}

	var messages []ports.ChatMessage
	_, err := s.transition(ctx, id, "send_message", func(sess *Session) (bool, error) {
		if sess.graph.Root() == nil {
			return false, pkgerrors.NewPreconditionError("no goal set for this session")
		}
		if strings.TrimSpace(focusID) != "" {
			nid, err := s.liveNode(sess, focusID)
			if err != nil {
				return false, err
			}
			sess.focusID = nid
		}
		sess.addTurn(ports.RoleUser, text, s.now())
		messages = s.prompts.Build(sess)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	start := s.now()
	raw, err := s.completer.Complete(ctx, messages)
	if err != nil {
		s.metrics.RecordCompletion("error", time.Since(start))
		s.logger.Error("completion failed",
			zap.String("session_id", id),
			zap.Error(err),
		)
		view, terr := s.transition(ctx, id, "completion_failed", func(sess *Session) (bool, error) {
			sess.addTurn(ports.RoleAssistant, completionFailureMessage, s.now())
			return true, nil
		})
		if terr != nil {
			return nil, terr
		}
		return &ChatResult{
			Session:          view,
			AssistantMessage: completionFailureMessage,
			Suggestions:      view.Suggestions,
			Failed:           true,
			Error:            err.Error(),
		}, nil
	}
	s.metrics.RecordCompletion("ok", time.Since(start))

	return s.applyRaw(ctx, id, raw, "")
}

func (s *SessionStore) applyRaw(ctx context.Context, id, raw, userMessage string) (*ChatResult, error) {
	proposal := s.parser.Parse(raw)
	s.metrics.RecordProposal(string(proposal.Format))
	if proposal.Format == domainservices.FormatNone {
		s.logger.Warn("model response not understood, using fallback message",
			zap.String("session_id", id),
			zap.Int("raw_length", len(raw)),
		)
	}

	result := &ChatResult{
		AssistantMessage: proposal.AssistantMessage,
		Suggestions:      proposal.Suggestions,
		Format:           string(proposal.Format),
	}

	view, err := s.transition(ctx, id, "apply_response", func(sess *Session) (bool, error) {
		if sess.graph.Root() == nil {
			return false, pkgerrors.NewPreconditionError("no goal set for this session")
		}
		if msg := strings.TrimSpace(userMessage); msg != "" {
			sess.addTurn(ports.RoleUser, msg, s.now())
		}

		anchorCtx := domainservices.AnchorContext{
			Graph:           sess.graph,
			FocusID:         sess.focusID,
			LastUserMessage: sess.lastUserMessage(s.cfg.ConversationWindow),
		}
		anchored, decisions := s.anchors.AnchorProposal(proposal, anchorCtx)
		merged, report := s.reconciler.Merge(anchored, sess.graph)

		sess.graph = merged
		sess.addTurn(ports.RoleAssistant, proposal.AssistantMessage, s.now())
		sess.suggestions = append([]string{}, proposal.Suggestions...)

		result.Report = &report
		result.Anchors = decisions
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.recordMerge(id, result)
	result.Session = view
	return result, nil
}

func (s *SessionStore) recordMerge(id string, result *ChatResult) {
	report := result.Report
	reasons := make([]string, 0, len(report.EdgesDropped))
	for _, d := range report.EdgesDropped {
		reasons = append(reasons, d.Reason)
	}
	s.metrics.RecordMerge(len(report.Created), len(report.Updated), len(report.EdgesAccepted), len(report.OrphansAttached), reasons)
	for _, a := range result.Anchors {
		s.metrics.RecordAnchor(string(a.Rule))
	}

	s.logger.Info("proposal merged",
		zap.String("session_id", id),
		zap.String("format", result.Format),
		zap.Int("created", len(report.Created)),
		zap.Int("updated", len(report.Updated)),
		zap.Int("edges_accepted", len(report.EdgesAccepted)),
		zap.Int("edges_dropped", len(report.EdgesDropped)),
		zap.Int("nodes_dropped", len(report.NodesDropped)),
		zap.Int("orphans_attached", len(report.OrphansAttached)),
	)
}

// transition runs fn against a clone of the session under the session lock.
// The clone replaces the current state only when fn reports a change and the
// graph still validates; the new state is then persisted and its events published.
func (s *SessionStore) transition(ctx context.Context, id, name string, fn func(sess *Session) (bool, error)) (*SessionView, error) {
	entry, err := s.entry(ctx, id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	next := entry.state.clone()
	changed, err := fn(next)
	if err != nil {
		s.logger.Debug("transition rejected",
			zap.String("session_id", id),
			zap.String("transition", name),
			zap.Error(err),
		)
		return nil, err
	}
	if !changed {
		return entry.state.view(), nil
	}
	if err := next.graph.Validate(); err != nil {
		s.logger.Error("transition produced an invalid graph",
			zap.String("session_id", id),
			zap.String("transition", name),
			zap.Error(err),
		)
		return nil, err
	}

	next.version++
	next.updatedAt = s.now()
	evts := next.graph.GetUncommittedEvents()
	next.graph.MarkEventsAsCommitted()
	entry.state = next

	s.persist(ctx, next)
	s.publish(ctx, evts)
	return next.view(), nil
}

// entry finds a live session, loading it from the repository on first access
func (s *SessionStore) entry(ctx context.Context, id string) (*sessionEntry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.NewValidationError("session id is required")
	}

	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return entry, nil
	}

	if s.repo == nil {
		return nil, pkgerrors.NewNotFoundError("session")
	}
	snap, err := s.repo.Load(ctx, id)
	if err != nil {
		if !pkgerrors.IsNotFound(err) {
			s.metrics.RecordSnapshot("load", "error")
		}
		return nil, err
	}
	sess, err := sessionFromSnapshot(snap, s.cfg)
	if err != nil {
		s.logger.Error("stored snapshot could not be restored",
			zap.String("session_id", id),
			zap.Error(err),
		)
		return nil, err
	}
	s.metrics.RecordSnapshot("load", "ok")

	s.mu.Lock()
	defer s.mu.Unlock()
	// another request may have loaded it meanwhile
	if existing, ok := s.sessions[id]; ok {
		return existing, nil
	}
	entry = &sessionEntry{state: sess}
	s.sessions[id] = entry
	s.metrics.SetActiveSessions(len(s.sessions))

	s.logger.Info("session rehydrated",
		zap.String("session_id", id),
		zap.Int("nodes", sess.graph.NodeCount()),
	)
	return entry, nil
}

func (s *SessionStore) liveNode(sess *Session, nodeID string) (valueobjects.NodeID, error) {
	nid, err := valueobjects.NodeIDFromString(nodeID)
	if err != nil || !sess.graph.HasNode(nid) {
		return valueobjects.NodeID{}, pkgerrors.NewNotFoundError("node")
	}
	return nid, nil
}

// persist saves a snapshot; failures are logged and never surfaced
func (s *SessionStore) persist(ctx context.Context, sess *Session) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, sess.toSnapshot()); err != nil {
		s.metrics.RecordSnapshot("save", "error")
		s.logger.Warn("snapshot save failed",
			zap.String("session_id", sess.id),
			zap.Int("version", sess.version),
			zap.Error(err),
		)
		return
	}
	s.metrics.RecordSnapshot("save", "ok")
}

func (s *SessionStore) publish(ctx context.Context, evts []events.DomainEvent) {
	if s.bus == nil || len(evts) == 0 {
		return
	}
	if err := s.bus.PublishBatch(ctx, evts); err != nil {
		s.logger.Warn("event publish failed",
			zap.Int("events", len(evts)),
			zap.Error(err),
		)
	}
}
