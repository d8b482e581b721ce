package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mindmap-backend/application/ports"
	pkgerrors "mindmap-backend/pkg/errors"
)

// SnapshotRepository keeps snapshots in process memory
type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*ports.Snapshot
}

// NewSnapshotRepository creates an empty in-memory repository
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{snapshots: make(map[string]*ports.Snapshot)}
}

// Save stores a copy of the snapshot
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *ports.Snapshot) error {
	if snapshot == nil || snapshot.SessionID == "" {
		return pkgerrors.NewValidationError("snapshot requires a session id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.snapshots[snapshot.SessionID]; ok && snapshot.Version <= existing.Version {
		return pkgerrors.NewConflictError(fmt.Sprintf("snapshot version %d is not newer than %d", snapshot.Version, existing.Version))
	}
	r.snapshots[snapshot.SessionID] = cloneSnapshot(snapshot)
	return nil
}

// Load returns a copy of the stored snapshot
func (r *SnapshotRepository) Load(ctx context.Context, sessionID string) (*ports.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.snapshots[sessionID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("session")
	}
	return cloneSnapshot(snap), nil
}

// List returns summaries, most recently updated first
func (r *SnapshotRepository) List(ctx context.Context) ([]ports.SessionSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ports.SessionSummary, 0, len(r.snapshots))
	for _, snap := range r.snapshots {
		out = append(out, ports.SessionSummary{
			SessionID: snap.SessionID,
			Goal:      snap.Goal,
			NodeCount: len(snap.Nodes),
			Version:   snap.Version,
			UpdatedAt: snap.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a snapshot
func (r *SnapshotRepository) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, sessionID)
	return nil
}

func cloneSnapshot(s *ports.Snapshot) *ports.Snapshot {
	c := *s
	c.Turns = append([]ports.SnapshotTurn(nil), s.Turns...)
	c.Nodes = append([]ports.SnapshotNode(nil), s.Nodes...)
	c.Edges = append([]ports.SnapshotEdge(nil), s.Edges...)
	c.Suggestions = append([]string(nil), s.Suggestions...)
	return &c
}
