package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"mindmap-backend/application/ports"
	pkgerrors "mindmap-backend/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	session_id TEXT PRIMARY KEY,
	goal       TEXT NOT NULL,
	node_count INTEGER NOT NULL,
	version    INTEGER NOT NULL,
	updated_at TEXT NOT NULL,
	data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_updated ON snapshots(updated_at DESC);
`

// an upsert only lands when the incoming version is newer
const upsertSnapshot = `
INSERT INTO snapshots (session_id, goal, node_count, version, updated_at, data)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	goal = excluded.goal,
	node_count = excluded.node_count,
	version = excluded.version,
	updated_at = excluded.updated_at,
	data = excluded.data
WHERE excluded.version > snapshots.version`

// fixed width so updated_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SnapshotRepository stores snapshots as JSON documents in a SQLite file
type SnapshotRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens or creates the database at path and applies the schema
func Open(path string, logger *zap.Logger) (*SnapshotRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	logger.Info("snapshot database ready", zap.String("path", path))
	return &SnapshotRepository{db: db, logger: logger}, nil
}

// Close releases the database handle
func (r *SnapshotRepository) Close() error {
	return r.db.Close()
}

// Save upserts the snapshot; an older or equal version is a conflict
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *ports.Snapshot) error {
	if snapshot == nil || snapshot.SessionID == "" {
		return pkgerrors.NewValidationError("snapshot requires a session id")
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return pkgerrors.NewPersistenceError("marshal snapshot", err)
	}

	res, err := r.db.ExecContext(ctx, upsertSnapshot,
		snapshot.SessionID,
		snapshot.Goal,
		len(snapshot.Nodes),
		snapshot.Version,
		snapshot.UpdatedAt.UTC().Format(timeLayout),
		string(data),
	)
	if err != nil {
		return pkgerrors.NewPersistenceError("save snapshot", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.NewPersistenceError("save snapshot", err)
	}
	if n == 0 {
		return pkgerrors.NewConflictError(fmt.Sprintf("snapshot version %d is not newer than the stored one", snapshot.Version))
	}
	return nil
}

// Load reads one snapshot
func (r *SnapshotRepository) Load(ctx context.Context, sessionID string) (*ports.Snapshot, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE session_id = ?`, sessionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError("session")
	}
	if err != nil {
		return nil, pkgerrors.NewPersistenceError("load snapshot", err)
	}

	var snap ports.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, pkgerrors.NewPersistenceError("decode snapshot", err)
	}
	return &snap, nil
}

// List returns summaries, most recently updated first
func (r *SnapshotRepository) List(ctx context.Context) ([]ports.SessionSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT session_id, goal, node_count, version, updated_at FROM snapshots ORDER BY updated_at DESC, session_id`)
	if err != nil {
		return nil, pkgerrors.NewPersistenceError("list snapshots", err)
	}
	defer rows.Close()

	out := []ports.SessionSummary{}
	for rows.Next() {
		var s ports.SessionSummary
		var updated string
		if err := rows.Scan(&s.SessionID, &s.Goal, &s.NodeCount, &s.Version, &updated); err != nil {
			return nil, pkgerrors.NewPersistenceError("scan snapshot", err)
		}
		if t, err := time.Parse(timeLayout, updated); err == nil {
			s.UpdatedAt = t
		} else {
			r.logger.Warn("bad updated_at in snapshot row", zap.String("session_id", s.SessionID), zap.Error(err))
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewPersistenceError("list snapshots", err)
	}
	return out, nil
}

// Delete removes a snapshot
func (r *SnapshotRepository) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE session_id = ?`, sessionID); err != nil {
		return pkgerrors.NewPersistenceError("delete snapshot", err)
	}
	return nil
}
