package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/knowndev/devmemory/internal/dmerrors"
)

// Session is a captured work snapshot used as a source for learnings
// (spec.md §3 Session). Treated as opaque outside the Store.
type Session struct {
	ID          string
	ProjectID   string
	Summary     string
	FullContext string
	CreatedAt   time.Time
}

// CreateSession persists an opaque session snapshot and returns its id.
func (s *Store) CreateSession(ctx context.Context, projectID, summary, fullContext string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, project_id, summary, full_context) VALUES (?, ?, ?, ?)
	`, id, projectID, summary, fullContext)
	if err != nil {
		return "", dmerrors.StoreError("create_session", err)
	}
	return id, nil
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, summary, full_context, created_at FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.ProjectID, &sess.Summary, &sess.FullContext, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, dmerrors.NotFoundError(dmerrors.ErrCodeSessionNotFound, "session not found", err)
	}
	if err != nil {
		return nil, dmerrors.StoreError("get_session", err)
	}
	return &sess, nil
}
