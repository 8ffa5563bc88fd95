package store

import (
	"context"
	"database/sql"

	"github.com/knowndev/devmemory/internal/dmerrors"
)

// GetState reads a daemon bookkeeping value (last index time, chunk-id
// version, checkpoint, ...). Returns "" and no error if the key is unset.
func (s *Store) GetState(ctx context.Context, projectID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_state WHERE project_id = ? AND key = ?`, projectID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", dmerrors.StoreError("get_state", err)
	}
	return value, nil
}

// SetState upserts a daemon bookkeeping value.
func (s *Store) SetState(ctx context.Context, projectID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_state (project_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(project_id, key) DO UPDATE SET value = excluded.value
	`, projectID, key, value)
	if err != nil {
		return dmerrors.StoreError("set_state", err)
	}
	return nil
}
