package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/knowndev/devmemory/internal/dmerrors"
)

// Project is the root record identifying a scanned project (spec.md
// GLOSSARY "Project ID"). One row per project_id, created on first open.
type Project struct {
	ID        string
	RootPath  string
	CreatedAt time.Time
}

// EnsureProject creates the project row if it doesn't already exist. Idempotent.
func (s *Store) EnsureProject(ctx context.Context, id, rootPath string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, root_path) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET root_path = excluded.root_path
	`, id, rootPath)
	if err != nil {
		return dmerrors.StoreError("ensure_project", err)
	}
	return nil
}

// GetProject fetches a project row by id.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	var p Project
	err := s.db.QueryRowContext(ctx, `SELECT id, root_path, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.RootPath, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, dmerrors.NotFoundError(dmerrors.ErrCodeProjectNotFound, "project not found", err)
	}
	if err != nil {
		return nil, dmerrors.StoreError("get_project", err)
	}
	return &p, nil
}
