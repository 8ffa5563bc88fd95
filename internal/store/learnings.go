package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/knowndev/devmemory/internal/dmerrors"
)

// CreateLearning inserts a new Learning and returns its generated id
// (spec.md §4.1 create_learning).
func (s *Store) CreateLearning(ctx context.Context, f NewLearningFields) (string, error) {
	if !ValidLearningCategories[f.Category] {
		return "", dmerrors.InputError(dmerrors.ErrCodeUnknownCategory, fmt.Sprintf("unknown learning category %q", f.Category), nil)
	}
	if f.Visibility == "" {
		f.Visibility = VisibilityPrivate
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO learnings (id, project_id, category, title, description, what_happened, lesson, prevention, context, confidence, times_validated, agent_id, visibility, source_session_id, source_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'low', 0, ?, ?, ?, ?)
	`, id, f.ProjectID, f.Category, f.Title, f.Description, f.WhatHappened, f.Lesson, f.Prevention, f.Context, f.AgentID, f.Visibility, f.SourceSessionID, f.SourceURL)
	if err != nil {
		return "", dmerrors.StoreError("create_learning", err)
	}
	return id, nil
}

func scanLearning(row interface{ Scan(...any) error }) (*Learning, error) {
	var l Learning
	var consolidated int
	if err := row.Scan(&l.ID, &l.ProjectID, &l.Category, &l.Title, &l.Description, &l.WhatHappened,
		&l.Lesson, &l.Prevention, &l.Context, &l.Confidence, &l.TimesValidated, &l.AgentID,
		&l.Visibility, &l.SourceSessionID, &l.SourceURL, &consolidated, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Consolidated = consolidated != 0
	return &l, nil
}

const learningColumns = `id, project_id, category, title, description, what_happened, lesson, prevention, context, confidence, times_validated, agent_id, visibility, source_session_id, source_url, consolidated, created_at`

// GetLearning fetches a learning by id, enforcing the visibility predicate
// for callerAgentID (nil = no caller identity, sees only shared/public/
// ownerless rows; spec.md §3 invariant 4).
func (s *Store) GetLearning(ctx context.Context, id string, callerAgentID *string) (*Learning, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+learningColumns+` FROM learnings WHERE id = ?`, id)
	l, err := scanLearning(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dmerrors.NotFoundError(dmerrors.ErrCodeLearningNotFound, "learning not found", err)
		}
		return nil, dmerrors.StoreError("get_learning", err)
	}
	if !canRead(l, callerAgentID) {
		return nil, dmerrors.AccessDeniedError("learning is not visible to this caller")
	}
	return l, nil
}

// canRead implements spec.md §3 invariant 4.
func canRead(l *Learning, callerAgentID *string) bool {
	if l.AgentID == nil {
		return true
	}
	if l.Visibility == VisibilityShared || l.Visibility == VisibilityPublic {
		return true
	}
	return callerAgentID != nil && *callerAgentID == *l.AgentID
}

// canWrite enforces ownership for mutating operations: only the owning
// agent (or an ownerless learning) may be written to.
func canWrite(l *Learning, callerAgentID *string) bool {
	if l.AgentID == nil {
		return true
	}
	return callerAgentID != nil && *callerAgentID == *l.AgentID
}

// ListLearnings lists learnings in a project, applying category and
// visibility filters (spec.md §4.1 list_learnings).
func (s *Store) ListLearnings(ctx context.Context, filter ListLearningsFilter) ([]*Learning, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT ` + learningColumns + ` FROM learnings WHERE project_id = ?`)
	args := []any{filter.ProjectID}

	if filter.Category != "" {
		query.WriteString(` AND category = ?`)
		args = append(args, filter.Category)
	}
	query.WriteString(` ORDER BY created_at DESC`)
	if filter.Limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, dmerrors.StoreError("list_learnings", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Learning
	for rows.Next() {
		l, err := scanLearning(rows)
		if err != nil {
			return nil, dmerrors.StoreError("scan list_learnings row", err)
		}
		if canRead(l, filter.CallerAgentID) {
			out = append(out, l)
		}
	}
	return out, rows.Err()
}

// ValidateLearning advances confidence one step per the threshold table
// (spec.md §4.1 validate_learning): low→medium at times_validated≥1,
// medium→high at ≥2, high→proven at ≥4 cumulative.
func (s *Store) ValidateLearning(ctx context.Context, id string) (*Learning, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dmerrors.StoreError("begin validate_learning transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+learningColumns+` FROM learnings WHERE id = ?`, id)
	l, err := scanLearning(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, dmerrors.NotFoundError(dmerrors.ErrCodeLearningNotFound, "learning not found", err)
		}
		return nil, dmerrors.StoreError("get learning for validation", err)
	}

	l.TimesValidated++
	l.Confidence = nextConfidenceForValidation(l.Confidence, l.TimesValidated)

	if _, err := tx.ExecContext(ctx, `
		UPDATE learnings SET times_validated = ?, confidence = ? WHERE id = ?
	`, l.TimesValidated, l.Confidence, id); err != nil {
		return nil, dmerrors.StoreError("update validated learning", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, dmerrors.StoreError("commit validate_learning transaction", err)
	}
	return l, nil
}

func nextConfidenceForValidation(current Confidence, timesValidated int) Confidence {
	switch current {
	case ConfidenceLow:
		if timesValidated >= 1 {
			return ConfidenceMedium
		}
	case ConfidenceMedium:
		if timesValidated >= 2 {
			return ConfidenceHigh
		}
	case ConfidenceHigh:
		if timesValidated >= 4 {
			return ConfidenceProven
		}
	}
	return current
}

// CreateLearningLink creates a directed edge, unique on (from, to); a
// duplicate is quietly ignored (spec.md §4.1 create_learning_link).
func (s *Store) CreateLearningLink(ctx context.Context, link LearningLink) error {
	if link.FromID == link.ToID {
		return dmerrors.InputError(dmerrors.ErrCodeInvalidInput, "learning link cannot be a self-loop", nil)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO learning_links (from_id, to_id, link_type, similarity)
		VALUES (?, ?, ?, ?)
	`, link.FromID, link.ToID, link.LinkType, link.Similarity)
	if err != nil {
		return dmerrors.StoreError("create_learning_link", err)
	}
	return nil
}

// MergeLearnings performs spec.md §4.5 steps 1-4 atomically: update keep's
// row, redirect learning_links and learning_entities away from the
// mergees, then delete the mergee rows. Step 5 (VectorIndex re-embed) is
// the caller's responsibility, since the Store has
// no VectorIndex handle.
func (s *Store) MergeLearnings(ctx context.Context, keep string, mergees []string, mergedDescription string, newConfidence Confidence, newValidations int) (*MergeResult, error) {
	if len(mergees) == 0 {
		return &MergeResult{KeepID: keep}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dmerrors.StoreError("begin merge_learnings transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Step 1: update keep's row.
	if _, err := tx.ExecContext(ctx, `
		UPDATE learnings SET description = ?, confidence = ?, times_validated = ?, consolidated = 1 WHERE id = ?
	`, mergedDescription, newConfidence, newValidations, keep); err != nil {
		return nil, dmerrors.StoreError("update keep learning", err)
	}

	placeholders, args := inClause(mergees)

	// Step 2: redirect learning_links, ignoring rows that would violate
	// the (from_id, to_id) uniqueness constraint; then drop self-loops and
	// whatever remains still pointing at a mergee.
	var linksUpdated int64
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE OR IGNORE learning_links SET from_id = ? WHERE from_id IN (%s)`, placeholders), append([]any{keep}, args...)...)
	if err != nil {
		return nil, dmerrors.StoreError("redirect learning_links.from_id", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		linksUpdated += n
	}
	res, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE OR IGNORE learning_links SET to_id = ? WHERE to_id IN (%s)`, placeholders), append([]any{keep}, args...)...)
	if err != nil {
		return nil, dmerrors.StoreError("redirect learning_links.to_id", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		linksUpdated += n
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM learning_links WHERE from_id = to_id`); err != nil {
		return nil, dmerrors.StoreError("delete self-loop links", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM learning_links WHERE from_id IN (%s) OR to_id IN (%s)`, placeholders, placeholders), append(append([]any{}, args...), args...)...); err != nil {
		return nil, dmerrors.StoreError("delete dangling links", err)
	}

	// Step 3: redirect learning_entities the same way. A row that fails to
	// redirect because keep already has that entity is not data loss: the
	// edge already exists under keep (see DESIGN.md open-question note).
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE OR IGNORE learning_entities SET learning_id = ? WHERE learning_id IN (%s)`, placeholders), append([]any{keep}, args...)...); err != nil {
		return nil, dmerrors.StoreError("redirect learning_entities", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM learning_entities WHERE learning_id IN (%s)`, placeholders), args...); err != nil {
		return nil, dmerrors.StoreError("delete dangling entity links", err)
	}

	// Step 4: delete the mergee rows.
	res, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM learnings WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, dmerrors.StoreError("delete merged learnings", err)
	}
	mergedCount, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return nil, dmerrors.StoreError("commit merge_learnings transaction", err)
	}

	return &MergeResult{
		KeepID:       keep,
		MergedCount:  int(mergedCount),
		LinksUpdated: int(linksUpdated),
	}, nil
}

func inClause(ids []string) (string, []any) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return placeholders, args
}

// Purge deletes every row for a project (or every project, if scope is
// empty) across every table — code files, symbols, patterns, learnings,
// links, entities, sessions, tasks, kv_state (spec.md §4.1 purge).
func (s *Store) Purge(ctx context.Context, scope PurgeScope) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dmerrors.StoreError("begin purge transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := []string{"code_files", "learnings", "sessions", "kv_state"}
	for _, table := range tables {
		if scope.ProjectID == "" {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, table)); err != nil {
				return dmerrors.StoreError("purge "+table, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE project_id = ?`, table), scope.ProjectID); err != nil {
			return dmerrors.StoreError("purge "+table, err)
		}
	}
	// symbols/patterns/learning_links/learning_entities cascade via
	// ON DELETE CASCADE foreign keys when their parent row is removed.

	if err := tx.Commit(); err != nil {
		return dmerrors.StoreError("commit purge transaction", err)
	}
	return nil
}
