package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/knowndev/devmemory/internal/dmerrors"
)

// UpsertCodeFile inserts or replaces a CodeFile by id, atomically replacing
// its symbol and pattern sets in the same transaction (spec.md §4.1). It
// returns the prior row, if any existed.
func (s *Store) UpsertCodeFile(ctx context.Context, f *CodeFile) (*CodeFile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dmerrors.StoreError("begin upsert_code_file transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	prior, err := getCodeFileTx(ctx, tx, f.ProjectID, f.ID)
	if err != nil && dmerrors.GetCode(err) != dmerrors.ErrCodeFileNotFound {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO code_files (id, project_id, real_path, language, line_count, size_bytes, chunk_count, is_external, mtime, content_hash, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(project_id, id) DO UPDATE SET
			real_path = excluded.real_path,
			language = excluded.language,
			line_count = excluded.line_count,
			size_bytes = excluded.size_bytes,
			chunk_count = excluded.chunk_count,
			is_external = excluded.is_external,
			mtime = excluded.mtime,
			content_hash = excluded.content_hash,
			indexed_at = CURRENT_TIMESTAMP
	`, f.ID, f.ProjectID, f.RealPath, f.Language, f.LineCount, f.SizeBytes, f.ChunkCount, boolToInt(f.IsExternal), f.MTime, f.ContentHash)
	if err != nil {
		return nil, dmerrors.StoreError("upsert code_files row", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE project_id = ? AND code_file_id = ?`, f.ProjectID, f.ID); err != nil {
		return nil, dmerrors.StoreError("clear prior symbols", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM patterns WHERE project_id = ? AND code_file_id = ?`, f.ProjectID, f.ID); err != nil {
		return nil, dmerrors.StoreError("clear prior patterns", err)
	}

	if err := insertSymbols(ctx, tx, f, SymbolKindFunction, f.Functions); err != nil {
		return nil, err
	}
	if err := insertSymbols(ctx, tx, f, SymbolKindClass, f.Classes); err != nil {
		return nil, err
	}
	if err := insertSymbols(ctx, tx, f, SymbolKindImport, f.Imports); err != nil {
		return nil, err
	}
	if err := insertSymbols(ctx, tx, f, SymbolKindExport, f.Exports); err != nil {
		return nil, err
	}

	for _, p := range f.Patterns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO patterns (project_id, code_file_id, pattern_name, category, description, evidence, line_number, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, f.ProjectID, f.ID, p.Name, p.Category, p.Description, p.Evidence, p.LineNumber, p.Confidence); err != nil {
			return nil, dmerrors.StoreError("insert pattern", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, dmerrors.StoreError("commit upsert_code_file transaction", err)
	}
	return prior, nil
}

func insertSymbols(ctx context.Context, tx *sql.Tx, f *CodeFile, kind SymbolKind, syms []Symbol) error {
	for _, sym := range syms {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO symbols (project_id, code_file_id, kind, name, signature, line_start)
			VALUES (?, ?, ?, ?, ?, ?)
		`, f.ProjectID, f.ID, kind, sym.Name, sym.Signature, sym.LineStart); err != nil {
			return dmerrors.StoreError(fmt.Sprintf("insert %s symbol", kind), err)
		}
	}
	return nil
}

// RemoveCodeFile deletes a CodeFile and its owned symbols/patterns
// (cascading foreign keys). Not an error if the row is already gone.
func (s *Store) RemoveCodeFile(ctx context.Context, id, projectID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM code_files WHERE project_id = ? AND id = ?`, projectID, id)
	if err != nil {
		return dmerrors.StoreError("remove_code_file", err)
	}
	return nil
}

func getCodeFileTx(ctx context.Context, tx *sql.Tx, projectID, id string) (*CodeFile, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, project_id, real_path, language, line_count, size_bytes, chunk_count, is_external, mtime, content_hash, indexed_at
		FROM code_files WHERE project_id = ? AND id = ?
	`, projectID, id)

	var f CodeFile
	var isExternal int
	if err := row.Scan(&f.ID, &f.ProjectID, &f.RealPath, &f.Language, &f.LineCount, &f.SizeBytes, &f.ChunkCount, &isExternal, &f.MTime, &f.ContentHash, &f.IndexedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, dmerrors.NotFoundError(dmerrors.ErrCodeFileNotFound, "code file not found", err)
		}
		return nil, dmerrors.StoreError("scan code_files row", err)
	}
	f.IsExternal = isExternal != 0
	return &f, nil
}

// GetCodeFile looks up a single CodeFile by id.
func (s *Store) GetCodeFile(ctx context.Context, projectID, id string) (*CodeFile, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, dmerrors.StoreError("begin get_code_file transaction", err)
	}
	defer func() { _ = tx.Rollback() }()
	return getCodeFileTx(ctx, tx, projectID, id)
}

// FindFiles substring-matches on path or filename (spec.md §4.1 find_files).
func (s *Store) FindFiles(ctx context.Context, pattern string, opts FindFilesOpts) ([]*CodeFile, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, project_id, real_path, language, line_count, size_bytes, chunk_count, is_external, mtime, content_hash, indexed_at
		FROM code_files WHERE project_id = ? AND id LIKE ?
	`)
	args := []any{opts.ProjectID, "%" + pattern + "%"}

	if opts.Language != "" {
		query.WriteString(` AND language = ?`)
		args = append(args, opts.Language)
	}
	if !opts.IncludeExternal {
		query.WriteString(` AND is_external = 0`)
	}
	query.WriteString(` ORDER BY id`)
	if opts.Limit > 0 {
		query.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, dmerrors.StoreError("find_files query", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*CodeFile
	for rows.Next() {
		var f CodeFile
		var isExternal int
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.RealPath, &f.Language, &f.LineCount, &f.SizeBytes, &f.ChunkCount, &isExternal, &f.MTime, &f.ContentHash, &f.IndexedAt); err != nil {
			return nil, dmerrors.StoreError("scan find_files row", err)
		}
		f.IsExternal = isExternal != 0
		out = append(out, &f)
	}
	return out, rows.Err()
}

// FindFilesBySymbol matches on extracted symbol names (spec.md §4.1
// find_files_by_symbol).
func (s *Store) FindFilesBySymbol(ctx context.Context, name string, opts FindFilesBySymbolOpts) ([]*CodeFile, error) {
	query := `
		SELECT DISTINCT cf.id, cf.project_id, cf.real_path, cf.language, cf.line_count, cf.size_bytes, cf.chunk_count, cf.is_external, cf.mtime, cf.content_hash, cf.indexed_at
		FROM code_files cf
		JOIN symbols sym ON sym.project_id = cf.project_id AND sym.code_file_id = cf.id
		WHERE cf.project_id = ? AND sym.name = ?
		ORDER BY cf.id
	`
	args := []any{opts.ProjectID, name}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dmerrors.StoreError("find_files_by_symbol query", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*CodeFile
	for rows.Next() {
		var f CodeFile
		var isExternal int
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.RealPath, &f.Language, &f.LineCount, &f.SizeBytes, &f.ChunkCount, &isExternal, &f.MTime, &f.ContentHash, &f.IndexedAt); err != nil {
			return nil, dmerrors.StoreError("scan find_files_by_symbol row", err)
		}
		f.IsExternal = isExternal != 0
		out = append(out, &f)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
