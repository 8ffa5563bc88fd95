// Package ingest implements the Ingestor (C3, spec.md §4.3): the per-file
// pipeline that filters, canonicalizes, detects language, extracts
// metadata and patterns, then commits a file to both the Store and the
// VectorIndex under a per-file lock.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/knowndev/devmemory/internal/chunkextract"
	"github.com/knowndev/devmemory/internal/config"
	"github.com/knowndev/devmemory/internal/gitignore"
	"github.com/knowndev/devmemory/internal/store"
	"github.com/knowndev/devmemory/internal/vectorindex"
)

// Ingestor runs the C3 pipeline against one project's Store + VectorIndex.
type Ingestor struct {
	store  *store.Store
	vector *vectorindex.Index
	cfg    *config.Config

	projectID string
	rootPath  string

	stats Stats
}

// Stats tracks the running accounting spec.md §4.3 step 7 names.
type Stats struct {
	IndexedFiles  int
	SkippedFiles  int
	Errors        int
	LastIndexedAt time.Time
}

// New builds an Ingestor bound to one project.
func New(st *store.Store, vec *vectorindex.Index, cfg *config.Config, rootPath string) *Ingestor {
	return &Ingestor{
		store:     st,
		vector:    vec,
		cfg:       cfg,
		projectID: cfg.ProjectID,
		rootPath:  rootPath,
	}
}

// Stats returns a snapshot of the accounting counters.
func (ig *Ingestor) Stats() Stats { return ig.stats }

// IngestFile runs the full per-file pipeline (spec.md §4.3 steps 1-7) for
// one absolute path.
func (ig *Ingestor) IngestFile(ctx context.Context, absPath string) error {
	relPath, err := filepath.Rel(ig.rootPath, absPath)
	if err != nil {
		return err
	}
	relPath = filepath.ToSlash(relPath)

	// Step 1: filter.
	if matchesIgnore(relPath, ig.cfg.IgnoreGlobs) {
		ig.stats.SkippedFiles++
		return nil
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		ig.stats.Errors++
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		// Canonicalize: resolve the real path; mark external if it
		// escapes the project root instead of rejecting outright.
		real, err := filepath.EvalSymlinks(absPath)
		if err != nil {
			ig.stats.SkippedFiles++
			return nil
		}
		absPath = real
		info, err = os.Stat(absPath)
		if err != nil {
			ig.stats.Errors++
			return err
		}
	}

	maxSize := ig.cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = config.NewConfig().MaxFileSize
	}
	if info.Size() > maxSize {
		ig.stats.SkippedFiles++
		return nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		ig.stats.Errors++
		return err
	}
	if isBinary(content) {
		ig.stats.SkippedFiles++
		return nil
	}

	isExternal := !isUnder(ig.rootPath, absPath)
	fileID := relPath

	// Step 3: language detection.
	lang := chunkextract.DetectLanguage(relPath)

	// Step 4: metadata extraction.
	md := chunkextract.ExtractMetadata(lang, string(content))

	// Step 5: pattern detection.
	patterns := chunkextract.DetectPatterns(string(content))

	lineCount := bytes.Count(content, []byte("\n")) + 1

	record := &store.CodeFile{
		ID:          fileID,
		RealPath:    absPath,
		ProjectID:   ig.projectID,
		Language:    string(lang),
		LineCount:   lineCount,
		SizeBytes:   info.Size(),
		ChunkCount:  vectorindex.ChunkCount(len(content)),
		IsExternal:  isExternal,
		MTime:       info.ModTime(),
		ContentHash: hashContent(content),
		IndexedAt:   time.Now(),
		Functions:   toSymbols(md.Functions, store.SymbolKindFunction),
		Classes:     toSymbols(md.Classes, store.SymbolKindClass),
		Imports:     toSymbols(md.Imports, store.SymbolKindImport),
		Exports:     toSymbols(md.Exports, store.SymbolKindExport),
	}
	for _, p := range patterns {
		line := p.LineNumber
		record.Patterns = append(record.Patterns, store.Pattern{
			Name:       p.Name,
			Category:   p.Category,
			Evidence:   p.Evidence,
			LineNumber: &line,
			Confidence: p.Confidence,
		})
	}

	// Step 6: dual-store commit under a per-file lock.
	var commitErr error
	lockErr := ig.store.WithFileLock(fileID, func() error {
		vecMD := vectorindex.Metadata{Language: string(lang)}
		if vecErr := ig.vector.EmbedCodeFile(ctx, ig.projectID, fileID, string(content), vecMD); vecErr != nil {
			slog.Warn("vector embed failed, degrading to exact-only", slog.String("file_id", fileID), slog.String("error", vecErr.Error()))
		}
		if _, err := ig.store.UpsertCodeFile(ctx, record); err != nil {
			// Store step failed: delete the vector chunks just written
			// to restore consistency (spec.md §4.3 step 6).
			ig.vector.DeleteCodeFile(ig.projectID, fileID)
			commitErr = err
			return err
		}
		return nil
	})
	if lockErr != nil {
		ig.stats.Errors++
		return lockErr
	}
	if commitErr != nil {
		ig.stats.Errors++
		return commitErr
	}

	ig.stats.IndexedFiles++
	ig.stats.LastIndexedAt = time.Now()
	return nil
}

// RemoveFile deletes a file's chunks from the VectorIndex, then its row
// (and derived symbols/patterns) from the Store. Order matters: vector
// first, so a mid-crash leaves a recoverable, re-ingestible state rather
// than orphaned chunks (spec.md §4.3 removeFile).
func (ig *Ingestor) RemoveFile(ctx context.Context, id string) error {
	return ig.store.WithFileLock(id, func() error {
		ig.vector.DeleteCodeFile(ig.projectID, id)
		return ig.store.RemoveCodeFile(ctx, id, ig.projectID)
	})
}

// IndexAll walks the project for indexable files, deduplicates, and runs
// the per-file pipeline for each. If force is false, files whose Store row
// already matches on mtime+size are skipped. Yields cooperatively every 50
// files by checking ctx between batches.
func (ig *Ingestor) IndexAll(ctx context.Context, force bool) (Stats, error) {
	paths, err := ig.discoverFiles(ctx)
	if err != nil {
		return ig.stats, err
	}

	for i, absPath := range paths {
		if i%50 == 0 {
			select {
			case <-ctx.Done():
				return ig.stats, ctx.Err()
			default:
			}
		}

		if !force {
			relPath, _ := filepath.Rel(ig.rootPath, absPath)
			relPath = filepath.ToSlash(relPath)
			if existing, err := ig.store.GetCodeFile(ctx, ig.projectID, relPath); err == nil && existing != nil {
				info, statErr := os.Stat(absPath)
				if statErr == nil && info.Size() == existing.SizeBytes && info.ModTime().Equal(existing.MTime) {
					continue
				}
			}
		}

		if err := ig.IngestFile(ctx, absPath); err != nil {
			slog.Warn("ingest failed", slog.String("path", absPath), slog.String("error", err.Error()))
		}
	}

	return ig.stats, nil
}

func (ig *Ingestor) discoverFiles(ctx context.Context) ([]string, error) {
	var out []string
	seen := make(map[string]bool)

	err := filepath.WalkDir(ig.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(ig.rootPath, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && matchesIgnore(rel+"/", ig.cfg.IgnoreGlobs) {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesIgnore(rel, ig.cfg.IgnoreGlobs) {
			return nil
		}
		if seen[rel] {
			return nil
		}
		seen[rel] = true
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(out)
	return out, nil
}

func matchesIgnore(relPath string, extra []string) bool {
	patterns := append(append([]string{}, defaultIgnorePatterns...), extra...)
	return gitignore.MatchesAnyPattern(relPath, patterns)
}

// defaultIgnorePatterns supplements config.Config.IgnoreGlobs with the VCS/
// build/lockfile/binary patterns spec.md §4.3 step 1 names as always-on
// defaults, independent of a project's own config.
var defaultIgnorePatterns = []string{
	".git/", "node_modules/", "vendor/", "__pycache__/",
	"dist/", "build/", "*.min.js", "*.min.css", "*.lock",
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.woff", "*.woff2",
	"*.so", "*.dylib", "*.dll", "*.exe",
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func isBinary(content []byte) bool {
	limit := 512
	if len(content) < limit {
		limit = len(content)
	}
	return bytes.IndexByte(content[:limit], 0) != -1
}

func toSymbols(names []string, kind store.SymbolKind) []store.Symbol {
	if len(names) == 0 {
		return nil
	}
	out := make([]store.Symbol, len(names))
	for i, n := range names {
		out[i] = store.Symbol{Name: n, Kind: kind}
	}
	return out
}

func isUnder(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}
