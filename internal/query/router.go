package query

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/knowndev/devmemory/internal/store"
	"github.com/knowndev/devmemory/internal/vectorindex"
)

// Router executes hybrid_search, fast_search, and semantic_search against
// one project's Store and VectorIndex (spec.md §4.5 QueryRouter).
type Router struct {
	store  *store.Store
	vector *vectorindex.Index
}

// New builds a Router bound to a Store and VectorIndex.
func New(st *store.Store, vec *vectorindex.Index) *Router {
	return &Router{store: st, vector: vec}
}

// HybridSearch classifies the query and runs the matching path: an exact
// query returns the FastSearch hits, falling back to SemanticSearch only
// when FastSearch finds nothing; any other query runs SemanticSearch. The
// two result sets are never combined.
func (r *Router) HybridSearch(ctx context.Context, q string, opts Options) ([]Result, error) {
	start := time.Now()
	opts = withDefaults(opts)
	qtype := Classify(q)

	var results []Result
	var err error

	switch qtype {
	case TypeExact:
		results, err = r.FastSearch(ctx, q, opts)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			results, err = r.SemanticSearch(ctx, q, opts)
			if err != nil {
				return nil, err
			}
		}
	default:
		results, err = r.SemanticSearch(ctx, q, opts)
		if err != nil {
			return nil, err
		}
	}

	logSearch(q, string(qtype), len(results), time.Since(start), sourceOf(results))
	return results, nil
}

// FastSearch runs the exact path only: filename/path substring, falling
// back to symbol-name lookup.
func (r *Router) FastSearch(ctx context.Context, q string, opts Options) ([]Result, error) {
	opts = withDefaults(opts)

	files, err := r.store.FindFiles(ctx, q, store.FindFilesOpts{
		ProjectID: opts.ProjectID,
		Language:  opts.Language,
		Limit:     opts.Limit,
	})
	if err != nil {
		return nil, err
	}
	if len(files) > 0 {
		return fileResults(files, 100), nil
	}

	bySymbol, err := r.store.FindFilesBySymbol(ctx, q, store.FindFilesBySymbolOpts{
		ProjectID: opts.ProjectID,
		Limit:     opts.Limit,
	})
	if err != nil {
		return nil, err
	}
	return fileResults(bySymbol, 90), nil
}

// SemanticSearch runs the VectorIndex path, aggregating chunk hits per
// file_id into one Result (spec.md §4.5).
func (r *Router) SemanticSearch(ctx context.Context, q string, opts Options) ([]Result, error) {
	opts = withDefaults(opts)

	hits, err := r.vector.Query(ctx, opts.ProjectID, vectorindex.PurposeCode, q, vectorindex.QueryOptions{
		K:              opts.Limit * 4,
		FilterLanguage: opts.Language,
	})
	if err != nil {
		return nil, err
	}

	byFile := make(map[string]*Result)
	order := make([]string, 0, len(hits))
	for _, h := range hits {
		fileID := h.Metadata.FileID
		if fileID == "" {
			fileID = h.ID
		}
		relevance := int(math.Round(100 * float64(vectorindex.Similarity(h.Distance))))
		res, ok := byFile[fileID]
		if !ok {
			res = &Result{FileID: fileID, Source: SourceSemantic, Relevance: relevance, Language: h.Metadata.Language}
			byFile[fileID] = res
			order = append(order, fileID)
		}
		if relevance > res.Relevance {
			res.Relevance = relevance
		}
		res.Snippets = append(res.Snippets, Snippet{
			ChunkID:    h.ID,
			Relevance:  relevance,
			ChunkIndex: h.Metadata.ChunkIndex,
		})
	}

	out := make([]Result, 0, len(order))
	for _, id := range order {
		res := byFile[id]
		sort.Slice(res.Snippets, func(i, j int) bool { return res.Snippets[i].Relevance > res.Snippets[j].Relevance })
		if len(res.Snippets) > opts.Snippets {
			res.Snippets = res.Snippets[:opts.Snippets]
		}
		out = append(out, *res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func fileResults(files []*store.CodeFile, relevance int) []Result {
	out := make([]Result, len(files))
	for i, f := range files {
		out[i] = Result{FileID: f.ID, Source: SourceSQLite, Relevance: relevance, Language: f.Language}
	}
	return out
}

func sourceOf(results []Result) string {
	if len(results) == 0 {
		return "none"
	}
	return string(results[0].Source)
}

func withDefaults(opts Options) Options {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Snippets <= 0 {
		opts.Snippets = defaultSnippets
	}
	return opts
}

// logSearch emits the structured analytics record spec.md §4.5 names:
// {query, type, result_count, latency_ms, source}.
func logSearch(q, qtype string, count int, elapsed time.Duration, source string) {
	slog.Info("search",
		slog.String("query", q),
		slog.String("type", qtype),
		slog.Int("result_count", count),
		slog.Int64("latency_ms", elapsed.Milliseconds()),
		slog.String("source", source),
	)
}
