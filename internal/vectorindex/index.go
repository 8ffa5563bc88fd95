package vectorindex

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/coder/hnsw"

	"github.com/knowndev/devmemory/internal/dmerrors"
	"github.com/knowndev/devmemory/internal/embed"
)

// collection is one namespaced HNSW graph plus its id<->key mapping and
// document/metadata side-tables. Grounded on the teacher's HNSWStore
// (internal/store/hnsw.go in the teacher tree): lazy deletion by orphaning
// map entries rather than mutating the graph, since coder/hnsw has known
// issues deleting the last remaining node.
type collection struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	docs    map[string]string
	meta    map[string]Metadata
	nextKey uint64
}

func newCollection(dims int) *collection {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return &collection{
		graph:  g,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		docs:   make(map[string]string),
		meta:   make(map[string]Metadata),
	}
}

func (c *collection) upsert(id, document string, md Metadata, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.idMap[id]; ok {
		delete(c.keyMap, existing)
	}
	key := c.nextKey
	c.nextKey++
	c.graph.Add(hnsw.MakeNode(key, normalize(vec)))
	c.idMap[id] = key
	c.keyMap[key] = id
	c.docs[id] = document
	c.meta[id] = md
}

func (c *collection) deletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, key := range c.idMap {
		if strings.HasPrefix(id, prefix) {
			delete(c.keyMap, key)
			delete(c.idMap, id)
			delete(c.docs, id)
			delete(c.meta, id)
			n++
		}
	}
	return n
}

func (c *collection) deleteID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key, ok := c.idMap[id]; ok {
		delete(c.keyMap, key)
		delete(c.idMap, id)
		delete(c.docs, id)
		delete(c.meta, id)
	}
}

func (c *collection) search(query []float32, k int, filterLanguage string) []Hit {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.graph.Len() == 0 {
		return nil
	}
	q := normalize(query)
	// Over-fetch to allow for post-filtering and orphaned lazy-deleted nodes.
	want := k
	if filterLanguage != "" {
		want = k * 4
	}
	if want < k {
		want = k
	}
	nodes := c.graph.Search(q, want+8)

	hits := make([]Hit, 0, k)
	for _, node := range nodes {
		id, ok := c.keyMap[node.Key]
		if !ok {
			continue // orphaned by lazy deletion
		}
		md := c.meta[id]
		if filterLanguage != "" && md.Language != filterLanguage {
			continue
		}
		dist := c.graph.Distance(q, node.Value)
		hits = append(hits, Hit{
			ID:       id,
			Distance: dist,
			Metadata: md,
			Document: c.docs[id],
		})
		if len(hits) >= k {
			break
		}
	}
	return hits
}

func (c *collection) count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.idMap)
}

func (c *collection) countByLanguage() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int)
	for id := range c.idMap {
		lang := c.meta[id].Language
		if lang == "" {
			lang = "unknown"
		}
		out[lang]++
	}
	return out
}

// Index is the VectorIndex component (spec.md §4.2). One Index instance
// serves every project a daemon process has open; each project gets its
// own code/learnings/sessions collections under a namespaced prefix.
type Index struct {
	embedder embed.Embedder

	mu          sync.RWMutex
	collections map[string]*collection
}

// New builds a VectorIndex backed by the given embedder. Collections are
// created lazily on first write, one per (project, purpose) pair.
func New(embedder embed.Embedder) *Index {
	return &Index{
		embedder:    embedder,
		collections: make(map[string]*collection),
	}
}

func (x *Index) collectionFor(name string) *collection {
	x.mu.Lock()
	defer x.mu.Unlock()
	c, ok := x.collections[name]
	if !ok {
		c = newCollection(x.embedder.Dimensions())
		x.collections[name] = c
	}
	return c
}

// EmbedCodeFile deletes any existing chunks for fileID then inserts the new
// chunk set produced by ChunkText(content). Idempotent: re-ingesting
// identical content produces the same chunk set under the same ids.
func (x *Index) EmbedCodeFile(ctx context.Context, projectID, fileID, content string, md Metadata) error {
	col := x.collectionFor(CollectionName(projectID, PurposeCode))
	col.deletePrefix(fileID + ":chunk:")

	chunks := ChunkText(content)
	if len(chunks) == 0 {
		return nil
	}
	vecs, err := x.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return dmerrors.VectorError("embed_code_file", err)
	}
	if len(vecs) != len(chunks) {
		return dmerrors.VectorError("embed_code_file", fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks)))
	}
	for i, chunk := range chunks {
		cmd := md
		cmd.SchemaVersion = CurrentMetadataSchemaVersion
		cmd.FileID = fileID
		cmd.ChunkIndex = i
		cmd.ChunkCount = len(chunks)
		cmd.EntityKind = "code_chunk"
		col.upsert(ChunkID(fileID, i), chunk, cmd, vecs[i])
	}
	return nil
}

// DeleteCodeFile removes all chunks whose id begins with "<file_id>:chunk:".
func (x *Index) DeleteCodeFile(projectID, fileID string) {
	col := x.collectionFor(CollectionName(projectID, PurposeCode))
	col.deletePrefix(fileID + ":chunk:")
}

// EmbedLearning upserts a single document for a learning.
func (x *Index) EmbedLearning(ctx context.Context, projectID, id, title, body string, md Metadata) error {
	col := x.collectionFor(CollectionName(projectID, PurposeLearnings))
	doc := title + "\n\n" + body
	vecs, err := x.embedder.EmbedBatch(ctx, []string{doc})
	if err != nil {
		return dmerrors.VectorError("embed_learning", err)
	}
	md.SchemaVersion = CurrentMetadataSchemaVersion
	md.EntityID = id
	md.EntityKind = "learning"
	col.upsert(id, doc, md, vecs[0])
	return nil
}

// DeleteLearning removes a learning's embedding.
func (x *Index) DeleteLearning(projectID, id string) {
	x.collectionFor(CollectionName(projectID, PurposeLearnings)).deleteID(id)
}

// EmbedSession upserts a session's full context for semantic recall.
func (x *Index) EmbedSession(ctx context.Context, projectID, id, summary, fullContext string) error {
	col := x.collectionFor(CollectionName(projectID, PurposeSessions))
	doc := summary + "\n\n" + fullContext
	vecs, err := x.embedder.EmbedBatch(ctx, []string{doc})
	if err != nil {
		return dmerrors.VectorError("embed_session", err)
	}
	col.upsert(id, doc, Metadata{
		SchemaVersion: CurrentMetadataSchemaVersion,
		EntityID:      id,
		EntityKind:    "session",
	}, vecs[0])
	return nil
}

// Query runs a nearest-neighbor search against a project's named
// collection (one of PurposeCode/PurposeLearnings/PurposeSessions).
func (x *Index) Query(ctx context.Context, projectID string, purpose Purpose, text string, opts QueryOptions) ([]Hit, error) {
	k := opts.K
	if k <= 0 {
		k = 10
	}
	vecs, err := x.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, dmerrors.VectorError("query", err)
	}
	col := x.collectionFor(CollectionName(projectID, purpose))
	return col.search(vecs[0], k, opts.FilterLanguage), nil
}

// Stats aggregates document counts across a project's code collection,
// the collection stats() is specified against (spec.md §4.2).
func (x *Index) Stats(projectID string) Stats {
	col := x.collectionFor(CollectionName(projectID, PurposeCode))
	return Stats{
		TotalDocuments: col.count(),
		ByLanguage:     col.countByLanguage(),
	}
}

// Available reports whether the backing embedder is ready. The daemon's
// /health endpoint degrades to store-only operation when this is false
// (spec.md §4.4 failure semantics).
func (x *Index) Available(ctx context.Context) bool {
	return x.embedder.Available(ctx)
}

// ResetCollections drops every collection for a project (code, learnings,
// sessions), e.g. after a chunking-contract change that invalidates
// existing embeddings.
func (x *Index) ResetCollections(projectID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.collections, CollectionName(projectID, PurposeCode))
	delete(x.collections, CollectionName(projectID, PurposeLearnings))
	delete(x.collections, CollectionName(projectID, PurposeSessions))
}

func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return v
	}
	out := make([]float32, len(v))
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i, val := range v {
		out[i] = val * inv
	}
	return out
}
