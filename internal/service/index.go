package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rmonterde/go-story-chat-ollama/internal/domain"
	"github.com/rmonterde/go-story-chat-ollama/internal/port"
)

// chunkRef is the metadata carried alongside one indexed vector.
type chunkRef struct {
	StoryID    string
	StoryTitle string
	Ordinal    int
	Text       string
}

// tenantIndex is an immutable snapshot of one user's searchable chunks.
// Vectors are unit-normalized, so inner product equals cosine similarity.
// Snapshots are replaced wholesale, never mutated, which lets searches run
// against them without holding the tenant lock.
type tenantIndex struct {
	refs    []chunkRef
	vectors [][]float32
}

func (ix *tenantIndex) search(query []float32, k int) []domain.SearchResult {
	n := len(ix.refs)
	scores := make([]float64, n)
	order := make([]int, n)
	for i := range order {
		order[i] = i
		scores[i] = dot(ix.vectors[i], query)
	}

	// Rank by score descending; ties broken by story id then ordinal so
	// identical queries against an unchanged index always return the same
	// ordering.
	sort.Slice(order, func(a, b int) bool {
		i, j := order[a], order[b]
		if scores[i] != scores[j] {
			return scores[i] > scores[j]
		}
		if ix.refs[i].StoryID != ix.refs[j].StoryID {
			return ix.refs[i].StoryID < ix.refs[j].StoryID
		}
		return ix.refs[i].Ordinal < ix.refs[j].Ordinal
	})

	if k > n {
		k = n
	}
	results := make([]domain.SearchResult, 0, k)
	for _, i := range order[:k] {
		r := ix.refs[i]
		results = append(results, domain.SearchResult{
			StoryID:    r.StoryID,
			StoryTitle: r.StoryTitle,
			ChunkIndex: r.Ordinal,
			Text:       r.Text,
			Score:      scores[i],
		})
	}
	return results
}

// tenantEntry owns one user's index and its freshness state.
type tenantEntry struct {
	mu    sync.RWMutex
	idx   *tenantIndex // nil until the first successful rebuild
	stale bool
}

// IndexManager owns per-user vector indexes: construction timing,
// invalidation on story mutation, and atomic replacement. Each user has an
// independent entry with its own lock; unrelated users never contend.
type IndexManager struct {
	stories port.StoryStore
	chunks  port.ChunkStore
	ai      port.AIProvider
	chunker *Chunker

	mu      sync.Mutex
	tenants map[string]*tenantEntry
	group   singleflight.Group
}

// NewIndexManager creates an index manager over the given stores and
// embedding provider.
func NewIndexManager(stories port.StoryStore, chunks port.ChunkStore, ai port.AIProvider, chunker *Chunker) *IndexManager {
	return &IndexManager{
		stories: stories,
		chunks:  chunks,
		ai:      ai,
		chunker: chunker,
		tenants: make(map[string]*tenantEntry),
	}
}

func (m *IndexManager) entry(userID string) *tenantEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tenants[userID]
	if !ok {
		e = &tenantEntry{stale: true}
		m.tenants[userID] = e
	}
	return e
}

// OnStoryChanged marks a user's index stale. The next query for that user
// rebuilds synchronously before searching.
func (m *IndexManager) OnStoryChanged(userID string) {
	e := m.entry(userID)
	e.mu.Lock()
	e.stale = true
	e.mu.Unlock()
	slog.Info("index invalidated", "user_id", userID)
}

// Refresh rebuilds the user's index if it is stale or was never built.
// Concurrent callers for the same user share a single rebuild. On failure
// the previous index stays in effect and the error is returned.
func (m *IndexManager) Refresh(ctx context.Context, userID string) error {
	e := m.entry(userID)
	e.mu.RLock()
	fresh := e.idx != nil && !e.stale
	e.mu.RUnlock()
	if fresh {
		return nil
	}

	_, err, _ := m.group.Do(userID, func() (interface{}, error) {
		return nil, m.rebuild(ctx, userID)
	})
	return err
}

// Search embeds the query and ranks it against the user's current index.
// An absent or empty index yields an empty result set, not an error. If a
// rebuild fails but an earlier index survives, that index serves the query
// and the failure is logged; the stale flag stays set so the next query
// retries the rebuild.
func (m *IndexManager) Search(ctx context.Context, userID, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("top-k must be positive, got %d", k)
	}

	refreshErr := m.Refresh(ctx, userID)

	e := m.entry(userID)
	e.mu.RLock()
	idx := e.idx
	e.mu.RUnlock()

	if idx == nil {
		if refreshErr != nil {
			return nil, refreshErr
		}
		return nil, nil
	}
	if refreshErr != nil {
		slog.Warn("rebuild failed, serving previous index", "user_id", userID, "error", refreshErr)
	}

	if len(idx.refs) == 0 {
		return nil, nil
	}

	vec, err := m.ai.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	normalize(vec)

	return idx.search(vec, k), nil
}

// rebuild fetches the user's stories, chunks and embeds them, persists the
// chunk set, and swaps in a fresh index. Embedding and persistence happen
// before the swap, so the entry lock is held only for the pointer exchange.
func (m *IndexManager) rebuild(ctx context.Context, userID string) error {
	e := m.entry(userID)
	e.mu.Lock()
	e.stale = false
	e.mu.Unlock()

	// A failed rebuild must not let later queries treat the surviving
	// index as fresh.
	fail := func(err error) error {
		e.mu.Lock()
		e.stale = true
		e.mu.Unlock()
		return err
	}

	stories, err := m.stories.ListStories(ctx, userID)
	if err != nil {
		return fail(fmt.Errorf("list stories: %w", err))
	}

	var refs []chunkRef
	var texts []string
	for _, st := range stories {
		for i, text := range m.chunker.Chunk(st.Title + "\n\n" + st.Content) {
			refs = append(refs, chunkRef{StoryID: st.ID, StoryTitle: st.Title, Ordinal: i, Text: text})
			texts = append(texts, text)
		}
	}

	if len(texts) == 0 {
		if err := m.chunks.ReplaceChunks(ctx, userID, nil); err != nil {
			return fail(fmt.Errorf("clear chunks: %w", err))
		}
		e.mu.Lock()
		e.idx = &tenantIndex{}
		e.mu.Unlock()
		slog.Info("index cleared", "user_id", userID)
		return nil
	}

	vectors, err := m.ai.EmbedBatch(ctx, texts)
	if err != nil {
		return fail(fmt.Errorf("embed chunks: %w", err))
	}
	if len(vectors) != len(texts) {
		return fail(fmt.Errorf("%w: got %d vectors for %d chunks",
			port.ErrIndexInconsistent, len(vectors), len(texts)))
	}
	for _, v := range vectors {
		normalize(v)
	}

	rows := make([]domain.Chunk, len(refs))
	for i, r := range refs {
		rows[i] = domain.Chunk{
			UserID:     userID,
			StoryID:    r.StoryID,
			ChunkIndex: r.Ordinal,
			Text:       r.Text,
			Embedding:  vectors[i],
		}
	}
	if err := m.chunks.ReplaceChunks(ctx, userID, rows); err != nil {
		return fail(fmt.Errorf("persist chunks: %w", err))
	}

	e.mu.Lock()
	e.idx = &tenantIndex{refs: refs, vectors: vectors}
	e.mu.Unlock()

	slog.Info("index rebuilt", "user_id", userID, "stories", len(stories), "chunks", len(refs))
	return nil
}

// normalize scales v to unit length in place. Zero vectors are left as-is.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	inv := float32(1 / norm)
	for i := range v {
		v[i] *= inv
	}
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
