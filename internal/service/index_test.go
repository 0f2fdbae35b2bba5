package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmonterde/go-story-chat-ollama/internal/domain"
	"github.com/rmonterde/go-story-chat-ollama/internal/port"
)

func newTestIndexManager() (*IndexManager, *fakeStoryStore, *fakeChunkStore, *fakeAI) {
	stories := newFakeStoryStore()
	chunks := newFakeChunkStore()
	ai := &fakeAI{}
	m := NewIndexManager(stories, chunks, ai, NewChunker(512))
	return m, stories, chunks, ai
}

func TestSearchAbsentTenantReturnsEmpty(t *testing.T) {
	m, _, _, _ := newTestIndexManager()

	results, err := m.Search(context.Background(), "nobody", "anything", 5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	m, _, _, _ := newTestIndexManager()

	_, err := m.Search(context.Background(), "u1", "anything", 0)
	assert.Error(t, err)

	_, err = m.Search(context.Background(), "u1", "anything", -3)
	assert.Error(t, err)
}

func TestRebuildIndexesAllChunks(t *testing.T) {
	m, stories, chunks, _ := newTestIndexManager()
	stories.add("u1", domain.Story{ID: "s1", Title: "Doc 1", Content: "The cat sat. It was happy."})
	stories.add("u1", domain.Story{ID: "s2", Title: "Doc 2", Content: "The dog ran fast."})

	results, err := m.Search(context.Background(), "u1", "animals", 10)

	require.NoError(t, err)
	assert.Len(t, results, 2)

	persisted := chunks.chunksFor("u1")
	require.Len(t, persisted, 2)
	for _, c := range persisted {
		assert.Equal(t, "u1", c.UserID)
		assert.Equal(t, 0, c.ChunkIndex)
		assert.NotEmpty(t, c.Text)
		assert.Len(t, c.Embedding, fakeDim)
	}
}

func TestLexicalRanking(t *testing.T) {
	m, stories, _, _ := newTestIndexManager()
	stories.add("u1", domain.Story{ID: "s1", Title: "Doc 1", Content: "The cat sat. It was happy."})
	stories.add("u1", domain.Story{ID: "s2", Title: "Doc 2", Content: "The dog ran fast."})

	results, err := m.Search(context.Background(), "u1", "What did the cat do?", 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "s1", results[0].StoryID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchIsDeterministic(t *testing.T) {
	m, stories, _, _ := newTestIndexManager()
	for i := 0; i < 6; i++ {
		// Identical text in every story forces score ties.
		stories.add("u1", domain.Story{
			ID:      fmt.Sprintf("s%d", i),
			Title:   "Story",
			Content: "Identical content for every story here.",
		})
	}

	first, err := m.Search(context.Background(), "u1", "identical content", 4)
	require.NoError(t, err)
	second, err := m.Search(context.Background(), "u1", "identical content", 4)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// All scores tie, so ordering falls back to story id then ordinal.
	for i := 1; i < len(first); i++ {
		assert.LessOrEqual(t, first[i-1].StoryID, first[i].StoryID)
	}
}

func TestKLargerThanCorpusReturnsAll(t *testing.T) {
	m, stories, _, _ := newTestIndexManager()
	stories.add("u1", domain.Story{ID: "s1", Title: "Only", Content: "A single short story."})

	results, err := m.Search(context.Background(), "u1", "story", 50)

	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDeleteStoryRemovesItsChunks(t *testing.T) {
	m, stories, chunks, _ := newTestIndexManager()
	stories.add("u1", domain.Story{ID: "s1", Title: "Keep", Content: "Keep me around."})
	stories.add("u1", domain.Story{ID: "s2", Title: "Drop", Content: "Drop me soon."})

	_, err := m.Search(context.Background(), "u1", "anything", 10)
	require.NoError(t, err)

	stories.remove("u1", "s2")
	m.OnStoryChanged("u1")

	results, err := m.Search(context.Background(), "u1", "drop me", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s1", results[0].StoryID)

	for _, c := range chunks.chunksFor("u1") {
		assert.NotEqual(t, "s2", c.StoryID)
	}
}

func TestZeroStoriesClearsIndex(t *testing.T) {
	m, stories, chunks, _ := newTestIndexManager()
	stories.add("u1", domain.Story{ID: "s1", Title: "Gone", Content: "Soon to vanish."})

	_, err := m.Search(context.Background(), "u1", "vanish", 5)
	require.NoError(t, err)
	require.NotEmpty(t, chunks.chunksFor("u1"))

	stories.remove("u1", "s1")
	m.OnStoryChanged("u1")

	results, err := m.Search(context.Background(), "u1", "vanish", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, chunks.chunksFor("u1"))
}

func TestFailedRebuildKeepsPreviousIndex(t *testing.T) {
	m, stories, _, ai := newTestIndexManager()
	stories.add("u1", domain.Story{ID: "s1", Title: "Doc 1", Content: "The cat sat. It was happy."})

	before, err := m.Search(context.Background(), "u1", "cat", 5)
	require.NoError(t, err)
	require.Len(t, before, 1)

	stories.add("u1", domain.Story{ID: "s2", Title: "Doc 2", Content: "The dog ran fast."})
	m.OnStoryChanged("u1")
	ai.setEmbedErr(fmt.Errorf("%w: collaborator down", port.ErrEmbedding))

	err = m.Refresh(context.Background(), "u1")
	assert.ErrorIs(t, err, port.ErrEmbedding)

	// Stale flag survived the failure, so the next query retries the
	// rebuild once the embedder recovers.
	ai.setEmbedErr(nil)
	results, err := m.Search(context.Background(), "u1", "cat", 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRebuildIdempotentWithoutMutation(t *testing.T) {
	m, stories, _, _ := newTestIndexManager()
	stories.add("u1", domain.Story{ID: "s1", Title: "Doc 1", Content: "The cat sat."})

	first, err := m.Search(context.Background(), "u1", "cat", 5)
	require.NoError(t, err)

	require.NoError(t, m.rebuild(context.Background(), "u1"))

	second, err := m.Search(context.Background(), "u1", "cat", 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTenantsAreIsolated(t *testing.T) {
	m, stories, _, _ := newTestIndexManager()
	stories.add("alice", domain.Story{ID: "a1", Title: "Alice Story", Content: "Alice went to the market."})
	stories.add("bob", domain.Story{ID: "b1", Title: "Bob Story", Content: "Bob stayed home all day."})

	aliceResults, err := m.Search(context.Background(), "alice", "market", 10)
	require.NoError(t, err)
	bobResults, err := m.Search(context.Background(), "bob", "market", 10)
	require.NoError(t, err)

	require.Len(t, aliceResults, 1)
	assert.Equal(t, "a1", aliceResults[0].StoryID)
	require.Len(t, bobResults, 1)
	assert.Equal(t, "b1", bobResults[0].StoryID)
}

func TestConcurrentSearchesShareOneRebuild(t *testing.T) {
	m, stories, _, ai := newTestIndexManager()
	stories.add("u1", domain.Story{ID: "s1", Title: "Doc", Content: "Some content to index."})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Search(context.Background(), "u1", "content", 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// 8 query embeds plus at least one (coalesced) batch rebuild.
	ai.mu.Lock()
	calls := ai.embedCalls
	ai.mu.Unlock()
	assert.GreaterOrEqual(t, calls, 9)
	assert.LessOrEqual(t, calls, 16)
}

func TestNormalizedScoresStayInRange(t *testing.T) {
	m, stories, _, _ := newTestIndexManager()
	stories.add("u1", domain.Story{ID: "s1", Title: "Doc", Content: "Words and more words repeated words."})

	results, err := m.Search(context.Background(), "u1", "words repeated", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.GreaterOrEqual(t, results[0].Score, -1.0)
	assert.LessOrEqual(t, results[0].Score, 1.000001)
}
