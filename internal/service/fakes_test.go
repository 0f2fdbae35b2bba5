package service

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/rmonterde/go-story-chat-ollama/internal/domain"
	"github.com/rmonterde/go-story-chat-ollama/internal/port"
)

// fakeAI is a deterministic stand-in for the model collaborators. Embeddings
// are a hashed bag of words, so texts sharing vocabulary score higher than
// unrelated texts — enough to exercise ranking without a real model.
type fakeAI struct {
	mu         sync.Mutex
	embedCalls int
	chatCalls  int
	embedErr   error
	chatErr    error
	answer     string

	lastQuestion string
	lastContext  string
}

const fakeDim = 64

func hashEmbed(text string) []float32 {
	v := make([]float32, fakeDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, `.,!?"'`)
		if w == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%fakeDim]++
	}
	return v
}

func (f *fakeAI) ModelName() string { return "fake" }

func (f *fakeAI) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return hashEmbed(text), nil
}

func (f *fakeAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = hashEmbed(t)
	}
	return vectors, nil
}

func (f *fakeAI) Chat(ctx context.Context, systemPrompt, question, contextText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	f.lastQuestion = question
	f.lastContext = contextText
	if f.chatErr != nil {
		return "", f.chatErr
	}
	if f.answer != "" {
		return f.answer, nil
	}
	return "fake answer", nil
}

func (f *fakeAI) setEmbedErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedErr = err
}

func (f *fakeAI) chatCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatCalls
}

// fakeStoryStore serves stories from memory.
type fakeStoryStore struct {
	mu      sync.Mutex
	stories map[string][]domain.Story
	err     error
}

func newFakeStoryStore() *fakeStoryStore {
	return &fakeStoryStore{stories: make(map[string][]domain.Story)}
}

func (f *fakeStoryStore) ListStories(ctx context.Context, userID string) ([]domain.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Story(nil), f.stories[userID]...), nil
}

func (f *fakeStoryStore) add(userID string, story domain.Story) {
	f.mu.Lock()
	defer f.mu.Unlock()
	story.UserID = userID
	f.stories[userID] = append(f.stories[userID], story)
}

func (f *fakeStoryStore) remove(userID, storyID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.stories[userID][:0]
	for _, st := range f.stories[userID] {
		if st.ID != storyID {
			kept = append(kept, st)
		}
	}
	f.stories[userID] = kept
}

// fakeChunkStore records the last persisted chunk set per user.
type fakeChunkStore struct {
	mu        sync.Mutex
	persisted map[string][]domain.Chunk
	err       error
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{persisted: make(map[string][]domain.Chunk)}
}

func (f *fakeChunkStore) ReplaceChunks(ctx context.Context, userID string, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.persisted[userID] = append([]domain.Chunk(nil), chunks...)
	return nil
}

func (f *fakeChunkStore) chunksFor(userID string) []domain.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Chunk(nil), f.persisted[userID]...)
}

// fakeConversationStore is an in-memory append-only conversation log.
type fakeConversationStore struct {
	mu      sync.Mutex
	records map[string][]domain.Conversation
	err     error
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{records: make(map[string][]domain.Conversation)}
}

func (f *fakeConversationStore) AppendConversation(ctx context.Context, rec *domain.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	rec.ID = int64(len(f.records[rec.UserID]) + 1)
	f.records[rec.UserID] = append(f.records[rec.UserID], *rec)
	return nil
}

func (f *fakeConversationStore) RecentConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	all := f.records[userID]
	var out []domain.Conversation
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

var _ port.AIProvider = (*fakeAI)(nil)
var _ port.StoryStore = (*fakeStoryStore)(nil)
var _ port.ChunkStore = (*fakeChunkStore)(nil)
var _ port.ConversationStore = (*fakeConversationStore)(nil)
