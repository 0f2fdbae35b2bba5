package port

import (
	"context"

	"github.com/rmonterde/go-story-chat-ollama/internal/domain"
)

// StoryStore lists a user's current stories. Invoked only during index
// rebuild.
type StoryStore interface {
	ListStories(ctx context.Context, userID string) ([]domain.Story, error)
}

// ChunkStore persists the chunk set backing a user's index. ReplaceChunks
// swaps the user's entire chunk set in one transaction; a rebuild never
// leaves a partial set behind.
type ChunkStore interface {
	ReplaceChunks(ctx context.Context, userID string, chunks []domain.Chunk) error
}

// ConversationStore records question/answer exchanges. Records are
// append-only.
type ConversationStore interface {
	AppendConversation(ctx context.Context, rec *domain.Conversation) error
	RecentConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error)
}
