package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rmonterde/go-story-chat-ollama/internal/domain"
	"github.com/rmonterde/go-story-chat-ollama/internal/port"
)

const (
	answerNoStories     = "I couldn't find any relevant information in your uploaded stories."
	answerSynthesisDown = "I couldn't find a specific answer to your question."
	answerQueryFailed   = "I encountered an error processing your question. Please try again."

	synthesisSystemPrompt = `You are a helpful reading companion. Answer the question using only the provided story excerpts.
Be concise and quote the stories where it helps. If the excerpts do not contain the answer, say so.`
)

// ChatService runs the retrieval pipeline: index freshness, similarity
// search, context assembly, answer synthesis, and conversation recording.
type ChatService struct {
	ai            port.AIProvider
	index         *IndexManager
	conversations port.ConversationStore
	topK          int
	maxContext    int
}

// NewChatService creates a chat service.
func NewChatService(ai port.AIProvider, index *IndexManager, conversations port.ConversationStore, topK, maxContextChars int) *ChatService {
	if topK <= 0 {
		topK = 5
	}
	if maxContextChars <= 0 {
		maxContextChars = 2000
	}
	return &ChatService{
		ai:            ai,
		index:         index,
		conversations: conversations,
		topK:          topK,
		maxContext:    maxContextChars,
	}
}

// OnStoryChanged invalidates the user's index after a story mutation.
func (s *ChatService) OnStoryChanged(userID string) {
	s.index.OnStoryChanged(userID)
}

// Ask answers a question from the user's story corpus. Collaborator
// failures degrade to fixed fallback answers rather than propagating; a
// failed rebuild leaves the previous index in effect.
func (s *ChatService) Ask(ctx context.Context, userID, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}

	slog.Info("ask", "user_id", userID, "question", question)

	results, err := s.index.Search(ctx, userID, question, s.topK)
	if err != nil {
		// Embedding collaborator is down; degrade instead of surfacing a
		// hard error.
		slog.Error("search failed", "user_id", userID, "error", err)
		return &domain.Answer{Answer: answerQueryFailed, Sources: []string{}}, nil
	}

	if len(results) == 0 {
		return &domain.Answer{Answer: answerNoStories, Sources: []string{}}, nil
	}

	top := results
	if len(top) > maxContextResults {
		top = top[:maxContextResults]
	}

	contextText := assembleContext(top, s.maxContext)

	answer, err := s.ai.Chat(ctx, synthesisSystemPrompt, question, contextText)
	if err != nil {
		slog.Error("synthesis failed", "user_id", userID, "error", err)
		answer = answerSynthesisDown
	}

	sources := sourceTitles(top)
	confidence := clamp01(results[0].Score)

	rec := &domain.Conversation{
		UserID:   userID,
		Question: question,
		Answer:   answer,
		Sources:  sources,
	}
	if err := s.conversations.AppendConversation(ctx, rec); err != nil {
		slog.Error("append conversation failed", "user_id", userID, "error", err)
	}

	return &domain.Answer{
		Answer:     answer,
		Sources:    sources,
		Confidence: confidence,
	}, nil
}

// History returns the user's most recent exchanges, newest first.
func (s *ChatService) History(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	if limit <= 0 {
		limit = 10
	}
	records, err := s.conversations.RecentConversations(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent conversations: %w", err)
	}
	return records, nil
}

// sourceTitles collects story titles in rank order, deduplicated.
func sourceTitles(results []domain.SearchResult) []string {
	seen := make(map[string]bool, len(results))
	titles := make([]string, 0, len(results))
	for _, r := range results {
		if seen[r.StoryTitle] {
			continue
		}
		seen[r.StoryTitle] = true
		titles = append(titles, r.StoryTitle)
	}
	return titles
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
