package port

import "context"

// AIProvider abstracts the external model collaborators: embedding
// generation and answer synthesis. Implementations can target Ollama,
// OpenAI, or any compatible API; tests substitute deterministic fakes.
type AIProvider interface {
	// ModelName returns the identifier of the synthesis model being used.
	ModelName() string

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	// The result has exactly one vector per input text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Chat answers a question from the assembled context text.
	Chat(ctx context.Context, systemPrompt, question, contextText string) (string, error)
}
