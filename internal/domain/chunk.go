package domain

import "time"

// Chunk is a bounded text span derived from exactly one story, the unit
// of embedding and retrieval. Ordinals are 0-based and contiguous within
// a story.
type Chunk struct {
	ID         int64     `json:"id"          db:"id"`
	UserID     string    `json:"user_id"     db:"user_id"`
	StoryID    string    `json:"story_id"    db:"story_id"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Text       string    `json:"text"        db:"chunk_text"`
	Embedding  []float32 `json:"-"           db:"embedding"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}

// SearchResult is one ranked hit from a similarity search. Score is the
// inner product of unit-normalized vectors, so it falls in [-1, 1].
type SearchResult struct {
	StoryID    string  `json:"story_id"`
	StoryTitle string  `json:"story_title"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}
