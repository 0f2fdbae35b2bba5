package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rmonterde/go-story-chat-ollama/internal/domain"
	"github.com/rmonterde/go-story-chat-ollama/internal/port"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Migrate creates the schema if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT UNIQUE NOT NULL,
			email         TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS stories (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS story_chunks (
			id          BIGSERIAL PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id),
			story_id    TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			chunk_text  TEXT NOT NULL,
			embedding   BYTEA,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_story_chunks_user ON story_chunks(user_id)`,
		`CREATE TABLE IF NOT EXISTS conversation_history (
			id         BIGSERIAL PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			question   TEXT NOT NULL,
			answer     TEXT NOT NULL,
			sources    JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id         BIGSERIAL PRIMARY KEY,
			user_id    TEXT NOT NULL,
			action     TEXT NOT NULL,
			path       TEXT NOT NULL,
			details    JSONB NOT NULL DEFAULT '{}',
			ip         TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// --- Users ---

// CreateUser inserts a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*domain.User, error) {
	query := `INSERT INTO users (id, username, email, password_hash)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, username, email, password_hash, created_at`

	var user domain.User
	err := s.db.QueryRowContext(ctx, query, uuid.NewString(), username, email, passwordHash).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT id, username, email, password_hash, created_at
	          FROM users WHERE username = $1`

	var user domain.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// UserExists reports whether a username or email is already taken.
func (s *PostgresStore) UserExists(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
		username, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// --- Stories ---

// CreateStory inserts a new story record.
func (s *PostgresStore) CreateStory(ctx context.Context, story *domain.Story) (*domain.Story, error) {
	query := `INSERT INTO stories (id, user_id, title, content)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, user_id, title, content, created_at`

	var result domain.Story
	err := s.db.QueryRowContext(ctx, query,
		uuid.NewString(), story.UserID, story.Title, story.Content,
	).Scan(
		&result.ID, &result.UserID, &result.Title, &result.Content, &result.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	return &result, nil
}

// ListStories returns all of a user's stories, newest first.
func (s *PostgresStore) ListStories(ctx context.Context, userID string) ([]domain.Story, error) {
	query := `SELECT id, user_id, title, content, created_at
	          FROM stories WHERE user_id = $1 ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	var stories []domain.Story
	for rows.Next() {
		var st domain.Story
		if err := rows.Scan(&st.ID, &st.UserID, &st.Title, &st.Content, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		stories = append(stories, st)
	}
	return stories, rows.Err()
}

// GetStory returns one of the user's stories by ID.
func (s *PostgresStore) GetStory(ctx context.Context, userID, storyID string) (*domain.Story, error) {
	query := `SELECT id, user_id, title, content, created_at
	          FROM stories WHERE id = $1 AND user_id = $2`

	var st domain.Story
	err := s.db.QueryRowContext(ctx, query, storyID, userID).Scan(
		&st.ID, &st.UserID, &st.Title, &st.Content, &st.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrStoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	return &st, nil
}

// DeleteStory removes one of the user's stories.
func (s *PostgresStore) DeleteStory(ctx context.Context, userID, storyID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM stories WHERE id = $1 AND user_id = $2`, storyID, userID)
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrStoryNotFound
	}
	return nil
}

// --- Chunks ---

// ReplaceChunks swaps a user's entire chunk set inside one transaction.
// Rebuilds call this with the freshly embedded chunks; passing an empty
// slice clears the user's chunks.
func (s *PostgresStore) ReplaceChunks(ctx context.Context, userID string, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM story_chunks WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	if len(chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO story_chunks (user_id, story_id, chunk_index, chunk_text, embedding)
			 VALUES ($1, $2, $3, $4, $5)`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, c := range chunks {
			if _, err := stmt.ExecContext(ctx,
				userID, c.StoryID, c.ChunkIndex, c.Text, encodeVector(c.Embedding),
			); err != nil {
				return fmt.Errorf("insert chunk: %w", err)
			}
		}
	}

	return tx.Commit()
}

// ListChunks returns a user's persisted chunks in (story_id, chunk_index) order.
func (s *PostgresStore) ListChunks(ctx context.Context, userID string) ([]domain.Chunk, error) {
	query := `SELECT id, user_id, story_id, chunk_index, chunk_text, embedding, created_at
	          FROM story_chunks WHERE user_id = $1 ORDER BY story_id, chunk_index`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		if err := rows.Scan(&c.ID, &c.UserID, &c.StoryID, &c.ChunkIndex, &c.Text, &blob, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Embedding = decodeVector(blob)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// --- Conversations ---

// AppendConversation persists one question/answer exchange.
func (s *PostgresStore) AppendConversation(ctx context.Context, rec *domain.Conversation) error {
	sources := rec.Sources
	if sources == nil {
		sources = []string{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	query := `INSERT INTO conversation_history (user_id, question, answer, sources)
	          VALUES ($1, $2, $3, $4::jsonb)
	          RETURNING id, created_at`

	err = s.db.QueryRowContext(ctx, query,
		rec.UserID, rec.Question, rec.Answer, string(sourcesJSON),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("append conversation: %w", err)
	}
	return nil
}

// RecentConversations returns up to limit records, newest first.
func (s *PostgresStore) RecentConversations(ctx context.Context, userID string, limit int) ([]domain.Conversation, error) {
	query := `SELECT id, user_id, question, answer, sources, created_at
	          FROM conversation_history
	          WHERE user_id = $1 ORDER BY id DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent conversations: %w", err)
	}
	defer rows.Close()

	var records []domain.Conversation
	for rows.Next() {
		var rec domain.Conversation
		var sourcesJSON []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Question, &rec.Answer, &sourcesJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if err := json.Unmarshal(sourcesJSON, &rec.Sources); err != nil {
			return nil, fmt.Errorf("decode sources: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Audit Logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(userID, action, path, details, ip, userAgent string) error {
	query := `INSERT INTO audit_logs (user_id, action, path, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4::jsonb, $5, $6)`
	_, err := s.db.ExecContext(context.Background(), query,
		userID, action, path, details, ip, userAgent,
	)
	return err
}

// ListAuditLogs returns recent audit logs with an optional action filter.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, user_id, action, path, details::text, ip, user_agent, created_at
	          FROM audit_logs`
	args := []interface{}{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(" WHERE action = $%d", argIdx)
		args = append(args, action)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Action, &l.Path,
			&l.Details, &l.IP, &l.UserAgent, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
