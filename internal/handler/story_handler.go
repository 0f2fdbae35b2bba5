package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/rmonterde/go-story-chat-ollama/internal/domain"
	"github.com/rmonterde/go-story-chat-ollama/internal/middleware"
	"github.com/rmonterde/go-story-chat-ollama/internal/port"
)

// StoryStore is the persistence surface the story handler needs.
type StoryStore interface {
	CreateStory(ctx context.Context, story *domain.Story) (*domain.Story, error)
	ListStories(ctx context.Context, userID string) ([]domain.Story, error)
	GetStory(ctx context.Context, userID, storyID string) (*domain.Story, error)
	DeleteStory(ctx context.Context, userID, storyID string) error
}

// IndexInvalidator is notified after any story mutation.
type IndexInvalidator interface {
	OnStoryChanged(userID string)
}

// StoryHandler handles story CRUD endpoints.
type StoryHandler struct {
	store StoryStore
	index IndexInvalidator
}

// NewStoryHandler creates a new story handler.
func NewStoryHandler(store StoryStore, index IndexInvalidator) *StoryHandler {
	return &StoryHandler{store: store, index: index}
}

// Register sets up story routes.
func (h *StoryHandler) Register(router fiber.Router) {
	stories := router.Group("/stories")
	stories.Post("/", h.Create)
	stories.Get("/", h.List)
	stories.Get("/:id", h.Get)
	stories.Delete("/:id", h.Delete)
}

// Create uploads a new story and invalidates the user's index.
func (h *StoryHandler) Create(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	body.Title = strings.TrimSpace(body.Title)
	body.Content = strings.TrimSpace(body.Content)
	if body.Title == "" || body.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title and content are required"})
	}

	story, err := h.store.CreateStory(c.Context(), &domain.Story{
		UserID:  uc.UserID,
		Title:   body.Title,
		Content: body.Content,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	h.index.OnStoryChanged(uc.UserID)

	return c.Status(fiber.StatusCreated).JSON(story)
}

// List returns the user's stories, newest first.
func (h *StoryHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	stories, err := h.store.ListStories(c.Context(), uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if stories == nil {
		stories = []domain.Story{}
	}

	return c.JSON(stories)
}

// Get returns one story.
func (h *StoryHandler) Get(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	story, err := h.store.GetStory(c.Context(), uc.UserID, c.Params("id"))
	if err != nil {
		if errors.Is(err, port.ErrStoryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "story not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(story)
}

// Delete removes a story and invalidates the user's index.
func (h *StoryHandler) Delete(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	if err := h.store.DeleteStory(c.Context(), uc.UserID, c.Params("id")); err != nil {
		if errors.Is(err, port.ErrStoryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "story not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	h.index.OnStoryChanged(uc.UserID)

	return c.JSON(fiber.Map{"ok": true})
}
