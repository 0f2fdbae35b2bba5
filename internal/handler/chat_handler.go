package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/rmonterde/go-story-chat-ollama/internal/domain"
	"github.com/rmonterde/go-story-chat-ollama/internal/middleware"
	"github.com/rmonterde/go-story-chat-ollama/internal/service"
)

// ChatHandler handles question answering and conversation history.
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Register sets up chat routes.
func (h *ChatHandler) Register(router fiber.Router) {
	chat := router.Group("/chat")
	chat.Post("/", h.Ask)
	chat.Get("/history", h.History)
}

// Ask answers a question from the user's uploaded stories.
func (h *ChatHandler) Ask(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Question string `json:"question"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "question is required"})
	}

	answer, err := h.chatService.Ask(c.Context(), uc.UserID, body.Question)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(answer)
}

// History returns the user's recent conversations, newest first.
func (h *ChatHandler) History(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	records, err := h.chatService.History(c.Context(), uc.UserID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if records == nil {
		records = []domain.Conversation{}
	}

	return c.JSON(records)
}
