// internal/transport/http/messages.go
package http

import (
	"social-service/internal/message"
	"social-service/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type MessageHandler struct {
	messageService *message.Service
}

func NewMessageHandler(messageService *message.Service) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func (h *MessageHandler) Send(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	var req struct {
		RecipientID string `json:"recipient_id"`
		Body        string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid recipient_id"})
	}
	msg, err := h.messageService.Send(c.Context(), userID, recipientID, req.Body)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"message": msg,
	})
}

func (h *MessageHandler) Conversation(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	otherID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}
	limit := getQueryInt(c, "limit", 50, 1, 200)
	offset := getQueryInt(c, "offset", 0, 0, 10000)
	messages, err := h.messageService.Conversation(c.Context(), userID, otherID, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

func (h *MessageHandler) MarkConversationRead(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	otherID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}
	updated, err := h.messageService.MarkConversationRead(c.Context(), userID, otherID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"updated": updated,
	})
}

func (h *MessageHandler) UnreadCount(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	count, err := h.messageService.UnreadCount(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"unread": count})
}
