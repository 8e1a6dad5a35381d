// internal/transport/http/posts.go
package http

import (
	"social-service/internal/middleware"
	"social-service/internal/post"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type PostHandler struct {
	postService *post.Service
}

func NewPostHandler(postService *post.Service) *PostHandler {
	return &PostHandler{postService: postService}
}

func (h *PostHandler) Create(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	var req struct {
		Body     string     `json:"body"`
		ParentID *uuid.UUID `json:"parent_id,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	p, err := h.postService.Create(c.Context(), userID, req.Body, req.ParentID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"post":   p,
	})
}

func (h *PostHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}
	p, err := h.postService.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"post": p})
}

func (h *PostHandler) Update(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	p, err := h.postService.Update(c.Context(), userID, id, req.Body)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"post":   p,
	})
}

func (h *PostHandler) Delete(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}
	if err := h.postService.Delete(c.Context(), userID, id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "post deleted",
	})
}

func (h *PostHandler) Feed(c *fiber.Ctx) error {
	limit := getQueryInt(c, "limit", 20, 1, 100)
	offset := getQueryInt(c, "offset", 0, 0, 10000)
	posts, err := h.postService.Feed(c.Context(), limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

func (h *PostHandler) ByAuthor(c *fiber.Ctx) error {
	authorID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}
	limit := getQueryInt(c, "limit", 20, 1, 100)
	offset := getQueryInt(c, "offset", 0, 0, 10000)
	posts, err := h.postService.ByAuthor(c.Context(), authorID, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts})
}

func (h *PostHandler) Replies(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}
	limit := getQueryInt(c, "limit", 50, 1, 200)
	offset := getQueryInt(c, "offset", 0, 0, 10000)
	replies, err := h.postService.Replies(c.Context(), id, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"replies": replies})
}

func (h *PostHandler) Thread(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}
	thread, err := h.postService.Thread(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"thread": thread})
}
