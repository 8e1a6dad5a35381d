// internal/transport/http/social.go
package http

import (
	"social-service/internal/middleware"
	"social-service/internal/social"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SocialHandler struct {
	socialService *social.Service
}

func NewSocialHandler(socialService *social.Service) *SocialHandler {
	return &SocialHandler{socialService: socialService}
}

func (h *SocialHandler) Like(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}
	if err := h.socialService.Like(c.Context(), userID, postID); err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success"})
}

func (h *SocialHandler) Unlike(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}
	if err := h.socialService.Unlike(c.Context(), userID, postID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (h *SocialHandler) LikeCount(c *fiber.Ctx) error {
	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}
	count, err := h.socialService.LikeCount(c.Context(), postID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"likes": count})
}

func (h *SocialHandler) Share(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}
	var req struct {
		Comment *string `json:"comment,omitempty"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	share, err := h.socialService.Share(c.Context(), userID, postID, req.Comment)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"share":  share,
	})
}

func (h *SocialHandler) ShareCount(c *fiber.Ctx) error {
	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}
	count, err := h.socialService.ShareCount(c.Context(), postID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"shares": count})
}

func (h *SocialHandler) Follow(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	followeeID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}
	if err := h.socialService.Follow(c.Context(), userID, followeeID); err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success"})
}

func (h *SocialHandler) Unfollow(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	followeeID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}
	if err := h.socialService.Unfollow(c.Context(), userID, followeeID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (h *SocialHandler) Followers(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}
	limit := getQueryInt(c, "limit", 50, 1, 200)
	offset := getQueryInt(c, "offset", 0, 0, 10000)
	users, err := h.socialService.Followers(c.Context(), userID, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"followers": users})
}

func (h *SocialHandler) Following(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}
	limit := getQueryInt(c, "limit", 50, 1, 200)
	offset := getQueryInt(c, "offset", 0, 0, 10000)
	users, err := h.socialService.Following(c.Context(), userID, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"following": users})
}

func (h *SocialHandler) CreateComment(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	comment, err := h.socialService.CreateComment(c.Context(), userID, postID, req.Body)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  "success",
		"comment": comment,
	})
}

func (h *SocialHandler) UpdateComment(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	commentID, err := uuid.Parse(c.Params("comment_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid comment id"})
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	comment, err := h.socialService.UpdateComment(c.Context(), userID, commentID, req.Body)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"comment": comment,
	})
}

func (h *SocialHandler) DeleteComment(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	commentID, err := uuid.Parse(c.Params("comment_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid comment id"})
	}
	if err := h.socialService.DeleteComment(c.Context(), userID, commentID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "comment deleted",
	})
}

func (h *SocialHandler) Comments(c *fiber.Ctx) error {
	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}
	limit := getQueryInt(c, "limit", 50, 1, 200)
	offset := getQueryInt(c, "offset", 0, 0, 10000)
	comments, err := h.socialService.Comments(c.Context(), postID, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}
