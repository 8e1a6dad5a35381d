// internal/transport/http/media.go
package http

import (
	"social-service/internal/media"
	"social-service/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type MediaHandler struct {
	mediaService *media.Service
}

func NewMediaHandler(mediaService *media.Service) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

// Upload accepts a multipart form with a `file` field and an optional
// `post_id` field linking the attachment to a post.
func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file field is required"})
	}

	var postID *uuid.UUID
	if raw := c.FormValue("post_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post_id"})
		}
		postID = &id
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot read uploaded file"})
	}
	defer file.Close()

	attachment, err := h.mediaService.Upload(c.Context(), userID, postID, fileHeader.Filename, fileHeader.Size, file)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":     "success",
		"attachment": attachment,
	})
}

func (h *MediaHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid attachment id"})
	}
	attachment, err := h.mediaService.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"attachment": attachment})
}

func (h *MediaHandler) Mine(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	limit := getQueryInt(c, "limit", 50, 1, 200)
	offset := getQueryInt(c, "offset", 0, 0, 10000)
	attachments, err := h.mediaService.ByOwner(c.Context(), userID, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"attachments": attachments})
}

func (h *MediaHandler) Job(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid attachment id"})
	}
	job, err := h.mediaService.JobForAttachment(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"job": job})
}

func (h *MediaHandler) CancelJob(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	jobID, err := uuid.Parse(c.Params("job_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid job id"})
	}
	if err := h.mediaService.CancelJob(c.Context(), userID, jobID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "job cancelled",
	})
}
