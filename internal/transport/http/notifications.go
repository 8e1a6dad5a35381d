// internal/transport/http/notifications.go
package http

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"social-service/internal/middleware"
	"social-service/internal/notification"
	"social-service/internal/sse"
	"social-service/pkg/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	notifyService *notification.Service
	broker        *sse.Broker
}

func NewNotificationHandler(notifyService *notification.Service, broker *sse.Broker) *NotificationHandler {
	return &NotificationHandler{notifyService: notifyService, broker: broker}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	status := models.NotificationStatus(c.Query("status"))
	switch status {
	case "", models.NotificationStatusUnread, models.NotificationStatusRead, models.NotificationStatusArchived:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid status filter"})
	}
	limit := getQueryInt(c, "limit", 50, 1, 200)
	offset := getQueryInt(c, "offset", 0, 0, 10000)
	items, err := h.notifyService.List(c.Context(), userID, status, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"notifications": items})
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	count, err := h.notifyService.UnreadCount(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"unread": count})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid notification id"})
	}
	if err := h.notifyService.MarkRead(c.Context(), userID, id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	updated, err := h.notifyService.MarkAllRead(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"updated": updated,
	})
}

func (h *NotificationHandler) Archive(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid notification id"})
	}
	if err := h.notifyService.Archive(c.Context(), userID, id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "success"})
}

func (h *NotificationHandler) RegisterFCMToken(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.notifyService.RegisterFCMToken(c.Context(), userID, req.Token); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "fcm token registered",
	})
}

func (h *NotificationHandler) UnregisterFCMToken(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	if err := h.notifyService.UnregisterFCMToken(c.Context(), userID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "fcm token removed",
	})
}

// Stream serves the realtime notification feed over server-sent events.
// Headers must be set before SetBodyStreamWriter takes over the body.
func (h *NotificationHandler) Stream(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)

	connStart := time.Now()
	log.Printf("🟢 [SSE] Connection started | user=%s ip=%s", userID, c.IP())

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	events := h.broker.Subscribe(userID)
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.broker.Unsubscribe(userID, events)
			log.Printf("🔴 [SSE] Connection closed | user=%s after %v", userID, time.Since(connStart))
		}()

		ready, _ := json.Marshal(fiber.Map{
			"status": "ready",
			"at":     time.Now().Format(time.RFC3339Nano),
		})
		if err := writeSSE(w, "ready", ready); err != nil {
			return
		}

		heartbeat := time.NewTicker(25 * time.Second)
		defer heartbeat.Stop()

		for {
			select {
			case <-done:
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeSSE(w, event.Type, event.Data); err != nil {
					log.Printf("⚠️ [SSE] Write failed for user=%s: %v", userID, err)
					return
				}
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

func writeSSE(w *bufio.Writer, event string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
