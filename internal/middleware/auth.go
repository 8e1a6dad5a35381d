// internal/middleware/auth.go
package middleware

import (
	"context"
	"log"
	"strings"

	"social-service/internal/token"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Context keys for user information (Fiber Locals)
const (
	UserIDContextKey    = "userID"
	SessionIDContextKey = "sessionID"
)

// SessionStore reports whether a session still authenticates and bumps its
// activity timestamp. Implemented by the auth service.
type SessionStore interface {
	TouchSession(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// RequireAuth validates the Bearer access token and the session behind it.
// On success it sets userID and sessionID locals and continues; otherwise 401.
func RequireAuth(tokens *token.Manager, sessions SessionStore) fiber.Handler {
	return requireAuth(tokens, sessions, false)
}

// RequireSSEAuth additionally accepts the access token as a `token` query
// parameter, since EventSource cannot set headers. Mount it on the stream
// route only, so tokens stay out of request logs everywhere else.
func RequireSSEAuth(tokens *token.Manager, sessions SessionStore) fiber.Handler {
	return requireAuth(tokens, sessions, true)
}

func requireAuth(tokens *token.Manager, sessions SessionStore, allowQueryToken bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" && allowQueryToken {
			raw = strings.TrimSpace(c.Query("token"))
		}
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized: missing access token",
			})
		}

		claims, err := tokens.ParseAccess(raw)
		if err != nil {
			log.Printf("[AUTH] ❌ REJECTED | IP=%s | Path=%s | %v", c.IP(), c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized: invalid or expired token",
			})
		}

		userID := uuid.MustParse(claims.UserID)
		sessionID := uuid.MustParse(claims.SessionID)

		active, err := sessions.TouchSession(c.Context(), sessionID)
		if err != nil {
			log.Printf("[AUTH] ❌ Session check failed | session=%s | %v", sessionID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "something went wrong",
			})
		}
		if !active {
			log.Printf("[AUTH] ❌ REJECTED (session inactive) | user=%s session=%s", userID, sessionID)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized: session expired or revoked",
			})
		}

		c.Locals(UserIDContextKey, userID)
		c.Locals(SessionIDContextKey, sessionID)
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// UserID retrieves the authenticated user id set by RequireAuth.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(UserIDContextKey).(uuid.UUID)
	return id, ok
}

// SessionID retrieves the authenticated session id set by RequireAuth.
func SessionID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(SessionIDContextKey).(uuid.UUID)
	return id, ok
}
