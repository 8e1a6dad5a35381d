// internal/transport/http/auth.go
package http

import (
	"social-service/internal/auth"
	"social-service/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService *auth.Service
}

func NewAuthHandler(authService *auth.Service) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	user, err := h.authService.Register(c.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"user":   user,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		DeviceID string `json:"device_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and password are required"})
	}
	pair, user, err := h.authService.Login(c.Context(), req.Email, req.Password, auth.LoginDevice{
		DeviceID:  req.DeviceID,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"tokens": pair,
		"user":   user,
	})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.RefreshToken == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "refresh_token is required"})
	}
	pair, err := h.authService.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"tokens": pair,
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	sessionID, _ := middleware.SessionID(c)
	if err := h.authService.Logout(c.Context(), userID, sessionID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "logged out",
	})
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	closed, err := h.authService.LogoutAll(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":          "success",
		"sessions_closed": closed,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	user, err := h.authService.GetUser(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

func (h *AuthHandler) Sessions(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	sessions, err := h.authService.Sessions(c.Context(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *AuthHandler) RevokeSession(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	sessionID, err := uuid.Parse(c.Params("session_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid session_id"})
	}
	if err := h.authService.RevokeSession(c.Context(), userID, sessionID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "session revoked",
	})
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required"})
	}
	if err := h.authService.ForgotPassword(c.Context(), req.Email); err != nil {
		return serviceError(c, err)
	}
	// Same response whether or not the account exists.
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "if the address is registered, a reset link has been sent",
	})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Token == "" || req.NewPassword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token and new_password are required"})
	}
	if err := h.authService.ResetPassword(c.Context(), req.Token, req.NewPassword); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "password updated",
	})
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	userID, _ := middleware.UserID(c)
	sessionID, _ := middleware.SessionID(c)
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "current_password and new_password are required"})
	}
	if err := h.authService.ChangePassword(c.Context(), userID, sessionID, req.CurrentPassword, req.NewPassword); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "password changed",
	})
}
