package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"social-service/internal/token"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessions struct {
	active  bool
	err     error
	touched []uuid.UUID
}

func (s *stubSessions) TouchSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	s.touched = append(s.touched, sessionID)
	return s.active, s.err
}

func testApp(t *testing.T, sessions SessionStore) (*fiber.App, *token.Manager) {
	t.Helper()
	tokens, err := token.NewManager(token.Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "social-service",
		Audience:   "social-clients",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/protected", RequireAuth(tokens, sessions), func(c *fiber.Ctx) error {
		userID, ok := UserID(c)
		require.True(t, ok)
		sessionID, ok := SessionID(c)
		require.True(t, ok)
		return c.JSON(fiber.Map{
			"user_id":    userID,
			"session_id": sessionID,
		})
	})
	return app, tokens
}

func TestRequireAuthMissingToken(t *testing.T) {
	app, _ := testApp(t, &stubSessions{active: true})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/protected", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAuthInvalidToken(t *testing.T) {
	app, _ := testApp(t, &stubSessions{active: true})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAuthValidToken(t *testing.T) {
	sessions := &stubSessions{active: true}
	app, tokens := testApp(t, sessions)

	sessionID := uuid.New()
	access, err := tokens.CreateAccess(uuid.New(), sessionID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, sessions.touched, 1)
	assert.Equal(t, sessionID, sessions.touched[0])
}

func TestRequireAuthInactiveSession(t *testing.T) {
	app, tokens := testApp(t, &stubSessions{active: false})

	access, err := tokens.CreateAccess(uuid.New(), uuid.New())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireAuthRejectsQueryToken(t *testing.T) {
	// only the SSE variant reads ?token=, so it never lands in request logs
	app, tokens := testApp(t, &stubSessions{active: true})

	access, err := tokens.CreateAccess(uuid.New(), uuid.New())
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/protected?token="+access, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireSSEAuthQueryFallback(t *testing.T) {
	// EventSource cannot set headers, so SSE clients pass ?token=
	_, tokens := testApp(t, &stubSessions{active: true})

	app := fiber.New()
	app.Get("/stream", RequireSSEAuth(tokens, &stubSessions{active: true}), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	access, err := tokens.CreateAccess(uuid.New(), uuid.New())
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/stream?token="+access, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// header auth still works on the stream route
	req := httptest.NewRequest(http.MethodGet, "/stream", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUserIDHelperWithoutAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/open", func(c *fiber.Ctx) error {
		_, ok := UserID(c)
		assert.False(t, ok)
		return c.SendStatus(http.StatusOK)
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
