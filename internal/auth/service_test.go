package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"social-service/internal/common"
	"social-service/internal/config"
	"social-service/internal/database"
	"social-service/internal/token"
	"social-service/pkg/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		BcryptCost:      4, // keep tests fast
		SessionTTL:      time.Hour,
		ResetTokenTTL:   time.Hour,
		LoginWindow:     15 * time.Minute,
		AppBaseURL:      "http://localhost:3000",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	tokens, err := token.NewManager(token.Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "social-service",
		Audience:   "social-clients",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	require.NoError(t, err)
	return NewService(db, tokens, nil, nil, testConfig()), db
}

func registerAndLogin(t *testing.T, svc *Service) (*TokenPair, *models.User) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)
	pair, user, err := svc.Login(ctx, "alice@example.com", "password123", LoginDevice{
		DeviceID:  "device-1",
		IPAddress: "10.0.0.1",
		UserAgent: "tests",
	})
	require.NoError(t, err)
	return pair, user
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "Alice@Example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email) // normalized
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NotEqual(t, uuid.Nil, user.ID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "ab", "a@b.com", "password123")
	assert.ErrorIs(t, err, common.ErrValidation, "username too short")

	_, err = svc.Register(ctx, "alice", "not-an-email", "password123")
	assert.ErrorIs(t, err, common.ErrValidation, "invalid email")

	_, err = svc.Register(ctx, "alice", "a@b.com", "short")
	assert.ErrorIs(t, err, common.ErrValidation, "password too short")
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other@example.com", "password123")
	assert.ErrorIs(t, err, common.ErrConflict, "duplicate username")

	_, err = svc.Register(ctx, "alice2", "alice@example.com", "password123")
	assert.ErrorIs(t, err, common.ErrConflict, "duplicate email")
}

func TestLogin(t *testing.T) {
	svc, db := newTestService(t)
	pair, user := registerAndLogin(t, svc)

	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64((15 * time.Minute).Seconds()), pair.ExpiresIn)

	var sessions []models.UserSession
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].IsActive)
	assert.Equal(t, "device-1", sessions[0].DeviceID)
	assert.Equal(t, "10.0.0.1", sessions[0].IPAddress)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong-password", LoginDevice{})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.Login(context.Background(), "nobody@example.com", "password123", LoginDevice{})
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestRefreshRotation(t *testing.T) {
	svc, db := newTestService(t)
	pair, user := registerAndLogin(t, svc)
	ctx := context.Background()

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	var old models.RefreshToken
	require.NoError(t, db.First(&old, "token_hash = ?", token.HashOpaque(pair.RefreshToken)).Error)
	assert.True(t, old.Used)
	require.NotNil(t, old.ReplacedByID)

	var replacement models.RefreshToken
	require.NoError(t, db.First(&replacement, "id = ?", *old.ReplacedByID).Error)
	assert.Equal(t, token.HashOpaque(rotated.RefreshToken), replacement.TokenHash)
	assert.Equal(t, user.ID, replacement.UserID)
}

func TestRefreshReuseRevokesSession(t *testing.T) {
	svc, db := newTestService(t)
	pair, user := registerAndLogin(t, svc)
	ctx := context.Background()

	rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	// presenting the consumed token again is treated as theft
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	// the legitimate replacement dies with the session
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	var sessions []models.UserSession
	require.NoError(t, db.Where("user_id = ? AND is_active = ?", user.ID, true).Find(&sessions).Error)
	assert.Empty(t, sessions)
}

func TestConcurrentRefreshRedeemsOnce(t *testing.T) {
	// Two racing redemptions of one token: the conditional mark-used lets
	// exactly one win, the other trips reuse containment.
	for i := 0; i < 25; i++ {
		svc, _ := newTestService(t)
		pair, _ := registerAndLogin(t, svc)
		ctx := context.Background()

		start := make(chan struct{})
		results := make(chan error, 2)
		var wg sync.WaitGroup
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := svc.Refresh(ctx, pair.RefreshToken)
				results <- err
			}()
		}
		close(start)
		wg.Wait()
		close(results)

		var succeeded, revoked int
		for err := range results {
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrSessionRevoked):
				revoked++
			default:
				t.Fatalf("unexpected refresh error: %v", err)
			}
		}
		assert.Equal(t, 1, succeeded, "a refresh token must redeem exactly once")
		assert.Equal(t, 1, revoked)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Refresh(context.Background(), "never-issued")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestRefreshAfterLogout(t *testing.T) {
	svc, db := newTestService(t)
	pair, user := registerAndLogin(t, svc)
	ctx := context.Background()

	var session models.UserSession
	require.NoError(t, db.First(&session, "user_id = ?", user.ID).Error)
	require.NoError(t, svc.Logout(ctx, user.ID, session.ID))

	_, err := svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestLogoutForeignSession(t *testing.T) {
	svc, db := newTestService(t)
	_, user := registerAndLogin(t, svc)
	ctx := context.Background()

	var session models.UserSession
	require.NoError(t, db.First(&session, "user_id = ?", user.ID).Error)

	err := svc.Logout(ctx, uuid.New(), session.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	err = svc.Logout(ctx, user.ID, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLogoutAll(t *testing.T) {
	svc, _ := newTestService(t)
	_, user := registerAndLogin(t, svc)
	ctx := context.Background()

	// second device
	_, _, err := svc.Login(ctx, "alice@example.com", "password123", LoginDevice{DeviceID: "device-2"})
	require.NoError(t, err)

	closed, err := svc.LogoutAll(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), closed)

	sessions, err := svc.Sessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestTouchSession(t *testing.T) {
	svc, db := newTestService(t)
	_, user := registerAndLogin(t, svc)
	ctx := context.Background()

	var session models.UserSession
	require.NoError(t, db.First(&session, "user_id = ?", user.ID).Error)

	active, err := svc.TouchSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, svc.Logout(ctx, user.ID, session.ID))
	active, err = svc.TouchSession(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, active)

	active, err = svc.TouchSession(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSweepExpired(t *testing.T) {
	svc, db := newTestService(t)
	_, user := registerAndLogin(t, svc)
	ctx := context.Background()

	// force the session and its refresh token past expiry
	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.UserSession{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", past).Error)
	require.NoError(t, db.Model(&models.RefreshToken{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", past).Error)

	require.NoError(t, svc.SweepExpired(ctx))

	sessions, err := svc.Sessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	var tokens int64
	require.NoError(t, db.Model(&models.RefreshToken{}).
		Where("user_id = ?", user.ID).Count(&tokens).Error)
	assert.Zero(t, tokens)
}
