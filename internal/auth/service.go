// Package auth implements the account and session subsystem: registration,
// login with throttling, JWT + refresh-token issuance, rotation with reuse
// detection, session tracking and the password reset flow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"social-service/internal/common"
	"social-service/internal/config"
	"social-service/internal/email"
	"social-service/internal/email/templates"
	"social-service/internal/password"
	"social-service/internal/ratelimit"
	"social-service/internal/token"
	"social-service/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	// dummyHash keeps the bcrypt cost of a failed lookup close to a real
	// verification so login timing does not leak account existence.
	dummyHash, _ = password.Hash("not-a-real-password", 10)
)

// ErrSessionRevoked is returned when a refresh token or session has been
// invalidated, including by reuse detection.
var ErrSessionRevoked = errors.New("session revoked")

// errAlreadyRotated signals that another request redeemed the token between
// our read and the rotation write. Treated the same as reuse.
var errAlreadyRotated = errors.New("refresh token already rotated")

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginDevice captures where a login came from, for the session record and
// the new-login email.
type LoginDevice struct {
	DeviceID  string
	IPAddress string
	UserAgent string
}

type Service struct {
	db      *gorm.DB
	tokens  *token.Manager
	sender  *email.Sender            // nil disables email side effects
	limiter *ratelimit.LoginLimiter  // nil disables login throttling
	cfg     *config.Config
}

func NewService(db *gorm.DB, tokens *token.Manager, sender *email.Sender, limiter *ratelimit.LoginLimiter, cfg *config.Config) *Service {
	return &Service{db: db, tokens: tokens, sender: sender, limiter: limiter, cfg: cfg}
}

// Register creates a user with a unique username and email.
func (s *Service) Register(ctx context.Context, username, emailAddr, plainPassword string) (*models.User, error) {
	username = strings.TrimSpace(username)
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%w: username must be 3-50 characters (letters, digits, underscore)", common.ErrValidation)
	}
	if !emailPattern.MatchString(emailAddr) {
		return nil, fmt.Errorf("%w: invalid email address", common.ErrValidation)
	}

	hash, err := password.Hash(plainPassword, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", username, emailAddr).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check uniqueness: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: username or email already taken", common.ErrConflict)
	}

	user := &models.User{
		Username:     username,
		Email:        emailAddr,
		PasswordHash: hash,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	log.Printf("✅ [AUTH] Registered user %s (%s)", user.Username, user.ID)

	if s.sender != nil {
		if err := s.sender.SendWelcome(ctx, user.Email, user.Username); err != nil {
			log.Printf("⚠️ [AUTH] Welcome email failed for %s: %v", user.Email, err)
		}
	}
	return user, nil
}

// Login verifies credentials, opens a session and mints a token pair.
func (s *Service) Login(ctx context.Context, emailAddr, plainPassword string, device LoginDevice) (*TokenPair, *models.User, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	if s.limiter != nil {
		if err := s.limiter.Enforce(ctx, emailAddr, device.IPAddress); err != nil {
			if errors.Is(err, ratelimit.ErrRateLimited) {
				s.stampLockout(ctx, emailAddr)
				return nil, nil, err
			}
			// Redis outage must not take logins down with it.
			log.Printf("⚠️ [AUTH] Login limiter unavailable: %v", err)
		}
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", emailAddr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			password.Verify(plainPassword, dummyHash) // equalize timing
			s.registerFailure(ctx, emailAddr, device.IPAddress)
			return nil, nil, common.ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	if user.LockedUntil != nil && time.Now().Before(*user.LockedUntil) {
		return nil, nil, ratelimit.ErrRateLimited
	}

	if !password.Verify(plainPassword, user.PasswordHash) {
		s.registerFailure(ctx, emailAddr, device.IPAddress)
		return nil, nil, common.ErrInvalidCredentials
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, emailAddr); err != nil {
			log.Printf("⚠️ [AUTH] Limiter reset failed: %v", err)
		}
	}
	if user.LockedUntil != nil {
		if err := s.db.WithContext(ctx).Model(&user).Update("locked_until", nil).Error; err != nil {
			log.Printf("⚠️ [AUTH] Clearing lockout failed for %s: %v", user.ID, err)
		}
	}

	now := time.Now()
	session := &models.UserSession{
		UserID:         user.ID,
		DeviceID:       device.DeviceID,
		IPAddress:      device.IPAddress,
		UserAgent:      device.UserAgent,
		IsActive:       true,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.cfg.SessionTTL),
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	pair, err := s.issueTokens(ctx, s.db, user.ID, session.ID, nil)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("✅ [AUTH] Login user=%s session=%s ip=%s", user.ID, session.ID, device.IPAddress)

	if s.sender != nil {
		if err := s.sender.SendNewLogin(ctx, user.Email, templates.NewLoginData{
			Username:  user.Username,
			Timestamp: now.UTC().Format(time.RFC1123),
			IPAddress: device.IPAddress,
			UserAgent: truncate(device.UserAgent, 80),
		}); err != nil {
			log.Printf("⚠️ [AUTH] New-login email failed for %s: %v", user.Email, err)
		}
	}

	return pair, &user, nil
}

// Refresh rotates a refresh token: the presented token is marked used and a
// replacement is linked through ReplacedByID. Presenting a token that is
// already used or revoked is treated as theft — every token of the session is
// revoked and the session deactivated.
func (s *Service) Refresh(ctx context.Context, plainRefresh string) (*TokenPair, error) {
	hash := token.HashOpaque(plainRefresh)

	var rt models.RefreshToken
	err := s.db.WithContext(ctx).First(&rt, "token_hash = ?", hash).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	now := time.Now()
	if rt.Used || rt.Revoked {
		log.Printf("🚨 [AUTH] Refresh token reuse detected: user=%s session=%s", rt.UserID, rt.SessionID)
		if err := s.revokeSessionTx(ctx, s.db, rt.SessionID); err != nil {
			log.Printf("❌ [AUTH] Failed to revoke compromised session %s: %v", rt.SessionID, err)
		}
		return nil, ErrSessionRevoked
	}
	if now.After(rt.ExpiresAt) {
		return nil, common.ErrInvalidCredentials
	}

	var session models.UserSession
	if err := s.db.WithContext(ctx).First(&session, "id = ?", rt.SessionID).Error; err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if !session.IsActive || now.After(session.ExpiresAt) {
		return nil, ErrSessionRevoked
	}

	var pair *TokenPair
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		pair, txErr = s.issueTokens(ctx, tx, rt.UserID, rt.SessionID, &rt)
		if txErr != nil {
			return txErr
		}
		return tx.Model(&models.UserSession{}).
			Where("id = ?", session.ID).
			Update("last_activity_at", now).Error
	})
	if errors.Is(err, errAlreadyRotated) {
		// Two redemptions of the same token in flight. Same containment as a
		// detected reuse: kill the whole session.
		log.Printf("🚨 [AUTH] Concurrent refresh token redemption: user=%s session=%s", rt.UserID, rt.SessionID)
		if revokeErr := s.revokeSessionTx(ctx, s.db, rt.SessionID); revokeErr != nil {
			log.Printf("❌ [AUTH] Failed to revoke compromised session %s: %v", rt.SessionID, revokeErr)
		}
		return nil, ErrSessionRevoked
	}
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// issueTokens mints an access token and a stored refresh token. When rotating,
// previous is marked used and linked to its replacement.
func (s *Service) issueTokens(ctx context.Context, db *gorm.DB, userID, sessionID uuid.UUID, previous *models.RefreshToken) (*TokenPair, error) {
	plain, hash, err := token.NewOpaque()
	if err != nil {
		return nil, err
	}

	rt := &models.RefreshToken{
		UserID:    userID,
		SessionID: sessionID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(s.tokens.RefreshTTL()),
	}
	if err := db.WithContext(ctx).Create(rt).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	if previous != nil {
		// Conditional write: only an unused, unrevoked token rotates. A lost
		// race here means someone else redeemed it first.
		res := db.WithContext(ctx).Model(&models.RefreshToken{}).
			Where("id = ? AND used = ? AND revoked = ?", previous.ID, false, false).
			Updates(map[string]interface{}{
				"used":           true,
				"replaced_by_id": rt.ID,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("rotate refresh token: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, errAlreadyRotated
		}
	}

	access, err := s.tokens.CreateAccess(userID, sessionID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: plain,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Logout deactivates one session and revokes its outstanding tokens.
func (s *Service) Logout(ctx context.Context, userID, sessionID uuid.UUID) error {
	var session models.UserSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.ErrNotFound
		}
		return err
	}
	if session.UserID != userID {
		return common.ErrForbidden
	}
	return s.revokeSessionTx(ctx, s.db, sessionID)
}

// LogoutAll deactivates every active session of the user and returns how many
// sessions were closed.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	var closed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserSession{}).
			Where("user_id = ? AND is_active = ?", userID, true).
			Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		closed = res.RowsAffected
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND used = ? AND revoked = ?", userID, false, false).
			Update("revoked", true).Error
	})
	return closed, err
}

// Sessions lists the user's active sessions, most recently used first.
func (s *Service) Sessions(ctx context.Context, userID uuid.UUID) ([]models.UserSession, error) {
	var sessions []models.UserSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("last_activity_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// RevokeSession lets a user close one of their other sessions.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return s.Logout(ctx, userID, sessionID)
}

// TouchSession reports whether the session still authenticates and bumps its
// activity timestamp. Called from the auth middleware on every request.
func (s *Service) TouchSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var session models.UserSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if !session.IsActive || time.Now().After(session.ExpiresAt) {
		return false, nil
	}
	if err := s.db.WithContext(ctx).Model(&session).
		Update("last_activity_at", time.Now()).Error; err != nil {
		log.Printf("⚠️ [AUTH] Session touch failed for %s: %v", sessionID, err)
	}
	return true, nil
}

// GetUser loads a user by id.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// SweepExpired deactivates timed-out sessions and deletes expired refresh and
// reset tokens. Run periodically from main.
func (s *Service) SweepExpired(ctx context.Context) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.UserSession{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("sweep sessions: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("🧹 [AUTH] Deactivated %d expired sessions", res.RowsAffected)
	}
	if err := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.RefreshToken{}).Error; err != nil {
		return fmt.Errorf("sweep refresh tokens: %w", err)
	}
	if err := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.PasswordResetToken{}).Error; err != nil {
		return fmt.Errorf("sweep reset tokens: %w", err)
	}
	return nil
}

// revokeSessionTx deactivates a session and revokes all its unredeemed tokens.
func (s *Service) revokeSessionTx(ctx context.Context, db *gorm.DB, sessionID uuid.UUID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.UserSession{}).
			Where("id = ?", sessionID).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).
			Where("session_id = ? AND revoked = ?", sessionID, false).
			Update("revoked", true).Error
	})
}

func (s *Service) registerFailure(ctx context.Context, emailAddr, ip string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RegisterFailure(ctx, emailAddr, ip); err != nil {
		log.Printf("⚠️ [AUTH] Recording failed attempt failed: %v", err)
	}
}

// stampLockout records the throttle window on the user row so the lockout
// survives a Redis flush.
func (s *Service) stampLockout(ctx context.Context, emailAddr string) {
	until := time.Now().Add(s.cfg.LoginWindow)
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", emailAddr).
		Update("locked_until", until).Error; err != nil {
		log.Printf("⚠️ [AUTH] Stamping lockout failed: %v", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
