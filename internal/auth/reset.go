// internal/auth/reset.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"social-service/internal/common"
	"social-service/internal/password"
	"social-service/internal/token"
	"social-service/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ForgotPassword issues a single-use reset token and mails the link. All
// earlier unconsumed tokens of the user are invalidated. The result is nil
// even when no account matches, so the endpoint cannot be used to enumerate
// registered addresses.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", emailAddr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("📧 [AUTH] Password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	plain, hash, err := token.NewOpaque()
	if err != nil {
		return err
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PasswordResetToken{}).
			Where("user_id = ? AND used_at IS NULL", user.ID).
			Update("used_at", now).Error; err != nil {
			return fmt.Errorf("invalidate previous reset tokens: %w", err)
		}
		return tx.Create(&models.PasswordResetToken{
			UserID:    user.ID,
			TokenHash: hash,
			ExpiresAt: now.Add(s.cfg.ResetTokenTTL),
		}).Error
	})
	if err != nil {
		return err
	}
	log.Printf("✅ [AUTH] Reset token issued for user %s", user.ID)

	if s.sender != nil {
		link := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.AppBaseURL, plain)
		if err := s.sender.SendPasswordReset(ctx, user.Email, link); err != nil {
			log.Printf("⚠️ [AUTH] Reset email failed for %s: %v", user.Email, err)
		}
	}
	return nil
}

// ResetPassword consumes a reset token and replaces the password. Every
// session and refresh token of the user is invalidated in the same
// transaction.
func (s *Service) ResetPassword(ctx context.Context, plainToken, newPassword string) error {
	hash, err := password.Hash(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	var rt models.PasswordResetToken
	err = s.db.WithContext(ctx).First(&rt, "token_hash = ?", token.HashOpaque(plainToken)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.ErrInvalidCredentials
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if !rt.IsUsable(time.Now()) {
		return common.ErrInvalidCredentials
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&rt).Update("used_at", now).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).
			Where("id = ?", rt.UserID).
			Update("password_hash", hash).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND revoked = ?", rt.UserID, false).
			Update("revoked", true).Error; err != nil {
			return err
		}
		return tx.Model(&models.UserSession{}).
			Where("user_id = ? AND is_active = ?", rt.UserID, true).
			Update("is_active", false).Error
	})
	if err != nil {
		return err
	}
	log.Printf("✅ [AUTH] Password reset completed for user %s", rt.UserID)
	return nil
}

// ChangePassword verifies the current password, stores the new hash and
// closes every other session. The calling session stays logged in.
func (s *Service) ChangePassword(ctx context.Context, userID, sessionID uuid.UUID, currentPassword, newPassword string) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.ErrNotFound
		}
		return err
	}
	if !password.Verify(currentPassword, user.PasswordHash) {
		return common.ErrInvalidCredentials
	}

	hash, err := password.Hash(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password_hash", hash).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.UserSession{}).
			Where("user_id = ? AND id <> ? AND is_active = ?", userID, sessionID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND session_id <> ? AND revoked = ?", userID, sessionID, false).
			Update("revoked", true).Error
	})
}
