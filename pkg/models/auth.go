package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshToken stores the SHA-256 hash of an opaque refresh credential.
// The plaintext token only ever travels to the client. A token is usable
// only while unused, unrevoked and unexpired; rotation links the successor
// through ReplacedByID so reuse can revoke the whole chain.
type RefreshToken struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID  `json:"user_id" gorm:"type:uuid;index;not null"`
	SessionID    uuid.UUID  `json:"session_id" gorm:"type:uuid;index;not null"`
	TokenHash    string     `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt    time.Time  `json:"expires_at" gorm:"not null"`
	Used         bool       `json:"used" gorm:"not null;default:false"`
	Revoked      bool       `json:"revoked" gorm:"not null;default:false"`
	ReplacedByID *uuid.UUID `json:"replaced_by_id,omitempty" gorm:"type:uuid"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the token can still be exchanged at the given time.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.Used && !t.Revoked && now.Before(t.ExpiresAt)
}

// PasswordResetToken is a single-use credential for the forgot-password flow.
// Issuing a new one bulk-invalidates all earlier unconsumed tokens.
type PasswordResetToken struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `json:"user_id" gorm:"type:uuid;index;not null"`
	TokenHash string     `json:"-" gorm:"type:varchar(64);uniqueIndex;not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (PasswordResetToken) TableName() string {
	return "password_reset_tokens"
}

func (t *PasswordResetToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsUsable reports whether the reset token is unconsumed and unexpired.
func (t *PasswordResetToken) IsUsable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// UserSession tracks one logged-in device. Created at login, touched on every
// authenticated request, deactivated by logout / logout-all / reuse detection.
type UserSession struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `json:"user_id" gorm:"type:uuid;index;not null"`
	DeviceID       string    `json:"device_id" gorm:"type:varchar(100)"`
	IPAddress      string    `json:"ip_address" gorm:"type:varchar(45)"`
	UserAgent      string    `json:"user_agent" gorm:"type:varchar(500)"`
	IsActive       bool      `json:"is_active" gorm:"not null;default:true;index"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (UserSession) TableName() string {
	return "user_sessions"
}

func (s *UserSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
