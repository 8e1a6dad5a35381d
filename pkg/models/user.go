package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the canonical identity record. Users are never hard-deleted —
// account removal soft-deletes via DeletedAt.
type User struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Username     string    `json:"username" gorm:"type:varchar(50);uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(100);not null"`

	// Profile
	DisplayName *string `json:"display_name,omitempty" gorm:"type:varchar(100)"`
	Bio         *string `json:"bio,omitempty" gorm:"type:text"`
	AvatarURL   *string `json:"avatar_url,omitempty" gorm:"type:varchar(500)"`

	// Push delivery (set via notification FCM token registration)
	FCMToken *string `json:"-" gorm:"type:varchar(500)"`

	// Lockout window after repeated failed logins
	LockedUntil *time.Time `json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
