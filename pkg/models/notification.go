package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeLike    NotificationType = "like"
	NotificationTypeComment NotificationType = "comment"
	NotificationTypeFollow  NotificationType = "follow"
	NotificationTypeMention NotificationType = "mention"
	NotificationTypeMessage NotificationType = "message"
	NotificationTypeSystem  NotificationType = "system"
)

type NotificationStatus string

const (
	NotificationStatusUnread   NotificationStatus = "unread"
	NotificationStatusRead     NotificationStatus = "read"
	NotificationStatusArchived NotificationStatus = "archived"
)

// Notification is a user-facing event record created by domain events
// (like/comment/follow/mention/message). Archived implies read: archiving
// always stamps ReadAt. Expired notifications are removed by the sweep.
type Notification struct {
	ID     uuid.UUID          `json:"id" gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID          `json:"user_id" gorm:"type:uuid;index;not null"`
	Type   NotificationType   `json:"type" gorm:"type:varchar(20);not null"`
	Status NotificationStatus `json:"status" gorm:"type:varchar(20);not null;default:'unread';index"`

	// Who caused the event and what it points at
	TriggerUserID *uuid.UUID     `json:"trigger_user_id,omitempty" gorm:"type:uuid"`
	EntityType    *string        `json:"entity_type,omitempty" gorm:"type:varchar(20)"` // post, comment, user, message
	EntityID      *uuid.UUID     `json:"entity_id,omitempty" gorm:"type:uuid"`
	Message       string         `json:"message" gorm:"type:varchar(500);not null"`
	Metadata      datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`

	ReadAt    *time.Time `json:"read_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" gorm:"index"`
	CreatedAt time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
