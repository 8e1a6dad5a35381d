package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a direct message between two users.
type Message struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	SenderID    uuid.UUID  `json:"sender_id" gorm:"type:uuid;index;not null"`
	RecipientID uuid.UUID  `json:"recipient_id" gorm:"type:uuid;index;not null"`
	Body        string     `json:"body" gorm:"type:text;not null"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
