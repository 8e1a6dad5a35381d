// Package message implements direct messages between users.
package message

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"social-service/internal/common"
	"social-service/internal/notification"
	"social-service/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxBodyLength = 5000

type Service struct {
	db       *gorm.DB
	notifier *notification.Service // nil disables notifications
}

func NewService(db *gorm.DB, notifier *notification.Service) *Service {
	return &Service{db: db, notifier: notifier}
}

// Send delivers a direct message. Messaging yourself is rejected.
func (s *Service) Send(ctx context.Context, senderID, recipientID uuid.UUID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: body is required", common.ErrValidation)
	}
	if len(body) > maxBodyLength {
		return nil, fmt.Errorf("%w: body exceeds %d characters", common.ErrValidation, maxBodyLength)
	}
	if senderID == recipientID {
		return nil, fmt.Errorf("%w: cannot message yourself", common.ErrValidation)
	}

	var recipient models.User
	if err := s.db.WithContext(ctx).First(&recipient, "id = ?", recipientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}

	msg := &models.Message{SenderID: senderID, RecipientID: recipientID, Body: body}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	if s.notifier != nil {
		_, err := s.notifier.Create(ctx, notification.CreateParams{
			UserID:        recipientID,
			Type:          models.NotificationTypeMessage,
			Message:       "You have a new message",
			TriggerUserID: &senderID,
			EntityType:    "message",
			EntityID:      &msg.ID,
		})
		if err != nil {
			log.Printf("⚠️ [MSG] Message notification failed: %v", err)
		}
	}
	return msg, nil
}

// Conversation lists the messages exchanged between two users, newest first.
func (s *Service) Conversation(ctx context.Context, userID, otherID uuid.UUID, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
			userID, otherID, otherID, userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	return messages, err
}

// MarkConversationRead stamps ReadAt on every unread message the other user
// sent and returns how many rows changed.
func (s *Service) MarkConversationRead(ctx context.Context, userID, otherID uuid.UUID) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_id = ? AND sender_id = ? AND read_at IS NULL", userID, otherID).
		Update("read_at", time.Now())
	return res.RowsAffected, res.Error
}

// UnreadCount returns the number of unread messages addressed to the user.
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient_id = ? AND read_at IS NULL", userID).
		Count(&count).Error
	return count, err
}
