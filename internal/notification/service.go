// Package notification creates and manages user-facing event records and
// fans them out in realtime over SSE and FCM push.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"social-service/internal/common"
	"social-service/internal/fcm"
	"social-service/internal/sse"
	"social-service/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// mentionPattern matches @username tokens in post, comment and message bodies.
var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_]{2,50})`)

type Service struct {
	db     *gorm.DB
	broker *sse.Broker
	push   *fcm.Client // nil when FCM is disabled
	ttl    time.Duration
}

func NewService(db *gorm.DB, broker *sse.Broker, push *fcm.Client, ttl time.Duration) *Service {
	return &Service{db: db, broker: broker, push: push, ttl: ttl}
}

// CreateParams describes one domain event to record.
type CreateParams struct {
	UserID        uuid.UUID
	Type          models.NotificationType
	Message       string
	TriggerUserID *uuid.UUID
	EntityType    string
	EntityID      *uuid.UUID
	Metadata      map[string]interface{}
}

// Create stores the notification and pushes it to the user's open SSE streams
// and registered FCM device. Delivery failures are logged, never propagated —
// the triggering domain operation must not fail because a push did.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Notification, error) {
	if p.UserID == uuid.Nil || p.Message == "" {
		return nil, fmt.Errorf("%w: user_id and message are required", common.ErrValidation)
	}

	n := &models.Notification{
		UserID:        p.UserID,
		Type:          p.Type,
		Status:        models.NotificationStatusUnread,
		TriggerUserID: p.TriggerUserID,
		EntityID:      p.EntityID,
		Message:       p.Message,
	}
	if p.EntityType != "" {
		n.EntityType = &p.EntityType
	}
	if s.ttl > 0 {
		expires := time.Now().Add(s.ttl)
		n.ExpiresAt = &expires
	}
	if p.Metadata != nil {
		raw, err := json.Marshal(p.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		n.Metadata = raw
	}

	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if s.broker != nil {
		s.broker.Publish(n.UserID, "notification", n)
	}
	s.pushToDevice(ctx, n)

	return n, nil
}

// pushToDevice sends an FCM push when the user registered a device token.
func (s *Service) pushToDevice(ctx context.Context, n *models.Notification) {
	if s.push == nil {
		return
	}
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "fcm_token").First(&user, "id = ?", n.UserID).Error; err != nil {
		log.Printf("⚠️ [NOTIFY] Push skipped, user %s lookup failed: %v", n.UserID, err)
		return
	}
	if user.FCMToken == nil || *user.FCMToken == "" {
		return
	}
	data := map[string]string{
		"notification_id": n.ID.String(),
		"type":            string(n.Type),
	}
	if err := s.push.SendToToken(ctx, *user.FCMToken, "Social", n.Message, data); err != nil {
		log.Printf("⚠️ [NOTIFY] Push failed for user %s: %v", n.UserID, err)
	}
}

// List returns the user's notifications, newest first. An empty status
// returns everything except archived.
func (s *Service) List(ctx context.Context, userID uuid.UUID, status models.NotificationStatus, limit, offset int) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	} else {
		q = q.Where("status <> ?", models.NotificationStatusArchived)
	}
	var items []models.Notification
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error
	return items, err
}

// UnreadCount returns how many unread notifications the user has.
func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.NotificationStatusUnread).
		Count(&count).Error
	return count, err
}

// MarkRead transitions one unread notification to read.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	n, err := s.getOwned(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if n.Status != models.NotificationStatusUnread {
		return nil
	}
	now := time.Now()
	return s.db.WithContext(ctx).Model(n).Updates(map[string]interface{}{
		"status":  models.NotificationStatusRead,
		"read_at": now,
	}).Error
}

// MarkAllRead transitions every unread notification of the user to read and
// returns how many rows changed.
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.NotificationStatusUnread).
		Updates(map[string]interface{}{
			"status":  models.NotificationStatusRead,
			"read_at": now,
		})
	return res.RowsAffected, res.Error
}

// Archive moves a notification to archived. Archived implies read: ReadAt is
// stamped here when the notification was never opened.
func (s *Service) Archive(ctx context.Context, userID, notificationID uuid.UUID) error {
	n, err := s.getOwned(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	updates := map[string]interface{}{
		"status": models.NotificationStatusArchived,
	}
	if n.ReadAt == nil {
		updates["read_at"] = time.Now()
	}
	return s.db.WithContext(ctx).Model(n).Updates(updates).Error
}

// SweepExpired hard-deletes notifications past their expiry.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&models.Notification{})
	if res.RowsAffected > 0 {
		log.Printf("🧹 [NOTIFY] Swept %d expired notifications", res.RowsAffected)
	}
	return res.RowsAffected, res.Error
}

// RegisterFCMToken stores the device token used for push delivery.
func (s *Service) RegisterFCMToken(ctx context.Context, userID uuid.UUID, token string) error {
	if token == "" {
		return fmt.Errorf("%w: fcm token is required", common.ErrValidation)
	}
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("fcm_token", token).Error
}

// UnregisterFCMToken clears the stored device token.
func (s *Service) UnregisterFCMToken(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("fcm_token", nil).Error
}

// ExtractMentions returns the distinct usernames mentioned as @name in body.
func ExtractMentions(body string) []string {
	matches := mentionPattern.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var names []string
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// NotifyMentions creates a mention notification for every existing user
// @-mentioned in body, skipping the actor themselves.
func (s *Service) NotifyMentions(ctx context.Context, actorID uuid.UUID, entityType string, entityID uuid.UUID, body string) {
	names := ExtractMentions(body)
	if len(names) == 0 {
		return
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("username IN ?", names).Find(&users).Error; err != nil {
		log.Printf("⚠️ [NOTIFY] Mention lookup failed: %v", err)
		return
	}
	var actor models.User
	if err := s.db.WithContext(ctx).Select("id", "username").First(&actor, "id = ?", actorID).Error; err != nil {
		log.Printf("⚠️ [NOTIFY] Mention actor lookup failed: %v", err)
		return
	}
	for _, u := range users {
		if u.ID == actorID {
			continue
		}
		_, err := s.Create(ctx, CreateParams{
			UserID:        u.ID,
			Type:          models.NotificationTypeMention,
			Message:       fmt.Sprintf("@%s mentioned you in a %s", actor.Username, entityType),
			TriggerUserID: &actorID,
			EntityType:    entityType,
			EntityID:      &entityID,
		})
		if err != nil {
			log.Printf("⚠️ [NOTIFY] Mention notification for %s failed: %v", u.Username, err)
		}
	}
}

func (s *Service) getOwned(ctx context.Context, userID, notificationID uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).First(&n, "id = ?", notificationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	if n.UserID != userID {
		return nil, common.ErrForbidden
	}
	return &n, nil
}
