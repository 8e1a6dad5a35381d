// Package social implements the engagement edges around posts: likes, shares,
// follows and flat comments, plus the notifications they trigger.
package social

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"social-service/internal/common"
	"social-service/internal/notification"
	"social-service/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxCommentLength = 2000

type Service struct {
	db       *gorm.DB
	notifier *notification.Service // nil disables notifications
}

func NewService(db *gorm.DB, notifier *notification.Service) *Service {
	return &Service{db: db, notifier: notifier}
}

// --- Likes ---

// Like records a like. Liking your own post is rejected; liking twice is a
// conflict.
func (s *Service) Like(ctx context.Context, userID, postID uuid.UUID) error {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID == userID {
		return fmt.Errorf("%w: cannot like your own post", common.ErrValidation)
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: already liked", common.ErrConflict)
	}

	if err := s.db.WithContext(ctx).Create(&models.Like{PostID: postID, UserID: userID}).Error; err != nil {
		return fmt.Errorf("create like: %w", err)
	}

	s.notify(ctx, notification.CreateParams{
		UserID:        post.AuthorID,
		Type:          models.NotificationTypeLike,
		Message:       "Someone liked your post",
		TriggerUserID: &userID,
		EntityType:    "post",
		EntityID:      &postID,
	})
	return nil
}

// Unlike removes a like if present.
func (s *Service) Unlike(ctx context.Context, userID, postID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Like{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// LikeCount returns the number of likes on a post.
func (s *Service) LikeCount(ctx context.Context, postID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

// --- Shares ---

// Share records a repost with optional commentary.
func (s *Service) Share(ctx context.Context, userID, postID uuid.UUID, comment *string) (*models.Share, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	share := &models.Share{PostID: postID, UserID: userID, Comment: comment}
	if err := s.db.WithContext(ctx).Create(share).Error; err != nil {
		return nil, fmt.Errorf("create share: %w", err)
	}
	if post.AuthorID != userID {
		s.notify(ctx, notification.CreateParams{
			UserID:        post.AuthorID,
			Type:          models.NotificationTypeSystem,
			Message:       "Someone shared your post",
			TriggerUserID: &userID,
			EntityType:    "post",
			EntityID:      &postID,
		})
	}
	return share, nil
}

// ShareCount returns the number of shares of a post.
func (s *Service) ShareCount(ctx context.Context, postID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Share{}).
		Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

// --- Follows ---

// Follow creates the follower → followee edge. Self-follow is rejected.
func (s *Service) Follow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	if followerID == followeeID {
		return fmt.Errorf("%w: cannot follow yourself", common.ErrValidation)
	}
	var followee models.User
	if err := s.db.WithContext(ctx).First(&followee, "id = ?", followeeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.ErrNotFound
		}
		return err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: already following", common.ErrConflict)
	}

	if err := s.db.WithContext(ctx).Create(&models.Follow{
		FollowerID: followerID,
		FolloweeID: followeeID,
	}).Error; err != nil {
		return fmt.Errorf("create follow: %w", err)
	}

	s.notify(ctx, notification.CreateParams{
		UserID:        followeeID,
		Type:          models.NotificationTypeFollow,
		Message:       "You have a new follower",
		TriggerUserID: &followerID,
		EntityType:    "user",
		EntityID:      &followerID,
	})
	return nil
}

// Unfollow removes the edge if present.
func (s *Service) Unfollow(ctx context.Context, followerID, followeeID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Followers lists the users following userID.
func (s *Service) Followers(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.followee_id = ?", userID).
		Order("follows.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&users).Error
	return users, err
}

// Following lists the users userID follows.
func (s *Service) Following(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Joins("JOIN follows ON follows.followee_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("follows.created_at DESC").
		Limit(limit).Offset(offset).
		Find(&users).Error
	return users, err
}

// --- Comments ---

// CreateComment adds a flat comment to a post and notifies the post author.
func (s *Service) CreateComment(ctx context.Context, authorID, postID uuid.UUID, body string) (*models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: body is required", common.ErrValidation)
	}
	if len(body) > maxCommentLength {
		return nil, fmt.Errorf("%w: body exceeds %d characters", common.ErrValidation, maxCommentLength)
	}
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{PostID: postID, AuthorID: authorID, Body: body}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	if post.AuthorID != authorID {
		s.notify(ctx, notification.CreateParams{
			UserID:        post.AuthorID,
			Type:          models.NotificationTypeComment,
			Message:       "Someone commented on your post",
			TriggerUserID: &authorID,
			EntityType:    "comment",
			EntityID:      &comment.ID,
		})
	}
	if s.notifier != nil {
		s.notifier.NotifyMentions(ctx, authorID, "comment", comment.ID, body)
	}
	return comment, nil
}

// UpdateComment edits a comment body. Only the author may edit.
func (s *Service) UpdateComment(ctx context.Context, authorID, commentID uuid.UUID, body string) (*models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" || len(body) > maxCommentLength {
		return nil, fmt.Errorf("%w: invalid body", common.ErrValidation)
	}
	comment, err := s.getOwnedComment(ctx, authorID, commentID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(comment).Update("body", body).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment soft-deletes a comment. Only the author may delete.
func (s *Service) DeleteComment(ctx context.Context, authorID, commentID uuid.UUID) error {
	comment, err := s.getOwnedComment(ctx, authorID, commentID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(comment).Error
}

// Comments lists a post's comments, oldest first.
func (s *Service) Comments(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.Comment, error) {
	var comments []models.Comment
	err := s.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Preload("Author").
		Order("created_at ASC").
		Limit(limit).Offset(offset).
		Find(&comments).Error
	return comments, err
}

// --- helpers ---

func (s *Service) getPost(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).First(&post, "id = ?", postID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (s *Service) getOwnedComment(ctx context.Context, authorID, commentID uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).First(&comment, "id = ?", commentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	if comment.AuthorID != authorID {
		return nil, common.ErrForbidden
	}
	return &comment, nil
}

func (s *Service) notify(ctx context.Context, p notification.CreateParams) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Create(ctx, p); err != nil {
		log.Printf("⚠️ [SOCIAL] Notification failed: %v", err)
	}
}
