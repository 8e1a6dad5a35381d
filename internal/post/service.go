// Package post implements posts and reply threading. A reply stores both its
// direct parent and the root of its thread, so a whole conversation can be
// fetched with a single root_id query.
package post

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

const maxBodyLength = 5000

type Service struct {
	db       *gorm.DB
	notifier *notification.Service // nil disables mention notifications
}

func NewService(db *gorm.DB, notifier *notification.Service) *Service {
	return &Service{db: db, notifier: notifier}
}

// Create stores a post or reply. For replies, RootID is resolved from the
// parent: it inherits the parent's root, or the parent itself when the parent
// is a top-level post.
func (s *Service) Create(ctx context.Context, authorID uuid.UUID, body string, parentID *uuid.UUID) (*models.Post, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: body is required", common.ErrValidation)
	}
	if len(body) > maxBodyLength {
		return nil, fmt.Errorf("%w: body exceeds %d characters", common.ErrValidation, maxBodyLength)
	}

	p := &models.Post{AuthorID: authorID, Body: body}

	if parentID != nil {
		var parent models.Post
		err := s.db.WithContext(ctx).First(&parent, "id = ?", *parentID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Covers soft-deleted parents too: no replies to removed posts.
				return nil, fmt.Errorf("%w: parent post", common.ErrNotFound)
			}
			return nil, fmt.Errorf("lookup parent: %w", err)
		}
		p.ParentID = &parent.ID
		if parent.RootID != nil {
			p.RootID = parent.RootID
		} else {
			p.RootID = &parent.ID
		}
	}

	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	log.Printf("✅ [POST] Created post %s (reply=%t) by %s", p.ID, p.IsReply(), authorID)

	if s.notifier != nil {
		s.notifier.NotifyMentions(ctx, authorID, "post", p.ID, body)
		if p.ParentID != nil {
			s.notifyReply(ctx, p)
		}
	}
	return p, nil
}

// notifyReply tells the parent's author someone answered them.
func (s *Service) notifyReply(ctx context.Context, reply *models.Post) {
	var parent models.Post
	if err := s.db.WithContext(ctx).Select("id", "author_id").First(&parent, "id = ?", *reply.ParentID).Error; err != nil {
		log.Printf("⚠️ [POST] Reply notification skipped: %v", err)
		return
	}
	if parent.AuthorID == reply.AuthorID {
		return
	}
	_, err := s.notifier.Create(ctx, notification.CreateParams{
		UserID:        parent.AuthorID,
		Type:          models.NotificationTypeComment,
		Message:       "Someone replied to your post",
		TriggerUserID: &reply.AuthorID,
		EntityType:    "post",
		EntityID:      &reply.ID,
	})
	if err != nil {
		log.Printf("⚠️ [POST] Reply notification failed: %v", err)
	}
}

// Get loads one post with its author preloaded.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).Preload("Author").First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Update replaces the body. Only the author may edit.
func (s *Service) Update(ctx context.Context, authorID, id uuid.UUID, body string) (*models.Post, error) {
	body = strings.TrimSpace(body)
	if body == "" || len(body) > maxBodyLength {
		return nil, fmt.Errorf("%w: invalid body", common.ErrValidation)
	}
	p, err := s.getOwned(ctx, authorID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(p).Update("body", body).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// Delete soft-deletes a post. Only the author may delete.
func (s *Service) Delete(ctx context.Context, authorID, id uuid.UUID) error {
	p, err := s.getOwned(ctx, authorID, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(p).Error
}

// Feed lists recent top-level posts, newest first.
func (s *Service) Feed(ctx context.Context, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Where("parent_id IS NULL").
		Preload("Author").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	return posts, err
}

// ByAuthor lists a user's posts, newest first.
func (s *Service) ByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	return posts, err
}

// Replies lists direct replies to one post, oldest first.
func (s *Service) Replies(ctx context.Context, parentID uuid.UUID, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Preload("Author").
		Order("created_at ASC").
		Limit(limit).Offset(offset).
		Find(&posts).Error
	return posts, err
}

// Thread returns the root post plus every reply anywhere under it.
func (s *Service) Thread(ctx context.Context, rootID uuid.UUID) ([]models.Post, error) {
	root, err := s.Get(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if root.IsReply() {
		return nil, fmt.Errorf("%w: not a thread root", common.ErrValidation)
	}
	var replies []models.Post
	if err := s.db.WithContext(ctx).
		Where("root_id = ?", rootID).
		Preload("Author").
		Order("created_at ASC").
		Find(&replies).Error; err != nil {
		return nil, err
	}
	return append([]models.Post{*root}, replies...), nil
}

func (s *Service) getOwned(ctx context.Context, authorID, id uuid.UUID) (*models.Post, error) {
	var p models.Post
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	if p.AuthorID != authorID {
		return nil, common.ErrForbidden
	}
	return &p, nil
}
