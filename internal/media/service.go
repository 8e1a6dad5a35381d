// Package media implements upload of user media to S3-compatible storage and
// the async processing pipeline that verifies uploads before they go live.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"social-service/internal/common"
	"social-service/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".mp4": true, ".webm": true,
}

// uploadStore is the storage capability Upload needs, kept narrow so tests
// can stub it. Satisfied by ObjectStore.
type uploadStore interface {
	UploadMedia(ctx context.Context, file io.Reader, originalFileName string, ownerID uuid.UUID) (string, error)
	PublicURL(key string) string
}

type Service struct {
	db          *gorm.DB
	store       uploadStore
	maxBytes    int64
	maxAttempts int
}

func NewService(db *gorm.DB, store uploadStore, maxBytes int64, maxAttempts int) *Service {
	return &Service{db: db, store: store, maxBytes: maxBytes, maxAttempts: maxAttempts}
}

// Upload validates and stores a file, records the attachment and enqueues its
// processing job. The attachment stays pending until the worker confirms it.
func (s *Service) Upload(ctx context.Context, ownerID uuid.UUID, postID *uuid.UUID, filename string, size int64, file io.Reader) (*models.MediaAttachment, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("%w: unsupported file type %q", common.ErrValidation, ext)
	}
	if size <= 0 || size > s.maxBytes {
		return nil, fmt.Errorf("%w: file size must be between 1 byte and %d bytes", common.ErrValidation, s.maxBytes)
	}
	if postID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Post{}).
			Where("id = ?", *postID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, fmt.Errorf("%w: post", common.ErrNotFound)
		}
	}

	key, err := s.store.UploadMedia(ctx, io.LimitReader(file, s.maxBytes), filename, ownerID)
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	attachment := &models.MediaAttachment{
		OwnerID:     ownerID,
		PostID:      postID,
		StorageKey:  key,
		PublicURL:   s.store.PublicURL(key),
		ContentType: contentTypeForExt(ext),
		SizeBytes:   size,
		Status:      models.MediaStatusPending,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(attachment).Error; err != nil {
			return err
		}
		return tx.Create(&models.ProcessingJob{
			AttachmentID: attachment.ID,
			State:        models.JobStatePending,
			MaxAttempts:  s.maxAttempts,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("record attachment: %w", err)
	}
	log.Printf("✅ [MEDIA] Uploaded %s (%d bytes) for user %s", key, size, ownerID)
	return attachment, nil
}

// Get loads one attachment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.MediaAttachment, error) {
	var attachment models.MediaAttachment
	err := s.db.WithContext(ctx).First(&attachment, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &attachment, nil
}

// ByOwner lists a user's attachments, newest first.
func (s *Service) ByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.MediaAttachment, error) {
	var attachments []models.MediaAttachment
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&attachments).Error
	return attachments, err
}

// CancelJob cancels a job that has not yet reached a terminal state, for an
// attachment the user owns. Completed, failed and cancelled jobs stay put.
func (s *Service) CancelJob(ctx context.Context, ownerID, jobID uuid.UUID) error {
	var job models.ProcessingJob
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.ErrNotFound
		}
		return err
	}
	attachment, err := s.Get(ctx, job.AttachmentID)
	if err != nil {
		return err
	}
	if attachment.OwnerID != ownerID {
		return common.ErrForbidden
	}
	if err := job.Transition(models.JobStateCancelled); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return s.db.WithContext(ctx).Save(&job).Error
}

// JobForAttachment returns the processing job behind an attachment.
func (s *Service) JobForAttachment(ctx context.Context, attachmentID uuid.UUID) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	err := s.db.WithContext(ctx).
		Where("attachment_id = ?", attachmentID).
		Order("created_at DESC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}
