package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"social-service/internal/common"
	"social-service/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubUploader satisfies uploadStore without talking to real storage.
type stubUploader struct {
	err  error
	keys []string
}

func (s *stubUploader) UploadMedia(ctx context.Context, file io.Reader, originalFileName string, ownerID uuid.UUID) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	key := "media/" + ownerID.String() + "/" + uuid.NewString() + filepath.Ext(originalFileName)
	s.keys = append(s.keys, key)
	return key, nil
}

func (s *stubUploader) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	db := newTestDB(t)
	store := &stubUploader{}
	svc := NewService(db, store, 1<<20, 3)

	_, err := svc.Upload(context.Background(), uuid.New(), nil, "malware.exe", 64, bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Empty(t, store.keys)
}

func TestUploadRejectsBadSize(t *testing.T) {
	db := newTestDB(t)
	store := &stubUploader{}
	svc := NewService(db, store, 1024, 3)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Upload(ctx, owner, nil, "photo.png", 0, bytes.NewReader(nil))
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Upload(ctx, owner, nil, "photo.png", 1025, bytes.NewReader(nil))
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Empty(t, store.keys)
}

func TestUploadRejectsMissingPost(t *testing.T) {
	db := newTestDB(t)
	store := &stubUploader{}
	svc := NewService(db, store, 1<<20, 3)

	missing := uuid.New()
	_, err := svc.Upload(context.Background(), uuid.New(), &missing, "photo.png", 64, bytes.NewReader([]byte("x")))
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Empty(t, store.keys)
}

func TestUploadCreatesAttachmentAndJob(t *testing.T) {
	db := newTestDB(t)
	store := &stubUploader{}
	svc := NewService(db, store, 1<<20, 5)
	owner := uuid.New()

	attachment, err := svc.Upload(context.Background(), owner, nil, "photo.PNG", 2048, bytes.NewReader([]byte("fake png bytes")))
	require.NoError(t, err)

	require.Len(t, store.keys, 1)
	assert.Equal(t, store.keys[0], attachment.StorageKey)
	assert.Equal(t, "https://cdn.example.com/"+store.keys[0], attachment.PublicURL)
	assert.Equal(t, owner, attachment.OwnerID)
	assert.Equal(t, "image/png", attachment.ContentType)
	assert.Equal(t, int64(2048), attachment.SizeBytes)
	assert.Equal(t, models.MediaStatusPending, attachment.Status)

	var jobs []models.ProcessingJob
	require.NoError(t, db.Where("attachment_id = ?", attachment.ID).Find(&jobs).Error)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatePending, jobs[0].State)
	assert.Equal(t, 5, jobs[0].MaxAttempts)
}

func TestUploadAttachesToExistingPost(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &stubUploader{}, 1<<20, 3)

	author := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(author).Error)
	post := &models.Post{AuthorID: author.ID, Body: "look at this"}
	require.NoError(t, db.Create(post).Error)

	attachment, err := svc.Upload(context.Background(), author.ID, &post.ID, "clip.mp4", 4096, bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	require.NotNil(t, attachment.PostID)
	assert.Equal(t, post.ID, *attachment.PostID)
}

func TestUploadStorageFailureCreatesNothing(t *testing.T) {
	db := newTestDB(t)
	store := &stubUploader{err: errors.New("bucket unreachable")}
	svc := NewService(db, store, 1<<20, 3)

	_, err := svc.Upload(context.Background(), uuid.New(), nil, "photo.png", 64, bytes.NewReader([]byte("x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unreachable")

	var count int64
	require.NoError(t, db.Model(&models.MediaAttachment{}).Count(&count).Error)
	assert.Zero(t, count)
}
