package post

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"social-service/internal/common"
	"social-service/internal/database"
	"social-service/pkg/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCreateTopLevelPost(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")

	p, err := svc.Create(context.Background(), alice.ID, "  hello world  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", p.Body)
	assert.Nil(t, p.ParentID)
	assert.Nil(t, p.RootID)
	assert.False(t, p.IsReply())
}

func TestCreateValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	ctx := context.Background()

	_, err := svc.Create(ctx, alice.ID, "   ", nil)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.Create(ctx, alice.ID, strings.Repeat("x", 5001), nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestReplyThreading(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	ctx := context.Background()

	root, err := svc.Create(ctx, alice.ID, "root post", nil)
	require.NoError(t, err)

	reply, err := svc.Create(ctx, bob.ID, "first reply", &root.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	require.NotNil(t, reply.RootID)
	assert.Equal(t, root.ID, *reply.ParentID)
	assert.Equal(t, root.ID, *reply.RootID, "reply to a top-level post roots at the post itself")

	// a nested reply keeps pointing at the original root
	nested, err := svc.Create(ctx, alice.ID, "nested reply", &reply.ID)
	require.NoError(t, err)
	assert.Equal(t, reply.ID, *nested.ParentID)
	assert.Equal(t, root.ID, *nested.RootID)
}

func TestReplyToMissingParent(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	missing := uuid.New()

	_, err := svc.Create(context.Background(), alice.ID, "orphan", &missing)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReplyToDeletedParent(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	ctx := context.Background()

	parent, err := svc.Create(ctx, alice.ID, "soon gone", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, alice.ID, parent.ID))

	_, err = svc.Create(ctx, alice.ID, "too late", &parent.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdateOwnership(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	ctx := context.Background()

	p, err := svc.Create(ctx, alice.ID, "original", nil)
	require.NoError(t, err)

	_, err = svc.Update(ctx, bob.ID, p.ID, "hijacked")
	assert.ErrorIs(t, err, common.ErrForbidden)

	updated, err := svc.Update(ctx, alice.ID, p.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Body)
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	ctx := context.Background()

	p, err := svc.Create(ctx, alice.ID, "to delete", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, bob.ID, p.ID), common.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, alice.ID, p.ID))

	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFeedExcludesReplies(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	ctx := context.Background()

	root, err := svc.Create(ctx, alice.ID, "top level", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice.ID, "a reply", &root.ID)
	require.NoError(t, err)

	feed, err := svc.Feed(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, root.ID, feed[0].ID)
	assert.Equal(t, "alice", feed[0].Author.Username)
}

func TestThread(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	ctx := context.Background()

	root, err := svc.Create(ctx, alice.ID, "root", nil)
	require.NoError(t, err)
	r1, err := svc.Create(ctx, alice.ID, "reply 1", &root.ID)
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice.ID, "reply to reply", &r1.ID)
	require.NoError(t, err)

	thread, err := svc.Thread(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, thread, 3, "root plus every nested reply")
	assert.Equal(t, root.ID, thread[0].ID)

	// a reply is not a thread root
	_, err = svc.Thread(ctx, r1.ID)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestReplies(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	ctx := context.Background()

	root, err := svc.Create(ctx, alice.ID, "root", nil)
	require.NoError(t, err)
	r1, err := svc.Create(ctx, alice.ID, "direct reply", &root.ID)
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice.ID, "nested", &r1.ID)
	require.NoError(t, err)

	direct, err := svc.Replies(ctx, root.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, direct, 1, "only direct replies")
	assert.Equal(t, r1.ID, direct[0].ID)
}

func TestByAuthor(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	ctx := context.Background()

	_, err := svc.Create(ctx, alice.ID, "mine", nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob.ID, "theirs", nil)
	require.NoError(t, err)

	posts, err := svc.ByAuthor(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "mine", posts[0].Body)
}
