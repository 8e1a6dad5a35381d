package message

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

func TestSend(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	msg, err := svc.Send(context.Background(), alice.ID, bob.ID, "  hi bob  ")
	require.NoError(t, err)
	assert.Equal(t, "hi bob", msg.Body)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, bob.ID, msg.RecipientID)
	assert.Nil(t, msg.ReadAt)
}

func TestSendValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	ctx := context.Background()

	_, err := svc.Send(ctx, alice.ID, bob.ID, "   ")
	assert.ErrorIs(t, err, common.ErrValidation, "empty body")

	_, err = svc.Send(ctx, alice.ID, bob.ID, strings.Repeat("x", 5001))
	assert.ErrorIs(t, err, common.ErrValidation, "overlong body")

	_, err = svc.Send(ctx, alice.ID, alice.ID, "note to self")
	assert.ErrorIs(t, err, common.ErrValidation, "self message")

	_, err = svc.Send(ctx, alice.ID, uuid.New(), "to nobody")
	assert.ErrorIs(t, err, common.ErrNotFound, "missing recipient")
}

func TestConversation(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	carol := createUser(t, db, "carol")
	ctx := context.Background()

	_, err := svc.Send(ctx, alice.ID, bob.ID, "hi bob")
	require.NoError(t, err)
	_, err = svc.Send(ctx, bob.ID, alice.ID, "hi alice")
	require.NoError(t, err)
	_, err = svc.Send(ctx, alice.ID, carol.ID, "hi carol")
	require.NoError(t, err)

	conv, err := svc.Conversation(ctx, alice.ID, bob.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, conv, 2, "both directions, no third parties")
}

func TestMarkConversationRead(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	ctx := context.Background()

	_, err := svc.Send(ctx, bob.ID, alice.ID, "one")
	require.NoError(t, err)
	_, err = svc.Send(ctx, bob.ID, alice.ID, "two")
	require.NoError(t, err)
	sent, err := svc.Send(ctx, alice.ID, bob.ID, "reply")
	require.NoError(t, err)

	unread, err := svc.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)

	updated, err := svc.MarkConversationRead(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)

	unread, err = svc.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	// alice's own outgoing message stays unread for bob
	var out models.Message
	require.NoError(t, db.First(&out, "id = ?", sent.ID).Error)
	assert.Nil(t, out.ReadAt)

	// already read, nothing to update
	updated, err = svc.MarkConversationRead(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, updated)
}
