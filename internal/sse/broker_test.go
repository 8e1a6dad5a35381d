package sse

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllStreamsOfUser(t *testing.T) {
	b := NewBroker()
	userID := uuid.New()

	ch1 := b.Subscribe(userID)
	ch2 := b.Subscribe(userID)
	require.Equal(t, 2, b.StreamCount(userID))

	b.Publish(userID, "notification", map[string]string{"message": "hello"})

	for _, ch := range []chan Event{ch1, ch2} {
		select {
		case event := <-ch:
			assert.Equal(t, "notification", event.Type)
			assert.Equal(t, userID, event.UserID)
			var payload map[string]string
			require.NoError(t, json.Unmarshal(event.Data, &payload))
			assert.Equal(t, "hello", payload["message"])
		default:
			t.Fatal("expected a buffered event")
		}
	}
}

func TestPublishDoesNotCrossUsers(t *testing.T) {
	b := NewBroker()
	alice := uuid.New()
	bob := uuid.New()

	aliceCh := b.Subscribe(alice)
	bobCh := b.Subscribe(bob)

	b.Publish(alice, "notification", "for alice only")

	assert.Len(t, aliceCh, 1)
	assert.Len(t, bobCh, 0)
}

func TestPublishToUserWithoutStreamsIsNoop(t *testing.T) {
	b := NewBroker()
	b.Publish(uuid.New(), "notification", "nobody listening")
	assert.Equal(t, 0, b.TotalStreams())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	userID := uuid.New()
	ch := b.Subscribe(userID)

	b.Unsubscribe(userID, ch)
	assert.Equal(t, 0, b.StreamCount(userID))

	_, open := <-ch
	assert.False(t, open)

	// second call must not panic
	b.Unsubscribe(userID, ch)
}

func TestFullBufferDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker()
	userID := uuid.New()
	ch := b.Subscribe(userID)

	// channel buffer is 16; publish past it
	for i := 0; i < 20; i++ {
		b.Publish(userID, "notification", i)
	}
	assert.Len(t, ch, 16)
}

func TestTotalStreams(t *testing.T) {
	b := NewBroker()
	u1 := uuid.New()
	u2 := uuid.New()
	b.Subscribe(u1)
	b.Subscribe(u1)
	b.Subscribe(u2)
	assert.Equal(t, 3, b.TotalStreams())
}
