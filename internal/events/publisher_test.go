package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerprep/interview/internal/models"
)

func TestPublishSessionEnded(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, SessionEndedChannel)
	t.Cleanup(func() { sub.Close() })
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	created := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	ended := created.Add(30 * time.Minute)
	s := &models.Session{
		ID:           "s1",
		Problem:      "two-sum",
		Difficulty:   models.DifficultyMedium,
		Host:         "alice",
		Participants: []string{"bob"},
		ChannelID:    "session_1_abcdef",
		CreatedAt:    created,
		EndedAt:      &ended,
	}
	require.NoError(t, NewPublisher(rdb).PublishSessionEnded(ctx, s))

	select {
	case msg := <-sub.Channel():
		var event SessionEndedEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
		assert.Equal(t, "s1", event.MatchID)
		assert.Equal(t, "alice", event.User1)
		assert.Equal(t, "bob", event.User2)
		assert.Equal(t, 1800, event.DurationSec)
	case <-time.After(2 * time.Second):
		t.Fatal("no session_ended message received")
	}
}

func TestNewSessionEndedEvent_NoParticipant(t *testing.T) {
	now := time.Now()
	event := NewSessionEndedEvent(&models.Session{ID: "s1", Host: "alice", CreatedAt: now, UpdatedAt: now})
	assert.Empty(t, event.User2)
	assert.Zero(t, event.DurationSec)
}
