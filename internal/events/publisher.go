package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"peerprep/interview/internal/models"
)

// SessionEndedChannel is the pub/sub channel history consumers subscribe to.
const SessionEndedChannel = "session_ended"

// SessionEndedEvent keeps the field names the history subscriber decodes.
type SessionEndedEvent struct {
	MatchID       string `json:"matchId"`
	User1         string `json:"user1"`
	User2         string `json:"user2"`
	QuestionTitle string `json:"questionTitle"`
	Difficulty    string `json:"difficulty"`
	ChannelID     string `json:"channelId"`
	StartedAt     string `json:"startedAt"`
	EndedAt       string `json:"endedAt"`
	DurationSec   int    `json:"durationSeconds"`
}

func NewSessionEndedEvent(s *models.Session) SessionEndedEvent {
	ended := s.UpdatedAt
	if s.EndedAt != nil {
		ended = *s.EndedAt
	}
	var participant string
	if len(s.Participants) > 0 {
		participant = s.Participants[0]
	}
	return SessionEndedEvent{
		MatchID:       s.ID,
		User1:         s.Host,
		User2:         participant,
		QuestionTitle: s.Problem,
		Difficulty:    string(s.Difficulty),
		ChannelID:     s.ChannelID,
		StartedAt:     s.CreatedAt.UTC().Format(time.RFC3339),
		EndedAt:       ended.UTC().Format(time.RFC3339),
		DurationSec:   int(ended.Sub(s.CreatedAt).Seconds()),
	}
}

type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) PublishSessionEnded(ctx context.Context, s *models.Session) error {
	payload, err := json.Marshal(NewSessionEndedEvent(s))
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, SessionEndedChannel, payload).Err()
}
