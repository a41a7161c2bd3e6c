package sessions

import (
	"context"
	"time"

	"peerprep/interview/internal/models"
)

// Store persists sessions. AddParticipant and Complete are single conditional
// writes that return errs.ErrConditionFailed when their precondition does
// not hold at write time.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	AddParticipant(ctx context.Context, id, principal string, now time.Time) (*models.Session, error)
	Complete(ctx context.Context, id string, now time.Time) (*models.Session, error)
	MarkChannelClosed(ctx context.Context, id string) error
	ListActive(ctx context.Context, limit int) ([]models.Session, error)
	ListCompletedFor(ctx context.Context, principal string, limit int) ([]models.Session, error)
	ListHostActive(ctx context.Context, host string, limit int) ([]models.Session, error)
	ListUnclosedCompleted(ctx context.Context, limit int) ([]models.Session, error)
}

// EventPublisher announces finished sessions to other services.
type EventPublisher interface {
	PublishSessionEnded(ctx context.Context, s *models.Session) error
}

// ProfileLookup resolves principal ids to stored profiles. Unknown ids are
// absent from the result.
type ProfileLookup interface {
	Profiles(ctx context.Context, ids []string) (map[string]models.Profile, error)
}
