package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"peerprep/interview/internal/errs"
	"peerprep/interview/internal/models"
)

// SessionRepo keeps sessions in process memory. Every conditional write runs
// under one mutex, so it has the same atomicity as the Mongo filters.
type SessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]*models.Session)}
}

func (r *SessionRepo) Create(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return fmt.Errorf("%w: session %s already exists", errs.ErrConflict, s.ID)
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *SessionRepo) GetByID(_ context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return s.Clone(), nil
}

func (r *SessionRepo) AddParticipant(_ context.Context, id, principal string, now time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != models.StatusActive || s.Host == principal ||
		s.HasParticipant(principal) || s.IsFull() {
		return nil, errs.ErrConditionFailed
	}
	s.Participants = append(s.Participants, principal)
	s.UpdatedAt = now
	return s.Clone(), nil
}

func (r *SessionRepo) Complete(_ context.Context, id string, now time.Time) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != models.StatusActive {
		return nil, errs.ErrConditionFailed
	}
	s.Status = models.StatusCompleted
	s.UpdatedAt = now
	ended := now
	s.EndedAt = &ended
	return s.Clone(), nil
}

func (r *SessionRepo) MarkChannelClosed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return errs.ErrNotFound
	}
	s.ChannelClosed = true
	return nil
}

func (r *SessionRepo) ListActive(_ context.Context, limit int) ([]models.Session, error) {
	return r.list(limit, func(s *models.Session) bool {
		return s.Status == models.StatusActive
	}), nil
}

func (r *SessionRepo) ListCompletedFor(_ context.Context, principal string, limit int) ([]models.Session, error) {
	return r.list(limit, func(s *models.Session) bool {
		return s.Status == models.StatusCompleted && (s.Host == principal || s.HasParticipant(principal))
	}), nil
}

func (r *SessionRepo) ListHostActive(_ context.Context, host string, limit int) ([]models.Session, error) {
	return r.list(limit, func(s *models.Session) bool {
		return s.Status == models.StatusActive && s.Host == host
	}), nil
}

// ListUnclosedCompleted returns the longest-ended sessions first.
func (r *SessionRepo) ListUnclosedCompleted(_ context.Context, limit int) ([]models.Session, error) {
	return r.listBy(limit, endedFirst, func(s *models.Session) bool {
		return s.Status == models.StatusCompleted && !s.ChannelClosed
	}), nil
}

func newestFirst(a, b *models.Session) bool { return a.CreatedAt.After(b.CreatedAt) }

func endedFirst(a, b *models.Session) bool {
	if a.EndedAt == nil || b.EndedAt == nil {
		return a.EndedAt != nil
	}
	return a.EndedAt.Before(*b.EndedAt)
}

// list returns matching sessions newest first.
func (r *SessionRepo) list(limit int, match func(*models.Session) bool) []models.Session {
	return r.listBy(limit, newestFirst, match)
}

func (r *SessionRepo) listBy(limit int, less func(a, b *models.Session) bool, match func(*models.Session) bool) []models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Session, 0)
	for _, s := range r.sessions {
		if match(s) {
			out = append(out, *s.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return less(&out[i], &out[j])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
