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

type InviteRepo struct {
	mu     sync.Mutex
	tokens map[string]*models.InviteToken
}

func NewInviteRepo() *InviteRepo {
	return &InviteRepo{tokens: make(map[string]*models.InviteToken)}
}

func (r *InviteRepo) Create(_ context.Context, t *models.InviteToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tokens[t.ID]; exists {
		return fmt.Errorf("%w: invite %s already exists", errs.ErrConflict, t.ID)
	}
	cp := *t
	r.tokens[t.ID] = &cp
	return nil
}

func (r *InviteRepo) ListRedeemable(_ context.Context, now time.Time, limit int) ([]models.InviteToken, error) {
	return r.list(limit, func(t *models.InviteToken) bool {
		return !t.Used && !t.Expired(now)
	}), nil
}

func (r *InviteRepo) ListConsumed(_ context.Context, now time.Time, limit int) ([]models.InviteToken, error) {
	return r.list(limit, func(t *models.InviteToken) bool {
		return t.Used && !t.Revoked && !t.Expired(now)
	}), nil
}

func (r *InviteRepo) Claim(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.Used || t.Expired(now) {
		return errs.ErrConditionFailed
	}
	t.Used = true
	return nil
}

func (r *InviteRepo) MarkUsed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return errs.ErrNotFound
	}
	t.Used = true
	return nil
}

func (r *InviteRepo) RevokeUnused(_ context.Context, sessionID, keepID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, t := range r.tokens {
		if id == keepID || t.SessionID != sessionID || t.Used {
			continue
		}
		t.Used, t.Revoked = true, true
		n++
	}
	return n, nil
}

// Get is used by tests to inspect a token.
func (r *InviteRepo) Get(id string) (models.InviteToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok {
		return models.InviteToken{}, false
	}
	return *t, true
}

func (r *InviteRepo) list(limit int, match func(*models.InviteToken) bool) []models.InviteToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.InviteToken, 0)
	for _, t := range r.tokens {
		if match(t) {
			out = append(out, *t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
