package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerprep/interview/internal/errs"
	"peerprep/interview/internal/models"
)

func newSession(id, host string, created time.Time) *models.Session {
	return &models.Session{
		ID:           id,
		Problem:      "two-sum",
		Difficulty:   models.DifficultyEasy,
		Host:         host,
		Participants: []string{},
		Status:       models.StatusActive,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestSessionRepo_AddParticipantIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepo()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, newSession("s1", "alice", now)))

	_, err := repo.AddParticipant(ctx, "s1", "alice", now)
	assert.ErrorIs(t, err, errs.ErrConditionFailed, "host cannot be appended")

	s, err := repo.AddParticipant(ctx, "s1", "bob", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, s.Participants)

	_, err = repo.AddParticipant(ctx, "s1", "bob", now)
	assert.ErrorIs(t, err, errs.ErrConditionFailed)
	_, err = repo.AddParticipant(ctx, "s1", "carol", now)
	assert.ErrorIs(t, err, errs.ErrConditionFailed)

	_, err = repo.AddParticipant(ctx, "missing", "carol", now)
	assert.ErrorIs(t, err, errs.ErrConditionFailed)
}

func TestSessionRepo_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepo()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, newSession("s1", "alice", now)))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := repo.AddParticipant(ctx, "s1", string(rune('a'+i)), now); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	s, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, s.Participants, 1)
}

func TestSessionRepo_CompleteOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepo()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, newSession("s1", "alice", now)))

	s, err := repo.Complete(ctx, "s1", now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, s.Status)
	require.NotNil(t, s.EndedAt)

	_, err = repo.Complete(ctx, "s1", now)
	assert.ErrorIs(t, err, errs.ErrConditionFailed)
}

func TestSessionRepo_Lists(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepo()
	base := time.Now()
	require.NoError(t, repo.Create(ctx, newSession("old", "alice", base)))
	require.NoError(t, repo.Create(ctx, newSession("new", "alice", base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newSession("other", "bob", base.Add(2*time.Minute))))

	active, err := repo.ListActive(ctx, 2)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "other", active[0].ID)
	assert.Equal(t, "new", active[1].ID)

	hosted, err := repo.ListHostActive(ctx, "alice", 50)
	require.NoError(t, err)
	require.Len(t, hosted, 2)
	assert.Equal(t, "new", hosted[0].ID)

	_, err = repo.AddParticipant(ctx, "other", "carol", base)
	require.NoError(t, err)
	_, err = repo.Complete(ctx, "other", base)
	require.NoError(t, err)

	recent, err := repo.ListCompletedFor(ctx, "carol", 20)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "other", recent[0].ID)

	unclosed, err := repo.ListUnclosedCompleted(ctx, 50)
	require.NoError(t, err)
	require.Len(t, unclosed, 1)

	require.NoError(t, repo.MarkChannelClosed(ctx, "other"))
	unclosed, err = repo.ListUnclosedCompleted(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, unclosed)
}

func TestSessionRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepo()
	require.NoError(t, repo.Create(ctx, newSession("s1", "alice", time.Now())))

	s, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	s.Participants = append(s.Participants, "mallory")

	again, err := repo.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, again.Participants)
}

func TestInviteRepo_ClaimIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewInviteRepo()
	now := time.Now()
	require.NoError(t, repo.Create(ctx, &models.InviteToken{
		ID: "t1", TokenHash: "h", SessionID: "s1", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}))
	require.NoError(t, repo.Create(ctx, &models.InviteToken{
		ID: "t2", TokenHash: "h", SessionID: "s1", ExpiresAt: now.Add(-time.Second), CreatedAt: now,
	}))

	redeemable, err := repo.ListRedeemable(ctx, now, 50)
	require.NoError(t, err)
	require.Len(t, redeemable, 1)
	assert.Equal(t, "t1", redeemable[0].ID)

	require.NoError(t, repo.Claim(ctx, "t1", now))
	assert.ErrorIs(t, repo.Claim(ctx, "t1", now), errs.ErrConditionFailed)
	assert.ErrorIs(t, repo.Claim(ctx, "t2", now), errs.ErrConditionFailed, "expired token cannot be claimed")

	consumed, err := repo.ListConsumed(ctx, now, 50)
	require.NoError(t, err)
	require.Len(t, consumed, 1)

	redeemable, err = repo.ListRedeemable(ctx, now, 50)
	require.NoError(t, err)
	assert.Empty(t, redeemable)

	assert.ErrorIs(t, repo.MarkUsed(ctx, "missing"), errs.ErrNotFound)
}

func TestInviteRepo_RevokeUnused(t *testing.T) {
	ctx := context.Background()
	repo := NewInviteRepo()
	now := time.Now()
	for _, inv := range []*models.InviteToken{
		{ID: "old", SessionID: "s1", ExpiresAt: now.Add(time.Hour), CreatedAt: now},
		{ID: "keep", SessionID: "s1", ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(time.Second)},
		{ID: "other", SessionID: "s2", ExpiresAt: now.Add(time.Hour), CreatedAt: now},
	} {
		require.NoError(t, repo.Create(ctx, inv))
	}

	n, err := repo.RevokeUnused(ctx, "s1", "keep")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	old, _ := repo.Get("old")
	assert.True(t, old.Used)
	assert.True(t, old.Revoked)

	redeemable, err := repo.ListRedeemable(ctx, now, 50)
	require.NoError(t, err)
	assert.Len(t, redeemable, 2)

	consumed, err := repo.ListConsumed(ctx, now, 50)
	require.NoError(t, err)
	assert.Empty(t, consumed, "revoked tokens are never matched again")
}

func TestSessionRepo_UnclosedOldestEndedFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepo()
	base := time.Now()
	require.NoError(t, repo.Create(ctx, newSession("a", "alice", base)))
	require.NoError(t, repo.Create(ctx, newSession("b", "alice", base.Add(time.Minute))))
	_, err := repo.Complete(ctx, "b", base.Add(2*time.Minute))
	require.NoError(t, err)
	_, err = repo.Complete(ctx, "a", base.Add(3*time.Minute))
	require.NoError(t, err)

	unclosed, err := repo.ListUnclosedCompleted(ctx, 50)
	require.NoError(t, err)
	require.Len(t, unclosed, 2)
	assert.Equal(t, "b", unclosed[0].ID)
	assert.Equal(t, "a", unclosed[1].ID)
}
