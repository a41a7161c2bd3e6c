package invites

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"peerprep/interview/internal/errs"
	"peerprep/interview/internal/metrics"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/secrets"
)

// CandidateLimit bounds how many stored hashes one redemption compares against.
const CandidateLimit = 50

const tokenBytes = 12

// Store persists invite tokens. Claim is a conditional write that fails with
// errs.ErrConditionFailed unless the token is unused and unexpired.
type Store interface {
	Create(ctx context.Context, t *models.InviteToken) error
	ListRedeemable(ctx context.Context, now time.Time, limit int) ([]models.InviteToken, error)
	ListConsumed(ctx context.Context, now time.Time, limit int) ([]models.InviteToken, error)
	Claim(ctx context.Context, id string, now time.Time) error
	MarkUsed(ctx context.Context, id string) error
	// RevokeUnused marks every unused invite of the session except keepID as
	// used and revoked, returning how many changed.
	RevokeUnused(ctx context.Context, sessionID, keepID string) (int, error)
}

// Sessions is the part of the session state machine redemption needs.
type Sessions interface {
	Get(ctx context.Context, id string) (models.SessionView, error)
	Admit(ctx context.Context, id, principal string) (models.SessionView, error)
}

type Manager struct {
	store    Store
	sessions Sessions
	verifier secrets.Verifier
	logger   *zap.Logger
	now      func() time.Time
	random   io.Reader
}

func NewManager(store Store, sessions Sessions, verifier secrets.Verifier, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:    store,
		sessions: sessions,
		verifier: verifier,
		logger:   logger,
		now:      time.Now,
		random:   rand.Reader,
	}
}

// Issue creates a single-use invite for a session the caller hosts. The
// plaintext token is only ever returned here.
func (m *Manager) Issue(ctx context.Context, sessionID, host string) (models.IssuedInvite, error) {
	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.IssuedInvite{}, err
	}
	if sess.Host != host {
		return models.IssuedInvite{}, fmt.Errorf("%w: only host can create invites", errs.ErrForbidden)
	}
	if sess.IsCompleted() {
		return models.IssuedInvite{}, fmt.Errorf("%w: cannot invite to a completed session", errs.ErrConflict)
	}

	raw := make([]byte, tokenBytes)
	if _, err := io.ReadFull(m.random, raw); err != nil {
		return models.IssuedInvite{}, fmt.Errorf("generate invite token: %w", err)
	}
	token := hex.EncodeToString(raw)
	hash, err := m.verifier.Hash(token)
	if err != nil {
		return models.IssuedInvite{}, fmt.Errorf("hash invite token: %w", err)
	}

	now := m.now().UTC()
	invite := &models.InviteToken{
		ID:        uuid.NewString(),
		TokenHash: hash,
		SessionID: sess.ID,
		CreatedBy: host,
		ExpiresAt: now.Add(models.InviteTTL),
		CreatedAt: now,
	}
	if err := m.store.Create(ctx, invite); err != nil {
		return models.IssuedInvite{}, fmt.Errorf("create invite: %w", err)
	}
	// one live invite per session keeps the candidate scan from being flooded
	if n, err := m.store.RevokeUnused(ctx, sess.ID, invite.ID); err != nil {
		m.logger.Warn("failed to revoke earlier invites", zap.String("session_id", sess.ID), zap.Error(err))
	} else if n > 0 {
		m.logger.Info("revoked earlier invites", zap.String("session_id", sess.ID), zap.Int("count", n))
	}
	m.logger.Info("invite issued", zap.String("session_id", sess.ID), zap.String("invite_id", invite.ID))
	return models.IssuedInvite{Token: token, ExpiresAt: invite.ExpiresAt}, nil
}

// Redeem joins principal to the invite's session without an access code.
// Redeeming a consumed token again is only accepted from the principal it
// already admitted.
func (m *Manager) Redeem(ctx context.Context, token, principal string) (view models.SessionView, err error) {
	defer func() { metrics.InvitesRedeemed.WithLabelValues(metrics.Outcome(err)).Inc() }()

	if principal == "" {
		return models.SessionView{}, errs.ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	now := m.now().UTC()

	invite, used, err := m.match(ctx, token, now)
	if err != nil {
		return models.SessionView{}, err
	}

	sess, err := m.sessions.Get(ctx, invite.SessionID)
	if err != nil {
		return models.SessionView{}, err
	}
	if sess.IsCompleted() {
		return models.SessionView{}, fmt.Errorf("%w: cannot join a completed session", errs.ErrConflict)
	}
	if sess.HasParticipant(principal) {
		if !used {
			if err := m.store.MarkUsed(ctx, invite.ID); err != nil {
				m.logger.Warn("failed to mark invite used", zap.String("invite_id", invite.ID), zap.Error(err))
			}
		}
		return sess, nil
	}
	if sess.Host == principal {
		return models.SessionView{}, fmt.Errorf("%w: host cannot redeem their own invite", errs.ErrForbidden)
	}
	if sess.IsFull() {
		return models.SessionView{}, fmt.Errorf("%w: session already has a participant", errs.ErrCapacityExceeded)
	}
	if used {
		return models.SessionView{}, fmt.Errorf("%w: invite already redeemed", errs.ErrConflict)
	}

	if err := m.store.Claim(ctx, invite.ID, now); err != nil {
		if errors.Is(err, errs.ErrConditionFailed) {
			return m.lostClaim(ctx, invite.SessionID, principal)
		}
		return models.SessionView{}, fmt.Errorf("claim invite: %w", err)
	}

	joined, err := m.sessions.Admit(ctx, invite.SessionID, principal)
	if errors.Is(err, errs.ErrAlreadyJoined) {
		return m.sessions.Get(ctx, invite.SessionID)
	}
	if err != nil {
		return models.SessionView{}, err
	}
	m.logger.Info("invite redeemed",
		zap.String("session_id", invite.SessionID), zap.String("invite_id", invite.ID), zap.String("principal", principal))
	return joined, nil
}

// lostClaim handles a concurrent redemption that claimed the token first.
func (m *Manager) lostClaim(ctx context.Context, sessionID, principal string) (models.SessionView, error) {
	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.SessionView{}, err
	}
	switch {
	case sess.HasParticipant(principal):
		return sess, nil
	case sess.IsCompleted():
		return models.SessionView{}, fmt.Errorf("%w: cannot join a completed session", errs.ErrConflict)
	case sess.IsFull():
		return models.SessionView{}, fmt.Errorf("%w: session already has a participant", errs.ErrCapacityExceeded)
	}
	return models.SessionView{}, fmt.Errorf("%w: invite already redeemed", errs.ErrConflict)
}

// match compares token against unused candidates first, then against
// consumed ones. Expired tokens are never candidates.
func (m *Manager) match(ctx context.Context, token string, now time.Time) (*models.InviteToken, bool, error) {
	notFound := fmt.Errorf("%w: invalid or expired invite", errs.ErrNotFound)
	if token == "" {
		return nil, false, notFound
	}

	redeemable, err := m.store.ListRedeemable(ctx, now, CandidateLimit)
	if err != nil {
		return nil, false, fmt.Errorf("list invites: %w", err)
	}
	if t := m.find(token, redeemable, now); t != nil {
		return t, false, nil
	}

	consumed, err := m.store.ListConsumed(ctx, now, CandidateLimit)
	if err != nil {
		return nil, false, fmt.Errorf("list invites: %w", err)
	}
	if t := m.find(token, consumed, now); t != nil {
		return t, true, nil
	}
	return nil, false, notFound
}

func (m *Manager) find(token string, candidates []models.InviteToken, now time.Time) *models.InviteToken {
	for i := range candidates {
		if candidates[i].Expired(now) {
			continue
		}
		if m.verifier.Verify(token, candidates[i].TokenHash) {
			return &candidates[i]
		}
	}
	return nil
}
