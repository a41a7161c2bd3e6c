package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"peerprep/interview/internal/channel"
	"peerprep/interview/internal/errs"
	"peerprep/interview/internal/metrics"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/secrets"
)

// page sizes
const (
	ActivePageSize     = 20
	RecentPageSize     = 20
	HostActivePageSize = 50
)

const publishTimeout = 2 * time.Second

type CreateInput struct {
	Problem    string
	Difficulty string
	Host       string
	AccessCode string
}

type Options struct {
	// FailClosed rejects Create when the access code cannot be hashed instead
	// of creating the session unprotected.
	FailClosed bool
	Publisher  EventPublisher
	// Profiles, when set, fills host and participant profiles on views.
	Profiles   ProfileLookup
	Now        func() time.Time
}

// Service is the session lifecycle state machine. The store is its only
// synchronization point; channel work is dispatched after writes commit.
type Service struct {
	store      Store
	verifier   secrets.Verifier
	dispatcher channel.Dispatcher
	publisher  EventPublisher
	profiles   ProfileLookup
	logger     *zap.Logger
	failClosed bool
	now        func() time.Time
	newID      func() string
}

func NewService(store Store, verifier secrets.Verifier, dispatcher channel.Dispatcher, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      store,
		verifier:   verifier,
		dispatcher: dispatcher,
		publisher:  opts.Publisher,
		profiles:   opts.Profiles,
		logger:     logger,
		failClosed: opts.FailClosed,
		now:        now,
		newID:      uuid.NewString,
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (models.SessionView, error) {
	if in.Host == "" {
		return models.SessionView{}, errs.ErrUnauthenticated
	}
	problem := strings.TrimSpace(in.Problem)
	if problem == "" {
		return models.SessionView{}, fmt.Errorf("%w: problem is required", errs.ErrInvalid)
	}
	difficulty := models.NormalizeDifficulty(in.Difficulty)
	if !difficulty.Valid() {
		return models.SessionView{}, fmt.Errorf("%w: difficulty must be Easy, Medium or Hard", errs.ErrInvalid)
	}
	// over-long codes are bad input, not a hashing outage
	if len(in.AccessCode) > secrets.MaxSecretBytes {
		return models.SessionView{}, fmt.Errorf("%w: access code must be at most %d bytes", errs.ErrInvalid, secrets.MaxSecretBytes)
	}

	now := s.now().UTC()
	sess := &models.Session{
		ID:           s.newID(),
		Problem:      problem,
		Difficulty:   difficulty,
		Host:         in.Host,
		Participants: []string{},
		Status:       models.StatusActive,
		ChannelID:    newChannelID(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if strings.TrimSpace(in.AccessCode) != "" {
		hash, err := s.verifier.Hash(in.AccessCode)
		if err != nil {
			if s.failClosed {
				return models.SessionView{}, fmt.Errorf("hash access code: %w", err)
			}
			metrics.SessionsUnprotected.Inc()
			s.logger.Warn("failed to hash access code, creating unprotected session",
				zap.String("host", in.Host), zap.Error(err))
		} else {
			sess.AccessCodeHash = hash
		}
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return models.SessionView{}, fmt.Errorf("create session: %w", err)
	}
	metrics.SessionsCreated.Inc()
	s.logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("host", sess.Host),
		zap.Bool("protected", sess.IsProtected()))

	s.dispatcher.Dispatch(ctx, channel.Task{
		Op:        channel.OpProvision,
		SessionID: sess.ID,
		ChannelID: sess.ChannelID,
		Principal: sess.Host,
		Members:   []string{sess.Host},
		Name:      sess.Problem + " Session",
	})
	return s.presentOne(ctx, sess.View()), nil
}

// Join admits principal as the session's participant. Checks run in order:
// existence, status, membership, host, access code, capacity.
func (s *Service) Join(ctx context.Context, id, principal, accessCode string) (view models.SessionView, err error) {
	defer func() { metrics.SessionJoins.WithLabelValues(metrics.Outcome(err)).Inc() }()

	if principal == "" {
		return models.SessionView{}, errs.ErrUnauthenticated
	}
	sess, err := s.load(ctx, id)
	if err != nil {
		return models.SessionView{}, err
	}
	if sess.IsCompleted() {
		return models.SessionView{}, fmt.Errorf("%w: cannot join a completed session", errs.ErrConflict)
	}
	if sess.HasParticipant(principal) {
		return models.SessionView{}, fmt.Errorf("%w: user already joined the session", errs.ErrAlreadyJoined)
	}
	if sess.Host == principal {
		return models.SessionView{}, fmt.Errorf("%w: host cannot join their own session", errs.ErrForbidden)
	}
	if sess.IsProtected() {
		if accessCode == "" {
			return models.SessionView{}, fmt.Errorf("%w: access code required", errs.ErrForbidden)
		}
		if !s.verifier.Verify(accessCode, sess.AccessCodeHash) {
			return models.SessionView{}, fmt.Errorf("%w: invalid access code", errs.ErrForbidden)
		}
	}
	if sess.IsFull() {
		return models.SessionView{}, fmt.Errorf("%w: session already has a participant", errs.ErrCapacityExceeded)
	}
	return s.Admit(ctx, id, principal)
}

// Admit runs the conditional append without the access code check. Invite
// redemption calls it directly.
func (s *Service) Admit(ctx context.Context, id, principal string) (models.SessionView, error) {
	updated, err := s.store.AddParticipant(ctx, id, principal, s.now().UTC())
	if errors.Is(err, errs.ErrConditionFailed) {
		return models.SessionView{}, s.classifyJoinFailure(ctx, id, principal)
	}
	if err != nil {
		return models.SessionView{}, fmt.Errorf("add participant: %w", err)
	}

	s.logger.Info("participant joined",
		zap.String("session_id", id), zap.String("principal", principal))
	s.dispatcher.Dispatch(ctx, channel.Task{
		Op:        channel.OpAddMember,
		SessionID: updated.ID,
		ChannelID: updated.ChannelID,
		Principal: principal,
	})
	return s.presentOne(ctx, updated.View()), nil
}

// classifyJoinFailure re-reads the session after the conditional append
// matched nothing, to report which precondition failed.
func (s *Service) classifyJoinFailure(ctx context.Context, id, principal string) error {
	sess, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	switch {
	case sess.IsCompleted():
		return fmt.Errorf("%w: cannot join a completed session", errs.ErrConflict)
	case sess.HasParticipant(principal):
		return fmt.Errorf("%w: user already joined the session", errs.ErrAlreadyJoined)
	case sess.Host == principal:
		return fmt.Errorf("%w: host cannot join their own session", errs.ErrForbidden)
	case sess.IsFull():
		return fmt.Errorf("%w: session already has a participant", errs.ErrCapacityExceeded)
	}
	return fmt.Errorf("%w: session changed concurrently, retry", errs.ErrConflict)
}

func (s *Service) End(ctx context.Context, id, principal string) (models.SessionView, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return models.SessionView{}, err
	}
	if sess.Host != principal {
		return models.SessionView{}, fmt.Errorf("%w: only host can end the session", errs.ErrForbidden)
	}
	if sess.IsCompleted() {
		return models.SessionView{}, fmt.Errorf("%w: session is already completed", errs.ErrConflict)
	}

	updated, err := s.store.Complete(ctx, id, s.now().UTC())
	if errors.Is(err, errs.ErrConditionFailed) {
		if _, loadErr := s.load(ctx, id); loadErr != nil {
			return models.SessionView{}, loadErr
		}
		return models.SessionView{}, fmt.Errorf("%w: session is already completed", errs.ErrConflict)
	}
	if err != nil {
		return models.SessionView{}, fmt.Errorf("complete session: %w", err)
	}

	s.logger.Info("session ended", zap.String("session_id", id), zap.String("host", principal))
	s.dispatcher.Dispatch(ctx, channel.Task{
		Op:        channel.OpTeardown,
		SessionID: updated.ID,
		ChannelID: updated.ChannelID,
	})
	s.publishEnded(ctx, updated)
	return s.presentOne(ctx, updated.View()), nil
}

func (s *Service) publishEnded(ctx context.Context, sess *models.Session) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishSessionEnded(pubCtx, sess); err != nil {
		s.logger.Warn("failed to publish session_ended",
			zap.String("session_id", sess.ID), zap.Error(err))
	}
}

func (s *Service) Get(ctx context.Context, id string) (models.SessionView, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return models.SessionView{}, err
	}
	return s.presentOne(ctx, sess.View()), nil
}

func (s *Service) ListActive(ctx context.Context) ([]models.SessionView, error) {
	out, err := s.store.ListActive(ctx, ActivePageSize)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return s.views(ctx, out), nil
}

// ListMyRecent returns completed sessions the principal hosted or joined.
func (s *Service) ListMyRecent(ctx context.Context, principal string) ([]models.SessionView, error) {
	out, err := s.store.ListCompletedFor(ctx, principal, RecentPageSize)
	if err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}
	return s.views(ctx, out), nil
}

func (s *Service) ListHostActive(ctx context.Context, host string) ([]models.SessionView, error) {
	out, err := s.store.ListHostActive(ctx, host, HostActivePageSize)
	if err != nil {
		return nil, fmt.Errorf("list host sessions: %w", err)
	}
	return s.views(ctx, out), nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.store.GetByID(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("%w: session not found", errs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s.expired(sess) {
		return nil, fmt.Errorf("%w: session not found", errs.ErrNotFound)
	}
	return sess, nil
}

// expired reports whether a session outlived the retention window. The TTL
// index removes such documents eventually; until then they are treated as gone.
func (s *Service) expired(sess *models.Session) bool {
	return !s.now().Before(sess.CreatedAt.Add(models.SessionRetention))
}

func (s *Service) views(ctx context.Context, list []models.Session) []models.SessionView {
	kept := list[:0]
	for _, sess := range list {
		if !s.expired(&sess) {
			kept = append(kept, sess)
		}
	}
	return s.present(ctx, models.Views(kept)...)
}

func (s *Service) presentOne(ctx context.Context, v models.SessionView) models.SessionView {
	return s.present(ctx, v)[0]
}

// present attaches stored profiles. A lookup failure only costs the
// profiles; the views are returned as they are.
func (s *Service) present(ctx context.Context, views ...models.SessionView) []models.SessionView {
	if s.profiles == nil || len(views) == 0 {
		return views
	}
	seen := make(map[string]struct{})
	ids := make([]string, 0, 2*len(views))
	for _, v := range views {
		for _, id := range append([]string{v.Host}, v.Participants...) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	profiles, err := s.profiles.Profiles(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to load principal profiles", zap.Int("principals", len(ids)), zap.Error(err))
		return views
	}
	for i := range views {
		views[i] = views[i].WithProfiles(profiles)
	}
	return views
}
