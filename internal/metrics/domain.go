package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"peerprep/interview/internal/errs"
)

const (
	namespace = "peerprep"
	subsystem = "interview"
)

// outcome labels
const (
	OutcomeSuccess       = "success"
	OutcomeAlreadyJoined = "already_joined"
	OutcomeForbidden     = "forbidden"
	OutcomeFull          = "capacity_exceeded"
	OutcomeConflict      = "conflict"
	OutcomeNotFound      = "not_found"
	OutcomeError         = "error"
)

var (
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sessions_created_total",
		Help:      "Sessions created",
	})

	SessionsUnprotected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "access_code_hash_failures_total",
		Help:      "Sessions created without protection because the access code could not be hashed",
	})

	SessionJoins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_joins_total",
		Help:      "Join attempts by outcome",
	}, []string{"outcome"})

	InvitesRedeemed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "invites_redeemed_total",
		Help:      "Invite redemption attempts by outcome",
	}, []string{"outcome"})

	ChannelSyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "channel_sync_failures_total",
		Help:      "Failed calls to the chat/video provider by operation",
	}, []string{"op"})
)

// Outcome maps a join or redeem result onto its label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, errs.ErrAlreadyJoined):
		return OutcomeAlreadyJoined
	case errors.Is(err, errs.ErrForbidden):
		return OutcomeForbidden
	case errors.Is(err, errs.ErrCapacityExceeded):
		return OutcomeFull
	case errors.Is(err, errs.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, errs.ErrNotFound):
		return OutcomeNotFound
	}
	return OutcomeError
}
