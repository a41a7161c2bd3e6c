package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"peerprep/interview/internal/channel"
	"peerprep/interview/internal/models"
)

// ReconcileBatch bounds how many sessions one run re-dispatches.
const ReconcileBatch = 50

// UnclosedLister finds completed sessions whose channel teardown has not
// been confirmed.
type UnclosedLister interface {
	ListUnclosedCompleted(ctx context.Context, limit int) ([]models.Session, error)
}

// ChannelReconciler periodically retries teardown for completed sessions
// whose chat or call deletion failed.
type ChannelReconciler struct {
	sessions   UnclosedLister
	dispatcher channel.Dispatcher
	schedule   string
	logger     *zap.Logger
	cron       *cron.Cron
}

func NewChannelReconciler(sessions UnclosedLister, dispatcher channel.Dispatcher, schedule string, logger *zap.Logger) *ChannelReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelReconciler{
		sessions:   sessions,
		dispatcher: dispatcher,
		schedule:   schedule,
		logger:     logger,
		cron:       cron.New(),
	}
}

// Start schedules the job. An empty schedule disables it.
func (r *ChannelReconciler) Start() error {
	if r.schedule == "" {
		r.logger.Info("channel reconciler disabled")
		return nil
	}
	_, err := r.cron.AddFunc(r.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Warn("channel reconcile failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule channel reconciler: %w", err)
	}
	r.cron.Start()
	r.logger.Info("channel reconciler started", zap.String("schedule", r.schedule))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (r *ChannelReconciler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
		r.logger.Info("channel reconciler stopped")
	}
}

// RunOnce dispatches teardown for one batch and returns how many were queued.
func (r *ChannelReconciler) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.sessions.ListUnclosedCompleted(ctx, ReconcileBatch)
	if err != nil {
		return 0, fmt.Errorf("list unclosed sessions: %w", err)
	}
	for _, s := range pending {
		r.dispatcher.Dispatch(ctx, channel.Task{
			Op:        channel.OpTeardown,
			SessionID: s.ID,
			ChannelID: s.ChannelID,
		})
	}
	if len(pending) > 0 {
		r.logger.Info("re-dispatched channel teardown", zap.Int("sessions", len(pending)))
	}
	return len(pending), nil
}
