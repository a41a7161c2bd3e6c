package channel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTaskTimeout bounds one provider round trip.
const DefaultTaskTimeout = 15 * time.Second

// Dispatcher hands a task off after the session write has committed.
// Dispatch never blocks on the provider and never reports failure.
type Dispatcher interface {
	Dispatch(ctx context.Context, t Task)
}

// Applier runs a task against the provider.
type Applier interface {
	Apply(ctx context.Context, t Task) error
}

// InlineDispatcher runs every task on its own goroutine.
type InlineDispatcher struct {
	applier Applier
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewInlineDispatcher(applier Applier, logger *zap.Logger) *InlineDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InlineDispatcher{applier: applier, logger: logger, timeout: DefaultTaskTimeout}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, t Task) {
	// the request context is cancelled once the handler returns
	base := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("channel task panicked",
					zap.String("op", string(t.Op)), zap.String("channel_id", t.ChannelID), zap.Any("panic", r))
			}
		}()
		taskCtx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()
		_ = d.applier.Apply(taskCtx, t)
	}()
}

// Wait blocks until every dispatched task has finished.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}
