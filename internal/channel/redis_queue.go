package channel

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	QueueKey    = "channel:tasks"
	MaxAttempts = 3
)

// RedisQueue pushes tasks onto a Redis list for a Worker to consume.
type RedisQueue struct {
	rdb *redis.Client
	key string
	// Fallback receives tasks that could not be enqueued.
	Fallback Dispatcher
	logger   *zap.Logger
}

func NewRedisQueue(rdb *redis.Client, logger *zap.Logger) *RedisQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{rdb: rdb, key: QueueKey, logger: logger}
}

func (q *RedisQueue) Dispatch(ctx context.Context, t Task) {
	if err := q.push(context.WithoutCancel(ctx), t); err != nil {
		q.logger.Warn("failed to enqueue channel task",
			zap.String("op", string(t.Op)), zap.String("channel_id", t.ChannelID), zap.Error(err))
		if q.Fallback != nil {
			q.Fallback.Dispatch(ctx, t)
		}
	}
}

func (q *RedisQueue) push(ctx context.Context, t Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.key, payload).Err()
}

// Worker pops tasks from the queue and applies them, re-queuing failures
// until MaxAttempts is reached.
type Worker struct {
	rdb     *redis.Client
	key     string
	applier Applier
	logger  *zap.Logger
	timeout time.Duration
	done    chan struct{}
}

func NewWorker(rdb *redis.Client, applier Applier, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		rdb:     rdb,
		key:     QueueKey,
		applier: applier,
		logger:  logger,
		timeout: DefaultTaskTimeout,
		done:    make(chan struct{}),
	}
}

// ProcessOne waits up to wait for a task. It reports whether a task was taken.
func (w *Worker) ProcessOne(ctx context.Context, wait time.Duration) (bool, error) {
	res, err := w.rdb.BRPop(ctx, wait, w.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(res) != 2 {
		return false, nil
	}

	var t Task
	if err := json.Unmarshal([]byte(res[1]), &t); err != nil {
		w.logger.Error("dropping malformed channel task", zap.String("payload", res[1]), zap.Error(err))
		return true, nil
	}

	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()
	if err := w.applier.Apply(taskCtx, t); err != nil {
		t.Attempt++
		if t.Attempt >= MaxAttempts {
			w.logger.Error("giving up on channel task",
				zap.String("op", string(t.Op)), zap.String("channel_id", t.ChannelID), zap.Int("attempts", t.Attempt))
			return true, nil
		}
		payload, _ := json.Marshal(t)
		if pushErr := w.rdb.LPush(ctx, w.key, payload).Err(); pushErr != nil {
			w.logger.Error("failed to re-queue channel task", zap.String("channel_id", t.ChannelID), zap.Error(pushErr))
		}
	}
	return true, nil
}

// Run consumes the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	w.logger.Info("channel worker started", zap.String("queue", w.key))
	for {
		if ctx.Err() != nil {
			w.logger.Info("channel worker stopped")
			return
		}
		if _, err := w.ProcessOne(ctx, 2*time.Second); err != nil && ctx.Err() == nil {
			w.logger.Warn("channel worker poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}
