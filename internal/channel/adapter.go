package channel

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"peerprep/interview/internal/metrics"
)

type Op string

const (
	OpProvision Op = "provision"
	OpAddMember Op = "add_member"
	OpTeardown  Op = "teardown"
)

// Task is one unit of channel work, queued after the session write commits.
type Task struct {
	Op        Op       `json:"op"`
	SessionID string   `json:"sessionId"`
	ChannelID string   `json:"channelId"`
	Principal string   `json:"principal,omitempty"`
	Members   []string `json:"members,omitempty"`
	Name      string   `json:"name,omitempty"`
	Attempt   int      `json:"attempt"`
}

// ClosureRecorder marks a session whose chat and call are both gone.
type ClosureRecorder interface {
	MarkChannelClosed(ctx context.Context, sessionID string) error
}

// Adapter applies tasks to a Provider. Failures are logged and counted here;
// the returned errors only drive retries.
type Adapter struct {
	provider Provider
	closures ClosureRecorder
	logger   *zap.Logger
}

func NewAdapter(provider Provider, closures ClosureRecorder, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{provider: provider, closures: closures, logger: logger}
}

func (a *Adapter) Apply(ctx context.Context, t Task) error {
	switch t.Op {
	case OpProvision:
		return a.Provision(ctx, t.ChannelID, t.Principal, t.Members, t.Name)
	case OpAddMember:
		return a.AddMember(ctx, t.ChannelID, t.Principal)
	case OpTeardown:
		return a.Teardown(ctx, t.SessionID, t.ChannelID)
	default:
		return fmt.Errorf("unknown channel op %q", t.Op)
	}
}

func (a *Adapter) Provision(ctx context.Context, channelID, createdBy string, members []string, name string) error {
	err := a.provider.CreateChannel(ctx, channelID, Metadata{Name: name, CreatedBy: createdBy, Members: members})
	return a.record(OpProvision, channelID, err)
}

func (a *Adapter) AddMember(ctx context.Context, channelID, principal string) error {
	err := a.provider.AddMembers(ctx, channelID, []string{principal})
	return a.record(OpAddMember, channelID, err, zap.String("principal", principal))
}

func (a *Adapter) TeardownChat(ctx context.Context, channelID string) error {
	return a.record("teardown_chat", channelID, a.provider.DeleteChannel(ctx, channelID))
}

func (a *Adapter) TeardownCall(ctx context.Context, channelID string) error {
	return a.record("teardown_call", channelID, a.provider.DeleteCall(ctx, channelID, true))
}

// Teardown deletes the chat channel, then the call. A chat failure does not
// skip the call delete.
func (a *Adapter) Teardown(ctx context.Context, sessionID, channelID string) error {
	chatErr := a.TeardownChat(ctx, channelID)
	callErr := a.TeardownCall(ctx, channelID)
	if err := errors.Join(chatErr, callErr); err != nil {
		return err
	}
	if a.closures != nil && sessionID != "" {
		if err := a.closures.MarkChannelClosed(ctx, sessionID); err != nil {
			a.logger.Warn("failed to mark channel closed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return nil
}

func (a *Adapter) record(op Op, channelID string, err error, fields ...zap.Field) error {
	if err == nil {
		return nil
	}
	metrics.ChannelSyncFailures.WithLabelValues(string(op)).Inc()
	a.logger.Warn("channel sync failed",
		append([]zap.Field{zap.String("op", string(op)), zap.String("channel_id", channelID), zap.Error(err)}, fields...)...)
	return err
}
