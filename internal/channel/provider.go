package channel

import (
	"context"

	"go.uber.org/zap"
)

// Provider is the external chat and video service. Every method may fail
// independently; callers treat failures as degraded, never fatal.
type Provider interface {
	CreateChannel(ctx context.Context, channelID string, meta Metadata) error
	AddMembers(ctx context.Context, channelID string, members []string) error
	DeleteChannel(ctx context.Context, channelID string) error
	DeleteCall(ctx context.Context, channelID string, hard bool) error
}

// Metadata is sent when a chat channel is created.
type Metadata struct {
	Name      string   `json:"name,omitempty"`
	CreatedBy string   `json:"created_by_id,omitempty"`
	Members   []string `json:"members,omitempty"`
}

// NopProvider is used when no chat credentials are configured.
type NopProvider struct {
	Logger *zap.Logger
}

func (p NopProvider) CreateChannel(_ context.Context, channelID string, meta Metadata) error {
	p.log("create channel", channelID, zap.Strings("members", meta.Members))
	return nil
}

func (p NopProvider) AddMembers(_ context.Context, channelID string, members []string) error {
	p.log("add members", channelID, zap.Strings("members", members))
	return nil
}

func (p NopProvider) DeleteChannel(_ context.Context, channelID string) error {
	p.log("delete channel", channelID)
	return nil
}

func (p NopProvider) DeleteCall(_ context.Context, channelID string, hard bool) error {
	p.log("delete call", channelID, zap.Bool("hard", hard))
	return nil
}

func (p NopProvider) log(action, channelID string, fields ...zap.Field) {
	if p.Logger == nil {
		return
	}
	p.Logger.Debug("chat provider disabled, skipping "+action,
		append([]zap.Field{zap.String("channel_id", channelID)}, fields...)...)
}
