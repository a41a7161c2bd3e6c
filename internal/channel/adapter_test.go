package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAdapter_TeardownOrderAndClosure(t *testing.T) {
	provider := &fakeProvider{}
	closures := &fakeClosures{}
	a := NewAdapter(provider, closures, zap.NewNop())

	err := a.Apply(context.Background(), Task{Op: OpTeardown, SessionID: "s1", ChannelID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"delete_channel", "delete_call"}, provider.ops())
	assert.True(t, provider.calls[1].hard)
	assert.Equal(t, []string{"s1"}, closures.closed)
}

func TestAdapter_ChatFailureDoesNotSkipCall(t *testing.T) {
	provider := &fakeProvider{failOn: map[string]bool{"delete_channel": true}}
	closures := &fakeClosures{}
	a := NewAdapter(provider, closures, zap.NewNop())

	err := a.Teardown(context.Background(), "s1", "c1")
	assert.Error(t, err)
	assert.Equal(t, []string{"delete_channel", "delete_call"}, provider.ops())
	assert.Empty(t, closures.closed)
}

func TestAdapter_ProvisionAndAddMember(t *testing.T) {
	provider := &fakeProvider{}
	a := NewAdapter(provider, nil, nil)
	ctx := context.Background()

	require.NoError(t, a.Apply(ctx, Task{Op: OpProvision, ChannelID: "c1", Principal: "alice", Members: []string{"alice"}}))
	require.NoError(t, a.Apply(ctx, Task{Op: OpAddMember, ChannelID: "c1", Principal: "bob"}))

	require.Len(t, provider.calls, 2)
	assert.Equal(t, []string{"alice"}, provider.calls[0].members)
	assert.Equal(t, []string{"bob"}, provider.calls[1].members)
}

func TestAdapter_UnknownOp(t *testing.T) {
	a := NewAdapter(&fakeProvider{}, nil, nil)
	assert.Error(t, a.Apply(context.Background(), Task{Op: "bogus"}))
}

func TestInlineDispatcher_SurvivesCancelledContext(t *testing.T) {
	provider := &fakeProvider{}
	d := NewInlineDispatcher(NewAdapter(provider, nil, nil), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, Task{Op: OpAddMember, ChannelID: "c1", Principal: "bob"})
	d.Wait()

	assert.Equal(t, []string{"add"}, provider.ops())
}

type panicApplier struct{}

func (panicApplier) Apply(context.Context, Task) error { panic("boom") }

func TestInlineDispatcher_RecoversPanics(t *testing.T) {
	d := NewInlineDispatcher(panicApplier{}, zap.NewNop())
	d.Dispatch(context.Background(), Task{Op: OpProvision})
	d.Wait()
}
