package channel

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type call struct {
	op        string
	channelID string
	members   []string
	hard      bool
}

// fakeProvider records calls and fails the ops listed in failOn.
type fakeProvider struct {
	mu     sync.Mutex
	calls  []call
	failOn map[string]bool
}

func (f *fakeProvider) add(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.failOn[c.op] {
		return errors.New(c.op + " failed")
	}
	return nil
}

func (f *fakeProvider) CreateChannel(_ context.Context, channelID string, meta Metadata) error {
	return f.add(call{op: "create", channelID: channelID, members: meta.Members})
}

func (f *fakeProvider) AddMembers(_ context.Context, channelID string, members []string) error {
	return f.add(call{op: "add", channelID: channelID, members: members})
}

func (f *fakeProvider) DeleteChannel(_ context.Context, channelID string) error {
	return f.add(call{op: "delete_channel", channelID: channelID})
}

func (f *fakeProvider) DeleteCall(_ context.Context, channelID string, hard bool) error {
	return f.add(call{op: "delete_call", channelID: channelID, hard: hard})
}

func (f *fakeProvider) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return out
}

type fakeClosures struct {
	mu     sync.Mutex
	closed []string
}

func (f *fakeClosures) MarkChannelClosed(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, sessionID)
	return nil
}

// setupTestRedis creates a miniredis instance and a redis client for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return mr, client
}
