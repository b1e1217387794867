package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jarvis-assistant/jarvis-back/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeStreams records stream commands instead of sending them to a server.
type fakeStreams struct {
	mu       sync.Mutex
	commands [][]any
	batch    []redis.XMessage
	reads    int
}

func (f *fakeStreams) DialHook(next redis.DialHook) redis.DialHook { return next }

func (f *fakeStreams) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (f *fakeStreams) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch cmd.Name() {
		case "xgroup":
			return nil
		case "xreadgroup":
			f.reads++
			if f.reads > 1 {
				return context.Canceled
			}
			cmd.(*redis.XStreamSliceCmd).SetVal([]redis.XStream{{Stream: "s", Messages: f.batch}})
			return nil
		case "xadd":
			f.commands = append(f.commands, cmd.Args())
			cmd.(*redis.StringCmd).SetVal("2-0")
		case "xack", "xdel":
			f.commands = append(f.commands, cmd.Args())
			cmd.(*redis.IntCmd).SetVal(1)
		default:
			return errors.New("unexpected command " + cmd.Name())
		}
		return nil
	}
}

func (f *fakeStreams) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.commands))
	for _, args := range f.commands {
		name := args[0].(string)
		if name == "xadd" {
			name += " " + args[1].(string)
		}
		out = append(out, name)
	}
	return out
}

func (f *fakeStreams) addedFields(stream string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, args := range f.commands {
		if args[0] != "xadd" || args[1] != stream {
			continue
		}
		fields := map[string]any{}
		for i := 3; i+1 < len(args); i += 2 {
			fields[args[i].(string)] = args[i+1]
		}
		return fields
	}
	return nil
}

func newFakeStreamsQueue(t *testing.T) (*StreamsQueue, *fakeStreams) {
	t.Helper()
	fake := &fakeStreams{}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(fake)
	t.Cleanup(func() { _ = client.Close() })
	return &StreamsQueue{
		client:      client,
		stream:      "s",
		dlqStream:   "s_dlq",
		group:       "g",
		consumer:    "c",
		maxAttempts: 2,
		logger:      zerolog.Nop(),
	}, fake
}

func streamItem(attempt int) redis.XMessage {
	return redis.XMessage{ID: "1-0", Values: eventValues(domain.MessageEvent{
		EventID:        "e1",
		ConversationID: "c1",
		Role:           domain.MessageRoleUser,
		Content:        "Hallo",
		Attempt:        attempt,
		RequestedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})}
}

func TestStreamsQueueAcksHandledItem(t *testing.T) {
	q, fake := newFakeStreamsQueue(t)

	var got domain.MessageEvent
	q.handleItem(context.Background(), streamItem(0), func(_ context.Context, event domain.MessageEvent) error {
		got = event
		return nil
	})

	require.Equal(t, "e1", got.EventID)
	require.Equal(t, []string{"xack", "xdel"}, fake.names())
}

func TestStreamsQueueRequeuesFailedItem(t *testing.T) {
	q, fake := newFakeStreamsQueue(t)

	q.handleItem(context.Background(), streamItem(0), func(context.Context, domain.MessageEvent) error {
		return errors.New("db down")
	})

	require.Equal(t, []string{"xadd s", "xack", "xdel"}, fake.names())
	require.Equal(t, 1, fake.addedFields("s")["attempt"])
}

func TestStreamsQueueDeadLettersAfterMaxAttempts(t *testing.T) {
	q, fake := newFakeStreamsQueue(t)

	q.handleItem(context.Background(), streamItem(1), func(context.Context, domain.MessageEvent) error {
		return errors.New("db down")
	})

	require.Equal(t, []string{"xadd s_dlq", "xack", "xdel"}, fake.names())
	fields := fake.addedFields("s_dlq")
	require.Equal(t, "db down", fields["error"])
	require.Equal(t, "1-0", fields["stream_id"])
	require.Equal(t, 2, fields["attempt"])
}

func TestStreamsQueueDeadLettersMalformedItem(t *testing.T) {
	q, fake := newFakeStreamsQueue(t)
	item := redis.XMessage{ID: "1-0", Values: map[string]any{"event_id": "e1"}}

	called := false
	q.handleItem(context.Background(), item, func(context.Context, domain.MessageEvent) error {
		called = true
		return nil
	})

	require.False(t, called)
	require.Equal(t, []string{"xadd s_dlq", "xack", "xdel"}, fake.names())
}

func TestStreamsQueueConsumeHandlesBatchUntilCancelled(t *testing.T) {
	q, fake := newFakeStreamsQueue(t)
	fake.batch = []redis.XMessage{streamItem(0)}

	var handled []string
	err := q.Consume(context.Background(), func(_ context.Context, event domain.MessageEvent) error {
		handled = append(handled, event.EventID)
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"e1"}, handled)
	require.Equal(t, []string{"xack", "xdel"}, fake.names())
}
