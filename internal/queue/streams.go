package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jarvis-assistant/jarvis-back/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type StreamsConfig struct {
	Addr        string
	Password    string
	DB          int
	Stream      string
	DLQStream   string
	Group       string
	Consumer    string
	MaxAttempts int
}

// StreamsQueue implements Producer+Consumer backed by Redis Streams.
type StreamsQueue struct {
	client      *redis.Client
	stream      string
	dlqStream   string
	group       string
	consumer    string
	maxAttempts int
	logger      zerolog.Logger
}

func NewStreamsQueue(ctx context.Context, cfg StreamsConfig, logger zerolog.Logger) (*StreamsQueue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "jarvis_messages"
	}
	if cfg.DLQStream == "" {
		cfg.DLQStream = "jarvis_messages_dlq"
	}
	if cfg.Group == "" {
		cfg.Group = "jarvis_writers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "api-1"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	queue := &StreamsQueue{
		client:      client,
		stream:      cfg.Stream,
		dlqStream:   cfg.DLQStream,
		group:       cfg.Group,
		consumer:    cfg.Consumer,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
	}
	if err := queue.ensureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return queue, nil
}

func (q *StreamsQueue) Close() error {
	return q.client.Close()
}

func (q *StreamsQueue) Enqueue(ctx context.Context, event domain.MessageEvent) error {
	_, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: eventValues(event),
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue to stream: %w", err)
	}
	return nil
}

func (q *StreamsQueue) Consume(ctx context.Context, handler func(context.Context, domain.MessageEvent) error) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}

		for _, stream := range streams {
			for _, item := range stream.Messages {
				q.handleItem(ctx, item, handler)
			}
		}
	}
}

func (q *StreamsQueue) handleItem(ctx context.Context, item redis.XMessage, handler func(context.Context, domain.MessageEvent) error) {
	event, parseErr := parseStreamEvent(item)
	if parseErr != nil {
		q.deadLetter(ctx, domain.MessageEvent{}, item, parseErr.Error())
		q.ackAndDelete(ctx, item.ID)
		return
	}

	handleErr := handler(ctx, event)
	if handleErr == nil {
		q.ackAndDelete(ctx, item.ID)
		return
	}

	event.Attempt++
	if event.Attempt >= q.maxAttempts {
		q.deadLetter(ctx, event, item, handleErr.Error())
		q.ackAndDelete(ctx, item.ID)
		return
	}

	if requeueErr := q.Enqueue(ctx, event); requeueErr != nil {
		q.deadLetter(ctx, event, item, fmt.Sprintf("requeue failed: %v", requeueErr))
	}
	q.ackAndDelete(ctx, item.ID)
}

func (q *StreamsQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("ensure stream group: %w", err)
}

func (q *StreamsQueue) ackAndDelete(ctx context.Context, streamID string) {
	if err := q.client.XAck(ctx, q.stream, q.group, streamID).Err(); err != nil {
		q.logger.Warn().Err(err).Str("stream_id", streamID).Msg("xack failed")
		return
	}
	if err := q.client.XDel(ctx, q.stream, streamID).Err(); err != nil {
		q.logger.Warn().Err(err).Str("stream_id", streamID).Msg("xdel failed")
	}
}

func (q *StreamsQueue) deadLetter(ctx context.Context, event domain.MessageEvent, item redis.XMessage, reason string) {
	values := eventValues(event)
	values["stream_id"] = item.ID
	values["error"] = reason
	values["moved_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.dlqStream, Values: values}).Result(); err != nil {
		q.logger.Error().Err(err).Str("stream_id", item.ID).Msg("send to dlq failed")
		return
	}
	q.logger.Warn().
		Str("stream_id", item.ID).
		Str("event_id", event.EventID).
		Str("reason", reason).
		Msg("stream event moved to DLQ")
}

func eventValues(event domain.MessageEvent) map[string]any {
	return map[string]any{
		"event_id":        event.EventID,
		"conversation_id": event.ConversationID,
		"role":            string(event.Role),
		"content":         event.Content,
		"ai_model":        event.AIModel,
		"attempt":         event.Attempt,
		"requested_at":    event.RequestedAt.Format(time.RFC3339Nano),
	}
}

func parseStreamEvent(item redis.XMessage) (domain.MessageEvent, error) {
	getString := func(key string) (string, error) {
		value, ok := item.Values[key]
		if !ok {
			return "", fmt.Errorf("missing field %s", key)
		}
		switch casted := value.(type) {
		case string:
			return casted, nil
		case []byte:
			return string(casted), nil
		default:
			return fmt.Sprintf("%v", casted), nil
		}
	}

	fields := make(map[string]string, 7)
	for _, key := range []string{"event_id", "conversation_id", "role", "content", "ai_model", "attempt", "requested_at"} {
		value, err := getString(key)
		if err != nil {
			return domain.MessageEvent{}, err
		}
		fields[key] = value
	}

	attempt, err := strconv.Atoi(fields["attempt"])
	if err != nil {
		return domain.MessageEvent{}, fmt.Errorf("invalid attempt: %w", err)
	}
	requestedAt, err := time.Parse(time.RFC3339Nano, fields["requested_at"])
	if err != nil {
		return domain.MessageEvent{}, fmt.Errorf("invalid requested_at: %w", err)
	}
	role := domain.MessageRole(fields["role"])
	if !role.Valid() {
		return domain.MessageEvent{}, fmt.Errorf("invalid role %q", fields["role"])
	}

	return domain.MessageEvent{
		EventID:        fields["event_id"],
		ConversationID: fields["conversation_id"],
		Role:           role,
		Content:        fields["content"],
		AIModel:        fields["ai_model"],
		Attempt:        attempt,
		RequestedAt:    requestedAt,
	}, nil
}
