package queue

import (
	"context"
	"sync"
	"time"

	"github.com/jarvis-assistant/jarvis-back/internal/domain"
	"github.com/rs/zerolog"
)

// LocalQueue is a fallback queue used when Redis is not configured.
type LocalQueue struct {
	ch          chan domain.MessageEvent
	maxAttempts int
	retryDelay  time.Duration
	logger      zerolog.Logger

	dlqMu sync.Mutex
	dlq   []domain.MessageEvent
}

func NewLocalQueue(bufferSize, maxAttempts int, logger zerolog.Logger) *LocalQueue {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &LocalQueue{
		ch:          make(chan domain.MessageEvent, bufferSize),
		maxAttempts: maxAttempts,
		retryDelay:  500 * time.Millisecond,
		logger:      logger,
		dlq:         make([]domain.MessageEvent, 0),
	}
}

// Enqueue never waits: a full buffer returns ErrQueueFull.
func (q *LocalQueue) Enqueue(ctx context.Context, event domain.MessageEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *LocalQueue) Consume(ctx context.Context, handler func(context.Context, domain.MessageEvent) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-q.ch:
			err := handler(ctx, event)
			if err == nil {
				continue
			}

			event.Attempt++
			if event.Attempt >= q.maxAttempts {
				q.dlqMu.Lock()
				q.dlq = append(q.dlq, event)
				q.dlqMu.Unlock()
				q.logger.Warn().
					Err(err).
					Str("event_id", event.EventID).
					Str("conversation_id", event.ConversationID).
					Msg("local queue moved event to DLQ")
				continue
			}

			delay := time.Duration(event.Attempt) * q.retryDelay
			go func(retryEvent domain.MessageEvent) {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-ctx.Done():
					return
				case <-timer.C:
				}
				select {
				case <-ctx.Done():
				case q.ch <- retryEvent:
				}
			}(event)
		}
	}
}

func (q *LocalQueue) DLQSize() int {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return len(q.dlq)
}
