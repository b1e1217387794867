package queue

import (
	"context"
	"errors"

	"github.com/jarvis-assistant/jarvis-back/internal/domain"
)

// ErrQueueFull is returned by producers that cannot accept an event
// without waiting.
var ErrQueueFull = errors.New("queue is full")

// Producer sends message persistence events to a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, event domain.MessageEvent) error
}

// Consumer receives message events and executes handlers.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.MessageEvent) error) error
}
