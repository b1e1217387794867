package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jarvis-assistant/jarvis-back/internal/domain"
	"github.com/jarvis-assistant/jarvis-back/internal/queue"
	"github.com/jarvis-assistant/jarvis-back/internal/repository"
	"github.com/rs/zerolog"
)

// Processor consumes message events and writes them to the repository.
type Processor struct {
	consumer     queue.Consumer
	repo         repository.ConversationsRepository
	logger       zerolog.Logger
	restartDelay time.Duration
}

func NewProcessor(
	consumer queue.Consumer,
	repo repository.ConversationsRepository,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		consumer:     consumer,
		repo:         repo,
		logger:       logger,
		restartDelay: 2 * time.Second,
	}
}

func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processEvent)
		if err == nil || ctx.Err() != nil {
			return
		}
		p.logger.Error().Err(err).Msg("worker consume loop error")

		timer := time.NewTimer(p.restartDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Processor) processEvent(ctx context.Context, event domain.MessageEvent) error {
	message := event.Message()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	if err := p.repo.AddMessage(ctx, &message); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Conversation was deleted while the event was queued.
			p.logger.Warn().
				Str("event_id", event.EventID).
				Str("conversation_id", event.ConversationID).
				Msg("dropping message for missing conversation")
			return nil
		}
		return fmt.Errorf("persist message %s: %w", event.EventID, err)
	}

	p.logger.Debug().
		Str("event_id", event.EventID).
		Str("conversation_id", event.ConversationID).
		Str("role", string(event.Role)).
		Int("attempt", event.Attempt).
		Msg("message persisted")
	return nil
}
