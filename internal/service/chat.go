package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jarvis-assistant/jarvis-back/internal/ai"
	"github.com/jarvis-assistant/jarvis-back/internal/domain"
	"github.com/jarvis-assistant/jarvis-back/internal/queue"
	"github.com/jarvis-assistant/jarvis-back/internal/repository"
	"github.com/rs/zerolog"
)

// defaultEnqueueTimeout bounds how long a chat request waits on the
// persistence queue.
const defaultEnqueueTimeout = 2 * time.Second

// ChatGateway is the streaming side of the AI gateway.
type ChatGateway interface {
	Available() bool
	StreamChat(ctx context.Context, request ai.ChatRequest) (io.ReadCloser, error)
}

type ChatDependencies struct {
	Classifier    *ai.Classifier
	Selector      *ai.Selector
	Catalog       ai.Catalog
	Gateway       ChatGateway
	Conversations repository.ConversationsRepository
	Producer      queue.Producer
	Logger        zerolog.Logger
}

// ChatService routes a chat history to a model and opens the upstream
// stream.
type ChatService struct {
	classifier    *ai.Classifier
	selector      *ai.Selector
	catalog       ai.Catalog
	gateway       ChatGateway
	conversations repository.ConversationsRepository
	producer      queue.Producer
	logger        zerolog.Logger
	now           func() time.Time

	enqueueTimeout time.Duration
}

func NewChatService(deps ChatDependencies) *ChatService {
	if deps.Classifier == nil {
		deps.Classifier = ai.NewClassifier(nil)
	}
	if deps.Selector == nil {
		deps.Selector = ai.NewSelector(ai.DefaultCostPenalty)
	}
	if deps.Catalog.Len() == 0 {
		deps.Catalog = ai.DefaultCatalog()
	}
	return &ChatService{
		classifier:    deps.Classifier,
		selector:      deps.Selector,
		catalog:       deps.Catalog,
		gateway:       deps.Gateway,
		conversations: deps.Conversations,
		producer:      deps.Producer,
		logger:        deps.Logger,
		now:           func() time.Time { return time.Now().UTC() },

		enqueueTimeout: defaultEnqueueTimeout,
	}
}

func (s *ChatService) Catalog() ai.Catalog {
	return s.catalog
}

type ChatInput struct {
	Messages       []ai.Message
	ConversationID string
}

type RoutingDecision struct {
	Model ai.ModelDescriptor
	Tags  ai.TagSet
	Score float64
}

// Route classifies the latest user message and picks a catalog model.
func (s *ChatService) Route(history []ai.Message) RoutingDecision {
	tags := s.classifier.ClassifyHistory(history)
	ranked := s.selector.Rank(tags, s.catalog)
	if len(ranked) == 0 {
		return RoutingDecision{Tags: tags}
	}
	return RoutingDecision{Model: ranked[0].Model, Tags: tags, Score: ranked[0].Score}
}

// ChatStream is an open upstream response. The caller must Close it.
type ChatStream struct {
	Decision   RoutingDecision
	Body       io.ReadCloser
	Transcript *ai.StreamTranscript

	conversationID string
	service        *ChatService
}

func (s *ChatService) Open(ctx context.Context, input ChatInput) (*ChatStream, error) {
	if len(input.Messages) == 0 {
		return nil, fmt.Errorf("%w: messages must not be empty", ErrInvalidInput)
	}
	if err := ai.ValidateHistory(input.Messages); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if s.gateway == nil || !s.gateway.Available() {
		return nil, ai.ErrConfiguration
	}

	conversationID := strings.TrimSpace(input.ConversationID)
	if conversationID != "" {
		if s.conversations == nil {
			return nil, repository.ErrNotFound
		}
		if _, err := s.conversations.GetConversation(ctx, conversationID); err != nil {
			return nil, err
		}
	}

	decision := s.Route(input.Messages)
	s.logger.Info().
		Str("model_id", decision.Model.ID).
		Str("model_name", decision.Model.Name).
		Strs("tags", decision.Tags.Strings()).
		Float64("score", decision.Score).
		Int("history", len(input.Messages)).
		Msg("chat routed")

	if conversationID != "" {
		if last := input.Messages[len(input.Messages)-1]; last.Role == ai.RoleUser {
			s.persist(ctx, conversationID, domain.MessageRoleUser, last.Content, "")
		}
	}

	body, err := s.gateway.StreamChat(ctx, ai.ChatRequest{
		Model:    decision.Model,
		Tags:     decision.Tags,
		Messages: input.Messages,
	})
	if err != nil {
		return nil, err
	}

	stream := &ChatStream{
		Decision:       decision,
		Body:           body,
		conversationID: conversationID,
		service:        s,
	}
	if conversationID != "" {
		stream.Transcript = ai.NewStreamTranscript()
	}
	return stream, nil
}

// Observer returns the writer that should see a copy of the relayed
// bytes, or nil when nothing is persisted.
func (c *ChatStream) Observer() io.Writer {
	if c.Transcript == nil {
		return nil
	}
	return c.Transcript
}

// Finish persists the assistant reply when the stream completed with
// [DONE]. Partial replies are not stored.
func (c *ChatStream) Finish(ctx context.Context) {
	if c.Transcript == nil || !c.Transcript.Done() {
		return
	}
	content := c.Transcript.Content()
	if strings.TrimSpace(content) == "" {
		return
	}
	c.service.persist(ctx, c.conversationID, domain.MessageRoleAssistant, content, c.Decision.Model.ID)
}

func (c *ChatStream) Close() error {
	return c.Body.Close()
}

func (s *ChatService) persist(ctx context.Context, conversationID string, role domain.MessageRole, content, model string) {
	if s.producer == nil {
		return
	}
	event := domain.MessageEvent{
		EventID:        uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		AIModel:        model,
		RequestedAt:    s.now(),
	}
	enqueueCtx, cancel := context.WithTimeout(ctx, s.enqueueTimeout)
	defer cancel()
	if err := s.producer.Enqueue(enqueueCtx, event); err != nil {
		s.logger.Warn().
			Err(err).
			Str("conversation_id", conversationID).
			Str("role", string(role)).
			Msg("enqueue message event failed")
	}
}
