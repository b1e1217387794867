package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jarvis-assistant/jarvis-back/internal/domain"
	"github.com/jarvis-assistant/jarvis-back/internal/repository"
)

type ConversationsService struct {
	repo repository.ConversationsRepository
	now  func() time.Time
}

func NewConversationsService(repo repository.ConversationsRepository) *ConversationsService {
	return &ConversationsService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *ConversationsService) Create(ctx context.Context, userID, title string) (*domain.Conversation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultConversationTitle
	}

	now := s.now()
	conversation := &domain.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateConversation(ctx, conversation); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conversation, nil
}

func (s *ConversationsService) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.repo.ListConversations(ctx, userID)
}

func (s *ConversationsService) Delete(ctx context.Context, conversationID string) error {
	return s.repo.DeleteConversation(ctx, conversationID)
}

func (s *ConversationsService) Messages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return s.repo.ListMessages(ctx, conversationID)
}

// AddMessage stores a message synchronously, unlike the chat path which
// goes through the queue.
func (s *ConversationsService) AddMessage(
	ctx context.Context,
	conversationID string,
	role domain.MessageRole,
	content string,
	aiModel string,
) (*domain.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role %q must be user or assistant", ErrInvalidInput, role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	message := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		AIModel:        strings.TrimSpace(aiModel),
		CreatedAt:      s.now(),
	}
	if err := s.repo.AddMessage(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}
