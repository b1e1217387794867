package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jarvis-assistant/jarvis-back/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// ConversationsRepository abstracts conversation and message persistence.
type ConversationsRepository interface {
	CreateConversation(ctx context.Context, conversation *domain.Conversation) error
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	AddMessage(ctx context.Context, message *domain.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// MemoryConversationsRepository stores conversations in memory for local
// development.
type MemoryConversationsRepository struct {
	mu            sync.RWMutex
	conversations map[string]*domain.Conversation
	messages      map[string][]domain.Message
	messageIDs    map[string]struct{}
}

func NewMemoryConversationsRepository() *MemoryConversationsRepository {
	return &MemoryConversationsRepository{
		conversations: make(map[string]*domain.Conversation),
		messages:      make(map[string][]domain.Message),
		messageIDs:    make(map[string]struct{}),
	}
}

func (r *MemoryConversationsRepository) CreateConversation(_ context.Context, conversation *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *conversation
	r.conversations[conversation.ID] = &clone
	return nil
}

func (r *MemoryConversationsRepository) GetConversation(_ context.Context, conversationID string) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversation, ok := r.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *conversation
	return &clone, nil
}

func (r *MemoryConversationsRepository) ListConversations(_ context.Context, userID string) ([]domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]domain.Conversation, 0)
	for _, conversation := range r.conversations {
		if userID != "" && conversation.UserID != userID {
			continue
		}
		items = append(items, *conversation)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items, nil
}

func (r *MemoryConversationsRepository) DeleteConversation(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[conversationID]; !ok {
		return ErrNotFound
	}
	for _, message := range r.messages[conversationID] {
		delete(r.messageIDs, message.ID)
	}
	delete(r.messages, conversationID)
	delete(r.conversations, conversationID)
	return nil
}

func (r *MemoryConversationsRepository) AddMessage(_ context.Context, message *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[message.ConversationID]
	if !ok {
		return ErrNotFound
	}
	if _, exists := r.messageIDs[message.ID]; exists {
		return nil
	}

	r.messageIDs[message.ID] = struct{}{}
	r.messages[message.ConversationID] = append(r.messages[message.ConversationID], *message)

	updatedAt := time.Now().UTC()
	if message.CreatedAt.After(updatedAt) {
		updatedAt = message.CreatedAt
	}
	conversation.UpdatedAt = updatedAt
	return nil
}

func (r *MemoryConversationsRepository) ListMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.conversations[conversationID]; !ok {
		return nil, ErrNotFound
	}

	items := append([]domain.Message(nil), r.messages[conversationID]...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}
