package service

import (
	"context"
	"testing"

	"github.com/jarvis-assistant/jarvis-back/internal/domain"
	"github.com/jarvis-assistant/jarvis-back/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestConversationsServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	service := NewConversationsService(repository.NewMemoryConversationsRepository())

	conversation, err := service.Create(ctx, "u1", "  ")
	require.NoError(t, err)
	require.Equal(t, domain.DefaultConversationTitle, conversation.Title)
	require.NotEmpty(t, conversation.ID)

	message, err := service.AddMessage(ctx, conversation.ID, domain.MessageRoleUser, "Hallo", "")
	require.NoError(t, err)
	require.Equal(t, conversation.ID, message.ConversationID)

	messages, err := service.Messages(ctx, conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	items, err := service.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, service.Delete(ctx, conversation.ID))
	require.ErrorIs(t, service.Delete(ctx, conversation.ID), repository.ErrNotFound)
}

func TestConversationsServiceValidation(t *testing.T) {
	ctx := context.Background()
	service := NewConversationsService(repository.NewMemoryConversationsRepository())

	_, err := service.Create(ctx, "", "x")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = service.List(ctx, " ")
	require.ErrorIs(t, err, ErrInvalidInput)

	conversation, err := service.Create(ctx, "u1", "Reiseplanung")
	require.NoError(t, err)
	require.Equal(t, "Reiseplanung", conversation.Title)

	_, err = service.AddMessage(ctx, conversation.ID, "system", "x", "")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = service.AddMessage(ctx, conversation.ID, domain.MessageRoleUser, " ", "")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = service.AddMessage(ctx, "missing", domain.MessageRoleUser, "x", "")
	require.ErrorIs(t, err, repository.ErrNotFound)
}
