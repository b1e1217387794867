package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jarvis-assistant/jarvis-back/internal/domain"
)

type PostgresConversationsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresConversationsRepository(ctx context.Context, databaseURL string) (*PostgresConversationsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresConversationsRepository{pool: pool}, nil
}

func (r *PostgresConversationsRepository) Close() {
	r.pool.Close()
}

func (r *PostgresConversationsRepository) CreateConversation(ctx context.Context, conversation *domain.Conversation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
	`,
		conversation.ID,
		conversation.UserID,
		conversation.Title,
		conversation.CreatedAt,
		conversation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *PostgresConversationsRepository) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	var conversation domain.Conversation
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`, conversationID).Scan(
		&conversation.ID,
		&conversation.UserID,
		&conversation.Title,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	return &conversation, nil
}

func (r *PostgresConversationsRepository) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE $1 = '' OR user_id = $1
		ORDER BY updated_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Conversation, 0)
	for rows.Next() {
		var item domain.Conversation
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate conversations: %w", rows.Err())
	}
	return items, nil
}

// DeleteConversation removes the conversation and its messages in one
// transaction.
func (r *PostgresConversationsRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete conversation: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, conversationID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	command, err := tx.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, conversationID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete conversation: %w", err)
	}
	return nil
}

func (r *PostgresConversationsRepository) AddMessage(ctx context.Context, message *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin add message: %w", err)
	}
	defer tx.Rollback(ctx)

	command, err := tx.Exec(ctx, `
		UPDATE conversations
		SET updated_at = GREATEST(NOW(), $2)
		WHERE id = $1
	`, message.ConversationID, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, ai_model, created_at)
		VALUES ($1,$2,$3,$4,NULLIF($5, ''),$6)
		ON CONFLICT (id) DO NOTHING
	`,
		message.ID,
		message.ConversationID,
		string(message.Role),
		message.Content,
		message.AIModel,
		message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit add message: %w", err)
	}
	return nil
}

func (r *PostgresConversationsRepository) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	if _, err := r.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, role, content, COALESCE(ai_model, ''), created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Message, 0)
	for rows.Next() {
		var (
			item domain.Message
			role string
		)
		if err := rows.Scan(&item.ID, &item.ConversationID, &role, &item.Content, &item.AIModel, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		item.Role = domain.MessageRole(role)
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate messages: %w", rows.Err())
	}
	return items, nil
}
