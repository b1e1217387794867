package domain

import "time"

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

func (r MessageRole) Valid() bool {
	return r == MessageRoleUser || r == MessageRoleAssistant
}

const DefaultConversationTitle = "Neue Konversation"

// Conversation is a persisted chat thread owned by one user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one persisted turn of a conversation.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	AIModel        string      `json:"ai_model,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// MessageEvent is the transport format sent to queue backends. EventID
// becomes the stored message id, so redelivery is idempotent.
type MessageEvent struct {
	EventID        string      `json:"event_id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	AIModel        string      `json:"ai_model"`
	Attempt        int         `json:"attempt"`
	RequestedAt    time.Time   `json:"requested_at"`
}

func (e MessageEvent) Message() Message {
	return Message{
		ID:             e.EventID,
		ConversationID: e.ConversationID,
		Role:           e.Role,
		Content:        e.Content,
		AIModel:        e.AIModel,
		CreatedAt:      e.RequestedAt,
	}
}
