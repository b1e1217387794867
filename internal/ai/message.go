package ai

import "fmt"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation as sent by the caller.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ValidateHistory checks that every message carries a caller role.
func ValidateHistory(history []Message) error {
	for i, message := range history {
		switch message.Role {
		case RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d: role %q must be user or assistant", i, message.Role)
		}
	}
	return nil
}
