package convo

import (
	"recruit-agent/internal/domain"
)

// BuildMessages assembles the chat payload for one responder call: the
// campaign instructions as a single system message, one message per prior
// turn with roles derived from the sender, and the new inbound message as
// the final user message.
func BuildMessages(instructions string, log []domain.Turn, inbound string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(log)+2)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: instructions,
	})
	for _, turn := range log {
		role := domain.RoleUser
		if turn.Sender == domain.SenderSystem {
			role = domain.RoleAssistant
		}
		messages = append(messages, domain.ChatMessage{
			Role:    role,
			Content: turn.Message,
		})
	}
	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: inbound,
	})
	return messages
}
