package chat

import (
	"PocketAI/models"
	"PocketAI/pkg/services"
	"PocketAI/pkg/store"
)

// HistoryLimit caps how many prior turns are replayed to the model.
const HistoryLimit = 20

// loadHistory builds the dialogue context for a conversation: up to
// HistoryLimit most recent text messages, oldest first, with roles mapped
// to what the Gemini API expects (assistant turns become "model"). Image
// turns are excluded; their content is a data URI, useless as dialogue.
// A missing or empty conversation yields nil, never an error.
func loadHistory(s store.Scoped, conversationID uint) ([]services.ChatMessage, error) {
	msgs, err := s.RecentTextMessages(conversationID, HistoryLimit)
	if err != nil {
		return nil, err
	}
	history := make([]services.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		history = append(history, services.ChatMessage{Role: role, Text: m.Content})
	}
	return history, nil
}
