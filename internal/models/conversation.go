package models

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged entry in a conversation log.
type Message struct {
	Role    string `json:"role"` // system, user, assistant, or any caller-supplied tag
	Content string `json:"content"`
}

type TurnRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"`
}

type TurnResponse struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
}
