package tenant

// Role identifies who authored a conversation message.
type Role string

// Conversation roles. Order within a history is chronological and preserved
// verbatim by the pipeline.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// LastUserText returns the content of the most recent user-role message,
// or empty string when the history contains none (assistant-initiated
// conversations are valid).
func LastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
