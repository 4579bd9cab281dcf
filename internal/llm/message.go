// Package llm sends prompt contracts to a chat-completions endpoint and turns
// the replies into text or typed values, retrying a failed exchange once.
package llm

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message exchanged with the model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Caller is the agent on whose behalf a request is made. Every successful
// exchange is appended to its memory.
type Caller interface {
	Position() string
	Remember(msgs ...Message)
}
