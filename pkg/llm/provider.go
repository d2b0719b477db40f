// Package llm defines the chat completion contract the page interpreter
// is built on.
//
// Providers only handle transport: they take a short conversation and return
// the assistant's reply. Prompt construction and response parsing live with
// the interpreter so providers stay reusable and easy to fake in tests.
package llm

import "context"

// Role is the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage creates a system turn.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Provider defines the interface for LLM integrations.
type Provider interface {
	// Complete sends messages to the LLM and returns the assistant's reply.
	Complete(ctx context.Context, messages []Message) (string, error)

	// GetModel returns the model name being used.
	GetModel() string
}
