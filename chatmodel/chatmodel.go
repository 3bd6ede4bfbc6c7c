// Package chatmodel defines the message types exchanged with the inference
// service. A Conversation is owned by exactly one in-flight request and is
// never shared, so none of the types here carry locks.
package chatmodel

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage returns a message with trailing whitespace trimmed.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: strings.TrimRight(content, " \n")}
}

// Conversation is an append-only, ordered message history.
type Conversation struct {
	messages []Message
}

// NewConversation seeds a conversation with the system instruction and the
// user question, in that order.
func NewConversation(systemPrompt, question string) *Conversation {
	return &Conversation{
		messages: []Message{
			NewMessage(RoleSystem, systemPrompt),
			NewMessage(RoleUser, question),
		},
	}
}

// Append adds a message to the end of the history.
func (c *Conversation) Append(role Role, content string) {
	c.messages = append(c.messages, NewMessage(role, content))
}

// Messages returns a copy of the history, so callers cannot mutate the
// conversation out of order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent message, or a zero Message when empty.
func (c *Conversation) Last() Message {
	if len(c.messages) == 0 {
		return Message{}
	}
	return c.messages[len(c.messages)-1]
}

// ContentSize returns the total content bytes in the history,
// used for metrics on what is sent to the inference service.
func (c *Conversation) ContentSize() uint64 {
	var size uint64
	for _, m := range c.messages {
		size += uint64(len(m.Role)) + uint64(len(m.Content))
	}
	return size
}

// ToJSON renders any value as compact JSON, for folding structured payloads
// into message content.
func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}
