// Package conversation defines the chat data model shared by the response
// pipeline: messages, citations, the history window manager, and the
// word-budget guard.
//
// A Chat is immutable once a turn's processing begins; the transport
// appends exactly one user message before handing it to the responder.
package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Citation is a stable, numbered reference from an assistant answer back
// to a retrieved source. Indices are 1-based and contiguous within a turn.
type Citation struct {
	Index     int    `json:"index"`
	SourceRef string `json:"sourceRef"`
	Snippet   string `json:"snippet"`
}

// Message is a single chat turn. Citations are only ever attached to
// assistant messages.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Citations []Citation `json:"citations,omitempty"`
}

// Chat is an ordered message history for one conversation.
type Chat struct {
	Messages []Message `json:"messages"`
}

// ErrInvalidChat indicates the chat violates the data model invariants.
var ErrInvalidChat = errors.New("invalid chat")

// Validate checks the structural invariants of a chat: known roles,
// non-empty content, and citations restricted to assistant messages.
func (c Chat) Validate() error {
	for i, m := range c.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidChat, i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("%w: message %d has empty content", ErrInvalidChat, i)
		}
		if len(m.Citations) > 0 && m.Role != RoleAssistant {
			return fmt.Errorf("%w: message %d carries citations on role %q", ErrInvalidChat, i, m.Role)
		}
	}
	return nil
}

// LastUser returns the most recent user message, or false if none exists.
func (c Chat) LastUser() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// Window returns the last limit messages in original order. A history
// shorter than limit is returned whole. The returned slice aliases the
// input; callers that mutate messages must copy first.
func Window(history []Message, limit int) []Message {
	if limit <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// StripCitations returns copies of the messages with citation metadata
// removed, so the model never sees (and never echoes) internal citation
// markup.
func StripCitations(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	stripped := make([]Message, len(messages))
	for i, m := range messages {
		stripped[i] = Message{Role: m.Role, Content: m.Content}
	}
	return stripped
}
