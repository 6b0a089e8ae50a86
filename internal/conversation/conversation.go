// Package conversation owns the conversation aggregate: the append-only
// message log, the single active handler, and the handoff trail.
package conversation

import (
	"time"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/pkg/enums"
)

// Message is one entry of a conversation's ordered log.
type Message struct {
	ID        uuid.UUID         `json:"id"`
	Role      enums.MessageRole `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Handler   enums.HandlerType `json:"handler,omitempty"`
}

// HandoffRecord captures one transfer of handler responsibility. Records are
// immutable once appended to the trail.
type HandoffRecord struct {
	From      enums.HandlerType `json:"from"`
	To        enums.HandlerType `json:"to"`
	Reason    string            `json:"reason"`
	Context   map[string]any    `json:"context,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Conversation is the aggregate persisted per conversation id.
type Conversation struct {
	ID            uuid.UUID         `json:"id"`
	CustomerID    *uuid.UUID        `json:"customer_id,omitempty"`
	ActiveHandler enums.HandlerType `json:"active_handler"`
	StartedAt     time.Time         `json:"started_at"`
	LastActivity  time.Time         `json:"last_activity"`
	Messages      []Message         `json:"messages"`
	HandoffCount  int               `json:"handoff_count"`
	Handoffs      []HandoffRecord   `json:"handoffs"`
	Active        bool              `json:"active"`
}

// RecentMessages returns up to limit of the newest messages in log order.
func (c *Conversation) RecentMessages(limit int) []Message {
	if limit <= 0 || len(c.Messages) <= limit {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-limit:]
}

// LastUserMessage returns the newest user-authored message, if any.
func (c *Conversation) LastUserMessage() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == enums.MessageRoleUser {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// Status is the transport-facing summary of a conversation.
type Status struct {
	ID            uuid.UUID         `json:"id"`
	ActiveHandler enums.HandlerType `json:"active_handler"`
	Active        bool              `json:"active"`
	MessageCount  int               `json:"message_count"`
	HandoffCount  int               `json:"handoff_count"`
	LastActivity  time.Time         `json:"last_activity"`
}
