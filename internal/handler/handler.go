// Package handler hosts the specialist handlers that answer customer turns
// and expose their operational commands.
package handler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/platefulhq/plateful-backend/internal/conversation"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/genai"
)

// Reply is a handler's user-facing message for one turn.
type Reply struct {
	Handler    enums.HandlerType `json:"handler"`
	Message    string            `json:"message"`
	TokensUsed int               `json:"tokens_used,omitempty"`
}

// Handler composes replies for its conversations and executes the commands
// it owns. Execute fails with ToolNotFound for commands outside its set.
type Handler interface {
	Type() enums.HandlerType
	Respond(ctx context.Context, conv *conversation.Conversation) (*Reply, error)
	Execute(ctx context.Context, command string, args Args) (any, error)
}

// Args carries loosely typed command parameters, usually decoded from JSON.
type Args map[string]any

func (a Args) String(key string) (string, error) {
	raw, ok := a[key]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("missing argument %q", key))
	}
	value, ok := raw.(string)
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("argument %q must be a string", key))
	}
	return value, nil
}

func (a Args) OptionalString(key string) string {
	value, _ := a[key].(string)
	return value
}

func (a Args) UUID(key string) (uuid.UUID, error) {
	value, err := a.String(key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("argument %q must be a UUID", key))
	}
	return id, nil
}

// Int accepts JSON numbers, which decode as float64.
func (a Args) Int(key string) (int, error) {
	raw, ok := a[key]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("missing argument %q", key))
	}
	switch value := raw.(type) {
	case int:
		return value, nil
	case int64:
		return int(value), nil
	case float64:
		return int(value), nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("argument %q must be a number", key))
	}
}

func (a Args) OptionalInt(key string, fallback int) int {
	value, err := a.Int(key)
	if err != nil {
		return fallback
	}
	return value
}

func (a Args) Decimal(key string) (decimal.Decimal, error) {
	raw, ok := a[key]
	if !ok {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("missing argument %q", key))
	}
	switch value := raw.(type) {
	case string:
		parsed, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("argument %q must be a decimal amount", key))
		}
		return parsed, nil
	case float64:
		return decimal.NewFromFloat(value), nil
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("argument %q must be a decimal amount", key))
	}
}

// itemMaps decodes a list-of-objects argument, tolerating the shapes JSON
// decoding produces.
func itemMaps(a Args, key string) ([]Args, error) {
	raw, ok := a[key]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("missing argument %q", key))
	}
	switch value := raw.(type) {
	case []Args:
		return value, nil
	case []map[string]any:
		out := make([]Args, len(value))
		for i, entry := range value {
			out[i] = Args(entry)
		}
		return out, nil
	case []any:
		out := make([]Args, 0, len(value))
		for _, entry := range value {
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("argument %q must be a list of objects", key))
			}
			out = append(out, Args(m))
		}
		return out, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("argument %q must be a list of objects", key))
	}
}

func unknownCommand(handler enums.HandlerType, command string) error {
	return pkgerrors.New(pkgerrors.CodeToolNotFound,
		fmt.Sprintf("%s has no command %q", handler, command))
}

// responder carries the reply-composition half shared by every handler.
type responder struct {
	handlerType enums.HandlerType
	system      string
	gen         genai.Generator
	historySize int
}

func (r responder) Type() enums.HandlerType {
	return r.handlerType
}

// Respond builds the chat history from the conversation tail and asks the
// generation client for the next assistant message.
func (r responder) Respond(ctx context.Context, conv *conversation.Conversation) (*Reply, error) {
	recent := conv.RecentMessages(r.historySize)
	messages := make([]genai.ChatMessage, 0, len(recent))
	for _, msg := range recent {
		if msg.Role != enums.MessageRoleUser && msg.Role != enums.MessageRoleAssistant {
			continue
		}
		messages = append(messages, genai.ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	resp, err := r.gen.Generate(ctx, genai.Request{
		System:   r.system,
		Messages: messages,
	})
	if err != nil {
		return nil, err
	}
	return &Reply{
		Handler:    r.handlerType,
		Message:    resp.Text,
		TokensUsed: resp.TokensUsed,
	}, nil
}
