package handler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/internal/conversation"
	"github.com/platefulhq/plateful-backend/internal/handoff"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
)

// TurnResult reports one processed customer turn.
type TurnResult struct {
	ConversationID uuid.UUID         `json:"conversation_id"`
	Handler        enums.HandlerType `json:"handler"`
	Message        string            `json:"message"`
	HandedOff      bool              `json:"handed_off"`
	HandoffReason  string            `json:"handoff_reason,omitempty"`
	TokensUsed     int               `json:"tokens_used,omitempty"`
}

// Pipeline runs customer turns: it appends the user message, routes the
// conversation, and lets the active handler reply.
type Pipeline struct {
	conversations *conversation.Store
	router        *handoff.Router
	handlers      map[enums.HandlerType]Handler
	logg          *logger.Logger
}

func NewPipeline(conversations *conversation.Store, router *handoff.Router, handlers []Handler, logg *logger.Logger) (*Pipeline, error) {
	if conversations == nil {
		return nil, fmt.Errorf("pipeline requires a conversation store")
	}
	if router == nil {
		return nil, fmt.Errorf("pipeline requires a handoff router")
	}
	byType := make(map[enums.HandlerType]Handler, len(handlers))
	for _, h := range handlers {
		byType[h.Type()] = h
	}
	if _, ok := byType[enums.HandlerOrchestrator]; !ok {
		return nil, fmt.Errorf("pipeline requires an orchestrator handler")
	}
	return &Pipeline{
		conversations: conversations,
		router:        router,
		handlers:      byType,
		logg:          logg,
	}, nil
}

// Handler returns the registered handler for a type.
func (p *Pipeline) Handler(handlerType enums.HandlerType) (Handler, bool) {
	h, ok := p.handlers[handlerType]
	return h, ok
}

// Execute routes an operational command to its handler.
func (p *Pipeline) Execute(ctx context.Context, handlerType enums.HandlerType, command string, args Args) (any, error) {
	h, ok := p.handlers[handlerType]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no handler registered for %q", handlerType))
	}
	return h.Execute(ctx, command, args)
}

// ProcessMessage runs one turn. The user message and any handoff commit
// before reply generation, so a generation failure loses only the reply.
func (p *Pipeline) ProcessMessage(ctx context.Context, conversationID uuid.UUID, text string) (*TurnResult, error) {
	if text == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message text is required")
	}

	conv, err := p.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Active {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("conversation %s has ended", conversationID))
	}

	conv, err = p.conversations.AppendMessage(ctx, conversationID, enums.MessageRoleUser, text, conv.ActiveHandler)
	if err != nil {
		return nil, err
	}

	decision := p.router.DecideHandoff(conv)
	if decision.Transfer {
		conv, err = p.conversations.RecordHandoff(ctx, conversationID, conversation.HandoffRecord{
			From:   conv.ActiveHandler,
			To:     decision.Target,
			Reason: decision.Reason,
		})
		if err != nil {
			return nil, err
		}
	}

	active, ok := p.handlers[conv.ActiveHandler]
	if !ok {
		active = p.handlers[enums.HandlerOrchestrator]
	}

	reply, err := active.Respond(ctx, conv)
	if err != nil {
		if p.logg != nil {
			logCtx := p.logg.WithConversationID(ctx, conversationID.String())
			p.logg.Error(p.logg.WithHandler(logCtx, active.Type().String()), "reply generation failed", err)
		}
		return nil, err
	}

	if _, err := p.conversations.AppendMessage(ctx, conversationID, enums.MessageRoleAssistant, reply.Message, reply.Handler); err != nil {
		return nil, err
	}

	return &TurnResult{
		ConversationID: conversationID,
		Handler:        reply.Handler,
		Message:        reply.Message,
		HandedOff:      decision.Transfer,
		HandoffReason:  decision.Reason,
		TokensUsed:     reply.TokensUsed,
	}, nil
}
