package conversation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/locks"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/redis"
	"github.com/platefulhq/plateful-backend/pkg/statestore"
)

// Store persists conversation aggregates. Writes to one conversation are
// serialized so message appends and handoff records apply in receipt order.
type Store struct {
	store statestore.Store
	clk   clock.Clock
	logg  *logger.Logger
	cfg   config.ConversationConfig
	locks *locks.KeyedMutex
}

func NewStore(store statestore.Store, clk clock.Clock, logg *logger.Logger, cfg config.ConversationConfig) (*Store, error) {
	if store == nil {
		return nil, fmt.Errorf("conversation store requires a state store")
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Store{
		store: store,
		clk:   clk,
		logg:  logg,
		cfg:   cfg,
		locks: locks.NewKeyed(),
	}, nil
}

func conversationKey(id uuid.UUID) string {
	return redis.Key("conversation", id.String())
}

// Create starts a new conversation with the orchestrator as active handler.
func (s *Store) Create(ctx context.Context, customerID *uuid.UUID) (*Conversation, error) {
	now := s.clk.Now()
	conv := &Conversation{
		ID:            uuid.New(),
		CustomerID:    customerID,
		ActiveHandler: enums.HandlerOrchestrator,
		StartedAt:     now,
		LastActivity:  now,
		Active:        true,
	}
	if err := s.save(ctx, conv); err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithConversationID(ctx, conv.ID.String()), "conversation created")
	}
	return conv, nil
}

// Get loads a conversation, returning NOT_FOUND when absent or expired.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	var conv Conversation
	found, err := s.store.Get(ctx, conversationKey(id), &conv)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("conversation %s not found", id))
	}
	return &conv, nil
}

// AppendMessage adds one message to the log. The log is append-only; entries
// are stamped with the store clock so they stay time-ordered.
func (s *Store) AppendMessage(ctx context.Context, id uuid.UUID, role enums.MessageRole, content string, handler enums.HandlerType) (*Conversation, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	conv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	conv.Messages = append(conv.Messages, Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Timestamp: now,
		Handler:   handler,
	})
	if s.cfg.MaxMessages > 0 && len(conv.Messages) > s.cfg.MaxMessages {
		conv.Messages = conv.Messages[len(conv.Messages)-s.cfg.MaxMessages:]
	}
	conv.LastActivity = now

	if err := s.save(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// RecordHandoff appends the record, bumps the handoff counter, and moves the
// active handler to the target. Nothing else mutates the active handler.
func (s *Store) RecordHandoff(ctx context.Context, id uuid.UUID, record HandoffRecord) (*Conversation, error) {
	if !record.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown handoff target %q", record.To))
	}

	unlock := s.locks.Lock(id.String())
	defer unlock()

	conv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	record.Timestamp = now
	conv.Handoffs = append(conv.Handoffs, record)
	conv.HandoffCount++
	conv.ActiveHandler = record.To
	conv.LastActivity = now

	if err := s.save(ctx, conv); err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithConversationID(ctx, id.String())
		logCtx = s.logg.WithHandler(logCtx, record.To.String())
		s.logg.Info(logCtx, "handoff recorded")
	}
	return conv, nil
}

// End marks the conversation inactive. The record remains readable until its
// TTL elapses.
func (s *Store) End(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	conv, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	conv.Active = false
	conv.LastActivity = s.clk.Now()
	return s.save(ctx, conv)
}

// Status summarizes a conversation for the transport layer.
func (s *Store) Status(ctx context.Context, id uuid.UUID) (*Status, error) {
	conv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Status{
		ID:            conv.ID,
		ActiveHandler: conv.ActiveHandler,
		Active:        conv.Active,
		MessageCount:  len(conv.Messages),
		HandoffCount:  conv.HandoffCount,
		LastActivity:  conv.LastActivity,
	}, nil
}

func (s *Store) save(ctx context.Context, conv *Conversation) error {
	if err := s.store.Set(ctx, conversationKey(conv.ID), conv, s.cfg.TTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save conversation")
	}
	return nil
}
