package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/statestore"
)

func newTestStore(t *testing.T) (*Store, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	store, err := NewStore(statestore.NewMemory(clk), clk, nil, config.ConversationConfig{
		TTL:         30 * time.Minute,
		MaxMessages: 100,
		HistorySize: 10,
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, clk
}

func TestCreateStartsWithOrchestrator(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.ActiveHandler != enums.HandlerOrchestrator {
		t.Fatalf("expected orchestrator, got %s", conv.ActiveHandler)
	}
	if !conv.Active {
		t.Fatal("new conversation should be active")
	}

	loaded, err := store.Get(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.ID != conv.ID {
		t.Fatalf("round-trip id mismatch")
	}
}

func TestGetUnknownConversation(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), uuid.New())
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAppendMessageKeepsOrder(t *testing.T) {
	store, clk := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.AppendMessage(ctx, conv.ID, enums.MessageRoleUser, "first", ""); err != nil {
		t.Fatalf("append: %v", err)
	}
	clk.Advance(time.Second)
	updated, err := store.AppendMessage(ctx, conv.ID, enums.MessageRoleAssistant, "second", enums.HandlerOrchestrator)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if len(updated.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(updated.Messages))
	}
	if updated.Messages[0].Content != "first" || updated.Messages[1].Content != "second" {
		t.Fatalf("messages out of order: %+v", updated.Messages)
	}
	if updated.Messages[1].Timestamp.Before(updated.Messages[0].Timestamp) {
		t.Fatal("timestamps regressed")
	}
}

func TestRecordHandoffMovesActiveHandler(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := store.RecordHandoff(ctx, conv.ID, HandoffRecord{
		From:   enums.HandlerOrchestrator,
		To:     enums.HandlerOrder,
		Reason: "intent classified as new_order",
	})
	if err != nil {
		t.Fatalf("record handoff: %v", err)
	}
	if updated.ActiveHandler != enums.HandlerOrder {
		t.Fatalf("expected order handler, got %s", updated.ActiveHandler)
	}
	if updated.HandoffCount != 1 || len(updated.Handoffs) != 1 {
		t.Fatalf("handoff trail not recorded: %+v", updated)
	}
}

func TestHandoffTrailOrdering(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	hops := []HandoffRecord{
		{From: enums.HandlerOrchestrator, To: enums.HandlerOrder, Reason: "new order"},
		{From: enums.HandlerOrder, To: enums.HandlerSupport, Reason: "refund request"},
	}
	for _, hop := range hops {
		if _, err := store.RecordHandoff(ctx, conv.ID, hop); err != nil {
			t.Fatalf("record handoff: %v", err)
		}
	}

	final, err := store.Get(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.ActiveHandler != enums.HandlerSupport {
		t.Fatalf("expected support handler, got %s", final.ActiveHandler)
	}
	if len(final.Handoffs) != 2 {
		t.Fatalf("expected 2 trail records, got %d", len(final.Handoffs))
	}
	if final.Handoffs[0].To != enums.HandlerOrder || final.Handoffs[1].To != enums.HandlerSupport {
		t.Fatalf("trail out of order: %+v", final.Handoffs)
	}
}

func TestRecordHandoffRejectsUnknownTarget(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = store.RecordHandoff(ctx, conv.ID, HandoffRecord{
		From: enums.HandlerOrchestrator,
		To:   enums.HandlerType("billing_agent"),
	})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEndMarksInactive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.End(ctx, conv.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	status, err := store.Status(ctx, conv.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Active {
		t.Fatal("expected inactive conversation")
	}
}

func TestConversationExpiresWithTTL(t *testing.T) {
	store, clk := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	clk.Advance(31 * time.Minute)
	_, err = store.Get(ctx, conv.ID)
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestConcurrentAppendsAllApply(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.AppendMessage(ctx, conv.ID, enums.MessageRoleUser, "msg", ""); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()

	final, err := store.Get(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(final.Messages) != 20 {
		t.Fatalf("lost appends: expected 20 messages, got %d", len(final.Messages))
	}
}
