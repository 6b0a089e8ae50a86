package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/internal/scheduler"
	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/platefulhq/plateful-backend/pkg/config"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/statestore"
)

func newTestEngine(t *testing.T) (*Engine, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC))
	store := statestore.NewMemory(clk)
	sched := scheduler.New(clk, nil, nil)
	engine, err := NewEngine(store, sched, clk, nil, config.InventoryConfig{
		ReservationTTL:    5 * time.Minute,
		LowStockThreshold: 10,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, clk
}

func seedItem(t *testing.T, engine *Engine, itemID string, qty int64) {
	t.Helper()
	err := engine.Seed(context.Background(), Item{
		ItemID:            itemID,
		Name:              displayName(itemID),
		Category:          categoryFor(itemID),
		LowStockThreshold: 10,
	}, qty)
	if err != nil {
		t.Fatalf("seed %s: %v", itemID, err)
	}
}

func currentStock(t *testing.T, engine *Engine, itemID string) int64 {
	t.Helper()
	avail, err := engine.CheckAvailability(context.Background(), itemID, 1)
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	return avail.CurrentStock
}

func TestCheckAvailabilityLazyInit(t *testing.T) {
	engine, _ := newTestEngine(t)

	avail, err := engine.CheckAvailability(context.Background(), "pizza_pepperoni", 2)
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if !avail.Available {
		t.Fatal("expected availability after lazy init")
	}
	if avail.CurrentStock != 50 {
		t.Fatalf("expected default stock 50, got %d", avail.CurrentStock)
	}
}

func TestCheckAvailabilityUnknownItemFallback(t *testing.T) {
	engine, _ := newTestEngine(t)

	avail, err := engine.CheckAvailability(context.Background(), "dessert_tiramisu", 1)
	if err != nil {
		t.Fatalf("check availability: %v", err)
	}
	if avail.CurrentStock != 50 {
		t.Fatalf("expected fallback stock 50, got %d", avail.CurrentStock)
	}
}

func TestReserveDrainsStockThenFailsClosed(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, engine, "salad_caesar", 5)

	res, err := engine.Reserve(ctx, "salad_caesar", 5, uuid.New(), 5*time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !res.Active {
		t.Fatal("reservation should be active")
	}
	if got := currentStock(t, engine, "salad_caesar"); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}

	_, err = engine.Reserve(ctx, "salad_caesar", 1, uuid.New(), 5*time.Minute)
	if !pkgerrors.Is(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := currentStock(t, engine, "salad_caesar"); got != 0 {
		t.Fatalf("failed reserve must not mutate stock, got %d", got)
	}
}

func TestReserveRejectsInvalidQuantity(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.Reserve(context.Background(), "pizza_veggie", 0, uuid.New(), time.Minute)
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReleaseCreditsOnce(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, engine, "burger_cheese", 30)

	res, err := engine.Reserve(ctx, "burger_cheese", 4, uuid.New(), 5*time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := currentStock(t, engine, "burger_cheese"); got != 26 {
		t.Fatalf("expected stock 26, got %d", got)
	}

	if err := engine.Release(ctx, res.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := currentStock(t, engine, "burger_cheese"); got != 30 {
		t.Fatalf("expected stock restored to 30, got %d", got)
	}

	// second release finds nothing to credit
	err = engine.Release(ctx, res.ID)
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found on repeat release, got %v", err)
	}
	if got := currentStock(t, engine, "burger_cheese"); got != 30 {
		t.Fatalf("repeat release must not credit again, got %d", got)
	}
}

func TestExpiryRestoresStockExactlyOnce(t *testing.T) {
	engine, clk := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, engine, "pizza_margherita", 45)

	res, err := engine.Reserve(ctx, "pizza_margherita", 3, uuid.New(), time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := currentStock(t, engine, "pizza_margherita"); got != 42 {
		t.Fatalf("expected stock 42, got %d", got)
	}

	clk.Advance(2 * time.Minute)
	if got := currentStock(t, engine, "pizza_margherita"); got != 45 {
		t.Fatalf("expected expiry to restore stock to 45, got %d", got)
	}

	// explicit release after natural expiry must not double-credit
	err = engine.Release(ctx, res.ID)
	if err != nil && !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("release after expiry: %v", err)
	}
	if got := currentStock(t, engine, "pizza_margherita"); got != 45 {
		t.Fatalf("double credit after expiry: %d", got)
	}
}

func TestReleaseBeforeExpiryCancelsTask(t *testing.T) {
	engine, clk := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, engine, "drink_coke", 100)

	res, err := engine.Reserve(ctx, "drink_coke", 10, uuid.New(), time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := engine.Release(ctx, res.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	clk.Advance(5 * time.Minute)
	if got := currentStock(t, engine, "drink_coke"); got != 100 {
		t.Fatalf("expiry task credited a released reservation: %d", got)
	}
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, engine, "burger_chicken", 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Reserve(ctx, "burger_chicken", 1, uuid.New(), 5*time.Minute)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !pkgerrors.Is(err, pkgerrors.CodeInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 successful reservations, got %d", succeeded)
	}
	if got := currentStock(t, engine, "burger_chicken"); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestConservationUnderConcurrentReserveRelease(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, engine, "salad_greek", 18)

	var wg sync.WaitGroup
	var mu sync.Mutex
	held := int64(0)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		release := i%2 == 0
		go func(release bool) {
			defer wg.Done()
			res, err := engine.Reserve(ctx, "salad_greek", 1, uuid.New(), 5*time.Minute)
			if err != nil {
				return
			}
			if release {
				if err := engine.Release(ctx, res.ID); err != nil {
					t.Errorf("release: %v", err)
				}
				return
			}
			mu.Lock()
			held++
			mu.Unlock()
		}(release)
	}
	wg.Wait()

	// conservation: final stock = initial - still-active holds
	if got := currentStock(t, engine, "salad_greek"); got != 18-held {
		t.Fatalf("conservation violated: stock %d, held %d", got, held)
	}
}

func TestSubstitutesSameCategoryInStock(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, engine, "pizza_pepperoni", 0)
	seedItem(t, engine, "pizza_margherita", 45)
	seedItem(t, engine, "pizza_veggie", 40)
	seedItem(t, engine, "burger_cheese", 30)

	subs, err := engine.Substitutes(ctx, "pizza_pepperoni", 3)
	if err != nil {
		t.Fatalf("substitutes: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 substitutes, got %d: %+v", len(subs), subs)
	}
	if subs[0].ItemID != "pizza_margherita" || subs[1].ItemID != "pizza_veggie" {
		t.Fatalf("catalog order not respected: %+v", subs)
	}
	for _, sub := range subs {
		if sub.Category != "pizza" {
			t.Fatalf("cross-category substitute: %+v", sub)
		}
	}
}

func TestSubstitutesExcludesOutOfStock(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, engine, "salad_caesar", 0)
	seedItem(t, engine, "salad_greek", 0)

	subs, err := engine.Substitutes(ctx, "salad_caesar", 3)
	if err != nil {
		t.Fatalf("substitutes: %v", err)
	}
	for _, sub := range subs {
		if sub.InStock <= 0 {
			t.Fatalf("out-of-stock substitute suggested: %+v", sub)
		}
	}
}

func TestAdjustStockClampsAtZero(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, engine, "drink_water", 5)

	qty, err := engine.AdjustStock(ctx, "drink_water", -20)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if qty != 0 {
		t.Fatalf("expected clamp at 0, got %d", qty)
	}

	qty, err = engine.AdjustStock(ctx, "drink_water", 7)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if qty != 7 {
		t.Fatalf("expected restock to 7, got %d", qty)
	}
}

func TestLowStockListing(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, engine, "pizza_pepperoni", 3)
	seedItem(t, engine, "burger_cheese", 30)

	low, err := engine.LowStock(ctx)
	if err != nil {
		t.Fatalf("low stock: %v", err)
	}
	if len(low) != 1 || low[0].ItemID != "pizza_pepperoni" {
		t.Fatalf("unexpected low-stock set: %+v", low)
	}
	if low[0].CurrentStock != 3 {
		t.Fatalf("unexpected low-stock quantity: %+v", low[0])
	}
}

func TestReleaseUnknownReservation(t *testing.T) {
	engine, _ := newTestEngine(t)

	err := engine.Release(context.Background(), uuid.New())
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
