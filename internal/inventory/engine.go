// Package inventory holds stock against pending orders for a bounded window.
// Quantity lives in a dedicated counter key so every mutation goes through
// the store's atomic floor-checked decrement or a per-item critical section;
// oversell is impossible by construction.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/internal/scheduler"
	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/platefulhq/plateful-backend/pkg/config"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/locks"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/redis"
	"github.com/platefulhq/plateful-backend/pkg/statestore"
)

const expiryTaskName = "reservation_expiry"

// expiryGrace keeps the persisted reservation readable slightly past its
// logical expiry so the scheduled credit task always finds it. The task, not
// the store TTL, is the authority for crediting stock back.
const expiryGrace = time.Minute

// Item is the catalog record for one sellable item. Quantity is stored
// separately as a counter; the record carries the descriptive fields.
type Item struct {
	ItemID            string    `json:"item_id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	LastUpdated       time.Time `json:"last_updated"`
}

// Reservation is a time-bounded hold on stock tied to an order.
type Reservation struct {
	ID        uuid.UUID `json:"id"`
	ItemID    string    `json:"item_id"`
	Quantity  int64     `json:"quantity"`
	OrderID   uuid.UUID `json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    bool      `json:"active"`
}

// Availability reports current stock against a requested quantity.
type Availability struct {
	ItemID       string `json:"item_id"`
	Available    bool   `json:"available"`
	CurrentStock int64  `json:"current_stock"`
	Requested    int64  `json:"requested_quantity"`
	LowStock     bool   `json:"is_low_stock"`
}

// Substitute is an in-stock alternative in the same category.
type Substitute struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	InStock  int64  `json:"in_stock"`
}

// defaultStock seeds unknown items on first access, keyed by item id with a
// catch-all fallback.
var defaultStock = map[string]int64{
	"pizza_pepperoni":  50,
	"pizza_margherita": 45,
	"pizza_veggie":     40,
	"burger_cheese":    30,
	"burger_chicken":   25,
	"burger_veggie":    20,
	"salad_caesar":     20,
	"salad_greek":      18,
	"drink_coke":       100,
	"drink_water":      150,
}

const fallbackStock int64 = 50

// categoryByPrefix derives an item's category from its id prefix.
var categoryByPrefix = []struct {
	prefix   string
	category string
}{
	{"pizza", "pizza"},
	{"burger", "burgers"},
	{"salad", "salads"},
	{"drink", "drinks"},
}

// catalogOrder fixes the ordering used for substitution suggestions.
var catalogOrder = []string{
	"pizza_margherita",
	"pizza_pepperoni",
	"pizza_veggie",
	"burger_cheese",
	"burger_chicken",
	"burger_veggie",
	"salad_caesar",
	"salad_greek",
	"salad_garden",
	"drink_coke",
	"drink_water",
}

// Engine is the reservation engine.
type Engine struct {
	store statestore.Store
	sched *scheduler.Scheduler
	clk   clock.Clock
	logg  *logger.Logger
	cfg   config.InventoryConfig
	locks *locks.KeyedMutex
}

func NewEngine(store statestore.Store, sched *scheduler.Scheduler, clk clock.Clock, logg *logger.Logger, cfg config.InventoryConfig) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("inventory engine requires a state store")
	}
	if sched == nil {
		return nil, fmt.Errorf("inventory engine requires a scheduler")
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Engine{
		store: store,
		sched: sched,
		clk:   clk,
		logg:  logg,
		cfg:   cfg,
		locks: locks.NewKeyed(),
	}, nil
}

func itemKey(itemID string) string {
	return redis.Key("inventory", "item", itemID)
}

func stockKey(itemID string) string {
	return redis.Key("inventory", "stock", itemID)
}

func reservationKey(id uuid.UUID) string {
	return redis.Key("reservation", id.String())
}

// CheckAvailability reads current stock, lazily initializing unknown items
// with a category-derived default.
func (e *Engine) CheckAvailability(ctx context.Context, itemID string, quantity int64) (*Availability, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	item, stock, err := e.loadOrInitItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	return &Availability{
		ItemID:       itemID,
		Available:    stock >= quantity,
		CurrentStock: stock,
		Requested:    quantity,
		LowStock:     stock <= int64(item.LowStockThreshold),
	}, nil
}

// Reserve holds quantity units for orderID until ttl elapses. The decrement
// is atomic and fails closed: a request exceeding stock at the instant of the
// check returns INSUFFICIENT_STOCK without mutating anything. Expiry credits
// the hold back exactly once through a scheduled task.
func (e *Engine) Reserve(ctx context.Context, itemID string, quantity int64, orderID uuid.UUID, ttl time.Duration) (*Reservation, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if ttl <= 0 {
		ttl = e.cfg.ReservationTTL
	}

	if _, _, err := e.loadOrInitItem(ctx, itemID); err != nil {
		return nil, err
	}

	applied, remaining, err := e.store.DecrementFloor(ctx, stockKey(itemID), quantity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("item %s has %d units, %d requested", itemID, remaining, quantity)).
			WithDetails(map[string]any{"item_id": itemID, "available": remaining, "requested": quantity})
	}

	now := e.clk.Now()
	res := &Reservation{
		ID:        uuid.New(),
		ItemID:    itemID,
		Quantity:  quantity,
		OrderID:   orderID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Active:    true,
	}
	if err := e.store.Set(ctx, reservationKey(res.ID), res, ttl+expiryGrace); err != nil {
		// hold failed to persist, give the stock back
		_, _ = e.store.Increment(ctx, stockKey(itemID), quantity)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist reservation")
	}

	resID := res.ID
	e.sched.Schedule(expiryTaskName, resID.String(), ttl, func(taskCtx context.Context) error {
		return e.expire(taskCtx, resID)
	})

	if e.logg != nil {
		e.logg.Info(e.logg.WithOrderID(ctx, orderID.String()), "inventory reserved")
	}
	return res, nil
}

// Release returns a reservation's held stock and deactivates it. Releasing a
// reservation that already expired is a no-op rather than a double credit.
func (e *Engine) Release(ctx context.Context, reservationID uuid.UUID) error {
	var res Reservation
	found, err := e.store.Get(ctx, reservationKey(reservationID), &res)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("reservation %s not found", reservationID))
	}

	unlock := e.locks.Lock(res.ItemID)
	defer unlock()

	// Re-read under the item lock: the expiry task may have credited already.
	found, err = e.store.Get(ctx, reservationKey(reservationID), &res)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	if !found || !res.Active {
		return nil
	}

	e.sched.Cancel(expiryTaskName, reservationID.String())

	if _, err := e.store.Increment(ctx, stockKey(res.ItemID), res.Quantity); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit stock")
	}
	if err := e.store.Delete(ctx, reservationKey(reservationID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete reservation")
	}
	return nil
}

// expire is the scheduled path: it credits the held quantity back exactly
// once, guarded by the reservation's active flag under the item lock.
func (e *Engine) expire(ctx context.Context, reservationID uuid.UUID) error {
	var res Reservation
	found, err := e.store.Get(ctx, reservationKey(reservationID), &res)
	if err != nil {
		return fmt.Errorf("load reservation: %w", err)
	}
	if !found {
		// released explicitly, or the record's own TTL beat us to it after a
		// release already credited
		return nil
	}

	unlock := e.locks.Lock(res.ItemID)
	defer unlock()

	found, err = e.store.Get(ctx, reservationKey(reservationID), &res)
	if err != nil {
		return fmt.Errorf("load reservation: %w", err)
	}
	if !found || !res.Active {
		return nil
	}

	if _, err := e.store.Increment(ctx, stockKey(res.ItemID), res.Quantity); err != nil {
		return fmt.Errorf("credit stock: %w", err)
	}
	if err := e.store.Delete(ctx, reservationKey(reservationID)); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

// Substitutes suggests up to limit in-stock items of the same category,
// ordered by catalog order, excluding the original item.
func (e *Engine) Substitutes(ctx context.Context, itemID string, limit int) ([]Substitute, error) {
	if limit <= 0 {
		limit = 3
	}

	item, _, err := e.loadOrInitItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	subs := make([]Substitute, 0, limit)
	for _, candidateID := range catalogOrder {
		if candidateID == itemID || categoryFor(candidateID) != item.Category {
			continue
		}
		candidate, stock, err := e.loadOrInitItem(ctx, candidateID)
		if err != nil {
			return nil, err
		}
		if stock <= 0 {
			continue
		}
		subs = append(subs, Substitute{
			ItemID:   candidateID,
			Name:     candidate.Name,
			Category: candidate.Category,
			InStock:  stock,
		})
		if len(subs) >= limit {
			break
		}
	}
	return subs, nil
}

// AdjustStock applies a delta, clamping the result at zero.
func (e *Engine) AdjustStock(ctx context.Context, itemID string, delta int64) (int64, error) {
	if _, _, err := e.loadOrInitItem(ctx, itemID); err != nil {
		return 0, err
	}

	unlock := e.locks.Lock(itemID)
	defer unlock()

	if delta >= 0 {
		newQty, err := e.store.Increment(ctx, stockKey(itemID), delta)
		if err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
		}
		return newQty, nil
	}

	applied, current, err := e.store.DecrementFloor(ctx, stockKey(itemID), -delta)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
	}
	if applied {
		return current, nil
	}
	// clamp: drain whatever remains instead of going negative
	if current > 0 {
		if _, _, err := e.store.DecrementFloor(ctx, stockKey(itemID), current); err != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
		}
	}
	return 0, nil
}

// SetStock pins an item's quantity to an absolute value.
func (e *Engine) SetStock(ctx context.Context, itemID string, quantity int64) error {
	if quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	item, current, err := e.loadOrInitItem(ctx, itemID)
	if err != nil {
		return err
	}

	unlock := e.locks.Lock(itemID)
	defer unlock()

	if delta := quantity - current; delta > 0 {
		_, err = e.store.Increment(ctx, stockKey(itemID), delta)
	} else if delta < 0 {
		_, _, err = e.store.DecrementFloor(ctx, stockKey(itemID), -delta)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set stock")
	}

	item.LastUpdated = e.clk.Now()
	if err := e.store.Set(ctx, itemKey(itemID), item, 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save item")
	}
	return nil
}

// LowStock lists catalog items at or below their low-stock threshold.
func (e *Engine) LowStock(ctx context.Context) ([]Availability, error) {
	low := make([]Availability, 0)
	for _, candidateID := range catalogOrder {
		var item Item
		found, err := e.store.Get(ctx, itemKey(candidateID), &item)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
		}
		if !found {
			continue
		}
		stock, err := e.currentStock(ctx, candidateID)
		if err != nil {
			return nil, err
		}
		if stock <= int64(item.LowStockThreshold) {
			low = append(low, Availability{
				ItemID:       candidateID,
				Available:    stock > 0,
				CurrentStock: stock,
				LowStock:     true,
			})
		}
	}
	return low, nil
}

// Seed writes a catalog item with an explicit quantity, used at bootstrap.
func (e *Engine) Seed(ctx context.Context, item Item, quantity int64) error {
	if item.ItemID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if item.Category == "" {
		item.Category = categoryFor(item.ItemID)
	}
	if item.LowStockThreshold == 0 {
		item.LowStockThreshold = e.cfg.LowStockThreshold
	}
	item.LastUpdated = e.clk.Now()
	if err := e.store.Set(ctx, itemKey(item.ItemID), item, 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed item")
	}
	return e.SetStock(ctx, item.ItemID, quantity)
}

func (e *Engine) loadOrInitItem(ctx context.Context, itemID string) (*Item, int64, error) {
	if itemID == "" {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}

	var item Item
	found, err := e.store.Get(ctx, itemKey(itemID), &item)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	if !found {
		unlock := e.locks.Lock(itemID)
		defer unlock()

		// re-check: a concurrent caller may have initialized while we waited
		found, err = e.store.Get(ctx, itemKey(itemID), &item)
		if err != nil {
			return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
		}
	}
	if !found {
		item = Item{
			ItemID:            itemID,
			Name:              displayName(itemID),
			Category:          categoryFor(itemID),
			LowStockThreshold: e.cfg.LowStockThreshold,
			LastUpdated:       e.clk.Now(),
		}
		if err := e.store.Set(ctx, itemKey(itemID), item, 0); err != nil {
			return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "init item")
		}
		initial := fallbackStock
		if qty, ok := defaultStock[itemID]; ok {
			initial = qty
		}
		if _, err := e.store.Increment(ctx, stockKey(itemID), initial); err != nil {
			return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "init stock")
		}
		return &item, initial, nil
	}

	stock, err := e.currentStock(ctx, itemID)
	if err != nil {
		return nil, 0, err
	}
	return &item, stock, nil
}

func (e *Engine) currentStock(ctx context.Context, itemID string) (int64, error) {
	// Increment by zero reads the counter without perturbing it.
	stock, err := e.store.Increment(ctx, stockKey(itemID), 0)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock")
	}
	return stock, nil
}

func categoryFor(itemID string) string {
	for _, mapping := range categoryByPrefix {
		if len(itemID) >= len(mapping.prefix) && itemID[:len(mapping.prefix)] == mapping.prefix {
			return mapping.category
		}
	}
	return "other"
}

func displayName(itemID string) string {
	out := make([]byte, 0, len(itemID))
	upper := true
	for i := 0; i < len(itemID); i++ {
		ch := itemID[i]
		if ch == '_' {
			out = append(out, ' ')
			upper = true
			continue
		}
		if upper && ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		upper = false
		out = append(out, ch)
	}
	return string(out)
}
