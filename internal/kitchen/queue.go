// Package kitchen orders preparation work, computes ETAs from queue depth,
// item complexity, and time-of-day load, and completes tickets through
// scheduled background tasks.
package kitchen

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/internal/scheduler"
	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/redis"
	"github.com/platefulhq/plateful-backend/pkg/statestore"
)

const (
	prepTaskName = "kitchen_prep"

	// customizationMinutes is added per item carrying customizations.
	customizationMinutes = 2
	// depthMinutes is added per order already in the queue.
	depthMinutes = 2
	// peakMultiplier inflates estimates during configured peak windows.
	peakMultiplier = 1.3
	// largeOrderMinutes is added when an order has more than largeOrderItems.
	largeOrderMinutes = 5
	largeOrderItems   = 5
	// minimumMinutes floors every estimate.
	minimumMinutes = 10

	// prioritizeOffset forces a score far below every timestamp-derived score.
	prioritizeOffset = 10000
)

// basePrepMinutes is the per-unit prep time by category.
var basePrepMinutes = map[string]int{
	"pizza":   15,
	"burgers": 8,
	"salads":  5,
	"drinks":  1,
}

const fallbackPrepMinutes = 10

// Item is one line of an order handed to the kitchen.
type Item struct {
	ItemID         string   `json:"item_id"`
	Category       string   `json:"category"`
	Quantity       int      `json:"quantity"`
	Customizations []string `json:"customizations,omitempty"`
}

// Ticket tracks an order through preparation.
type Ticket struct {
	OrderID        uuid.UUID          `json:"order_id"`
	Items          []Item             `json:"items"`
	Priority       int                `json:"priority"`
	PriorityReason string             `json:"priority_reason,omitempty"`
	Status         enums.TicketStatus `json:"status"`
	ReceivedAt     time.Time          `json:"received_at"`
	EstimatedReady time.Time          `json:"estimated_ready"`
	ActualReady    *time.Time         `json:"actual_ready,omitempty"`
}

// EnqueueResult reports queue position and timing for a new ticket.
type EnqueueResult struct {
	OrderID       uuid.UUID `json:"order_id"`
	QueuePosition int64     `json:"queue_position"`
	EtaMinutes    int       `json:"estimated_prep_time_minutes"`
	ReadyAt       time.Time `json:"estimated_ready_at"`
}

// Eta is the remaining-time view of a ticket.
type Eta struct {
	Status           enums.TicketStatus `json:"status"`
	RemainingMinutes int                `json:"estimated_minutes_remaining"`
	ReadyAt          time.Time          `json:"estimated_ready_at"`
}

// QueueStatus summarizes kitchen load.
type QueueStatus struct {
	Depth          int64 `json:"queue_depth"`
	AvgWaitMinutes int   `json:"avg_wait_minutes"`
	Peak           bool  `json:"is_peak_hours"`
	Busy           bool  `json:"busy"`
}

// VarianceFn scales a computed prep duration to its simulated actual
// duration. Production uses a randomized ±20%; tests inject identity.
type VarianceFn func(estimated time.Duration) time.Duration

// Queue is the kitchen preparation queue.
type Queue struct {
	store    statestore.Store
	sched    *scheduler.Scheduler
	clk      clock.Clock
	logg     *logger.Logger
	cfg      config.KitchenConfig
	variance VarianceFn
}

func NewQueue(store statestore.Store, sched *scheduler.Scheduler, clk clock.Clock, logg *logger.Logger, cfg config.KitchenConfig, variance VarianceFn) (*Queue, error) {
	if store == nil {
		return nil, fmt.Errorf("kitchen queue requires a state store")
	}
	if sched == nil {
		return nil, fmt.Errorf("kitchen queue requires a scheduler")
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	if variance == nil {
		variance = func(estimated time.Duration) time.Duration { return estimated }
	}
	return &Queue{
		store:    store,
		sched:    sched,
		clk:      clk,
		logg:     logg,
		cfg:      cfg,
		variance: variance,
	}, nil
}

func queueKey() string {
	return redis.Key("kitchen", "queue")
}

func ticketKey(orderID uuid.UUID) string {
	return redis.Key("kitchen", "order", orderID.String())
}

// Enqueue adds an order to the queue, persists its ticket, and schedules the
// completion task. Higher priority sorts earlier via score = now − priority×1000.
func (q *Queue) Enqueue(ctx context.Context, orderID uuid.UUID, items []Item, priority int) (*EnqueueResult, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}

	etaMinutes, err := q.EstimatePrepTime(ctx, items)
	if err != nil {
		return nil, err
	}

	now := q.clk.Now()
	score := float64(now.Unix()) - float64(priority)*1000

	if err := q.store.ZAdd(ctx, queueKey(), orderID.String(), score); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue order")
	}

	depth, err := q.store.ZCard(ctx, queueKey())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read queue depth")
	}

	ticket := &Ticket{
		OrderID:        orderID,
		Items:          items,
		Priority:       priority,
		Status:         enums.TicketStatusPreparing,
		ReceivedAt:     now,
		EstimatedReady: now.Add(time.Duration(etaMinutes) * time.Minute),
	}
	if err := q.store.Set(ctx, ticketKey(orderID), ticket, q.cfg.TicketTTL); err != nil {
		_ = q.store.ZRem(ctx, queueKey(), orderID.String())
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist ticket")
	}

	// PrepTimeScale is the real duration of one simulated minute; local runs
	// compress it, production sets a full minute.
	scale := q.cfg.PrepTimeScale
	if scale == 0 {
		scale = time.Minute
	}
	estimated := time.Duration(etaMinutes) * scale
	actual := q.variance(estimated)

	q.sched.Schedule(prepTaskName, orderID.String(), actual, func(taskCtx context.Context) error {
		return q.complete(taskCtx, orderID)
	})

	if q.logg != nil {
		q.logg.Info(q.logg.WithOrderID(ctx, orderID.String()), "order enqueued for prep")
	}
	return &EnqueueResult{
		OrderID:       orderID,
		QueuePosition: depth,
		EtaMinutes:    etaMinutes,
		ReadyAt:       ticket.EstimatedReady,
	}, nil
}

// EstimatePrepTime computes the estimate for an item list: per-item base time
// by category times quantity, +2 per customized item, plus queue depth load,
// a peak-hours multiplier, and a large-order surcharge, floored at 10.
// Queue depth is read fresh, so concurrent enqueues see each other.
func (q *Queue) EstimatePrepTime(ctx context.Context, items []Item) (int, error) {
	total := 0
	for _, item := range items {
		base := fallbackPrepMinutes
		if minutes, ok := basePrepMinutes[item.Category]; ok {
			base = minutes
		}
		if len(item.Customizations) > 0 {
			base += customizationMinutes
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		total += base * qty
	}

	if q.isPeak(q.clk.Now()) {
		total = int(float64(total) * peakMultiplier)
	}
	if len(items) > largeOrderItems {
		total += largeOrderMinutes
	}

	depth, err := q.store.ZCard(ctx, queueKey())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read queue depth")
	}
	total += int(depth) * depthMinutes

	if total < minimumMinutes {
		total = minimumMinutes
	}
	return total, nil
}

// UpdateStatus moves a ticket between statuses. Transitioning to ready stamps
// the actual-ready time and removes the order from the queue. Unknown
// statuses are a contract violation.
func (q *Queue) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.TicketStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("unknown ticket status %q", status))
	}

	ticket, err := q.getTicket(ctx, orderID)
	if err != nil {
		return err
	}
	if ticket.Status == enums.TicketStatusReady && status == enums.TicketStatusPreparing {
		return pkgerrors.New(pkgerrors.CodeInvalidTransition, "ready tickets cannot return to preparing")
	}

	ticket.Status = status
	if status == enums.TicketStatusReady && ticket.ActualReady == nil {
		now := q.clk.Now()
		ticket.ActualReady = &now
		if err := q.store.ZRem(ctx, queueKey(), orderID.String()); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dequeue order")
		}
		q.sched.Cancel(prepTaskName, orderID.String())
	}

	if err := q.store.Set(ctx, ticketKey(orderID), ticket, q.cfg.TicketTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save ticket")
	}
	return nil
}

// GetEta derives remaining minutes from the stored estimate, floored at zero.
func (q *Queue) GetEta(ctx context.Context, orderID uuid.UUID) (*Eta, error) {
	ticket, err := q.getTicket(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if ticket.Status == enums.TicketStatusReady {
		return &Eta{Status: enums.TicketStatusReady, ReadyAt: ticket.EstimatedReady}, nil
	}

	remaining := int(math.Ceil(ticket.EstimatedReady.Sub(q.clk.Now()).Minutes()))
	if remaining < 0 {
		remaining = 0
	}
	return &Eta{
		Status:           ticket.Status,
		RemainingMinutes: remaining,
		ReadyAt:          ticket.EstimatedReady,
	}, nil
}

// Prioritize re-inserts the order at the queue head and stamps the reason.
// The ETA is intentionally not recomputed.
func (q *Queue) Prioritize(ctx context.Context, orderID uuid.UUID, reason string) error {
	ticket, err := q.getTicket(ctx, orderID)
	if err != nil {
		return err
	}

	score := float64(q.clk.Now().Unix()) - prioritizeOffset
	if err := q.store.ZAdd(ctx, queueKey(), orderID.String(), score); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reprioritize order")
	}

	ticket.Priority = 100
	ticket.PriorityReason = reason
	if err := q.store.Set(ctx, ticketKey(orderID), ticket, q.cfg.TicketTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save ticket")
	}
	return nil
}

// Status summarizes queue depth and load.
func (q *Queue) Status(ctx context.Context) (*QueueStatus, error) {
	depth, err := q.store.ZCard(ctx, queueKey())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read queue depth")
	}
	return &QueueStatus{
		Depth:          depth,
		AvgWaitMinutes: 5 + int(depth)*3,
		Peak:           q.isPeak(q.clk.Now()),
		Busy:           depth > 5,
	}, nil
}

// QueueOrder returns the queued order ids in priority order.
func (q *Queue) QueueOrder(ctx context.Context) ([]string, error) {
	members, err := q.store.ZRange(ctx, queueKey(), 0, -1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read queue")
	}
	return members, nil
}

// complete is the scheduled prep-finished path. It is idempotent: a ticket
// already marked ready stays untouched.
func (q *Queue) complete(ctx context.Context, orderID uuid.UUID) error {
	ticket, err := q.getTicket(ctx, orderID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil
		}
		return err
	}
	if ticket.Status == enums.TicketStatusReady {
		return nil
	}

	now := q.clk.Now()
	ticket.Status = enums.TicketStatusReady
	ticket.ActualReady = &now
	if err := q.store.ZRem(ctx, queueKey(), orderID.String()); err != nil {
		return fmt.Errorf("dequeue order: %w", err)
	}
	if err := q.store.Set(ctx, ticketKey(orderID), ticket, q.cfg.TicketTTL); err != nil {
		return fmt.Errorf("save ticket: %w", err)
	}
	if q.logg != nil {
		q.logg.Info(q.logg.WithOrderID(ctx, orderID.String()), "order ready")
	}
	return nil
}

func (q *Queue) getTicket(ctx context.Context, orderID uuid.UUID) (*Ticket, error) {
	var ticket Ticket
	found, err := q.store.Get(ctx, ticketKey(orderID), &ticket)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not in kitchen", orderID))
	}
	return &ticket, nil
}

func (q *Queue) isPeak(now time.Time) bool {
	hour := now.Hour()
	for _, window := range q.cfg.PeakWindows() {
		if hour >= window[0] && hour <= window[1] {
			return true
		}
	}
	return false
}
