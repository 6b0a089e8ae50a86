// Package order creates and tracks customer orders through the fulfillment
// workflow.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/platefulhq/plateful-backend/internal/menu"
	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/locks"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/redis"
	"github.com/platefulhq/plateful-backend/pkg/statestore"
)

// orderRetention bounds how long order records stay queryable.
const orderRetention = 24 * time.Hour

var (
	taxRate     = decimal.RequireFromString("0.08")
	deliveryFee = decimal.RequireFromString("4.99")
)

// Item is one order line.
type Item struct {
	ItemID              string          `json:"item_id"`
	Name                string          `json:"name"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	Customizations      []string        `json:"customizations,omitempty"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Subtotal            decimal.Decimal `json:"subtotal"`
}

// Order is a persisted customer order.
type Order struct {
	ID              uuid.UUID         `json:"id"`
	OrderNumber     string            `json:"order_number"`
	CustomerID      uuid.UUID         `json:"customer_id"`
	ConversationID  uuid.UUID         `json:"conversation_id"`
	Status          enums.OrderStatus `json:"status"`
	Items           []Item            `json:"items"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	Discount        decimal.Decimal   `json:"discount"`
	Tax             decimal.Decimal   `json:"tax"`
	DeliveryFee     decimal.Decimal   `json:"delivery_fee"`
	Total           decimal.Decimal   `json:"total"`
	PromoCode       string            `json:"promo_code,omitempty"`
	DeliveryAddress string            `json:"delivery_address"`
	Notes           string            `json:"notes,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	ConfirmedAt     *time.Time        `json:"confirmed_at,omitempty"`
	DeliveredAt     *time.Time        `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
}

// Quote is a priced order before creation.
type Quote struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
	DeliveryFee  decimal.Decimal `json:"delivery_fee"`
	Total        decimal.Decimal `json:"total"`
	PromoApplied bool            `json:"promo_applied"`
}

// Service manages order records.
type Service struct {
	store   statestore.Store
	catalog *menu.Catalog
	clk     clock.Clock
	logg    *logger.Logger
	locks   *locks.KeyedMutex
}

func NewService(store statestore.Store, catalog *menu.Catalog, clk clock.Clock, logg *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("order service requires a state store")
	}
	if catalog == nil {
		return nil, fmt.Errorf("order service requires a menu catalog")
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Service{
		store:   store,
		catalog: catalog,
		clk:     clk,
		logg:    logg,
		locks:   locks.NewKeyed(),
	}, nil
}

func orderKey(id uuid.UUID) string {
	return redis.Key("order", id.String())
}

// Catalog exposes the menu backing this service.
func (s *Service) Catalog() *menu.Catalog {
	return s.catalog
}

// Price quotes a set of lines. Tax applies to the discounted subtotal; the
// FREESHIP promo zeroes the delivery fee instead of discounting.
func (s *Service) Price(items []Item, promoCode string) (*Quote, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}

	subtotal := decimal.Zero
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %s has non-positive quantity", item.ItemID))
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	discount := decimal.Zero
	fee := deliveryFee
	applied := false
	if promoCode != "" {
		promo, ok := s.catalog.Promo(promoCode)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid promo code %q", promoCode))
		}
		applied = true
		if promo.DiscountPercent > 0 {
			discount = subtotal.Mul(decimal.NewFromInt(int64(promo.DiscountPercent))).Div(decimal.NewFromInt(100))
		}
		if promo.FreeDelivery {
			fee = decimal.Zero
		}
	}

	discounted := subtotal.Sub(discount)
	tax := discounted.Mul(taxRate).Round(2)

	return &Quote{
		Subtotal:     subtotal,
		Discount:     discount,
		Tax:          tax,
		DeliveryFee:  fee,
		Total:        discounted.Add(tax).Add(fee),
		PromoApplied: applied,
	}, nil
}

// CreateParams carries the inputs for a new order.
type CreateParams struct {
	CustomerID      uuid.UUID
	ConversationID  uuid.UUID
	Items           []Item
	DeliveryAddress string
	PromoCode       string
	Notes           string
}

// Create prices and persists a new pending order.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Order, error) {
	if params.DeliveryAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}
	for i := range params.Items {
		line := &params.Items[i]
		if item, ok := s.catalog.Get(line.ItemID); ok {
			if line.Name == "" {
				line.Name = item.Name
			}
			if line.UnitPrice.IsZero() {
				line.UnitPrice = item.Price
			}
		}
		line.Subtotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
	}

	quote, err := s.Price(params.Items, params.PromoCode)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	order := &Order{
		ID:              id,
		OrderNumber:     orderNumber(id),
		CustomerID:      params.CustomerID,
		ConversationID:  params.ConversationID,
		Status:          enums.OrderStatusPending,
		Items:           params.Items,
		Subtotal:        quote.Subtotal,
		Discount:        quote.Discount,
		Tax:             quote.Tax,
		DeliveryFee:     quote.DeliveryFee,
		Total:           quote.Total,
		PromoCode:       params.PromoCode,
		DeliveryAddress: params.DeliveryAddress,
		Notes:           params.Notes,
		CreatedAt:       s.clk.Now(),
	}
	if err := s.save(ctx, order); err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order created")
	}
	return order, nil
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var order Order
	found, err := s.store.Get(ctx, orderKey(orderID), &order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", orderID))
	}
	return &order, nil
}

// UpdateStatus moves the order along the workflow graph. Disallowed edges,
// including any move out of a terminal status, fail with InvalidTransition.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*Order, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", next))
	}

	unlock := s.locks.Lock(orderID.String())
	defer unlock()

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("cannot move order %s from %s to %s", order.OrderNumber, order.Status, next))
	}

	now := s.clk.Now()
	order.Status = next
	switch next {
	case enums.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &now
	case enums.OrderStatusCancelled:
		order.CancelledAt = &now
	}

	if err := s.save(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) save(ctx context.Context, order *Order) error {
	if err := s.store.Set(ctx, orderKey(order.ID), order, orderRetention); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
	}
	return nil
}

// orderNumber derives the customer-facing number from the order id.
func orderNumber(id uuid.UUID) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return "ORD-" + strings.ToUpper(hex[:8])
}
