// Package support handles complaints, refunds, credits, and escalations.
package support

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/platefulhq/plateful-backend/internal/dispatch"
	"github.com/platefulhq/plateful-backend/internal/kitchen"
	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/platefulhq/plateful-backend/pkg/config"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/redis"
	"github.com/platefulhq/plateful-backend/pkg/statestore"
)

const (
	refundRetention = 30 * 24 * time.Hour
	creditRetention = 90 * 24 * time.Hour
)

// Refund is a processed refund record.
type Refund struct {
	RefundID   uuid.UUID       `json:"refund_id"`
	OrderID    uuid.UUID       `json:"order_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
	IssuedAt   time.Time       `json:"issued_at"`
	Status     string          `json:"status"`
}

// RefundResult reports the outcome of a refund request. Amounts above the
// auto-approval limit escalate instead of processing.
type RefundResult struct {
	Approved   bool        `json:"approved"`
	Refund     *Refund     `json:"refund,omitempty"`
	Escalation *Escalation `json:"escalation,omitempty"`
	Message    string      `json:"message"`
}

// Credit is an account credit with an expiry.
type Credit struct {
	CreditID   uuid.UUID       `json:"credit_id"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
	IssuedAt   time.Time       `json:"issued_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	Status     string          `json:"status"`
}

// Ticket is a manually reviewed support ticket.
type Ticket struct {
	TicketID   uuid.UUID `json:"ticket_id"`
	OrderID    uuid.UUID `json:"order_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	Category   string    `json:"category"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
	Status     string    `json:"status"`
	Priority   string    `json:"priority"`
}

// Escalation is a case awaiting human review. It never resolves on its own.
type Escalation struct {
	EscalationID uuid.UUID      `json:"escalation_id"`
	OrderID      uuid.UUID      `json:"order_id"`
	Reason       string         `json:"reason"`
	Context      map[string]any `json:"context,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Status       string         `json:"status"`
}

// Customer is the support-facing customer summary.
type Customer struct {
	CustomerID    uuid.UUID       `json:"customer_id"`
	TotalOrders   int             `json:"total_orders"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
	IsVIP         bool            `json:"is_vip"`
}

// Timeline compiles an order's kitchen and delivery history.
type Timeline struct {
	OrderID  uuid.UUID            `json:"order_id"`
	Kitchen  *kitchen.Ticket      `json:"kitchen,omitempty"`
	Delivery *dispatch.Assignment `json:"delivery,omitempty"`
}

// Resolution is the outcome of applying a resolution policy.
type Resolution struct {
	IssueCategory string          `json:"issue_category"`
	Refunds       []*RefundResult `json:"refunds,omitempty"`
	Credits       []*Credit       `json:"credits,omitempty"`
	Ticket        *Ticket         `json:"ticket,omitempty"`
}

// Service applies support policy over the shared state store.
type Service struct {
	store           statestore.Store
	clk             clock.Clock
	logg            *logger.Logger
	cfg             config.SupportConfig
	autoRefundLimit decimal.Decimal
}

func NewService(store statestore.Store, clk clock.Clock, logg *logger.Logger, cfg config.SupportConfig) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("support service requires a state store")
	}
	limit, err := decimal.NewFromString(cfg.AutoRefundLimit)
	if err != nil {
		return nil, fmt.Errorf("parsing auto refund limit %q: %w", cfg.AutoRefundLimit, err)
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Service{
		store:           store,
		clk:             clk,
		logg:            logg,
		cfg:             cfg,
		autoRefundLimit: limit,
	}, nil
}

func refundKey(id uuid.UUID) string     { return redis.Key("refund", id.String()) }
func creditKey(id uuid.UUID) string     { return redis.Key("credit", id.String()) }
func ticketKey(id uuid.UUID) string     { return redis.Key("ticket", id.String()) }
func escalationKey(id uuid.UUID) string { return redis.Key("escalation", id.String()) }
func customerKey(id uuid.UUID) string   { return redis.Key("customer", id.String()) }

// OrderTimeline reads the kitchen ticket and delivery assignment for an
// order. It fails only when neither stage has a record.
func (s *Service) OrderTimeline(ctx context.Context, orderID uuid.UUID) (*Timeline, error) {
	timeline := &Timeline{OrderID: orderID}

	var ticket kitchen.Ticket
	found, err := s.store.Get(ctx, redis.Key("kitchen", "order", orderID.String()), &ticket)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load kitchen ticket")
	}
	if found {
		timeline.Kitchen = &ticket
	}

	var assignment dispatch.Assignment
	found, err = s.store.Get(ctx, redis.Key("delivery", orderID.String()), &assignment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery assignment")
	}
	if found {
		timeline.Delivery = &assignment
	}

	if timeline.Kitchen == nil && timeline.Delivery == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no history for order %s", orderID))
	}
	return timeline, nil
}

// IssueRefund processes a refund up to the auto-approval limit. Larger
// amounts create a pending escalation and do not move money.
func (s *Service) IssueRefund(ctx context.Context, orderID, customerID uuid.UUID, amount decimal.Decimal, reason string) (*RefundResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	if amount.GreaterThan(s.autoRefundLimit) {
		escalation, err := s.Escalate(ctx, orderID,
			fmt.Sprintf("Refund approval needed: $%s - %s", amount.StringFixed(2), reason),
			map[string]any{"amount": amount.String(), "reason": reason})
		if err != nil {
			return nil, err
		}
		return &RefundResult{
			Approved:   false,
			Escalation: escalation,
			Message:    "Refund requires manager approval. You'll be contacted shortly.",
		}, nil
	}

	refund := &Refund{
		RefundID:   uuid.New(),
		OrderID:    orderID,
		CustomerID: customerID,
		Amount:     amount,
		Reason:     reason,
		IssuedAt:   s.clk.Now(),
		Status:     "processed",
	}
	if err := s.store.Set(ctx, refundKey(refund.RefundID), refund, refundRetention); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist refund")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "refund processed")
	}
	return &RefundResult{
		Approved: true,
		Refund:   refund,
		Message:  fmt.Sprintf("Refund of $%s processed successfully.", amount.StringFixed(2)),
	}, nil
}

// ApplyCredit grants an expiring account credit and bumps the customer's
// balance when a profile exists.
func (s *Service) ApplyCredit(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal, reason string) (*Credit, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}

	now := s.clk.Now()
	credit := &Credit{
		CreditID:   uuid.New(),
		CustomerID: customerID,
		Amount:     amount,
		Reason:     reason,
		IssuedAt:   now,
		ExpiresAt:  now.Add(creditRetention),
		Status:     "active",
	}
	if err := s.store.Set(ctx, creditKey(credit.CreditID), credit, creditRetention); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist credit")
	}

	var customer Customer
	found, err := s.store.Get(ctx, customerKey(customerID), &customer)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	if found {
		customer.CreditBalance = customer.CreditBalance.Add(amount)
		if err := s.store.Set(ctx, customerKey(customerID), &customer, 0); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save customer")
		}
	}

	return credit, nil
}

// CreateTicket opens a support ticket for manual review.
func (s *Service) CreateTicket(ctx context.Context, orderID, customerID uuid.UUID, category, details string) (*Ticket, error) {
	ticket := &Ticket{
		TicketID:   uuid.New(),
		OrderID:    orderID,
		CustomerID: customerID,
		Category:   category,
		Details:    details,
		CreatedAt:  s.clk.Now(),
		Status:     "open",
		Priority:   "normal",
	}
	if err := s.store.Set(ctx, ticketKey(ticket.TicketID), ticket, s.cfg.TicketTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist ticket")
	}
	return ticket, nil
}

// Escalate hands a case to human review. The record stays pending until a
// person acts on it.
func (s *Service) Escalate(ctx context.Context, orderID uuid.UUID, reason string, extra map[string]any) (*Escalation, error) {
	escalation := &Escalation{
		EscalationID: uuid.New(),
		OrderID:      orderID,
		Reason:       reason,
		Context:      extra,
		CreatedAt:    s.clk.Now(),
		Status:       "pending_review",
	}
	if err := s.store.Set(ctx, escalationKey(escalation.EscalationID), escalation, s.cfg.EscalationTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist escalation")
	}
	return escalation, nil
}

// GetEscalation loads an escalation record.
func (s *Service) GetEscalation(ctx context.Context, escalationID uuid.UUID) (*Escalation, error) {
	var escalation Escalation
	found, err := s.store.Get(ctx, escalationKey(escalationID), &escalation)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load escalation")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("escalation %s not found", escalationID))
	}
	return &escalation, nil
}

// CustomerHistory summarizes a customer's account. Unknown customers return
// an empty summary rather than an error.
func (s *Service) CustomerHistory(ctx context.Context, customerID uuid.UUID) (*Customer, error) {
	var customer Customer
	found, err := s.store.Get(ctx, customerKey(customerID), &customer)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	if !found {
		return &Customer{CustomerID: customerID, CreditBalance: decimal.Zero}, nil
	}
	customer.CustomerID = customerID
	return &customer, nil
}

var (
	quarterRefund      = decimal.RequireFromString("0.25")
	itemRefundShare    = decimal.RequireFromString("0.30")
	inconvenienceShare = decimal.RequireFromString("0.15")
	qualityRefundShare = decimal.RequireFromString("0.50")
	lateApologyCredit  = decimal.RequireFromString("5.00")
)

// ApplyResolution runs the automated policy for an issue category.
// Late deliveries tier on delay: under 15 minutes a flat apology credit,
// 15 to 30 minutes a quarter refund, beyond that a full refund. Wrong or
// missing items get a partial refund plus an inconvenience credit. Quality
// issues get half back. Anything else opens a ticket.
func (s *Service) ApplyResolution(ctx context.Context, category string, orderID, customerID uuid.UUID, orderTotal decimal.Decimal, delayMinutes int) (*Resolution, error) {
	resolution := &Resolution{IssueCategory: category}

	switch category {
	case "late_delivery":
		switch {
		case delayMinutes < 15:
			credit, err := s.ApplyCredit(ctx, customerID, lateApologyCredit,
				fmt.Sprintf("Apology for %d min delay", delayMinutes))
			if err != nil {
				return nil, err
			}
			resolution.Credits = append(resolution.Credits, credit)
		case delayMinutes <= 30:
			refund, err := s.IssueRefund(ctx, orderID, customerID, orderTotal.Mul(quarterRefund),
				fmt.Sprintf("25%% refund for %d min delay", delayMinutes))
			if err != nil {
				return nil, err
			}
			resolution.Refunds = append(resolution.Refunds, refund)
		default:
			refund, err := s.IssueRefund(ctx, orderID, customerID, orderTotal,
				fmt.Sprintf("Full refund for %d min delay", delayMinutes))
			if err != nil {
				return nil, err
			}
			resolution.Refunds = append(resolution.Refunds, refund)
		}

	case "wrong_item", "missing_item":
		refund, err := s.IssueRefund(ctx, orderID, customerID, orderTotal.Mul(itemRefundShare),
			fmt.Sprintf("Refund for %s", category))
		if err != nil {
			return nil, err
		}
		credit, err := s.ApplyCredit(ctx, customerID, orderTotal.Mul(inconvenienceShare), "Inconvenience credit")
		if err != nil {
			return nil, err
		}
		resolution.Refunds = append(resolution.Refunds, refund)
		resolution.Credits = append(resolution.Credits, credit)

	case "quality_issue":
		refund, err := s.IssueRefund(ctx, orderID, customerID, orderTotal.Mul(qualityRefundShare), "Quality issue refund")
		if err != nil {
			return nil, err
		}
		resolution.Refunds = append(resolution.Refunds, refund)

	default:
		ticket, err := s.CreateTicket(ctx, orderID, customerID, category, "Customer reported issue")
		if err != nil {
			return nil, err
		}
		resolution.Ticket = ticket
	}

	return resolution, nil
}
