package support

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/platefulhq/plateful-backend/internal/dispatch"
	"github.com/platefulhq/plateful-backend/internal/kitchen"
	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/redis"
	"github.com/platefulhq/plateful-backend/pkg/statestore"
)

func testSupportConfig() config.SupportConfig {
	return config.SupportConfig{
		AutoRefundLimit: "100.00",
		EscalationTTL:   72 * time.Hour,
		TicketTTL:       24 * time.Hour,
	}
}

func newTestService(t *testing.T) (*Service, statestore.Store, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	store := statestore.NewMemory(clk)
	svc, err := NewService(store, clk, nil, testSupportConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store, clk
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestIssueRefundUnderLimitProcesses(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.IssueRefund(context.Background(), uuid.New(), uuid.New(), dec(t, "42.50"), "cold food")
	if err != nil {
		t.Fatalf("issue refund: %v", err)
	}
	if !result.Approved {
		t.Fatal("expected auto-approval under limit")
	}
	if result.Refund == nil || result.Refund.Status != "processed" {
		t.Fatalf("unexpected refund: %+v", result.Refund)
	}
	if !result.Refund.Amount.Equal(dec(t, "42.50")) {
		t.Errorf("amount = %s, want 42.50", result.Refund.Amount)
	}
}

func TestIssueRefundAtLimitStillProcesses(t *testing.T) {
	svc, _, _ := newTestService(t)

	result, err := svc.IssueRefund(context.Background(), uuid.New(), uuid.New(), dec(t, "100.00"), "edge case")
	if err != nil {
		t.Fatalf("issue refund: %v", err)
	}
	if !result.Approved {
		t.Fatal("amount equal to the limit should auto-approve")
	}
}

func TestIssueRefundAboveLimitEscalates(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	result, err := svc.IssueRefund(ctx, uuid.New(), uuid.New(), dec(t, "150.00"), "order never arrived")
	if err != nil {
		t.Fatalf("issue refund: %v", err)
	}
	if result.Approved {
		t.Fatal("expected escalation above limit")
	}
	if result.Refund != nil {
		t.Fatal("no refund record should exist")
	}
	if result.Escalation == nil || result.Escalation.Status != "pending_review" {
		t.Fatalf("unexpected escalation: %+v", result.Escalation)
	}

	// escalations wait for a human; time passing does not resolve them
	clk.Advance(time.Hour)
	loaded, err := svc.GetEscalation(ctx, result.Escalation.EscalationID)
	if err != nil {
		t.Fatalf("get escalation: %v", err)
	}
	if loaded.Status != "pending_review" {
		t.Fatalf("status = %s, want pending_review", loaded.Status)
	}
}

func TestIssueRefundRejectsNonPositive(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.IssueRefund(context.Background(), uuid.New(), uuid.New(), decimal.Zero, "zero")
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyCreditUpdatesBalance(t *testing.T) {
	svc, store, clk := newTestService(t)
	ctx := context.Background()

	customerID := uuid.New()
	seed := Customer{TotalOrders: 3, CreditBalance: dec(t, "2.50")}
	if err := store.Set(ctx, customerKey(customerID), &seed, 0); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	credit, err := svc.ApplyCredit(ctx, customerID, dec(t, "5.00"), "apology")
	if err != nil {
		t.Fatalf("apply credit: %v", err)
	}
	if credit.Status != "active" {
		t.Errorf("status = %s, want active", credit.Status)
	}
	if want := clk.Now().Add(creditRetention); !credit.ExpiresAt.Equal(want) {
		t.Errorf("expires at %s, want %s", credit.ExpiresAt, want)
	}

	history, err := svc.CustomerHistory(ctx, customerID)
	if err != nil {
		t.Fatalf("customer history: %v", err)
	}
	if !history.CreditBalance.Equal(dec(t, "7.50")) {
		t.Errorf("balance = %s, want 7.50", history.CreditBalance)
	}
}

func TestApplyCreditUnknownCustomer(t *testing.T) {
	svc, _, _ := newTestService(t)

	// credit still issues when no profile exists
	credit, err := svc.ApplyCredit(context.Background(), uuid.New(), dec(t, "5.00"), "apology")
	if err != nil {
		t.Fatalf("apply credit: %v", err)
	}
	if credit.CreditID == uuid.Nil {
		t.Fatal("missing credit id")
	}
}

func TestCustomerHistoryUnknownIsEmpty(t *testing.T) {
	svc, _, _ := newTestService(t)

	customerID := uuid.New()
	history, err := svc.CustomerHistory(context.Background(), customerID)
	if err != nil {
		t.Fatalf("customer history: %v", err)
	}
	if history.TotalOrders != 0 || !history.CreditBalance.IsZero() || history.CustomerID != customerID {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestOrderTimelineCompilesStages(t *testing.T) {
	svc, store, clk := newTestService(t)
	ctx := context.Background()

	orderID := uuid.New()
	ticket := kitchen.Ticket{
		OrderID:    orderID,
		Status:     enums.TicketStatusPreparing,
		ReceivedAt: clk.Now(),
	}
	if err := store.Set(ctx, redis.Key("kitchen", "order", orderID.String()), &ticket, time.Hour); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	assignment := dispatch.Assignment{
		OrderID:    orderID,
		DriverName: "Maria Garcia",
		Status:     enums.AssignmentStatusAssigned,
		AssignedAt: clk.Now(),
	}
	if err := store.Set(ctx, redis.Key("delivery", orderID.String()), &assignment, time.Hour); err != nil {
		t.Fatalf("seed assignment: %v", err)
	}

	timeline, err := svc.OrderTimeline(ctx, orderID)
	if err != nil {
		t.Fatalf("order timeline: %v", err)
	}
	if timeline.Kitchen == nil || timeline.Kitchen.Status != enums.TicketStatusPreparing {
		t.Errorf("kitchen stage: %+v", timeline.Kitchen)
	}
	if timeline.Delivery == nil || timeline.Delivery.DriverName != "Maria Garcia" {
		t.Errorf("delivery stage: %+v", timeline.Delivery)
	}
}

func TestOrderTimelineUnknownOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.OrderTimeline(context.Background(), uuid.New())
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateTicketExpires(t *testing.T) {
	svc, store, clk := newTestService(t)
	ctx := context.Background()

	ticket, err := svc.CreateTicket(ctx, uuid.New(), uuid.New(), "other", "missing napkins")
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if ticket.Status != "open" || ticket.Priority != "normal" {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}

	clk.Advance(25 * time.Hour)
	var gone Ticket
	found, err := store.Get(ctx, ticketKey(ticket.TicketID), &gone)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	if found {
		t.Fatal("ticket should expire after its TTL")
	}
}

func TestApplyResolutionLateDeliveryTiers(t *testing.T) {
	tests := []struct {
		name       string
		delay      int
		wantCredit string
		wantRefund string
	}{
		{"small delay gets apology credit", 10, "5.00", ""},
		{"moderate delay gets quarter refund", 20, "", "10.00"},
		{"boundary thirty minutes stays moderate", 30, "", "10.00"},
		{"severe delay gets full refund", 45, "", "40.00"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestService(t)

			resolution, err := svc.ApplyResolution(context.Background(), "late_delivery",
				uuid.New(), uuid.New(), dec(t, "40.00"), tc.delay)
			if err != nil {
				t.Fatalf("apply resolution: %v", err)
			}
			if tc.wantCredit != "" {
				if len(resolution.Credits) != 1 || !resolution.Credits[0].Amount.Equal(dec(t, tc.wantCredit)) {
					t.Fatalf("credits: %+v", resolution.Credits)
				}
				if len(resolution.Refunds) != 0 {
					t.Fatalf("unexpected refunds: %+v", resolution.Refunds)
				}
			}
			if tc.wantRefund != "" {
				if len(resolution.Refunds) != 1 || !resolution.Refunds[0].Refund.Amount.Equal(dec(t, tc.wantRefund)) {
					t.Fatalf("refunds: %+v", resolution.Refunds)
				}
			}
		})
	}
}

func TestApplyResolutionWrongItem(t *testing.T) {
	svc, _, _ := newTestService(t)

	resolution, err := svc.ApplyResolution(context.Background(), "wrong_item",
		uuid.New(), uuid.New(), dec(t, "50.00"), 0)
	if err != nil {
		t.Fatalf("apply resolution: %v", err)
	}
	if len(resolution.Refunds) != 1 || !resolution.Refunds[0].Refund.Amount.Equal(dec(t, "15.00")) {
		t.Fatalf("refunds: %+v", resolution.Refunds)
	}
	if len(resolution.Credits) != 1 || !resolution.Credits[0].Amount.Equal(dec(t, "7.50")) {
		t.Fatalf("credits: %+v", resolution.Credits)
	}
}

func TestApplyResolutionQualityIssue(t *testing.T) {
	svc, _, _ := newTestService(t)

	resolution, err := svc.ApplyResolution(context.Background(), "quality_issue",
		uuid.New(), uuid.New(), dec(t, "60.00"), 0)
	if err != nil {
		t.Fatalf("apply resolution: %v", err)
	}
	if len(resolution.Refunds) != 1 || !resolution.Refunds[0].Refund.Amount.Equal(dec(t, "30.00")) {
		t.Fatalf("refunds: %+v", resolution.Refunds)
	}
}

func TestApplyResolutionUnknownCategoryOpensTicket(t *testing.T) {
	svc, _, _ := newTestService(t)

	resolution, err := svc.ApplyResolution(context.Background(), "app_glitch",
		uuid.New(), uuid.New(), dec(t, "20.00"), 0)
	if err != nil {
		t.Fatalf("apply resolution: %v", err)
	}
	if resolution.Ticket == nil || resolution.Ticket.Category != "app_glitch" {
		t.Fatalf("ticket: %+v", resolution.Ticket)
	}
	if len(resolution.Refunds) != 0 || len(resolution.Credits) != 0 {
		t.Fatalf("unexpected money movement: %+v", resolution)
	}
}

func TestApplyResolutionLargeTotalEscalates(t *testing.T) {
	svc, _, _ := newTestService(t)

	// full refund of a large order crosses the auto-approval limit
	resolution, err := svc.ApplyResolution(context.Background(), "late_delivery",
		uuid.New(), uuid.New(), dec(t, "180.00"), 60)
	if err != nil {
		t.Fatalf("apply resolution: %v", err)
	}
	if len(resolution.Refunds) != 1 {
		t.Fatalf("refunds: %+v", resolution.Refunds)
	}
	result := resolution.Refunds[0]
	if result.Approved || result.Escalation == nil {
		t.Fatalf("expected escalated refund, got %+v", result)
	}
}
