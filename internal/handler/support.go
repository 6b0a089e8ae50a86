package handler

import (
	"context"

	"github.com/platefulhq/plateful-backend/internal/support"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/genai"
)

const supportSystem = `You are the support specialist for a cloud kitchen.
Listen first, apologize when something went wrong, and resolve issues using
the compensation policy. Escalate anything you cannot resolve yourself.`

// SupportCommand enumerates the support specialist's commands.
type SupportCommand string

const (
	SupportOrderDetails    SupportCommand = "get_order_details"
	SupportIssueRefund     SupportCommand = "issue_refund"
	SupportApplyCredit     SupportCommand = "apply_credit"
	SupportCreateTicket    SupportCommand = "create_ticket"
	SupportEscalate        SupportCommand = "escalate_to_human"
	SupportCustomerHistory SupportCommand = "get_customer_history"
	SupportApplyResolution SupportCommand = "apply_resolution_policy"
)

// SupportHandler resolves complaints, refunds, and escalations.
type SupportHandler struct {
	responder
	service *support.Service
}

func NewSupportHandler(gen genai.Generator, service *support.Service, historySize int) *SupportHandler {
	return &SupportHandler{
		responder: responder{
			handlerType: enums.HandlerSupport,
			system:      supportSystem,
			gen:         gen,
			historySize: historySize,
		},
		service: service,
	}
}

func (h *SupportHandler) Execute(ctx context.Context, command string, args Args) (any, error) {
	switch SupportCommand(command) {
	case SupportOrderDetails:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		return h.service.OrderTimeline(ctx, orderID)

	case SupportIssueRefund:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		customerID, err := args.UUID("customer_id")
		if err != nil {
			return nil, err
		}
		amount, err := args.Decimal("amount")
		if err != nil {
			return nil, err
		}
		reason, err := args.String("reason")
		if err != nil {
			return nil, err
		}
		return h.service.IssueRefund(ctx, orderID, customerID, amount, reason)

	case SupportApplyCredit:
		customerID, err := args.UUID("customer_id")
		if err != nil {
			return nil, err
		}
		amount, err := args.Decimal("amount")
		if err != nil {
			return nil, err
		}
		reason, err := args.String("reason")
		if err != nil {
			return nil, err
		}
		return h.service.ApplyCredit(ctx, customerID, amount, reason)

	case SupportCreateTicket:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		customerID, err := args.UUID("customer_id")
		if err != nil {
			return nil, err
		}
		category, err := args.String("category")
		if err != nil {
			return nil, err
		}
		return h.service.CreateTicket(ctx, orderID, customerID, category, args.OptionalString("details"))

	case SupportEscalate:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		reason, err := args.String("reason")
		if err != nil {
			return nil, err
		}
		extra, _ := args["context"].(map[string]any)
		return h.service.Escalate(ctx, orderID, reason, extra)

	case SupportCustomerHistory:
		customerID, err := args.UUID("customer_id")
		if err != nil {
			return nil, err
		}
		return h.service.CustomerHistory(ctx, customerID)

	case SupportApplyResolution:
		category, err := args.String("issue_category")
		if err != nil {
			return nil, err
		}
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		customerID, err := args.UUID("customer_id")
		if err != nil {
			return nil, err
		}
		total, err := args.Decimal("order_total")
		if err != nil {
			return nil, err
		}
		return h.service.ApplyResolution(ctx, category, orderID, customerID, total, args.OptionalInt("delay_minutes", 0))

	default:
		return nil, unknownCommand(h.handlerType, command)
	}
}
