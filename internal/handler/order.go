package handler

import (
	"context"

	"github.com/platefulhq/plateful-backend/internal/order"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/genai"
)

const orderSystem = `You are the order specialist for a cloud kitchen.
Help customers build orders conversationally, confirm items and customizations,
apply promo codes, and present accurate totals including tax and delivery fee.
Always confirm the full order before creating it.`

// OrderCommand enumerates the order specialist's commands.
type OrderCommand string

const (
	OrderGetMenu       OrderCommand = "get_menu"
	OrderParseItems    OrderCommand = "parse_order_items"
	OrderCalculate     OrderCommand = "calculate_total"
	OrderCreate        OrderCommand = "create_order"
	OrderValidatePromo OrderCommand = "validate_promo_code"
	OrderUpdateStatus  OrderCommand = "update_order_status"
	OrderGet           OrderCommand = "get_order"
)

// OrderHandler builds and manages customer orders.
type OrderHandler struct {
	responder
	orders *order.Service
}

func NewOrderHandler(gen genai.Generator, orders *order.Service, historySize int) *OrderHandler {
	return &OrderHandler{
		responder: responder{
			handlerType: enums.HandlerOrder,
			system:      orderSystem,
			gen:         gen,
			historySize: historySize,
		},
		orders: orders,
	}
}

func (h *OrderHandler) Execute(ctx context.Context, command string, args Args) (any, error) {
	switch OrderCommand(command) {
	case OrderGetMenu:
		return h.orders.Catalog().Items(args.OptionalString("category")), nil

	case OrderParseItems:
		text, err := args.String("order_text")
		if err != nil {
			return nil, err
		}
		return h.orders.Catalog().ParseItems(text), nil

	case OrderCalculate:
		items, err := orderItems(args)
		if err != nil {
			return nil, err
		}
		return h.orders.Price(items, args.OptionalString("promo_code"))

	case OrderCreate:
		customerID, err := args.UUID("customer_id")
		if err != nil {
			return nil, err
		}
		conversationID, err := args.UUID("conversation_id")
		if err != nil {
			return nil, err
		}
		address, err := args.String("delivery_address")
		if err != nil {
			return nil, err
		}
		items, err := orderItems(args)
		if err != nil {
			return nil, err
		}
		return h.orders.Create(ctx, order.CreateParams{
			CustomerID:      customerID,
			ConversationID:  conversationID,
			Items:           items,
			DeliveryAddress: address,
			PromoCode:       args.OptionalString("promo_code"),
			Notes:           args.OptionalString("special_instructions"),
		})

	case OrderValidatePromo:
		code, err := args.String("promo_code")
		if err != nil {
			return nil, err
		}
		promo, ok := h.orders.Catalog().Promo(code)
		if !ok {
			return map[string]any{"valid": false}, nil
		}
		return map[string]any{"valid": true, "promo": promo}, nil

	case OrderUpdateStatus:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		statusRaw, err := args.String("status")
		if err != nil {
			return nil, err
		}
		status, err := enums.ParseOrderStatus(statusRaw)
		if err != nil {
			return nil, err
		}
		return h.orders.UpdateStatus(ctx, orderID, status)

	case OrderGet:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		return h.orders.Get(ctx, orderID)

	default:
		return nil, unknownCommand(h.handlerType, command)
	}
}

// orderItems decodes the items argument, tolerating JSON-decoded maps.
func orderItems(args Args) ([]order.Item, error) {
	raw, err := itemMaps(args, "items")
	if err != nil {
		return nil, err
	}
	items := make([]order.Item, 0, len(raw))
	for _, entry := range raw {
		item := order.Item{
			ItemID:   entry.OptionalString("item_id"),
			Name:     entry.OptionalString("name"),
			Quantity: entry.OptionalInt("quantity", 1),
		}
		if price, err := entry.Decimal("unit_price"); err == nil {
			item.UnitPrice = price
		}
		items = append(items, item)
	}
	return items, nil
}
