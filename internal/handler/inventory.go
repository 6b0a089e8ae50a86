package handler

import (
	"context"
	"time"

	"github.com/platefulhq/plateful-backend/internal/inventory"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/genai"
)

const inventorySystem = `You are the inventory specialist for a cloud kitchen.
Check item availability, reserve stock for confirmed orders, and suggest
in-stock substitutes from the same category when something runs out.`

// InventoryCommand enumerates the inventory specialist's commands.
type InventoryCommand string

const (
	InventoryCheckAvailability InventoryCommand = "check_availability"
	InventoryReserve           InventoryCommand = "reserve_items"
	InventoryRelease           InventoryCommand = "release_reservation"
	InventorySubstitutes       InventoryCommand = "suggest_substitutes"
	InventoryAdjustStock       InventoryCommand = "update_stock"
	InventoryLowStock          InventoryCommand = "get_low_stock_items"
)

// InventoryHandler answers stock questions and manages reservations.
type InventoryHandler struct {
	responder
	engine *inventory.Engine
}

func NewInventoryHandler(gen genai.Generator, engine *inventory.Engine, historySize int) *InventoryHandler {
	return &InventoryHandler{
		responder: responder{
			handlerType: enums.HandlerInventory,
			system:      inventorySystem,
			gen:         gen,
			historySize: historySize,
		},
		engine: engine,
	}
}

func (h *InventoryHandler) Execute(ctx context.Context, command string, args Args) (any, error) {
	switch InventoryCommand(command) {
	case InventoryCheckAvailability:
		itemID, err := args.String("item_id")
		if err != nil {
			return nil, err
		}
		return h.engine.CheckAvailability(ctx, itemID, int64(args.OptionalInt("quantity", 1)))

	case InventoryReserve:
		itemID, err := args.String("item_id")
		if err != nil {
			return nil, err
		}
		quantity, err := args.Int("quantity")
		if err != nil {
			return nil, err
		}
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		ttl := time.Duration(args.OptionalInt("ttl_seconds", 0)) * time.Second
		return h.engine.Reserve(ctx, itemID, int64(quantity), orderID, ttl)

	case InventoryRelease:
		reservationID, err := args.UUID("reservation_id")
		if err != nil {
			return nil, err
		}
		if err := h.engine.Release(ctx, reservationID); err != nil {
			return nil, err
		}
		return map[string]any{"released": true}, nil

	case InventorySubstitutes:
		itemID, err := args.String("item_id")
		if err != nil {
			return nil, err
		}
		return h.engine.Substitutes(ctx, itemID, args.OptionalInt("limit", 0))

	case InventoryAdjustStock:
		itemID, err := args.String("item_id")
		if err != nil {
			return nil, err
		}
		delta, err := args.Int("delta")
		if err != nil {
			return nil, err
		}
		stock, err := h.engine.AdjustStock(ctx, itemID, int64(delta))
		if err != nil {
			return nil, err
		}
		return map[string]any{"item_id": itemID, "stock": stock}, nil

	case InventoryLowStock:
		return h.engine.LowStock(ctx)

	default:
		return nil, unknownCommand(h.handlerType, command)
	}
}
