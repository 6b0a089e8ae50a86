package handler

import (
	"context"

	"github.com/platefulhq/plateful-backend/internal/kitchen"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/genai"
)

const kitchenSystem = `You are the kitchen specialist for a cloud kitchen.
Give customers honest prep time estimates, report where their order sits in
the queue, and flag delays before the customer has to ask.`

// KitchenCommand enumerates the kitchen specialist's commands.
type KitchenCommand string

const (
	KitchenEstimatePrep KitchenCommand = "estimate_prep_time"
	KitchenQueueOrder   KitchenCommand = "queue_order"
	KitchenUpdateStatus KitchenCommand = "update_order_status"
	KitchenGetEta       KitchenCommand = "get_order_eta"
	KitchenPrioritize   KitchenCommand = "prioritize_order"
	KitchenQueueStatus  KitchenCommand = "get_queue_status"
)

// KitchenHandler tracks orders through preparation.
type KitchenHandler struct {
	responder
	queue *kitchen.Queue
}

func NewKitchenHandler(gen genai.Generator, queue *kitchen.Queue, historySize int) *KitchenHandler {
	return &KitchenHandler{
		responder: responder{
			handlerType: enums.HandlerKitchen,
			system:      kitchenSystem,
			gen:         gen,
			historySize: historySize,
		},
		queue: queue,
	}
}

func (h *KitchenHandler) Execute(ctx context.Context, command string, args Args) (any, error) {
	switch KitchenCommand(command) {
	case KitchenEstimatePrep:
		items, err := kitchenItems(args)
		if err != nil {
			return nil, err
		}
		minutes, err := h.queue.EstimatePrepTime(ctx, items)
		if err != nil {
			return nil, err
		}
		return map[string]any{"estimated_minutes": minutes}, nil

	case KitchenQueueOrder:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		items, err := kitchenItems(args)
		if err != nil {
			return nil, err
		}
		return h.queue.Enqueue(ctx, orderID, items, args.OptionalInt("priority", 0))

	case KitchenUpdateStatus:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		statusRaw, err := args.String("status")
		if err != nil {
			return nil, err
		}
		if err := h.queue.UpdateStatus(ctx, orderID, enums.TicketStatus(statusRaw)); err != nil {
			return nil, err
		}
		return map[string]any{"order_id": orderID, "status": statusRaw}, nil

	case KitchenGetEta:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		return h.queue.GetEta(ctx, orderID)

	case KitchenPrioritize:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		reason, err := args.String("reason")
		if err != nil {
			return nil, err
		}
		if err := h.queue.Prioritize(ctx, orderID, reason); err != nil {
			return nil, err
		}
		return map[string]any{"order_id": orderID, "prioritized": true}, nil

	case KitchenQueueStatus:
		return h.queue.Status(ctx)

	default:
		return nil, unknownCommand(h.handlerType, command)
	}
}

func kitchenItems(args Args) ([]kitchen.Item, error) {
	raw, err := itemMaps(args, "items")
	if err != nil {
		return nil, err
	}
	items := make([]kitchen.Item, 0, len(raw))
	for _, entry := range raw {
		item := kitchen.Item{
			ItemID:   entry.OptionalString("item_id"),
			Category: entry.OptionalString("category"),
			Quantity: entry.OptionalInt("quantity", 1),
		}
		if customizations, ok := entry["customizations"].([]any); ok {
			for _, c := range customizations {
				if s, ok := c.(string); ok {
					item.Customizations = append(item.Customizations, s)
				}
			}
		} else if customizations, ok := entry["customizations"].([]string); ok {
			item.Customizations = customizations
		}
		items = append(items, item)
	}
	return items, nil
}
