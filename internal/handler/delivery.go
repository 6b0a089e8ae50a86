package handler

import (
	"context"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/internal/dispatch"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/genai"
	"github.com/platefulhq/plateful-backend/pkg/geo"
)

const deliverySystem = `You are the delivery specialist for a cloud kitchen.
Track deliveries, share driver details and ETAs, and take reports of delivery
problems. When no driver is free, tell the customer the expected wait.`

// DeliveryCommand enumerates the delivery specialist's commands.
type DeliveryCommand string

const (
	DeliveryAvailableDrivers DeliveryCommand = "get_available_drivers"
	DeliveryAssign           DeliveryCommand = "assign_delivery"
	DeliveryUpdateDriver     DeliveryCommand = "update_driver_status"
	DeliveryDriverLocation   DeliveryCommand = "get_driver_location"
	DeliveryGetEta           DeliveryCommand = "get_delivery_eta"
	DeliveryReportIssue      DeliveryCommand = "report_delivery_issue"
)

// DeliveryHandler manages driver assignment and delivery tracking.
type DeliveryHandler struct {
	responder
	engine *dispatch.Engine
}

func NewDeliveryHandler(gen genai.Generator, engine *dispatch.Engine, historySize int) *DeliveryHandler {
	return &DeliveryHandler{
		responder: responder{
			handlerType: enums.HandlerDelivery,
			system:      deliverySystem,
			gen:         gen,
			historySize: historySize,
		},
		engine: engine,
	}
}

func (h *DeliveryHandler) Execute(ctx context.Context, command string, args Args) (any, error) {
	switch DeliveryCommand(command) {
	case DeliveryAvailableDrivers:
		origin := geo.Location{}
		if lat, err := args.Decimal("lat"); err == nil {
			origin.Lat, _ = lat.Float64()
		}
		if lng, err := args.Decimal("lng"); err == nil {
			origin.Lng, _ = lng.Float64()
		}
		return h.engine.AvailableDrivers(ctx, origin)

	case DeliveryAssign:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		address, err := args.String("delivery_address")
		if err != nil {
			return nil, err
		}
		var driverID *uuid.UUID
		if raw := args.OptionalString("driver_id"); raw != "" {
			parsed, err := args.UUID("driver_id")
			if err != nil {
				return nil, err
			}
			driverID = &parsed
		}
		return h.engine.Assign(ctx, orderID, address, driverID)

	case DeliveryUpdateDriver:
		driverID, err := args.UUID("driver_id")
		if err != nil {
			return nil, err
		}
		statusRaw, err := args.String("status")
		if err != nil {
			return nil, err
		}
		var location *geo.Location
		if lat, latErr := args.Decimal("lat"); latErr == nil {
			if lng, lngErr := args.Decimal("lng"); lngErr == nil {
				loc := geo.Location{}
				loc.Lat, _ = lat.Float64()
				loc.Lng, _ = lng.Float64()
				location = &loc
			}
		}
		if err := h.engine.UpdateDriverStatus(ctx, driverID, enums.DriverStatus(statusRaw), location); err != nil {
			return nil, err
		}
		return map[string]any{"driver_id": driverID, "status": statusRaw}, nil

	case DeliveryDriverLocation:
		driverID, err := args.UUID("driver_id")
		if err != nil {
			return nil, err
		}
		driver, err := h.engine.GetDriver(ctx, driverID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"driver_id": driver.ID,
			"name":      driver.Name,
			"status":    driver.Status,
			"location":  driver.Location,
		}, nil

	case DeliveryGetEta:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		return h.engine.GetEta(ctx, orderID)

	case DeliveryReportIssue:
		orderID, err := args.UUID("order_id")
		if err != nil {
			return nil, err
		}
		issueType, err := args.String("issue_type")
		if err != nil {
			return nil, err
		}
		return h.engine.ReportIssue(ctx, orderID, issueType, args.OptionalString("description"))

	default:
		return nil, unknownCommand(h.handlerType, command)
	}
}
