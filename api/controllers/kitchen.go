package controllers

import (
	"net/http"

	"github.com/platefulhq/plateful-backend/api/responses"
	"github.com/platefulhq/plateful-backend/api/validators"
	"github.com/platefulhq/plateful-backend/internal/kitchen"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
)

type queueOrderRequest struct {
	Items []kitchen.Item `json:"items" validate:"required,min=1,dive"`
	// 1 is normal priority; lower values jump the queue.
	Priority int `json:"priority,omitempty" validate:"omitempty,min=0"`
}

type estimatePrepRequest struct {
	Items []kitchen.Item `json:"items" validate:"required,min=1,dive"`
}

type updateTicketStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type prioritizeRequest struct {
	Reason string `json:"reason" validate:"required,min=1"`
}

func QueueOrder(queue *kitchen.Queue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req queueOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		priority := req.Priority
		if priority == 0 {
			priority = 1
		}

		result, err := queue.Enqueue(r.Context(), orderID, req.Items, priority)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func EstimatePrepTime(queue *kitchen.Queue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req estimatePrepRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		minutes, err := queue.EstimatePrepTime(r.Context(), req.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"estimated_prep_time_minutes": minutes})
	}
}

func UpdateTicketStatus(queue *kitchen.Queue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateTicketStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseTicketStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ticket status"))
			return
		}

		if err := queue.UpdateStatus(r.Context(), orderID, status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order_id": orderID, "status": status})
	}
}

func OrderEta(queue *kitchen.Queue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eta, err := queue.GetEta(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, eta)
	}
}

func PrioritizeOrder(queue *kitchen.Queue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req prioritizeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := queue.Prioritize(r.Context(), orderID, req.Reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order_id": orderID, "prioritized": true})
	}
}

func KitchenStatus(queue *kitchen.Queue, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := queue.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
