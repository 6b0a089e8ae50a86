package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/api/responses"
	"github.com/platefulhq/plateful-backend/api/validators"
	"github.com/platefulhq/plateful-backend/internal/inventory"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
)

type reserveRequest struct {
	ItemID     string    `json:"item_id" validate:"required"`
	Quantity   int64     `json:"quantity" validate:"required,min=1"`
	OrderID    uuid.UUID `json:"order_id" validate:"required"`
	TTLSeconds int       `json:"ttl_seconds,omitempty" validate:"omitempty,min=1"`
}

type adjustStockRequest struct {
	Delta int64 `json:"delta" validate:"required"`
}

func CheckAvailability(engine *inventory.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := r.URL.Query().Get("item_id")
		if itemID == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "item_id query parameter is required"))
			return
		}
		quantity := int64(1)
		if raw := r.URL.Query().Get("quantity"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed < 1 {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "quantity must be a positive integer"))
				return
			}
			quantity = parsed
		}

		availability, err := engine.CheckAvailability(r.Context(), itemID, quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}

func ReserveStock(engine *inventory.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reserveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reservation, err := engine.Reserve(r.Context(), req.ItemID, req.Quantity, req.OrderID,
			time.Duration(req.TTLSeconds)*time.Second)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, reservation)
	}
}

func ReleaseReservation(engine *inventory.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, err := pathUUID(r, "reservationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := engine.Release(r.Context(), reservationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"reservation_id": reservationID, "released": true})
	}
}

func SuggestSubstitutes(engine *inventory.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := r.URL.Query().Get("item_id")
		if itemID == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "item_id query parameter is required"))
			return
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, _ = strconv.Atoi(raw)
		}

		substitutes, err := engine.Substitutes(r.Context(), itemID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, substitutes)
	}
}

func AdjustStock(engine *inventory.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID := chi.URLParam(r, "itemID")
		var req adjustStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stock, err := engine.AdjustStock(r.Context(), itemID, req.Delta)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"item_id": itemID, "stock": stock})
	}
}

func LowStock(engine *inventory.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := engine.LowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}
