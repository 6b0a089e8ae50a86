package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/platefulhq/plateful-backend/api/responses"
	"github.com/platefulhq/plateful-backend/api/validators"
	"github.com/platefulhq/plateful-backend/internal/support"
	"github.com/platefulhq/plateful-backend/pkg/logger"
)

type issueRefundRequest struct {
	CustomerID uuid.UUID       `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	Reason     string          `json:"reason" validate:"required,min=1"`
}

type applyCreditRequest struct {
	CustomerID uuid.UUID       `json:"customer_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	Reason     string          `json:"reason" validate:"required,min=1"`
}

type createTicketRequest struct {
	OrderID    uuid.UUID `json:"order_id" validate:"required"`
	CustomerID uuid.UUID `json:"customer_id" validate:"required"`
	Category   string    `json:"category" validate:"required,min=1"`
	Details    string    `json:"details" validate:"required,min=1"`
}

type escalateRequest struct {
	Reason  string         `json:"reason" validate:"required,min=1"`
	Context map[string]any `json:"context,omitempty"`
}

type applyResolutionRequest struct {
	Category     string          `json:"issue_category" validate:"required,min=1"`
	OrderID      uuid.UUID       `json:"order_id" validate:"required"`
	CustomerID   uuid.UUID       `json:"customer_id" validate:"required"`
	OrderTotal   decimal.Decimal `json:"order_total" validate:"required"`
	DelayMinutes int             `json:"delay_minutes,omitempty" validate:"omitempty,min=0"`
}

func OrderTimeline(svc *support.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		timeline, err := svc.OrderTimeline(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, timeline)
	}
}

func IssueRefund(svc *support.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req issueRefundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.IssueRefund(r.Context(), orderID, req.CustomerID, req.Amount, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func ApplyCredit(svc *support.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req applyCreditRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		credit, err := svc.ApplyCredit(r.Context(), req.CustomerID, req.Amount, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, credit)
	}
}

func CreateTicket(svc *support.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTicketRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ticket, err := svc.CreateTicket(r.Context(), req.OrderID, req.CustomerID, req.Category, req.Details)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ticket)
	}
}

func EscalateOrder(svc *support.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req escalateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		escalation, err := svc.Escalate(r.Context(), orderID, req.Reason, req.Context)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, escalation)
	}
}

func CustomerHistory(svc *support.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := pathUUID(r, "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customer, err := svc.CustomerHistory(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customer)
	}
}

func ApplyResolution(svc *support.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req applyResolutionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resolution, err := svc.ApplyResolution(r.Context(), req.Category, req.OrderID, req.CustomerID,
			req.OrderTotal, req.DelayMinutes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolution)
	}
}
