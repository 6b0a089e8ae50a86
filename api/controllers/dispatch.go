package controllers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/api/responses"
	"github.com/platefulhq/plateful-backend/api/validators"
	"github.com/platefulhq/plateful-backend/internal/dispatch"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/geo"
	"github.com/platefulhq/plateful-backend/pkg/logger"
)

type assignDeliveryRequest struct {
	DeliveryAddress string     `json:"delivery_address" validate:"required,min=1"`
	DriverID        *uuid.UUID `json:"driver_id,omitempty"`
}

type updateDriverStatusRequest struct {
	Status   string        `json:"status" validate:"required"`
	Location *geo.Location `json:"location,omitempty"`
}

type reportIssueRequest struct {
	IssueType   string `json:"issue_type" validate:"required,min=1"`
	Description string `json:"description" validate:"required,min=1"`
}

func AvailableDrivers(engine *dispatch.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := engine.Restaurant()
		if rawLat := r.URL.Query().Get("lat"); rawLat != "" {
			lat, latErr := strconv.ParseFloat(rawLat, 64)
			lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
			if latErr != nil || lngErr != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "lat and lng must both be valid coordinates"))
				return
			}
			origin = geo.Location{Lat: lat, Lng: lng}
		}

		drivers, err := engine.AvailableDrivers(r.Context(), origin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, drivers)
	}
}

func AssignDelivery(engine *dispatch.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req assignDeliveryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := engine.Assign(r.Context(), orderID, req.DeliveryAddress, req.DriverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !result.Success {
			responses.WriteSuccess(w, result)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func DriverLocation(engine *dispatch.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driverID, err := pathUUID(r, "driverID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		driver, err := engine.GetDriver(r.Context(), driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, driver)
	}
}

func UpdateDriverStatus(engine *dispatch.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driverID, err := pathUUID(r, "driverID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateDriverStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseDriverStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid driver status"))
			return
		}

		if err := engine.UpdateDriverStatus(r.Context(), driverID, status, req.Location); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"driver_id": driverID, "status": status})
	}
}

func DeliveryEta(engine *dispatch.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eta, err := engine.GetEta(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, eta)
	}
}

func ReportDeliveryIssue(engine *dispatch.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reportIssueRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		issue, err := engine.ReportIssue(r.Context(), orderID, req.IssueType, req.Description)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, issue)
	}
}

func DeliveryIssue(engine *dispatch.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticketID, err := pathUUID(r, "ticketID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		issue, err := engine.GetIssue(r.Context(), ticketID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, issue)
	}
}
