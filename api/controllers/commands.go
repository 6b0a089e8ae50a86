package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/platefulhq/plateful-backend/api/responses"
	"github.com/platefulhq/plateful-backend/api/validators"
	"github.com/platefulhq/plateful-backend/internal/handler"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
)

type executeCommandRequest struct {
	Args map[string]any `json:"args"`
}

// ExecuteCommand exposes the specialists' operational commands directly,
// for operator tooling and integrations.
func ExecuteCommand(pipeline *handler.Pipeline, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handlerType, err := enums.ParseHandlerType(chi.URLParam(r, "handler"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown handler"))
			return
		}
		command := chi.URLParam(r, "command")

		var req executeCommandRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := pipeline.Execute(r.Context(), handlerType, command, handler.Args(req.Args))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
