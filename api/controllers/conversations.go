package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/api/responses"
	"github.com/platefulhq/plateful-backend/api/validators"
	"github.com/platefulhq/plateful-backend/internal/conversation"
	"github.com/platefulhq/plateful-backend/internal/handler"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/logger"
)

type startConversationRequest struct {
	CustomerID *uuid.UUID `json:"customer_id,omitempty"`
}

type sendMessageRequest struct {
	Message string `json:"message" validate:"required,min=1,max=4000"`
}

func StartConversation(conversations *conversation.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startConversationRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		conv, err := conversations.Create(r.Context(), req.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, conv)
	}
}

func SendMessage(pipeline *handler.Pipeline, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID, err := pathUUID(r, "conversationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req sendMessageRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := pipeline.ProcessMessage(r.Context(), conversationID, req.Message)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ConversationStatus(conversations *conversation.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID, err := pathUUID(r, "conversationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := conversations.Status(r.Context(), conversationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func EndConversation(conversations *conversation.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversationID, err := pathUUID(r, "conversationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := conversations.End(r.Context(), conversationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"conversation_id": conversationID, "ended": true})
	}
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, param+" must be a UUID")
	}
	return id, nil
}
