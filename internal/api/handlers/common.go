package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/volunteerhub/feed-bff/internal/downstream"
	"github.com/volunteerhub/feed-bff/internal/feed"
	"github.com/volunteerhub/feed-bff/internal/optimistic"
	"github.com/volunteerhub/feed-bff/middleware"
)

// APIError is the unified error body.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// Envelope wraps every response. Failed writes carry both the error and the
// rolled-back feed.
type Envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, Envelope{Data: data})
}

func sendError(w http.ResponseWriter, r *http.Request, code string, message string, status int) {
	sendErrorWithData(w, r, code, message, status, nil)
}

func sendErrorWithData(w http.ResponseWriter, r *http.Request, code, message string, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, Envelope{
		Data: data,
		Error: &APIError{
			Code:      code,
			Message:   message,
			RequestID: middleware.GetRequestID(r.Context()),
		},
	})
}

// outcomeStatus maps a write outcome to its HTTP status and error code.
func outcomeStatus(kind optimistic.Kind) (int, string) {
	switch kind {
	case optimistic.KindNone:
		return http.StatusOK, ""
	case optimistic.KindValidation:
		return http.StatusBadRequest, "validation_failed"
	case optimistic.KindForbidden:
		return http.StatusForbidden, "forbidden"
	case optimistic.KindPending:
		return http.StatusConflict, "pending_sync"
	case optimistic.KindNotFound:
		return http.StatusNotFound, "resource_not_found"
	case optimistic.KindRejected:
		return http.StatusUnprocessableEntity, "moderation_rejected"
	default:
		return http.StatusBadGateway, "upstream_unavailable"
	}
}

// handleDownstreamError answers a failed feed read.
func handleDownstreamError(w http.ResponseWriter, r *http.Request, err error, data any) {
	var se *downstream.StatusError
	switch {
	case errors.Is(err, downstream.ErrNotFound), errors.Is(err, feed.ErrPostNotFound):
		sendErrorWithData(w, r, "resource_not_found", err.Error(), http.StatusNotFound, data)
	case errors.Is(err, downstream.ErrTimeout):
		sendErrorWithData(w, r, "upstream_timeout", "backend timeout", http.StatusGatewayTimeout, data)
	case errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError:
		sendErrorWithData(w, r, "upstream_rejected", downstream.FailureMessage(err), se.StatusCode, data)
	default:
		sendErrorWithData(w, r, "upstream_unavailable", downstream.FailureMessage(err), http.StatusBadGateway, data)
	}
}
