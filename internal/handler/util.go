package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/capitalize-ai/retention-chat/internal/model"
	"github.com/capitalize-ai/retention-chat/internal/service"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeData writes a successful envelope.
func writeData[T any](w http.ResponseWriter, data T) {
	writeJSON(w, http.StatusOK, model.OK(data))
}

// writeError writes a failed envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.Fail(message))
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// serviceError maps a service error to its status code and user-facing text.
func serviceError(err error) (int, string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, service.ErrConversationNotFound):
		return http.StatusNotFound, "Conversation not found"
	case errors.Is(err, service.ErrOfferNotFound):
		return http.StatusNotFound, "Offer not found"
	case errors.Is(err, service.ErrOfferUnavailable):
		return http.StatusBadRequest, "Offer is no longer available"
	case errors.Is(err, service.ErrConversationClosed):
		return http.StatusConflict, "This conversation has already ended"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
