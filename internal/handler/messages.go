package handler

import (
	"net/http"

	"github.com/capitalize-ai/retention-chat/internal/middleware"
	"github.com/capitalize-ai/retention-chat/internal/model"
	"github.com/capitalize-ai/retention-chat/internal/service"
	"github.com/capitalize-ai/retention-chat/pkg/logger"
)

// MessageHandler handles message and offer endpoints.
type MessageHandler struct {
	service *service.RetentionService
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *service.RetentionService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: svc,
		logger:  log,
	}
}

// Send handles POST /api/v1/conversations/message
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	if !bindUser(w, r, &req.UserID) {
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Send(r.Context(), &req)
	if err != nil {
		status, message := serviceError(err)
		logFailure(h.logger, r, "send message", status, err)
		writeError(w, status, message)
		return
	}

	writeData(w, resp)
}

// Offer handles POST /api/v1/conversations/offer
func (h *MessageHandler) Offer(w http.ResponseWriter, r *http.Request) {
	var req model.OfferResponseRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	if !bindUser(w, r, &req.UserID) {
		return
	}

	resp, err := h.service.Respond(r.Context(), &req)
	if err != nil {
		status, message := serviceError(err)
		logFailure(h.logger, r, "respond to offer", status, err)
		writeError(w, status, message)
		return
	}

	writeData(w, resp)
}
