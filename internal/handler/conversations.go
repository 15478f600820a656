// Package handler provides HTTP handlers for the conversation service.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/retention-chat/internal/middleware"
	"github.com/capitalize-ai/retention-chat/internal/model"
	"github.com/capitalize-ai/retention-chat/internal/service"
	"github.com/capitalize-ai/retention-chat/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.RetentionService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.RetentionService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Start handles POST /api/v1/conversations/start
func (h *ConversationHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.StartConversationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	if !bindUser(w, r, &req.UserID) {
		return
	}
	if req.SubscriptionID == "" {
		req.SubscriptionID = middleware.GetSubscriptionID(ctx)
	}
	if err := middleware.ValidateReasonText(req.ReasonText); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Start(ctx, &req)
	if err != nil {
		h.fail(w, r, "start conversation", err)
		return
	}

	writeData(w, resp)
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.Get(ctx, middleware.GetUserID(ctx), conversationID)
	if err != nil {
		h.fail(w, r, "get conversation", err)
		return
	}

	writeData(w, conv)
}

func (h *ConversationHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, message := serviceError(err)
	logFailure(h.logger, r, op, status, err)
	writeError(w, status, message)
}

// bindUser fills an empty body userId from the token and rejects a body that
// names a different user.
func bindUser(w http.ResponseWriter, r *http.Request, userID *string) bool {
	tokenUser := middleware.GetUserID(r.Context())
	switch {
	case *userID == "":
		*userID = tokenUser
	case *userID != tokenUser:
		writeError(w, http.StatusForbidden, "userId does not match the authenticated user")
		return false
	}
	return true
}

func logFailure(log *logger.Logger, r *http.Request, op string, status int, err error) {
	fields := []zap.Field{
		zap.String("operation", op),
		zap.Int("status", status),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
		return
	}
	log.Warn("request rejected", fields...)
}
