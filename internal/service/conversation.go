// Package service provides the business logic of the scripted retention
// conversation service.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/retention-chat/internal/model"
	"github.com/capitalize-ai/retention-chat/internal/telemetry"
	"github.com/capitalize-ai/retention-chat/pkg/logger"
)

var (
	// ErrConversationNotFound is returned for unknown conversations and for
	// conversations owned by another user.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrOfferNotFound is returned for unknown offers and for offers that
	// belong to another conversation.
	ErrOfferNotFound = errors.New("offer not found")
	// ErrOfferUnavailable is returned when an offer was already decided.
	ErrOfferUnavailable = errors.New("offer is no longer available")
	// ErrConversationClosed is returned for messages sent to a completed
	// conversation.
	ErrConversationClosed = errors.New("conversation is already completed")
)

// ValidationError reports a malformed request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func missingField(field string) error {
	return &ValidationError{Field: field, Message: "Missing required field: " + field}
}

type offerRecord struct {
	offer          *model.RetentionOffer
	conversationID string
	status         model.OfferStatus
}

type conversationRecord struct {
	conv     *model.Conversation
	turns    int
	pending  string
	offerIDs []string
}

// Option configures a RetentionService.
type Option func(*RetentionService)

// WithOfferAfter sets the message count from which an offer is presented.
func WithOfferAfter(n int) Option {
	return func(s *RetentionService) {
		if n > 0 {
			s.offerAfter = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *RetentionService) { s.now = now }
}

// RetentionService runs scripted retention conversations in memory.
type RetentionService struct {
	sink       telemetry.Sink
	logger     *logger.Logger
	now        func() time.Time
	offerAfter int
	offerTTL   time.Duration

	replies      ReplyGenerator
	replyTimeout time.Duration

	// In-memory storage (would be replaced with a database in production)
	conversations map[string]*conversationRecord
	offers        map[string]*offerRecord
	rotation      map[model.CancellationReason]int
	mu            sync.RWMutex
}

// NewRetentionService creates a new retention service. Server-side lifecycle
// events go to sink, which may be nil.
func NewRetentionService(sink telemetry.Sink, log *logger.Logger, opts ...Option) *RetentionService {
	if sink == nil {
		sink = telemetry.Nop
	}
	s := &RetentionService{
		sink:          sink,
		logger:        log.Named("service"),
		now:           time.Now,
		offerAfter:    4,
		offerTTL:      7 * 24 * time.Hour,
		replyTimeout:  defaultReplyTimeout,
		conversations: make(map[string]*conversationRecord),
		offers:        make(map[string]*offerRecord),
		rotation:      make(map[model.CancellationReason]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a conversation and returns it with its greeting.
func (s *RetentionService) Start(ctx context.Context, req *model.StartConversationRequest) (*model.StartConversationResponse, error) {
	switch {
	case req.UserID == "":
		return nil, missingField("userId")
	case req.SubscriptionID == "":
		return nil, missingField("subscriptionId")
	case req.CancellationReason == "":
		return nil, missingField("cancellationReason")
	case !req.CancellationReason.Valid():
		return nil, &ValidationError{
			Field:   "cancellationReason",
			Message: fmt.Sprintf("Invalid cancellation reason: %s", req.CancellationReason),
		}
	case req.CancellationReason == model.ReasonOther && req.ReasonText == "":
		return nil, missingField("reasonText")
	}

	now := s.now()
	conv := &model.Conversation{
		ID:                 uuid.Must(uuid.NewV7()).String(),
		UserID:             req.UserID,
		SubscriptionID:     req.SubscriptionID,
		Status:             model.StatusActive,
		CancellationReason: req.CancellationReason,
		ReasonText:         req.ReasonText,
		StartedAt:          now,
	}
	first := model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Content:        greeting(req.CancellationReason, req.ReasonText),
		Sender:         model.SenderAI,
		Timestamp:      now,
		Type:           model.MessageTypeText,
	}
	conv.Messages = []model.Message{first}

	s.mu.Lock()
	s.conversations[conv.ID] = &conversationRecord{conv: conv}
	s.mu.Unlock()

	s.sink.Track(model.EventConversationStarted, map[string]any{
		"conversationId": conv.ID,
		"userId":         conv.UserID,
		"reason":         string(conv.CancellationReason),
	})
	s.logger.WithConversation(conv.ID, conv.UserID).Info("conversation created",
		zap.String("reason", string(conv.CancellationReason)),
	)

	resp := &model.StartConversationResponse{
		ConversationID: conv.ID,
		UserContext:    userContext(req, now),
	}
	resp.InitialMessage.Message = first
	return resp, nil
}

// Get retrieves a conversation owned by userID.
func (s *RetentionService) Get(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.lookupLocked(userID, conversationID)
	if err != nil {
		return nil, err
	}

	conv := rec.conv.Clone()
	conv.Offers = make([]model.RetentionOffer, 0, len(rec.offerIDs))
	for _, id := range rec.offerIDs {
		or := s.offers[id]
		offer := or.offer.Clone()
		offer.Status = or.status
		conv.Offers = append(conv.Offers, *offer)
	}
	return conv, nil
}

// lookupLocked returns the conversation if it exists and belongs to userID.
func (s *RetentionService) lookupLocked(userID, conversationID string) (*conversationRecord, error) {
	rec, exists := s.conversations[conversationID]
	if !exists || rec.conv.UserID != userID {
		return nil, ErrConversationNotFound
	}
	return rec, nil
}

// userContext describes the account for the widget. The stub has no billing
// system, so the figures are fixed.
func userContext(req *model.StartConversationRequest, now time.Time) *model.UserContext {
	return &model.UserContext{
		Subscription: model.Subscription{
			ID:        req.SubscriptionID,
			Plan:      "pro",
			Price:     29.99,
			Currency:  "USD",
			Status:    "active",
			StartedAt: now.AddDate(-1, 0, 0),
		},
		User: model.User{
			ID:          req.UserID,
			MemberSince: now.AddDate(-1, 0, 0),
		},
	}
}
