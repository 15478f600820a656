package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/retention-chat/internal/model"
)

// Send stores a user message, answers it, and presents an offer once the
// conversation is long enough and no offer is pending.
func (s *RetentionService) Send(ctx context.Context, req *model.SendMessageRequest) (*model.SendMessageResponse, error) {
	switch {
	case req.ConversationID == "":
		return nil, missingField("conversationId")
	case req.UserID == "":
		return nil, missingField("userId")
	case strings.TrimSpace(req.Message) == "":
		return nil, missingField("message")
	}

	// The generator runs without the lock held.
	var generated string
	if s.replies != nil {
		snapshot, err := s.activeSnapshot(req.UserID, req.ConversationID)
		if err != nil {
			return nil, err
		}
		generated = s.generate(ctx, snapshot, req.Message)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookupLocked(req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	conv := rec.conv
	if conv.Status != model.StatusActive {
		return nil, ErrConversationClosed
	}

	content := generated
	if content == "" {
		content = reply(req.Message, rec.turns)
	}

	msgType := req.MessageType
	if msgType == "" {
		msgType = model.MessageTypeText
	}

	now := s.now()
	userMsg := model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Content:        req.Message,
		Sender:         model.SenderUser,
		Timestamp:      now,
		Type:           msgType,
	}
	aiMsg := model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Content:        content,
		Sender:         model.SenderAI,
		Timestamp:      now,
		Type:           model.MessageTypeText,
	}
	rec.turns++

	var offer *model.RetentionOffer
	if rec.pending == "" && len(conv.Messages)+2 >= s.offerAfter {
		offer = s.presentLocked(conv)
		rec.pending = offer.ID
		rec.offerIDs = append(rec.offerIDs, offer.ID)
		aiMsg.Type = model.MessageTypeOffer
		aiMsg.Metadata = &model.MessageMetadata{OfferDetails: offer.Clone()}
	}
	conv.Messages = append(conv.Messages, userMsg, aiMsg)

	log := s.logger.WithConversation(conv.ID, conv.UserID)
	log.Debug("message stored", zap.Int("message_count", len(conv.Messages)))

	if offer != nil {
		s.sink.Track(model.EventOfferPresented, map[string]any{
			"conversationId": conv.ID,
			"offerId":        offer.ID,
			"offerType":      string(offer.Type),
		})
		log.Info("offer presented",
			zap.String("offer_id", offer.ID),
			zap.String("offer_type", string(offer.Type)),
		)
	}

	return &model.SendMessageResponse{
		Message:        aiMsg.Clone(),
		RetentionOffer: offer.Clone(),
	}, nil
}

func (s *RetentionService) activeSnapshot(userID, conversationID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.lookupLocked(userID, conversationID)
	if err != nil {
		return nil, err
	}
	if rec.conv.Status != model.StatusActive {
		return nil, ErrConversationClosed
	}
	return rec.conv.Clone(), nil
}

// presentLocked creates the next catalog offer for the conversation's reason.
func (s *RetentionService) presentLocked(conv *model.Conversation) *model.RetentionOffer {
	templates := offerCatalog[conv.CancellationReason]
	if len(templates) == 0 {
		templates = offerCatalog[model.ReasonOther]
	}
	n := s.rotation[conv.CancellationReason]
	s.rotation[conv.CancellationReason] = n + 1
	tpl := templates[n%len(templates)]

	offer := &model.RetentionOffer{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Type:        tpl.Type,
		Title:       tpl.Title,
		Description: tpl.Description,
		Details:     tpl.Details,
		Savings:     tpl.Savings,
		ExpiresAt:   s.now().Add(s.offerTTL),
		Terms:       append([]string(nil), standardTerms...),
	}
	offer.Details.Features = append([]string(nil), tpl.Details.Features...)

	s.offers[offer.ID] = &offerRecord{
		offer:          offer,
		conversationID: conv.ID,
		status:         model.OfferStatusPending,
	}
	return offer
}

// Respond applies the user's decision on a pending offer and completes the
// conversation.
func (s *RetentionService) Respond(ctx context.Context, req *model.OfferResponseRequest) (*model.OfferResponse, error) {
	switch {
	case req.ConversationID == "":
		return nil, missingField("conversationId")
	case req.UserID == "":
		return nil, missingField("userId")
	case req.OfferID == "":
		return nil, missingField("offerId")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.lookupLocked(req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	or, exists := s.offers[req.OfferID]
	if !exists || or.conversationID != req.ConversationID {
		return nil, ErrOfferNotFound
	}
	if or.status != model.OfferStatusPending || s.now().After(or.offer.ExpiresAt) {
		return nil, ErrOfferUnavailable
	}

	outcome := model.OutcomeRejected
	or.status = model.OfferStatusRejected
	event := model.EventOfferRejected
	if req.Accepted {
		outcome = model.OutcomeAccepted
		or.status = model.OfferStatusAccepted
		event = model.EventOfferAccepted
	}
	rec.pending = ""

	now := s.now()
	text, nextSteps := confirmation(or.offer, req.Accepted, rec.turns)
	conv := rec.conv
	conv.Messages = append(conv.Messages, model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		Content:        text,
		Sender:         model.SenderAI,
		Timestamp:      now,
		Type:           model.MessageTypeSystem,
	})
	conv.Complete(outcome, now)

	s.sink.Track(event, map[string]any{
		"conversationId": conv.ID,
		"offerId":        or.offer.ID,
		"savingsTotal":   or.offer.Savings.Total,
	})
	s.logger.WithConversation(conv.ID, conv.UserID).Info("offer decided",
		zap.String("offer_id", or.offer.ID),
		zap.String("outcome", string(outcome)),
	)

	return &model.OfferResponse{
		Outcome:             outcome,
		ConfirmationMessage: text,
		NextSteps:           nextSteps,
	}, nil
}
