package chat

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/retention-chat/internal/model"
	"github.com/capitalize-ai/retention-chat/internal/transport"
	"github.com/capitalize-ai/retention-chat/pkg/metrics"
)

// Action names used in logs, events and metrics.
const (
	actionStart   = "start_conversation"
	actionSend    = "send_message"
	actionAccept  = "accept_offer"
	actionReject  = "reject_offer"
	actionRefresh = "refresh"
)

// OpenChat opens the widget. Opening an open widget changes nothing.
func (c *Controller) OpenChat() {
	c.mu.Lock()
	if c.state.IsOpen {
		c.mu.Unlock()
		return
	}
	c.state.IsOpen = true
	if c.state.Conversation == nil && !c.state.IsLoading {
		c.state.Step = model.StepInitial
	}
	c.track(model.EventChatOpened, map[string]any{
		"userId":         c.userID,
		"subscriptionId": c.subscriptionID,
	})
	c.mu.Unlock()

	c.notify("")
}

// CloseChat closes the widget and drops the conversation. An unfinished
// conversation is reported as abandoned first. Any request in flight is
// canceled and its response ignored.
func (c *Controller) CloseChat() {
	c.mu.Lock()
	wasOpen := c.state.IsOpen
	hadState := c.state.Conversation != nil || c.state.IsLoading || c.state.Error != "" || c.state.Step != model.StepInitial

	c.abandonLocked()
	c.invalidateLocked()

	c.state = model.ChatState{Step: model.StepInitial}
	c.seq = 0
	c.reported = false

	if wasOpen {
		c.track(model.EventChatClosed, map[string]any{
			"userId": c.userID,
		})
	}
	c.mu.Unlock()

	if wasOpen || hadState {
		c.notify("")
	}
}

// StartConversation opens a new conversation for a cancellation reason. Any
// prior conversation is discarded; an unfinished one is reported as
// abandoned. reasonText is expected to be non-empty when reason is other.
func (c *Controller) StartConversation(ctx context.Context, reason model.CancellationReason, reasonText string) error {
	if !reason.Valid() {
		return c.reject(actionStart, ErrInvalidReason)
	}

	c.mu.Lock()
	if c.state.IsLoading {
		c.mu.Unlock()
		return c.reject(actionStart, ErrBusy)
	}

	c.abandonLocked()
	c.invalidateLocked()
	c.state.Conversation = nil
	c.state.CurrentOffer = nil
	c.state.Step = model.StepChatting
	c.seq = 0
	c.reported = false

	t, rctx := c.beginLocked(ctx)
	defer t.cancel()
	c.mu.Unlock()
	c.notify("")

	resp, err := c.transport.InitiateChat(rctx, &model.StartConversationRequest{
		UserID:             c.userID,
		SubscriptionID:     c.subscriptionID,
		CancellationReason: reason,
		ReasonText:         reasonText,
	})

	c.mu.Lock()
	if !c.settleLocked(t) {
		c.mu.Unlock()
		return c.discard(actionStart, t)
	}

	if err != nil {
		message := transport.Message(err)
		c.state.Step = model.StepError
		c.failLocked(actionStart, err, message)
		c.mu.Unlock()
		c.notify(message)
		return err
	}

	now := c.now()
	conv := &model.Conversation{
		ID:                 resp.ConversationID,
		UserID:             c.userID,
		SubscriptionID:     c.subscriptionID,
		Status:             model.StatusActive,
		CancellationReason: reason,
		ReasonText:         reasonText,
		StartedAt:          now,
	}
	c.state.Conversation = conv
	conv.Messages = append(conv.Messages, c.aiMessageLocked(resp.InitialMessage.Message, now))

	metrics.ConversationsTotal.WithLabelValues(string(reason)).Inc()
	metrics.MessagesTotal.WithLabelValues(string(model.SenderAI)).Inc()
	c.track(model.EventConversationStarted, map[string]any{
		"conversationId": conv.ID,
		"userId":         c.userID,
		"subscriptionId": c.subscriptionID,
		"reason":         string(reason),
	})
	c.logger.WithConversation(conv.ID, c.userID).Info("conversation started",
		zap.String("reason", string(reason)),
	)
	c.mu.Unlock()

	c.notify("")
	return nil
}

// SendMessage appends the user's message to the transcript immediately and
// sends it to the service. On failure the message stays in the transcript,
// still marked pending; it is never removed.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return c.reject(actionSend, ErrEmptyMessage)
	}

	c.mu.Lock()
	if err := c.checkActiveLocked(); err != nil {
		c.mu.Unlock()
		return c.reject(actionSend, err)
	}

	conv := c.state.Conversation
	now := c.now()
	userMsg := model.Message{
		ID:             c.nextIDLocked(model.SenderUser),
		ConversationID: conv.ID,
		Content:        text,
		Sender:         model.SenderUser,
		Timestamp:      now,
		Type:           model.MessageTypeText,
		Pending:        true,
	}
	conv.Messages = append(conv.Messages, userMsg)

	t, rctx := c.beginLocked(ctx)
	defer t.cancel()
	c.mu.Unlock()
	c.notify("")

	resp, err := c.transport.SendMessage(rctx, &model.SendMessageRequest{
		ConversationID: conv.ID,
		UserID:         c.userID,
		Message:        text,
		MessageType:    model.MessageTypeText,
	})

	c.mu.Lock()
	if !c.settleLocked(t) {
		c.mu.Unlock()
		return c.discard(actionSend, t)
	}

	if err != nil {
		message := transport.Message(err)
		c.failLocked(actionSend, err, message)
		c.mu.Unlock()
		c.notify(message)
		return err
	}

	conv = c.state.Conversation
	for i := range conv.Messages {
		if conv.Messages[i].ID == userMsg.ID {
			conv.Messages[i].Pending = false
			break
		}
	}

	reply := c.aiMessageLocked(resp.Message, c.now())
	offer := resp.CurrentOffer()
	if offer == nil && reply.Metadata != nil {
		offer = reply.Metadata.OfferDetails
	}
	if offer != nil {
		reply.Type = model.MessageTypeOffer
		reply.Metadata = &model.MessageMetadata{OfferDetails: offer.Clone()}
	}
	conv.Messages = append(conv.Messages, reply)

	metrics.MessagesTotal.WithLabelValues(string(model.SenderUser)).Inc()
	metrics.MessagesTotal.WithLabelValues(string(model.SenderAI)).Inc()
	c.track(model.EventMessageSent, map[string]any{
		"conversationId": conv.ID,
		"messageCount":   len(conv.Messages),
		"hasOffer":       offer != nil,
	})

	if offer != nil {
		c.presentOfferLocked(offer)
	}
	c.mu.Unlock()

	c.notify("")
	return nil
}

// AcceptOffer accepts the current offer and completes the conversation.
func (c *Controller) AcceptOffer(ctx context.Context) error {
	return c.respond(ctx, true)
}

// RejectOffer rejects the current offer and completes the conversation.
func (c *Controller) RejectOffer(ctx context.Context) error {
	return c.respond(ctx, false)
}

func (c *Controller) respond(ctx context.Context, accepted bool) error {
	action := actionReject
	if accepted {
		action = actionAccept
	}

	c.mu.Lock()
	if err := c.checkActiveLocked(); err != nil {
		c.mu.Unlock()
		return c.reject(action, err)
	}
	if c.state.CurrentOffer == nil {
		c.mu.Unlock()
		return c.reject(action, ErrNoOffer)
	}

	conv := c.state.Conversation
	offer := c.state.CurrentOffer.Clone()

	t, rctx := c.beginLocked(ctx)
	defer t.cancel()
	c.mu.Unlock()
	c.notify("")

	resp, err := c.transport.RespondToOffer(rctx, &model.OfferResponseRequest{
		ConversationID: conv.ID,
		UserID:         c.userID,
		OfferID:        offer.ID,
		Accepted:       accepted,
	})

	c.mu.Lock()
	if !c.settleLocked(t) {
		c.mu.Unlock()
		return c.discard(action, t)
	}

	if err != nil {
		message := transport.Message(err)
		c.failLocked(action, err, message)
		c.mu.Unlock()
		c.notify(message)
		return err
	}

	outcome := resp.Outcome
	if outcome != model.OutcomeAccepted && outcome != model.OutcomeRejected {
		outcome = model.OutcomeRejected
		if accepted {
			outcome = model.OutcomeAccepted
		}
	}

	now := c.now()
	conv = c.state.Conversation
	if text := resp.Confirmation(); text != "" {
		conv.Messages = append(conv.Messages, c.aiMessageLocked(model.Message{
			Content: text,
			Type:    model.MessageTypeSystem,
		}, now))
	}
	conv.Complete(outcome, now)
	c.state.Step = model.StepCompleted

	event := model.EventOfferRejected
	if outcome == model.OutcomeAccepted {
		event = model.EventOfferAccepted
	}
	c.track(event, map[string]any{
		"conversationId": conv.ID,
		"offerId":        offer.ID,
		"offerType":      string(offer.Type),
		"savingsMonthly": offer.Savings.Monthly,
		"savingsTotal":   offer.Savings.Total,
		"currency":       offer.Savings.Currency,
		"messageCount":   len(conv.Messages),
	})
	c.publishLocked(model.Completion{
		ConversationID: conv.ID,
		Outcome:        outcome,
		Offer:          offer,
		MessageCount:   len(conv.Messages),
		At:             now,
	})
	c.logger.WithConversation(conv.ID, c.userID).Info("offer decided",
		zap.String("offer_id", offer.ID),
		zap.String("outcome", string(outcome)),
	)
	c.mu.Unlock()

	c.notify("")
	return nil
}

// ClearError dismisses the current error message.
func (c *Controller) ClearError() {
	c.mu.Lock()
	if c.state.Error == "" {
		c.mu.Unlock()
		return
	}
	c.state.Error = ""
	c.mu.Unlock()

	c.notify("")
}

// Refresh reconciles the transcript with the service's copy. The local
// transcript only grows: messages the service holds that the widget lacks are
// appended, and a pending message the service did receive is marked
// delivered. A pending offer the service lists is restored when the widget
// has lost it. A completed conversation is not refreshed.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if err := c.checkActiveLocked(); err != nil {
		c.mu.Unlock()
		return c.reject(actionRefresh, err)
	}
	conv := c.state.Conversation

	t, rctx := c.beginLocked(ctx)
	defer t.cancel()
	c.mu.Unlock()
	c.notify("")

	remote, err := c.transport.GetConversation(rctx, conv.ID)

	c.mu.Lock()
	if !c.settleLocked(t) {
		c.mu.Unlock()
		return c.discard(actionRefresh, t)
	}

	if err != nil {
		message := transport.Message(err)
		c.failLocked(actionRefresh, err, message)
		c.mu.Unlock()
		c.notify(message)
		return err
	}

	conv = c.state.Conversation
	conv.Messages = mergeTranscript(conv.ID, remote.Messages, conv.Messages)
	if offer := remote.PendingOffer(c.now()); offer != nil &&
		(c.state.CurrentOffer == nil || c.state.CurrentOffer.ID != offer.ID) {
		c.presentOfferLocked(offer)
	}
	c.mu.Unlock()

	c.notify("")
	return nil
}

// checkActiveLocked enforces the preconditions shared by actions that change
// a live conversation.
func (c *Controller) checkActiveLocked() error {
	switch {
	case c.state.Conversation == nil:
		return ErrNoConversation
	case c.state.Step == model.StepCompleted || c.state.Conversation.Status != model.StatusActive:
		return ErrConversationCompleted
	case c.state.IsLoading:
		return ErrBusy
	}
	return nil
}

// presentOfferLocked makes offer the current offer, replacing any prior one.
func (c *Controller) presentOfferLocked(offer *model.RetentionOffer) {
	c.state.CurrentOffer = offer.Clone()
	c.state.Step = model.StepOfferPresented

	metrics.OffersPresented.WithLabelValues(string(offer.Type)).Inc()
	c.track(model.EventOfferPresented, map[string]any{
		"conversationId": c.conversationIDLocked(),
		"offerId":        offer.ID,
		"offerType":      string(offer.Type),
		"title":          offer.Title,
		"savingsMonthly": offer.Savings.Monthly,
		"savingsTotal":   offer.Savings.Total,
		"currency":       offer.Savings.Currency,
		"expiresAt":      offer.ExpiresAt,
	})
}

// aiMessageLocked fills in whatever the service left out of an AI message
// and ties it to the live conversation.
func (c *Controller) aiMessageLocked(m model.Message, now time.Time) model.Message {
	m = m.Clone()
	if m.ID == "" {
		m.ID = c.nextIDLocked(model.SenderAI)
	}
	m.ConversationID = c.conversationIDLocked()
	m.Sender = model.SenderAI
	if m.Type == "" {
		m.Type = model.MessageTypeText
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	m.Pending = false
	return m
}

// mergeTranscript returns local with the service's transcript folded in.
// Local messages are never dropped or reordered.
//
// Delivered local messages are aligned with remote in order, matching by id
// or by sender and content. A pending user message is then looked for only
// between the remote positions of its delivered neighbours, so it is never
// confused with a delivered message of the same text. Remote messages left
// unmatched are appended in service order.
func mergeTranscript(conversationID string, remote, local []model.Message) []model.Message {
	out := make([]model.Message, len(local), len(local)+len(remote))
	for i := range local {
		out[i] = local[i].Clone()
	}
	matched := make([]bool, len(remote))

	// pos[i] is the remote index aligned with out[i], or -1.
	pos := make([]int, len(out))
	cursor := 0
	for i := range out {
		pos[i] = -1
		if out[i].Pending {
			continue
		}
		for k := cursor; k < len(remote); k++ {
			if sameMessage(out[i], remote[k]) {
				matched[k] = true
				pos[i] = k
				cursor = k + 1
				break
			}
		}
	}

	lo := 0
	for i := range out {
		if pos[i] >= 0 {
			lo = pos[i] + 1
			continue
		}
		if !out[i].Pending || out[i].Sender != model.SenderUser {
			continue
		}
		hi := len(remote)
		for j := i + 1; j < len(out); j++ {
			if pos[j] >= 0 {
				hi = pos[j]
				break
			}
		}
		for k := lo; k < hi; k++ {
			if !matched[k] && remote[k].Sender == model.SenderUser && remote[k].Content == out[i].Content {
				matched[k] = true
				lo = k + 1
				if remote[k].ID != "" {
					out[i].ID = remote[k].ID
				}
				out[i].Pending = false
				break
			}
		}
	}

	for k, m := range remote {
		if matched[k] {
			continue
		}
		m = m.Clone()
		m.ConversationID = conversationID
		m.Pending = false
		out = append(out, m)
	}
	return out
}

func sameMessage(local, remote model.Message) bool {
	if local.ID != "" && local.ID == remote.ID {
		return true
	}
	return local.Sender == remote.Sender && local.Content == remote.Content
}
