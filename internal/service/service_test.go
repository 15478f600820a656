package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/retention-chat/internal/model"
	"github.com/capitalize-ai/retention-chat/internal/telemetry/telemetrytest"
	"github.com/capitalize-ai/retention-chat/pkg/logger"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T, opts ...Option) (*RetentionService, *telemetrytest.Recorder, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	rec := &telemetrytest.Recorder{}
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	return NewRetentionService(rec, logger.NewNop(), opts...), rec, clk
}

func start(t *testing.T, s *RetentionService, reason model.CancellationReason) *model.StartConversationResponse {
	t.Helper()
	resp, err := s.Start(context.Background(), &model.StartConversationRequest{
		UserID:             "u1",
		SubscriptionID:     "s1",
		CancellationReason: reason,
		ReasonText:         "text",
	})
	require.NoError(t, err)
	return resp
}

func send(t *testing.T, s *RetentionService, convID, text string) *model.SendMessageResponse {
	t.Helper()
	resp, err := s.Send(context.Background(), &model.SendMessageRequest{
		ConversationID: convID,
		UserID:         "u1",
		Message:        text,
	})
	require.NoError(t, err)
	return resp
}

func TestStart_Validation(t *testing.T) {
	s, _, _ := newTestService(t)

	tests := []struct {
		name  string
		req   model.StartConversationRequest
		field string
	}{
		{"missing user", model.StartConversationRequest{SubscriptionID: "s1", CancellationReason: model.ReasonNotUsing}, "userId"},
		{"missing subscription", model.StartConversationRequest{UserID: "u1", CancellationReason: model.ReasonNotUsing}, "subscriptionId"},
		{"missing reason", model.StartConversationRequest{UserID: "u1", SubscriptionID: "s1"}, "cancellationReason"},
		{"unknown reason", model.StartConversationRequest{UserID: "u1", SubscriptionID: "s1", CancellationReason: "bored"}, "cancellationReason"},
		{"other without text", model.StartConversationRequest{UserID: "u1", SubscriptionID: "s1", CancellationReason: model.ReasonOther}, "reasonText"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Start(context.Background(), &tt.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestStart_Greeting(t *testing.T) {
	s, events, _ := newTestService(t)

	resp := start(t, s, model.ReasonTooExpensive)
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, model.SenderAI, resp.InitialMessage.Sender)
	assert.Contains(t, resp.InitialMessage.Content, "cost is a concern")
	require.NotNil(t, resp.UserContext)
	assert.Equal(t, "s1", resp.UserContext.Subscription.ID)
	assert.Equal(t, 1, events.Count(model.EventConversationStarted))

	other, err := s.Start(context.Background(), &model.StartConversationRequest{
		UserID: "u1", SubscriptionID: "s1", CancellationReason: model.ReasonOther, ReasonText: "moving abroad",
	})
	require.NoError(t, err)
	assert.Contains(t, other.InitialMessage.Content, "moving abroad")
}

func TestSend_KeywordReplies(t *testing.T) {
	s, _, _ := newTestService(t, WithOfferAfter(100))
	conv := start(t, s, model.ReasonNotUsing)

	assert.Contains(t, send(t, s, conv.ConversationID, "It's too EXPENSIVE").Message.Content, "budget")
	assert.Contains(t, send(t, s, conv.ConversationID, "found a bug").Message.Content, "frustrating")
	assert.Contains(t, send(t, s, conv.ConversationID, "hello").Message.Content, "works for you")
}

func TestSend_PresentsOfferAfterThreshold(t *testing.T) {
	s, events, clk := newTestService(t)
	conv := start(t, s, model.ReasonTooExpensive)

	first := send(t, s, conv.ConversationID, "too expensive")
	assert.Nil(t, first.RetentionOffer, "three messages is below the threshold")

	second := send(t, s, conv.ConversationID, "still too expensive")
	offer := second.RetentionOffer
	require.NotNil(t, offer)
	assert.Equal(t, "50% Off for 3 Months", offer.Title)
	assert.Equal(t, clk.now.Add(7*24*time.Hour), offer.ExpiresAt)
	assert.Len(t, offer.Terms, 3)
	assert.Equal(t, model.MessageTypeOffer, second.Message.Type)
	require.NotNil(t, second.Message.Metadata)
	assert.Equal(t, offer.ID, second.Message.Metadata.OfferDetails.ID)
	assert.Equal(t, 1, events.Count(model.EventOfferPresented))

	// A pending offer is not replaced.
	third := send(t, s, conv.ConversationID, "hmm")
	assert.Nil(t, third.RetentionOffer)

	got, err := s.Get(context.Background(), "u1", conv.ConversationID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 7)
	require.Len(t, got.Offers, 1)
	assert.Equal(t, offer.ID, got.Offers[0].ID)
	assert.Equal(t, model.OfferStatusPending, got.Offers[0].Status)
	assert.Equal(t, offer.ID, got.PendingOffer(clk.now).ID)
}

func TestSend_RotatesCatalog(t *testing.T) {
	s, _, _ := newTestService(t, WithOfferAfter(1))

	a := send(t, s, start(t, s, model.ReasonNotUsing).ConversationID, "x").RetentionOffer
	b := send(t, s, start(t, s, model.ReasonNotUsing).ConversationID, "x").RetentionOffer
	c := send(t, s, start(t, s, model.ReasonNotUsing).ConversationID, "x").RetentionOffer

	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, model.OfferPauseSubscription, a.Type)
	assert.Equal(t, model.OfferDiscount, b.Type)
	assert.Equal(t, a.Title, c.Title)
}

func TestSend_Ownership(t *testing.T) {
	s, _, _ := newTestService(t)
	conv := start(t, s, model.ReasonNotUsing)

	_, err := s.Send(context.Background(), &model.SendMessageRequest{
		ConversationID: conv.ConversationID,
		UserID:         "intruder",
		Message:        "hi",
	})
	assert.ErrorIs(t, err, ErrConversationNotFound)

	_, err = s.Get(context.Background(), "intruder", conv.ConversationID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestRespond(t *testing.T) {
	s, events, _ := newTestService(t, WithOfferAfter(1))
	conv := start(t, s, model.ReasonTooExpensive)
	offer := send(t, s, conv.ConversationID, "too expensive").RetentionOffer
	require.NotNil(t, offer)

	req := &model.OfferResponseRequest{
		ConversationID: conv.ConversationID,
		UserID:         "u1",
		OfferID:        offer.ID,
		Accepted:       true,
	}
	resp, err := s.Respond(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAccepted, resp.Outcome)
	assert.Contains(t, resp.ConfirmationMessage, "50% off for 3 months")
	assert.NotEmpty(t, resp.NextSteps)
	assert.Equal(t, 1, events.Count(model.EventOfferAccepted))

	got, err := s.Get(context.Background(), "u1", conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, model.OutcomeAccepted, got.Outcome)
	assert.NotNil(t, got.CompletedAt)
	require.Len(t, got.Offers, 1)
	assert.Equal(t, model.OfferStatusAccepted, got.Offers[0].Status)
	assert.Nil(t, got.PendingOffer(time.Now()))

	_, err = s.Respond(context.Background(), req)
	assert.ErrorIs(t, err, ErrOfferUnavailable)

	_, err = s.Send(context.Background(), &model.SendMessageRequest{
		ConversationID: conv.ConversationID, UserID: "u1", Message: "one more thing",
	})
	assert.ErrorIs(t, err, ErrConversationClosed)
}

func TestRespond_Errors(t *testing.T) {
	s, _, clk := newTestService(t, WithOfferAfter(1))
	a := start(t, s, model.ReasonNotUsing)
	b := start(t, s, model.ReasonNotUsing)
	offer := send(t, s, a.ConversationID, "x").RetentionOffer
	require.NotNil(t, offer)

	_, err := s.Respond(context.Background(), &model.OfferResponseRequest{
		ConversationID: b.ConversationID, UserID: "u1", OfferID: offer.ID,
	})
	assert.ErrorIs(t, err, ErrOfferNotFound)

	_, err = s.Respond(context.Background(), &model.OfferResponseRequest{
		ConversationID: a.ConversationID, UserID: "u1", OfferID: "nope",
	})
	assert.ErrorIs(t, err, ErrOfferNotFound)

	clk.now = clk.now.Add(8 * 24 * time.Hour)
	_, err = s.Respond(context.Background(), &model.OfferResponseRequest{
		ConversationID: a.ConversationID, UserID: "u1", OfferID: offer.ID,
	})
	assert.ErrorIs(t, err, ErrOfferUnavailable)
}
