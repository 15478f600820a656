package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancellationReason_Valid(t *testing.T) {
	for _, r := range Reasons {
		assert.True(t, r.Valid(), string(r))
	}
	assert.False(t, CancellationReason("bored").Valid())
	assert.False(t, CancellationReason("").Valid())
}

func TestInitialMessage_DecodesStringAndObject(t *testing.T) {
	var fromString StartConversationResponse
	require.NoError(t, json.Unmarshal([]byte(`{"conversationId":"c1","initialMessage":"Hi"}`), &fromString))
	assert.Equal(t, "c1", fromString.ConversationID)
	assert.Equal(t, "Hi", fromString.InitialMessage.Content)
	assert.Empty(t, fromString.InitialMessage.ID)

	var fromObject StartConversationResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"conversationId":"c2",
		"initialMessage":{"id":"m1","conversationId":"c2","content":"Hello","sender":"ai","type":"text"}
	}`), &fromObject))
	assert.Equal(t, "m1", fromObject.InitialMessage.ID)
	assert.Equal(t, SenderAI, fromObject.InitialMessage.Sender)
	assert.Equal(t, "Hello", fromObject.InitialMessage.Content)
}

func TestOutcome_NormalizesLegacyValues(t *testing.T) {
	tests := map[string]Outcome{
		`"retained"`:  OutcomeAccepted,
		`"accepted"`:  OutcomeAccepted,
		`"cancelled"`: OutcomeRejected,
		`"rejected"`:  OutcomeRejected,
		`"abandoned"`: OutcomeAbandoned,
	}
	for raw, want := range tests {
		var resp OfferResponse
		require.NoError(t, json.Unmarshal([]byte(`{"outcome":`+raw+`}`), &resp))
		assert.Equal(t, want, resp.Outcome, raw)
	}
}

func TestEnvelope_ErrorForms(t *testing.T) {
	var structured Envelope[OfferResponse]
	require.NoError(t, json.Unmarshal([]byte(`{"success":false,"error":{"message":"Offer is no longer available"}}`), &structured))
	require.NotNil(t, structured.Error)
	assert.Equal(t, "Offer is no longer available", structured.Error.Message)

	var bare Envelope[OfferResponse]
	require.NoError(t, json.Unmarshal([]byte(`{"error":"Conversation not found"}`), &bare))
	assert.False(t, bare.Success)
	require.NotNil(t, bare.Error)
	assert.Equal(t, "Conversation not found", bare.Error.Message)
}

func TestSendMessageResponse_CurrentOffer(t *testing.T) {
	var legacy SendMessageResponse
	require.NoError(t, json.Unmarshal([]byte(`{"message":{"id":"m"},"offer":{"id":"o1"}}`), &legacy))
	require.NotNil(t, legacy.CurrentOffer())
	assert.Equal(t, "o1", legacy.CurrentOffer().ID)

	var current SendMessageResponse
	require.NoError(t, json.Unmarshal([]byte(`{"message":{"id":"m"},"retentionOffer":{"id":"o2"}}`), &current))
	assert.Equal(t, "o2", current.CurrentOffer().ID)

	var none SendMessageResponse
	require.NoError(t, json.Unmarshal([]byte(`{"message":{"id":"m"}}`), &none))
	assert.Nil(t, none.CurrentOffer())
}

func TestConversation_CloneIsDeep(t *testing.T) {
	now := time.Now()
	offer := &RetentionOffer{ID: "o1", Terms: []string{"a"}}
	conv := &Conversation{
		ID: "c1",
		Messages: []Message{
			{ID: "m1", Content: "hi", Metadata: &MessageMetadata{OfferDetails: offer}},
		},
		CompletedAt: &now,
	}

	clone := conv.Clone()
	clone.Messages[0].Content = "changed"
	clone.Messages[0].Metadata.OfferDetails.Terms[0] = "changed"
	clone.Messages = append(clone.Messages, Message{ID: "m2"})
	*clone.CompletedAt = now.Add(time.Hour)

	assert.Equal(t, "hi", conv.Messages[0].Content)
	assert.Equal(t, "a", offer.Terms[0])
	assert.Len(t, conv.Messages, 1)
	assert.Equal(t, now, *conv.CompletedAt)
}

func TestConversation_Complete(t *testing.T) {
	conv := &Conversation{ID: "c1", Status: StatusActive}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	conv.Complete(OutcomeRejected, at)

	assert.Equal(t, StatusCompleted, conv.Status)
	assert.Equal(t, OutcomeRejected, conv.Outcome)
	require.NotNil(t, conv.CompletedAt)
	assert.Equal(t, at, *conv.CompletedAt)
}

func TestRetentionOffer_Expired(t *testing.T) {
	now := time.Now()
	offer := &RetentionOffer{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, offer.Expired(now))
	assert.True(t, offer.Expired(now.Add(time.Minute)))
}

func TestMessage_PendingNotOnWire(t *testing.T) {
	data, err := json.Marshal(Message{ID: "m1", Pending: true})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ending")
}

func TestConversation_PendingOffer(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	conv := &Conversation{Offers: []RetentionOffer{
		{ID: "o1", Status: OfferStatusRejected, ExpiresAt: now.Add(time.Hour)},
		{ID: "o2", Status: OfferStatusPending, ExpiresAt: now.Add(time.Hour)},
		{ID: "o3", Status: OfferStatusPending, ExpiresAt: now.Add(-time.Hour)},
	}}

	got := conv.PendingOffer(now)
	require.NotNil(t, got)
	assert.Equal(t, "o2", got.ID)

	got.Title = "changed"
	assert.Empty(t, conv.Offers[1].Title)

	assert.Nil(t, (&Conversation{}).PendingOffer(now))
}

func TestOfferResponse_LegacyConfirmationMessage(t *testing.T) {
	var resp OfferResponse
	require.NoError(t, json.Unmarshal([]byte(`{"outcome":"retained","message":{"id":"m9","sender":"ai","content":"Welcome back!"}}`), &resp))

	assert.Equal(t, OutcomeAccepted, resp.Outcome)
	assert.Equal(t, "Welcome back!", resp.Confirmation())

	resp.ConfirmationMessage = "Thanks"
	assert.Equal(t, "Thanks", resp.Confirmation())
}
