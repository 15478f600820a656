package model

import (
	"time"
)

// EventType names a conversation lifecycle event.
type EventType string

const (
	EventChatOpened            EventType = "chat_opened"
	EventChatClosed            EventType = "chat_closed"
	EventConversationStarted   EventType = "conversation_started"
	EventMessageSent           EventType = "message_sent"
	EventOfferPresented        EventType = "offer_presented"
	EventOfferAccepted         EventType = "offer_accepted"
	EventOfferRejected         EventType = "offer_rejected"
	EventConversationAbandoned EventType = "conversation_abandoned"
	EventChatError             EventType = "chat_error"
)

// ConversationEvent is a lifecycle event as delivered to an analytics
// collector.
type ConversationEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	ConversationID string         `json:"conversationId,omitempty"`
	Properties     map[string]any `json:"properties,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}
