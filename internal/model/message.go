package model

import (
	"time"
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// MessageType classifies a message.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeOffer  MessageType = "offer"
	MessageTypeSystem MessageType = "system"
)

// MessageMetadata carries optional message attachments.
type MessageMetadata struct {
	OfferDetails *RetentionOffer `json:"offerDetails,omitempty"`
}

// Message represents a conversation message.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversationId"`
	Content        string           `json:"content"`
	Sender         Sender           `json:"sender"`
	Timestamp      time.Time        `json:"timestamp"`
	Type           MessageType      `json:"type"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`

	// Pending marks a locally appended message the service has not
	// acknowledged yet. Never sent on the wire.
	Pending bool `json:"-"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	if m.Metadata != nil {
		md := *m.Metadata
		md.OfferDetails = md.OfferDetails.Clone()
		m.Metadata = &md
	}
	return m
}

// SendMessageRequest is the request to send a user message.
type SendMessageRequest struct {
	ConversationID string      `json:"conversationId"`
	UserID         string      `json:"userId,omitempty"`
	Message        string      `json:"message"`
	MessageType    MessageType `json:"messageType"`
}

// SendMessageResponse is the reply to a user message.
type SendMessageResponse struct {
	Message        Message         `json:"message"`
	RetentionOffer *RetentionOffer `json:"retentionOffer,omitempty"`

	// Offer is the older field name for RetentionOffer.
	Offer *RetentionOffer `json:"offer,omitempty"`
}

// CurrentOffer returns whichever offer field the service populated.
func (r *SendMessageResponse) CurrentOffer() *RetentionOffer {
	if r.RetentionOffer != nil {
		return r.RetentionOffer
	}
	return r.Offer
}
