package model

import (
	"bytes"
	"encoding/json"
)

// StartConversationRequest opens a retention conversation.
type StartConversationRequest struct {
	UserID             string             `json:"userId"`
	SubscriptionID     string             `json:"subscriptionId"`
	CancellationReason CancellationReason `json:"cancellationReason"`
	ReasonText         string             `json:"reasonText"`
}

// StartConversationResponse is the service's answer to a start request.
type StartConversationResponse struct {
	ConversationID string         `json:"conversationId"`
	InitialMessage InitialMessage `json:"initialMessage"`
	UserContext    *UserContext   `json:"userContext,omitempty"`
}

// InitialMessage is the greeting that seeds a conversation. The service may
// send it as plain text or as a full message object.
type InitialMessage struct {
	Message
}

// UnmarshalJSON decodes either a JSON string or a message object.
func (m *InitialMessage) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		return json.Unmarshal(data, &m.Message.Content)
	}
	return json.Unmarshal(data, &m.Message)
}

// MarshalJSON encodes the greeting as a full message object.
func (m InitialMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Message)
}

// UnmarshalJSON normalizes legacy outcome values.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = NormalizeOutcome(s)
	return nil
}
