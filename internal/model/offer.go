package model

import (
	"time"
)

// OfferType is the kind of concession in a retention offer.
type OfferType string

const (
	OfferDiscount          OfferType = "discount"
	OfferPlanDowngrade     OfferType = "plan_downgrade"
	OfferFreeMonths        OfferType = "free_months"
	OfferFeatureUnlock     OfferType = "feature_unlock"
	OfferPauseSubscription OfferType = "pause_subscription"
)

// OfferStatus tracks whether the user has decided on an offer.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
)

// OfferDetails holds type-specific offer terms. Only the fields relevant to
// the offer type are meaningful.
type OfferDetails struct {
	DiscountPercentage     float64  `json:"discountPercentage,omitempty"`
	DiscountDurationMonths int      `json:"discountDurationMonths,omitempty"`
	OriginalPrice          float64  `json:"originalPrice,omitempty"`
	NewPlan                string   `json:"newPlan,omitempty"`
	NewPrice               float64  `json:"newPrice,omitempty"`
	FreeMonths             int      `json:"freeMonths,omitempty"`
	Features               []string `json:"features,omitempty"`
	PauseDurationMonths    int      `json:"pauseDurationMonths,omitempty"`
}

// Savings summarizes what the user saves by accepting.
type Savings struct {
	Monthly  float64 `json:"monthly"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

// RetentionOffer is a concession proposed to prevent cancellation.
type RetentionOffer struct {
	ID          string       `json:"id"`
	Type        OfferType    `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Details     OfferDetails `json:"details"`
	Savings     Savings      `json:"savings"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	Terms       []string     `json:"terms"`
	// Status is only filled in when offers are listed with a conversation.
	Status OfferStatus `json:"status,omitempty"`
}

// Expired reports whether the offer has expired at now.
func (o *RetentionOffer) Expired(now time.Time) bool {
	return !o.ExpiresAt.After(now)
}

// Clone returns a deep copy of the offer.
func (o *RetentionOffer) Clone() *RetentionOffer {
	if o == nil {
		return nil
	}
	out := *o
	out.Terms = append([]string(nil), o.Terms...)
	out.Details.Features = append([]string(nil), o.Details.Features...)
	return &out
}

// OfferResponseRequest is the request to accept or reject an offer.
type OfferResponseRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId,omitempty"`
	OfferID        string `json:"offerId"`
	Accepted       bool   `json:"accepted"`
}

// OfferResponse is the service's answer to an offer decision. Older
// services send the confirmation as a full message instead of text.
type OfferResponse struct {
	Outcome             Outcome  `json:"outcome"`
	ConfirmationMessage string   `json:"confirmationMessage"`
	NextSteps           []string `json:"nextSteps,omitempty"`
	Message             *Message `json:"message,omitempty"`
}

// Confirmation returns the confirmation text in either form.
func (r *OfferResponse) Confirmation() string {
	if r.ConfirmationMessage != "" || r.Message == nil {
		return r.ConfirmationMessage
	}
	return r.Message.Content
}
