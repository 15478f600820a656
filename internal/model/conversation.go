// Package model defines data structures for the retention chat.
package model

import (
	"time"
)

// CancellationReason is the reason a user gives for cancelling.
type CancellationReason string

const (
	ReasonTooExpensive     CancellationReason = "too_expensive"
	ReasonNotUsing         CancellationReason = "not_using"
	ReasonTechnicalIssues  CancellationReason = "technical_issues"
	ReasonFoundAlternative CancellationReason = "found_alternative"
	ReasonOther            CancellationReason = "other"
)

// Reasons lists every valid cancellation reason in display order.
var Reasons = []CancellationReason{
	ReasonTooExpensive,
	ReasonNotUsing,
	ReasonTechnicalIssues,
	ReasonFoundAlternative,
	ReasonOther,
}

// Valid reports whether r is a known cancellation reason.
func (r CancellationReason) Valid() bool {
	for _, known := range Reasons {
		if r == known {
			return true
		}
	}
	return false
}

// Status is the lifecycle status of a conversation.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Outcome is the final disposition of a conversation.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeAccepted  Outcome = "accepted"
	OutcomeRejected  Outcome = "rejected"
	OutcomeAbandoned Outcome = "abandoned"
)

// NormalizeOutcome maps legacy service values onto the canonical outcomes.
func NormalizeOutcome(s string) Outcome {
	switch s {
	case "accepted", "retained":
		return OutcomeAccepted
	case "rejected", "cancelled", "canceled":
		return OutcomeRejected
	case "abandoned":
		return OutcomeAbandoned
	default:
		return Outcome(s)
	}
}

// Conversation represents one retention dialogue tied to a single
// cancellation attempt.
//
// Outcome is set if and only if Status is completed, and CompletedAt is set
// if and only if Outcome is set.
type Conversation struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"userId"`
	SubscriptionID     string             `json:"subscriptionId"`
	Status             Status             `json:"status"`
	Outcome            Outcome            `json:"outcome,omitempty"`
	CancellationReason CancellationReason `json:"cancellationReason"`
	ReasonText         string             `json:"reasonText,omitempty"`
	Messages           []Message          `json:"messages"`
	Offers             []RetentionOffer   `json:"offers,omitempty"`
	StartedAt          time.Time          `json:"startedAt"`
	CompletedAt        *time.Time         `json:"completedAt,omitempty"`
}

// Complete marks the conversation completed with the given outcome.
func (c *Conversation) Complete(outcome Outcome, at time.Time) {
	c.Status = StatusCompleted
	c.Outcome = outcome
	c.CompletedAt = &at
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	if c.CompletedAt != nil {
		at := *c.CompletedAt
		out.CompletedAt = &at
	}
	out.Messages = make([]Message, len(c.Messages))
	for i := range c.Messages {
		out.Messages[i] = c.Messages[i].Clone()
	}
	if c.Offers != nil {
		out.Offers = make([]RetentionOffer, len(c.Offers))
		for i := range c.Offers {
			out.Offers[i] = *c.Offers[i].Clone()
		}
	}
	return &out
}

// PendingOffer returns the most recently listed offer that is still awaiting
// a decision and has not expired, or nil.
func (c *Conversation) PendingOffer(now time.Time) *RetentionOffer {
	for i := len(c.Offers) - 1; i >= 0; i-- {
		o := &c.Offers[i]
		if o.Status == OfferStatusPending && !o.Expired(now) {
			return o.Clone()
		}
	}
	return nil
}

// Subscription describes the subscription being cancelled.
type Subscription struct {
	ID        string    `json:"id"`
	Plan      string    `json:"plan"`
	Price     float64   `json:"price"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// User describes the customer.
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	MemberSince time.Time `json:"memberSince"`
}

// UserContext is the account context returned when a conversation starts.
type UserContext struct {
	Subscription Subscription `json:"subscription"`
	User         User         `json:"user"`
}

// Completion records how a conversation ended. It is emitted at most once per
// conversation.
type Completion struct {
	ConversationID string          `json:"conversationId"`
	Outcome        Outcome         `json:"outcome"`
	Offer          *RetentionOffer `json:"offer,omitempty"`
	MessageCount   int             `json:"messageCount"`
	At             time.Time       `json:"at"`
}
