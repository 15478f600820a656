package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxMessageLength bounds a single user message in bytes.
const MaxMessageLength = 4000

// ValidateMessageContent validates message content.
func ValidateMessageContent(content string) error {
	if len(content) == 0 {
		return errors.New("message cannot be empty")
	}
	if len(content) > MaxMessageLength {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidateReasonText validates the free-text cancellation reason.
func ValidateReasonText(text string) error {
	if len(text) > 1000 {
		return errors.New("reasonText exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("reasonText must be valid UTF-8")
	}
	return nil
}

// ValidateID validates a conversation or offer ID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid ID format")
	}
	return nil
}
