package model

import (
	"encoding/json"
)

// APIError is the error body of a failed envelope.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// UnmarshalJSON accepts both {"message": "..."} and a bare string.
func (e *APIError) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Message = s
		return nil
	}
	type plain APIError
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = APIError(p)
	return nil
}

// Envelope is the response wrapper used by every conversation service
// operation.
type Envelope[T any] struct {
	Success bool      `json:"success"`
	Data    *T        `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// OK wraps data in a successful envelope.
func OK[T any](data T) Envelope[T] {
	return Envelope[T]{Success: true, Data: &data}
}

// Fail builds a failed envelope.
func Fail(message string) Envelope[struct{}] {
	return Envelope[struct{}]{Error: &APIError{Message: message}}
}
