package transport

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a transport failure.
type Kind string

const (
	KindTimeout  Kind = "timeout"
	KindNetwork  Kind = "network"
	KindServer   Kind = "server"
	KindDecode   Kind = "decode"
	KindCanceled Kind = "canceled"
	// KindRequest is a local failure before anything was sent, such as a
	// token that could not be minted.
	KindRequest  Kind = "request"
)

// Error is the normalized failure of a conversation service call. Its Error
// method returns text suitable for showing to the user.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message returns the user-facing text for any error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}

// IsKind reports whether err is a transport error of kind k.
func IsKind(err error, k Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == k
}

func timeoutError(op string, timeout time.Duration, err error) *Error {
	timeout = timeout.Round(time.Millisecond)
	return &Error{
		Kind:    KindTimeout,
		Op:      op,
		Message: fmt.Sprintf("The request timed out after %s. Please try again.", timeout),
		Err:     err,
	}
}

// prepareError marks a failure that happened before the request left the
// process.
type prepareError struct {
	stage string
	err   error
}

func (e *prepareError) Error() string {
	return e.stage + ": " + e.err.Error()
}

func (e *prepareError) Unwrap() error {
	return e.err
}

func requestError(op string, pe *prepareError) *Error {
	message := "The request could not be prepared. Please try again."
	if pe.stage == stageToken {
		message = "Could not sign in to the conversation service. Please try again later."
	}
	return &Error{
		Kind:    KindRequest,
		Op:      op,
		Message: message,
		Err:     pe.err,
	}
}

func networkError(op string, err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Op:      op,
		Message: "Unable to reach the conversation service. Please check your connection and try again.",
		Err:     err,
	}
}

func canceledError(op string, err error) *Error {
	return &Error{
		Kind:    KindCanceled,
		Op:      op,
		Message: "The request was canceled.",
		Err:     err,
	}
}

// serverError prefers the service's own message when it sent one.
func serverError(op string, status int, message string) *Error {
	if message == "" {
		if status >= 200 && status < 300 {
			message = "The conversation service could not complete the request."
		} else {
			message = fmt.Sprintf("The conversation service returned an error (HTTP %d %s).", status, http.StatusText(status))
		}
	}
	return &Error{
		Kind:    KindServer,
		Op:      op,
		Status:  status,
		Message: message,
	}
}

func decodeError(op string, status int, err error) *Error {
	return &Error{
		Kind:    KindDecode,
		Op:      op,
		Status:  status,
		Message: "Received an invalid response from the conversation service.",
		Err:     err,
	}
}
