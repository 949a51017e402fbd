// Package upstream classifies failures returned by the generative text and
// speech providers so callers can decide between retrying and giving up.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

// Kind tells whether a failed call may succeed when repeated.
type Kind string

const (
	Transient Kind = "transient"
	Terminal  Kind = "terminal"
)

// Error is a provider failure that has already been classified.
type Error struct {
	Provider   string
	StatusCode int
	Kind       Kind
	Detail     string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Provider
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// NewStatusError builds an Error from an HTTP status code and response body.
func NewStatusError(provider string, statusCode int, detail string) *Error {
	return &Error{
		Provider:   provider,
		StatusCode: statusCode,
		Kind:       ClassifyStatus(statusCode),
		Detail:     truncate(detail, 512),
	}
}

// NewTransportError wraps a failure that happened before a response arrived.
func NewTransportError(provider string, err error) *Error {
	kind := Transient
	if errors.Is(err, context.Canceled) {
		kind = Terminal
	}
	return &Error{Provider: provider, Kind: kind, Err: err}
}

// NewTerminalError marks a failure that must not be retried, such as a bad
// request detected locally or a content policy rejection.
func NewTerminalError(provider, detail string, err error) *Error {
	return &Error{Provider: provider, Kind: Terminal, Detail: detail, Err: err}
}

// ClassifyStatus maps an HTTP status code to a Kind.
func ClassifyStatus(code int) Kind {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusTooEarly,
		code == http.StatusTooManyRequests,
		code >= 500:
		return Transient
	case code >= 400:
		return Terminal
	default:
		// Unknown or missing status: malformed upstream responses count as transient.
		return Transient
	}
}

// Classify returns the Kind of err. Anything that is not explicitly a
// client-side rejection is considered transient.
func Classify(err error) Kind {
	if err == nil {
		return Transient
	}

	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Kind
	}

	if code, ok := StatusCode(err); ok {
		return ClassifyStatus(code)
	}

	if errors.Is(err, context.Canceled) {
		return Terminal
	}
	return Transient
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	return err != nil && Classify(err) == Transient
}

// StatusCode extracts an HTTP status code from provider SDK errors.
func StatusCode(err error) (int, bool) {
	var upErr *Error
	if errors.As(err, &upErr) && upErr.StatusCode > 0 {
		return upErr.StatusCode, true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode, true
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode, true
	}

	var antErr *anthropic.Error
	if errors.As(err, &antErr) && antErr.StatusCode > 0 {
		return antErr.StatusCode, true
	}

	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
