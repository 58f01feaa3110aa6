// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies provider failures. The adapter never retries; the
// turn loop decides per kind.
type ErrorKind string

const (
	ErrNetwork       ErrorKind = "network"
	ErrTimeout       ErrorKind = "timeout"
	ErrInvalidAPIKey ErrorKind = "invalid-api-key"
	ErrRateLimit     ErrorKind = "rate-limit"
	ErrQuota         ErrorKind = "quota"
	ErrModelNotFound ErrorKind = "model-not-found"
	ErrContextLength ErrorKind = "context-length-exceeded"
	ErrInvalidReq    ErrorKind = "invalid-request"
	ErrAborted       ErrorKind = "aborted"
	ErrUnknown       ErrorKind = "unknown"
)

// Retryable reports whether the turn loop should retry this kind with
// backoff.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrNetwork, ErrTimeout, ErrRateLimit:
		return true
	}
	return false
}

// Error is a classified provider error.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a classified error.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the classification of err, or ErrUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrUnknown
}

// ClassifyTransport classifies an error returned by the HTTP client before
// any response arrived.
func ClassifyTransport(err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return NewError(ErrAborted, "cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(ErrTimeout, "timeout")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewError(ErrTimeout, "timeout: %v", err)
		}
		return NewError(ErrNetwork, "network: %v", err)
	}
	return NewError(ErrNetwork, "request failed: %v", err)
}

// ClassifyHTTP classifies a non-2xx provider response from its status code
// and body text.
func ClassifyHTTP(status int, body string) *Error {
	lower := strings.ToLower(body)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewError(ErrInvalidAPIKey, "invalid api key (status %d)", status)
	case http.StatusTooManyRequests:
		if strings.Contains(lower, "quota") || strings.Contains(lower, "billing") {
			return NewError(ErrQuota, "quota exceeded (status %d): %s", status, trim(body))
		}
		return NewError(ErrRateLimit, "rate limited (status %d)", status)
	case http.StatusNotFound:
		return NewError(ErrModelNotFound, "model not found (status %d): %s", status, trim(body))
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if strings.Contains(lower, "context length") ||
			strings.Contains(lower, "context_length") ||
			strings.Contains(lower, "maximum context") ||
			strings.Contains(lower, "too many tokens") {
			return NewError(ErrContextLength, "context length exceeded (status %d)", status)
		}
		if strings.Contains(lower, "model") && strings.Contains(lower, "not") {
			return NewError(ErrModelNotFound, "model not found (status %d): %s", status, trim(body))
		}
		return NewError(ErrInvalidReq, "invalid request (status %d): %s", status, trim(body))
	}
	if status >= 500 {
		return NewError(ErrNetwork, "provider error (status %d): %s", status, trim(body))
	}
	return NewError(ErrUnknown, "unexpected status %d: %s", status, trim(body))
}

func trim(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 300 {
		return body[:300] + "..."
	}
	return body
}
