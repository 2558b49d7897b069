package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrLoginRequired means an access token was rejected and the refresh
	// that followed failed. The session has been cleared.
	ErrLoginRequired = errors.New("token refresh failed: login required")

	ErrInvalidAddress         = errors.New("invalid address")
	ErrUnauthorized           = errors.New("authentication required")
	ErrCancellationNotAllowed = errors.New("cancellation window has passed")
	ErrNotOwner               = errors.New("only your own reservations can be cancelled")
	ErrReservationNotFound    = errors.New("reservation not found")
)

// Server error codes mapped to domain errors.
const (
	CodeInvalidAddress         = "INVALID_ADDRESS"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeCancellationNotAllowed = "CANCELLATION_NOT_ALLOWED"
)

// APIError represents a non-2xx backend response.
type APIError struct {
	Status  int
	Code    string
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// domainError pairs a domain sentinel with the response that caused it so
// callers can match either with errors.Is / errors.As.
type domainError struct {
	kind error
	api  *APIError
}

func (e *domainError) Error() string {
	return e.kind.Error()
}

func (e *domainError) Unwrap() []error {
	return []error{e.kind, e.api}
}

func withKind(kind error, api *APIError) error {
	return &domainError{kind: kind, api: api}
}

// newAPIError parses the backend error envelope. Unparseable bodies fall
// back to the HTTP status text.
func newAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Message   string `json:"message"`
		Error     string `json:"error"`
		ErrorCode string `json:"errorCode"`
		Code      string `json:"code"`
	}
	_ = json.Unmarshal(body, &envelope)

	msg := envelope.Message
	if msg == "" {
		msg = envelope.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	code := envelope.ErrorCode
	if code == "" {
		code = envelope.Code
	}
	return &APIError{
		Status:  status,
		Code:    strings.TrimSpace(code),
		Message: msg,
		Body:    body,
	}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func addressError(api *APIError) error {
	switch {
	case api.Status == http.StatusBadRequest && api.Code == CodeInvalidAddress:
		return withKind(ErrInvalidAddress, api)
	case api.Status == http.StatusUnauthorized && api.Code == CodeUnauthorized:
		return withKind(ErrUnauthorized, api)
	}
	return api
}

func cancelError(api *APIError) error {
	switch api.Status {
	case http.StatusBadRequest:
		if api.Code == CodeCancellationNotAllowed {
			return withKind(ErrCancellationNotAllowed, api)
		}
	case http.StatusUnauthorized:
		return withKind(ErrUnauthorized, api)
	case http.StatusForbidden:
		return withKind(ErrNotOwner, api)
	case http.StatusNotFound:
		return withKind(ErrReservationNotFound, api)
	}
	return api
}
