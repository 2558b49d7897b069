package reservation

import (
	"encoding/json"
	"errors"
	"strings"

	"buynow/internal/gateway"
)

const genericMessage = "Something went wrong. Please try again."

// UserMessage turns an error from the reservation or account flow into
// text for the user.
func UserMessage(err error) string {
	var apiErr *gateway.APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gateway.ErrLoginRequired):
		return "Your session has expired. Please log in again."
	case errors.Is(err, gateway.ErrUnauthorized):
		return "Please log in to continue."
	case errors.Is(err, gateway.ErrInvalidAddress):
		return "Please enter a valid address."
	case errors.Is(err, gateway.ErrCancellationNotAllowed):
		return "This reservation can no longer be cancelled."
	case errors.Is(err, gateway.ErrNotOwner):
		return "You can only cancel your own reservations."
	case errors.Is(err, gateway.ErrReservationNotFound):
		return "This reservation could not be found."
	case errors.Is(err, ErrNotAgreed):
		return "Please agree to the personal information terms."
	case errors.Is(err, ErrNoMenu):
		return "Please choose a menu."
	case errors.As(err, &apiErr):
		if msg := ExtractMessage(apiErr.Message); msg != "" {
			return msg
		}
	}
	return genericMessage
}

// ExtractMessage returns the server's message. When the message is itself a
// serialized error envelope, the inner message is returned instead.
func ExtractMessage(msg string) string {
	trimmed := strings.TrimSpace(msg)
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	var inner struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
		return trimmed
	}
	for _, m := range []string{inner.Message, inner.Error, inner.Detail} {
		if m = strings.TrimSpace(m); m != "" {
			return m
		}
	}
	return trimmed
}
