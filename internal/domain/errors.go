package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrItemNotFound indicates a cart mutation targeted a line the local cache does not hold.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrMerchantNotFound indicates a cart mutation targeted a merchant group the local cache does not hold.
	ErrMerchantNotFound = errors.New("merchant group not found")
	// ErrQuantityLimit indicates a stored quantity would exceed the allowed limit.
	ErrQuantityLimit = errors.New("quantity limit exceeded")
)

// BusinessError is an envelope whose code is not CodeSuccess.
type BusinessError struct {
	Code    int
	Message string
}

func NewBusinessError(code int, message string) *BusinessError {
	return &BusinessError{Code: code, Message: message}
}

func (e *BusinessError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("business failure: code %d", e.Code)
	}
	return fmt.Sprintf("business failure: code %d: %s", e.Code, e.Message)
}

// TransportError is a network failure or a non-2xx HTTP status.
// StatusCode is zero when no response was received.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport failure: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsSessionExpired reports whether err carries the session-expiry envelope code.
func IsSessionExpired(err error) bool {
	var be *BusinessError
	return errors.As(err, &be) && be.Code == CodeUnauthorized
}

// UserMessage returns the short text shown to the user for a failed cart call.
func UserMessage(err error) string {
	var be *BusinessError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	var te *TransportError
	if errors.As(err, &te) {
		return "Network error"
	}
	return "Request failed"
}
