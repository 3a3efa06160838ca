package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrProductNotFound    = errors.New("product not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrValidation         = errors.New("validation failed")
)

// ValidationError carries per-field messages. errors.Is(err, ErrValidation) holds for it.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotificationError wraps a failed delivery. It is logged and never surfaced to the shopper.
type NotificationError struct {
	To  string
	Err error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.To, e.Err)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}
