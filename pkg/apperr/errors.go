// Package apperr holds the error taxonomy shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrGateway          = errors.New("payment gateway error")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrFeatureDisabled  = errors.New("feature not enabled")
	ErrLimitExceeded    = errors.New("plan limit exceeded")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// Gateway wraps a provider failure so callers can classify it with errors.Is
// while keeping the provider's own error reachable.
func Gateway(provider string, err error) error {
	return &GatewayError{Provider: provider, Err: err}
}

type GatewayError struct {
	Provider string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrGateway, e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() []error { return []error{ErrGateway, e.Err} }

type FeatureError struct {
	Key string
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("feature %q is not enabled for this church's plan", e.Key)
}

func (e *FeatureError) Unwrap() error { return ErrFeatureDisabled }

type LimitError struct {
	Key     string
	Limit   int64
	Current int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit for %q reached (%d of %d used)", e.Key, e.Current, e.Limit)
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }
