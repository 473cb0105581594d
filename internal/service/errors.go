package service

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrWrongPassword   = errors.New("wrong password")
	ErrNotVerified     = errors.New("account not verified")
	ErrNoPasswordSet   = errors.New("no password set, use social login")
	ErrCodeInvalid     = errors.New("invalid or expired verification code")
	ErrDispatchFailed  = errors.New("notification dispatch failed")
	ErrTooManyRequests = errors.New("too many requests")
)

// ValidationError es una falla de entrada reportable, nunca fatal.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalidInput(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError señala identidad duplicada y porta las banderas que el
// cliente usa para distinguir reenvío, login normal o login federado.
type ConflictError struct {
	Unverified     bool
	ProviderLinked bool
}

func (e *ConflictError) Error() string {
	return "user already exists with this email, phone number, or provider"
}

// RateLimitError porta los segundos restantes del código aún vigente.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("a verification code was already sent, wait %d seconds", e.RetryAfterSeconds)
}
